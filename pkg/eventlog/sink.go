// Package eventlog provides the append-only event sinks for protodrill.
//
// Every protocol event — an order sent, a request received, a critical
// section entered — is recorded as a timestamped line against the node
// that produced it. Two sinks exist: a shared line-oriented log file
// (one line per event, all nodes appending to the same file) and a
// SQLite store that keeps events queryable per run.
//
// Sinks are side-effect channels: recording never fails the caller.
// A sink that cannot write drops the event; the protocols must keep
// running regardless of logging health.
package eventlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daviddao/protodrill/pkg/model"
)

// Sink receives protocol events. Implementations must be safe for
// concurrent use by all nodes in a process.
type Sink interface {
	Record(node model.NodeID, kind model.EventKind, resource, detail string)
}

// FileSink appends one line per event to a shared log file:
//
//	[<unix-seconds>] [Node <id>] <detail>
//
// All nodes in a run share one FileSink, serialized by a mutex.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFile opens (or creates) the shared log file in append mode.
func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

// Record appends the event line. Write errors are swallowed; the log is
// a sink, not an error channel.
func (s *FileSink) Record(node model.NodeID, _ model.EventKind, _ string, detail string) {
	line := fmt.Sprintf("[%d] [Node %d] %s\n", time.Now().Unix(), node, detail)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.f.WriteString(line)
	_ = s.f.Sync()
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Tee fans each event out to every sink in order.
type Tee []Sink

// Record implements Sink.
func (t Tee) Record(node model.NodeID, kind model.EventKind, resource, detail string) {
	for _, s := range t {
		s.Record(node, kind, resource, detail)
	}
}

// LogSink echoes events to a zerolog logger at info level. Admission
// timeouts are demoted to debug so a contended run does not flood the
// console with expected noise.
type LogSink struct {
	Log zerolog.Logger
}

// Record implements Sink.
func (s LogSink) Record(node model.NodeID, kind model.EventKind, _ string, detail string) {
	ev := s.Log.Info()
	if kind == model.EventCSTimeout {
		ev = s.Log.Debug()
	}
	ev.Int("node", int(node)).Msg(detail)
}

// Nop discards all events. Useful as a default and in tests that do not
// inspect the log.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(model.NodeID, model.EventKind, string, string) {}
