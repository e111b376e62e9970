// iface.go defines StoreInterface for dependency injection and testing.
//
// The concrete *Store type satisfies this interface. Code that reads the
// event history (the cmd layer, scenario assertions) can accept
// StoreInterface instead of *Store, enabling mock injection in tests.
package eventlog

import "github.com/daviddao/protodrill/pkg/model"

// StoreInterface defines the full set of store operations.
// The concrete *Store type implements this interface.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// --- Runs ---

	// CreateRun registers a new scenario run.
	CreateRun(scenario string) (*model.Run, error)

	// GetRun retrieves a run by ID.
	GetRun(id string) (*model.Run, error)

	// ListRuns returns all runs, most recent first.
	ListRuns() ([]model.Run, error)

	// LatestRun returns the most recently started run.
	LatestRun() (*model.Run, error)

	// --- Events ---

	// InsertEvent appends an event to the log. Returns the row ID.
	InsertEvent(e *model.Event) (int64, error)

	// ListEvents returns a run's events in append order.
	ListEvents(runID string, limit int) ([]model.Event, error)

	// EventsByKind returns a run's events of one kind in append order.
	EventsByKind(runID string, kind model.EventKind) ([]model.Event, error)

	// CriticalSectionEvents returns cs_enter/cs_exit events for a resource.
	CriticalSectionEvents(runID, resource string) ([]model.Event, error)

	// CountEvents returns the number of events recorded for a run.
	CountEvents(runID string) int64

	// SinkFor returns a Sink that records events against runID.
	SinkFor(runID string) *RunSink
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)

// Compile-time checks that every sink satisfies Sink.
var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*RunSink)(nil)
	_ Sink = Tee(nil)
	_ Sink = LogSink{}
	_ Sink = Nop{}
)
