package node

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/daviddao/protodrill/pkg/eventlog"
	"github.com/daviddao/protodrill/pkg/model"
	"github.com/daviddao/protodrill/pkg/transport"
)

// sendTask is one outbound message to one peer.
type sendTask struct {
	peer     model.Peer
	endpoint string
	body     []byte
}

// senderPool performs all outbound sends for a node through a fixed set
// of workers draining a bounded queue. This caps concurrent outbound
// work deterministically; the alternative of one goroutine per send has
// no bound on in-flight work.
//
// Sends are fire-and-forget: a transport failure is logged and recorded,
// never retried, never surfaced to the enqueuer. A full queue drops the
// task, which is within the same contract.
type senderPool struct {
	self   model.NodeID
	tr     transport.Transport
	log    zerolog.Logger
	events eventlog.Sink

	tasks chan sendTask
	wg    sync.WaitGroup

	// mu guards closed. enqueue holds the read lock across its channel
	// send so close cannot pull the channel out from under it.
	mu     sync.RWMutex
	closed bool
}

func newSenderPool(self model.NodeID, tr transport.Transport, log zerolog.Logger, events eventlog.Sink, workers, queue int) *senderPool {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 64
	}
	p := &senderPool{
		self:   self,
		tr:     tr,
		log:    log,
		events: events,
		tasks:  make(chan sendTask, queue),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// enqueue hands a task to the pool without blocking the caller. Returns
// false if the task was dropped: the queue was full, or the pool has
// been closed by Stop while the caller was still dispatching.
func (p *senderPool) enqueue(t sendTask) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Debug().
			Int("peer", int(t.peer.ID)).
			Str("endpoint", t.endpoint).
			Msg("sender closed, dropping message")
		return false
	}
	select {
	case p.tasks <- t:
		return true
	default:
		p.log.Warn().
			Int("peer", int(t.peer.ID)).
			Str("endpoint", t.endpoint).
			Msg("send queue full, dropping message")
		p.events.Record(p.self, model.EventSendError, "",
			fmt.Sprintf("Dropped %s to %d: send queue full", t.endpoint, t.peer.ID))
		return false
	}
}

func (p *senderPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		if err := p.tr.Send(t.peer.Addr, t.endpoint, t.body); err != nil {
			p.log.Warn().
				Int("peer", int(t.peer.ID)).
				Str("endpoint", t.endpoint).
				Err(err).
				Msg("send failed")
			p.events.Record(p.self, model.EventSendError, "",
				fmt.Sprintf("Error sending %s to %d: %v", t.endpoint, t.peer.ID, err))
			continue
		}
		p.log.Debug().
			Int("peer", int(t.peer.ID)).
			Str("endpoint", t.endpoint).
			Msg("sent")
	}
}

// close drains and stops the workers. In-flight sends complete; late
// enqueuers see the closed flag and drop their tasks.
func (p *senderPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.tasks)
	p.wg.Wait()
}
