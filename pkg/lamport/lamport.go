// Package lamport implements the state machine for Lamport's
// total-order mutual exclusion.
//
// Every request carries a (timestamp, node) pair; the pair's position in
// the Lamport total order decides who goes first, everywhere, with no
// central lock manager. A node may enter the critical section for a
// resource only when its own request is the minimum of that resource's
// queue and every peer has acknowledged the request.
//
// State is not goroutine-safe. Each instance is owned by one node's
// actor loop, the same single-owner discipline as clock.Clock.
package lamport

import (
	"github.com/daviddao/protodrill/pkg/clock"
	"github.com/daviddao/protodrill/pkg/model"
)

// State holds one node's mutual-exclusion bookkeeping: the logical
// clock, a request queue per resource, and the set of peers that have
// acknowledged the node's own outstanding request per resource.
type State struct {
	self      model.NodeID
	peerCount int

	clock   clock.Clock
	queues  map[string]*requestQueue
	replies map[string]map[model.NodeID]bool
}

// New returns mutual-exclusion state for one node with peerCount peers.
func New(self model.NodeID, peerCount int) *State {
	return &State{
		self:      self,
		peerCount: peerCount,
		queues:    make(map[string]*requestQueue),
		replies:   make(map[string]map[model.NodeID]bool),
	}
}

// Clock returns the current logical clock value.
func (s *State) Clock() int64 { return s.clock.Value() }

func (s *State) queue(resource string) *requestQueue {
	q, ok := s.queues[resource]
	if !ok {
		q = &requestQueue{}
		s.queues[resource] = q
	}
	return q
}

// Request starts a new request for resource: IR1 tick, enqueue the
// node's own (timestamp, id) entry, and reset the reply set. Returns the
// timestamp to multicast.
func (s *State) Request(resource string) int64 {
	ts := s.clock.Tick()
	s.queue(resource).push(Entry{Timestamp: ts, Node: s.self})
	s.replies[resource] = make(map[model.NodeID]bool)
	return ts
}

// HandleRequest processes a peer's request: IR2 clock update, then
// enqueue the peer's entry. Returns the updated clock value. The caller
// is expected to reply immediately and unconditionally; this
// implementation never defers a reply.
func (s *State) HandleRequest(from model.NodeID, ts int64, resource string) int64 {
	now := s.clock.Receive(ts)
	s.queue(resource).push(Entry{Timestamp: ts, Node: from})
	return now
}

// HandleReply records that a peer acknowledged the node's outstanding
// request for resource.
func (s *State) HandleReply(from model.NodeID, resource string) {
	set, ok := s.replies[resource]
	if !ok {
		set = make(map[model.NodeID]bool)
		s.replies[resource] = set
	}
	set[from] = true
}

// CanEnter reports whether the node may enter the critical section for
// resource: its own entry is the queue minimum and every peer has
// replied.
func (s *State) CanEnter(resource string) bool {
	head, ok := s.queue(resource).min()
	if !ok || head.Node != s.self {
		return false
	}
	return len(s.replies[resource]) >= s.peerCount
}

// ReplyCount returns how many peers have acknowledged the node's
// outstanding request for resource.
func (s *State) ReplyCount(resource string) int {
	return len(s.replies[resource])
}

// Exit releases the critical section for resource: the node's own entry
// is removed from the queue (from the head in the normal case, by scan
// otherwise) and the reply set is cleared.
func (s *State) Exit(resource string) {
	s.queue(resource).removeNode(s.self)
	s.replies[resource] = make(map[model.NodeID]bool)
}

// QueueLen returns the number of pending entries for resource.
func (s *State) QueueLen(resource string) int {
	return s.queue(resource).Len()
}

// Head returns the minimum pending entry for resource, if any.
func (s *State) Head(resource string) (Entry, bool) {
	return s.queue(resource).min()
}
