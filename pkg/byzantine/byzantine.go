// Package byzantine implements the state machine for a single Oral
// Messages round with one tolerated faulty lieutenant.
//
// The protocol is deliberately not the general recursive OM(f) algorithm:
// the commander sends once, every lieutenant relays what it received
// exactly once, and nobody relays a relay. With three nodes and one
// faulty (non-commander) participant, an honest lieutenant still holds a
// 2-to-1 majority for the commander's true value.
//
// State is not goroutine-safe. Each instance is owned by one node's
// actor loop, the same single-owner discipline as clock.Clock.
package byzantine

import (
	"sort"

	"github.com/daviddao/protodrill/pkg/model"
)

// State holds one node's view of a single agreement round. It is never
// reset: the protocol is single-shot, one command per process lifetime.
type State struct {
	self   model.NodeID
	faulty bool

	commanderOrder model.Value
	haveOrder      bool
	forwarded      map[model.NodeID]model.Value
}

// New returns the agreement state for one node. A faulty node inverts
// every value it relays.
func New(self model.NodeID, faulty bool) *State {
	return &State{
		self:      self,
		faulty:    faulty,
		forwarded: make(map[model.NodeID]model.Value),
	}
}

// Faulty reports whether this node relays inverted values.
func (s *State) Faulty() bool { return s.faulty }

// RecordOrder stores the commander's order. Returns the value this node
// will relay onward: the order itself, or its inverse when faulty. The
// relayed value is also recorded as the node's own forwarded entry, so
// the node's own vote in Decide matches what its peers will count.
func (s *State) RecordOrder(v model.Value) model.Value {
	s.commanderOrder = v
	s.haveOrder = true
	relay := v
	if s.faulty {
		relay = model.Invert(v)
	}
	s.forwarded[s.self] = relay
	return relay
}

// RecordForward stores the value another lieutenant claims it received.
// There is no forwarding of forwards; this is the last hop.
func (s *State) RecordForward(from model.NodeID, v model.Value) {
	s.forwarded[from] = v
}

// HaveOrder reports whether the commander's order has arrived.
func (s *State) HaveOrder() bool { return s.haveOrder }

// Tally returns one vote for the commander's order plus one vote per
// forwarded entry (the node's own included). Nil if no order arrived.
func (s *State) Tally() map[model.Value]int {
	if !s.haveOrder {
		return nil
	}
	counts := make(map[model.Value]int)
	counts[s.commanderOrder]++
	for _, v := range s.forwarded {
		counts[v]++
	}
	return counts
}

// Decide returns the majority value across the commander's order and all
// forwarded values. If the commander's order never arrived there is
// nothing to decide and ok is false.
//
// Ties are broken deterministically: the value with the strictly highest
// count wins; among equal counts the lexicographically smallest value
// wins. Map iteration order never influences the result.
func (s *State) Decide() (v model.Value, ok bool) {
	counts := s.Tally()
	if counts == nil {
		return "", false
	}
	values := make([]model.Value, 0, len(counts))
	for val := range counts {
		values = append(values, val)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	best := values[0]
	for _, val := range values[1:] {
		if counts[val] > counts[best] {
			best = val
		}
	}
	return best, true
}
