package node

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/daviddao/protodrill/pkg/model"
)

// CommanderSend fans the command out to every peer: each peer gets its
// intended value from orders, defaulting to RETREAT when absent. One
// shot, from the single designated commander; the commander takes no
// part in the decision that follows.
func (n *Node) CommanderSend(orders map[model.NodeID]model.Value) {
	for _, p := range n.cfg.Peers {
		v, ok := orders[p.ID]
		if !ok {
			v = model.Retreat
		}
		body, err := json.Marshal(model.OrderMsg{From: n.cfg.ID, Value: v})
		if err != nil {
			n.log.Error().Err(err).Msg("marshal order")
			continue
		}
		n.events.Record(n.cfg.ID, model.EventOrderSent, "",
			fmt.Sprintf("Sent ORDER to %d: %s", p.ID, v))
		n.sender.enqueue(sendTask{peer: p, endpoint: model.EndpointOrder, body: body})
	}
}

// Decide waits out the settling period that models round completion,
// then tallies one vote for the commander's order plus one per forwarded
// value (the node's own relay included) and returns the majority.
//
// If no commander order ever arrived the round fails silently: ok is
// false, the miss is logged, and nothing retries or escalates.
func (n *Node) Decide() (model.Value, bool) {
	select {
	case <-time.After(n.cfg.SettleDelay):
	case <-n.stopCh:
		return "", false
	}

	resp := make(chan tallyResult, 1)
	select {
	case n.mailbox <- cmdTally{resp: resp}:
	case <-n.stopCh:
		return "", false
	}
	// The loop may stop before draining the mailbox; never wait on a
	// command that will not be processed.
	var r tallyResult
	select {
	case r = <-resp:
	case <-n.stopCh:
		return "", false
	}

	if !r.ok {
		n.log.Warn().Msg("no commander order received; cannot decide")
		n.events.Record(n.cfg.ID, model.EventNoDecision, "",
			"No commander order received yet; cannot decide")
		return "", false
	}
	n.events.Record(n.cfg.ID, model.EventDecided, "",
		fmt.Sprintf("FINAL DECISION = %s (tally %v)", r.value, r.counts))
	return r.value, true
}

// EnterCriticalSection requests resource, waits for admission, holds the
// critical section for the configured duration, and releases it.
// Returns true on a completed critical section, false on timeout.
//
// The wait is event-driven: the run loop closes the notify channel as
// soon as this node's request is first in the resource's total order and
// every peer has replied. The admission deadline is the only early exit.
//
// On timeout the attempt is abandoned but the node's queue entry is NOT
// removed — it stays enqueued, exactly as a lost requester would leave
// it. In an extended run that stale entry can starve the resource; the
// fixed scenarios never re-request after a timeout.
func (n *Node) EnterCriticalSection(resource string) bool {
	notify := make(chan struct{})
	resp := make(chan int64, 1)
	select {
	case n.mailbox <- cmdRequestCS{resource: resource, notify: notify, resp: resp}:
	case <-n.stopCh:
		return false
	}
	var ts int64
	select {
	case ts = <-resp:
	case <-n.stopCh:
		return false
	}

	n.events.Record(n.cfg.ID, model.EventRequestSent, resource,
		fmt.Sprintf("Broadcasting REQUEST ts=%d for resource=%s", ts, resource))
	body, err := json.Marshal(model.RequestMsg{From: n.cfg.ID, Timestamp: ts, Resource: resource})
	if err != nil {
		n.log.Error().Err(err).Msg("marshal request")
		return false
	}
	for _, p := range n.cfg.Peers {
		n.sender.enqueue(sendTask{peer: p, endpoint: model.EndpointRequest, body: body})
	}

	deadline := time.NewTimer(n.cfg.AdmissionDeadline)
	defer deadline.Stop()
	select {
	case <-notify:
	case <-deadline.C:
		n.log.Debug().Str("resource", resource).Msg("timeout waiting for replies")
		n.events.Record(n.cfg.ID, model.EventCSTimeout, resource,
			fmt.Sprintf("Timeout waiting for replies for resource=%s", resource))
		select {
		case n.mailbox <- cmdCancelAdmission{resource: resource, notify: notify}:
		case <-n.stopCh:
		}
		return false
	case <-n.stopCh:
		return false
	}

	n.events.Record(n.cfg.ID, model.EventCSEnter, resource,
		fmt.Sprintf("Entering critical section for resource=%s", resource))
	time.Sleep(n.cfg.HoldDuration)
	n.events.Record(n.cfg.ID, model.EventCSExit, resource,
		fmt.Sprintf("Exiting critical section for resource=%s", resource))

	done := make(chan struct{})
	select {
	case n.mailbox <- cmdExitCS{resource: resource, done: done}:
		select {
		case <-done:
		case <-n.stopCh:
		}
	case <-n.stopCh:
	}
	return true
}
