// Package model defines the core domain types for protodrill.
//
// Protodrill simulates two classical coordination protocols over
// point-to-point messaging:
//
//   - Oral Messages Byzantine agreement (Lamport, Shostak, Pease 1982),
//     restricted to a single round tolerating one faulty lieutenant. A
//     commander sends a binary command; each lieutenant relays what it
//     received exactly once; a majority vote decides.
//
//   - Lamport mutual exclusion (1978): logical timestamps give every
//     request a position in a global total order; a node enters the
//     critical section only when its own request is first in that order
//     and every peer has acknowledged it.
package model

import "time"

// NodeID identifies a node. Small, unique per process, stable for the
// process lifetime.
type NodeID int

// Peer is one (node, address) entry in a node's peer set. The peer set
// excludes the node itself and is fixed at construction.
type Peer struct {
	ID   NodeID `json:"id"`
	Addr string `json:"addr"`
}

// Value is the binary command domain for the Byzantine run.
type Value string

const (
	Attack  Value = "ATTACK"
	Retreat Value = "RETREAT"
)

// Invert returns the opposite command. This is the whole fault model: a
// faulty lieutenant relays the inverse of what it received, while never
// lying about its own identity.
func Invert(v Value) Value {
	if v == Attack {
		return Retreat
	}
	return Attack
}

// OrderMsg is the commander's initial command to a lieutenant.
type OrderMsg struct {
	From  NodeID `json:"from"`
	Value Value  `json:"value"`
}

// ForwardMsg is a lieutenant's one-time relay of the order it received.
type ForwardMsg struct {
	From  NodeID `json:"from"`
	Value Value  `json:"value"`
}

// RequestMsg asks every peer for permission to enter the critical section
// for a named resource. Timestamp is the sender's Lamport clock at the
// moment of the request.
type RequestMsg struct {
	From      NodeID `json:"from"`
	Timestamp int64  `json:"ts"`
	Resource  string `json:"resource"`
}

// ReplyMsg acknowledges a RequestMsg. Carries no timestamp; only the
// identity of the acknowledging peer matters for the quorum.
type ReplyMsg struct {
	From     NodeID `json:"from"`
	Resource string `json:"resource"`
}

// Endpoint names for the four message variants. These are the HTTP paths
// a node serves and the keys the memory transport routes on.
const (
	EndpointOrder   = "order"
	EndpointForward = "forward"
	EndpointRequest = "request"
	EndpointReply   = "reply"
)

// EventKind enumerates the protocol events recorded to the event log.
type EventKind string

const (
	EventServerStart EventKind = "server_start"
	EventOrderSent   EventKind = "order_sent"
	EventOrderRecv   EventKind = "order_recv"
	EventForwardSent EventKind = "forward_sent"
	EventForwardRecv EventKind = "forward_recv"
	EventDecided     EventKind = "decided"
	EventNoDecision  EventKind = "no_decision"
	EventRequestSent EventKind = "request_sent"
	EventRequestRecv EventKind = "request_recv"
	EventReplySent   EventKind = "reply_sent"
	EventReplyRecv   EventKind = "reply_recv"
	EventCSEnter     EventKind = "cs_enter"
	EventCSExit      EventKind = "cs_exit"
	EventCSTimeout   EventKind = "cs_timeout"
	EventSendError   EventKind = "send_error"
	EventDecodeError EventKind = "decode_error"
)

// Event is a single entry in the append-only event log.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	NodeID    NodeID    `json:"node_id"`
	Kind      EventKind `json:"kind"`
	Resource  string    `json:"resource,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Run is one recorded scenario execution.
type Run struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	StartedAt time.Time `json:"started_at"`
}
