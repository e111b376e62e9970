// Package transport moves encoded messages between nodes.
//
// The contract is deliberately thin: point-to-point delivery of one
// request body to one endpoint on one address, acknowledged or failed.
// No ordering, no retry, no delivery guarantee beyond the underlying
// connection. Protocol code treats every send as fire-and-forget; a
// failed send is logged by the caller and the protocol proceeds as if
// the message simply may not arrive.
package transport

import "fmt"

// Transport delivers one message body to the named endpoint at addr.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(addr, endpoint string, body []byte) error
}

// Handler is the receiving side: a node registers one handler that
// accepts the endpoint name and the raw body. Handlers must acknowledge
// by returning; malformed bodies are the handler's problem to log, not
// the transport's to reject.
type Handler func(endpoint string, body []byte)

// ErrUnknownAddr reports a send to an address no node has registered.
type ErrUnknownAddr struct {
	Addr string
}

func (e ErrUnknownAddr) Error() string {
	return fmt.Sprintf("transport: no node registered at %q", e.Addr)
}
