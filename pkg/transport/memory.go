package transport

import "sync"

// Network is an in-process message fabric: every node registers a
// handler under its address, and Send delivers directly to the matching
// handler on the caller's goroutine. All nodes share one Network.
//
// Used by tests and in-process scenario runs; it exercises the same
// dispatch path as the HTTP transport without sockets.
type Network struct {
	mu    sync.RWMutex
	nodes map[string]Handler
}

// NewNetwork returns an empty in-memory network.
func NewNetwork() *Network {
	return &Network{nodes: make(map[string]Handler)}
}

// Register binds a handler to an address. Re-registering an address
// replaces the previous handler.
func (n *Network) Register(addr string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[addr] = h
}

// Deregister removes an address. Subsequent sends to it fail with
// ErrUnknownAddr, which is how tests simulate an unreachable peer.
func (n *Network) Deregister(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nodes, addr)
}

// Send implements Transport.
func (n *Network) Send(addr, endpoint string, body []byte) error {
	n.mu.RLock()
	h, ok := n.nodes[addr]
	n.mu.RUnlock()
	if !ok {
		return ErrUnknownAddr{Addr: addr}
	}
	h(endpoint, body)
	return nil
}

var _ Transport = (*Network)(nil)
