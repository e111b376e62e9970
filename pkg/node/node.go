// Package node implements the protodrill node runtime.
//
// A node is a single-threaded actor: one goroutine (the run loop) owns
// all protocol state — the Byzantine agreement round and the Lamport
// mutual-exclusion bookkeeping — with no lock. Inbound messages are
// decoded at the endpoint and enqueued into the node's mailbox; public
// operations (CommanderSend, Decide, EnterCriticalSection) talk to the
// loop through command messages carrying reply channels. Outbound sends
// go through a bounded worker pool and are fire-and-forget.
//
// Waits are event-driven rather than polled: an admission wait registers
// a notify channel that the loop closes the moment the node becomes
// admissible, and a deadline timer is the only other way the wait ends.
package node

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/daviddao/protodrill/pkg/byzantine"
	"github.com/daviddao/protodrill/pkg/eventlog"
	"github.com/daviddao/protodrill/pkg/lamport"
	"github.com/daviddao/protodrill/pkg/model"
	"github.com/daviddao/protodrill/pkg/transport"
)

// Default timing knobs, matching the simulated protocol cadence.
const (
	DefaultSettleDelay       = 500 * time.Millisecond
	DefaultHoldDuration      = 500 * time.Millisecond
	DefaultAdmissionDeadline = 6 * time.Second
)

// Config describes one node. Peers excludes the node itself and is
// fixed for the node's lifetime.
type Config struct {
	ID     model.NodeID
	Addr   string
	Peers  []model.Peer
	Faulty bool

	// SettleDelay is how long Decide waits for the oral-messages round
	// to complete before tallying.
	SettleDelay time.Duration
	// HoldDuration is how long the node stays inside a critical section.
	HoldDuration time.Duration
	// AdmissionDeadline bounds the wait for critical-section admission.
	AdmissionDeadline time.Duration

	// SendWorkers and SendQueue size the outbound sender pool.
	SendWorkers int
	SendQueue   int

	Transport transport.Transport
	Events    eventlog.Sink
	Logger    zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.HoldDuration <= 0 {
		c.HoldDuration = DefaultHoldDuration
	}
	if c.AdmissionDeadline <= 0 {
		c.AdmissionDeadline = DefaultAdmissionDeadline
	}
	if c.Events == nil {
		c.Events = eventlog.Nop{}
	}
}

// Node is one protocol participant.
type Node struct {
	cfg    Config
	log    zerolog.Logger
	events eventlog.Sink

	byz *byzantine.State
	mux *lamport.State

	mailbox chan any
	waiters map[string][]chan struct{}
	sender  *senderPool

	srv     *http.Server
	ln      net.Listener
	stopCh  chan struct{}
	started bool
}

// Internal command messages. Inbound protocol messages travel the same
// mailbox as their model types.
type (
	cmdTally struct {
		resp chan tallyResult
	}
	cmdRequestCS struct {
		resource string
		notify   chan struct{}
		resp     chan int64
	}
	cmdCancelAdmission struct {
		resource string
		notify   chan struct{}
	}
	cmdExitCS struct {
		resource string
		done     chan struct{}
	}
)

type tallyResult struct {
	value  model.Value
	counts map[model.Value]int
	ok     bool
}

// New constructs a node from cfg. Call Start or Join before using it.
func New(cfg Config) *Node {
	cfg.applyDefaults()
	logger := cfg.Logger.With().Int("node", int(cfg.ID)).Logger()
	return &Node{
		cfg:     cfg,
		log:     logger,
		events:  cfg.Events,
		byz:     byzantine.New(cfg.ID, cfg.Faulty),
		mux:     lamport.New(cfg.ID, len(cfg.Peers)),
		mailbox: make(chan any, 128),
		waiters: make(map[string][]chan struct{}),
		stopCh:  make(chan struct{}),
	}
}

// ID returns the node's identifier.
func (n *Node) ID() model.NodeID { return n.cfg.ID }

// Addr returns the node's bound address. After Start with a ":0" port
// this is the concrete address the listener picked.
func (n *Node) Addr() string {
	if n.ln != nil {
		return n.ln.Addr().String()
	}
	return n.cfg.Addr
}

// Start binds the node's HTTP endpoint on cfg.Addr and starts the run
// loop. Each message endpoint decodes its payload and enqueues it;
// malformed payloads are logged and acknowledged anyway — the endpoint
// is not an error channel.
func (n *Node) Start() error {
	ln, err := net.Listen("tcp", n.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.cfg.Addr, err)
	}
	n.ln = ln

	httpMux := http.NewServeMux()
	for _, ep := range []string{
		model.EndpointOrder, model.EndpointForward,
		model.EndpointRequest, model.EndpointReply,
	} {
		endpoint := ep
		httpMux.HandleFunc("/"+endpoint, func(w http.ResponseWriter, r *http.Request) {
			body, _ := readBody(r)
			n.Deliver(endpoint, body)
			fmt.Fprint(w, "OK")
		})
	}
	n.srv = &http.Server{Handler: httpMux}
	go func() {
		if err := n.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			n.log.Error().Err(err).Msg("http server stopped")
		}
	}()

	n.begin()
	n.events.Record(n.cfg.ID, model.EventServerStart, "",
		fmt.Sprintf("Server listening on %s", n.cfg.Addr))
	return nil
}

// Join registers the node on an in-memory network instead of binding an
// HTTP listener, and starts the run loop. Tests and in-process scenario
// runs use this path; dispatch is identical to Start.
func (n *Node) Join(network *transport.Network) {
	network.Register(n.cfg.Addr, n.Deliver)
	n.begin()
	n.events.Record(n.cfg.ID, model.EventServerStart, "",
		fmt.Sprintf("Node joined in-memory network as %s", n.cfg.Addr))
}

func (n *Node) begin() {
	if n.started {
		return
	}
	n.started = true
	n.sender = newSenderPool(n.cfg.ID, n.cfg.Transport, n.log, n.events,
		n.cfg.SendWorkers, n.cfg.SendQueue)
	go n.run()
}

// Stop shuts down the endpoint and the run loop. Pending admission
// waits return false.
func (n *Node) Stop() {
	select {
	case <-n.stopCh:
		return
	default:
	}
	close(n.stopCh)
	if n.srv != nil {
		_ = n.srv.Close()
	}
	if n.sender != nil {
		n.sender.close()
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// Deliver decodes one inbound message and enqueues it for the run loop.
// Unknown endpoints and malformed payloads are logged and dropped; the
// caller acknowledges receipt regardless.
func (n *Node) Deliver(endpoint string, body []byte) {
	var (
		msg any
		err error
	)
	switch endpoint {
	case model.EndpointOrder:
		var m model.OrderMsg
		err = json.Unmarshal(body, &m)
		msg = m
	case model.EndpointForward:
		var m model.ForwardMsg
		err = json.Unmarshal(body, &m)
		msg = m
	case model.EndpointRequest:
		var m model.RequestMsg
		err = json.Unmarshal(body, &m)
		msg = m
	case model.EndpointReply:
		var m model.ReplyMsg
		err = json.Unmarshal(body, &m)
		msg = m
	default:
		n.log.Warn().Str("endpoint", endpoint).Msg("unknown endpoint")
		return
	}
	if err != nil {
		n.log.Warn().Str("endpoint", endpoint).Err(err).Msg("bad payload")
		n.events.Record(n.cfg.ID, model.EventDecodeError, "",
			fmt.Sprintf("Bad /%s payload: %s", endpoint, string(body)))
		return
	}
	n.enqueue(msg)
}

func (n *Node) enqueue(msg any) {
	select {
	case n.mailbox <- msg:
	case <-n.stopCh:
	}
}

// run is the actor loop. It is the only goroutine that touches n.byz,
// n.mux, and n.waiters.
func (n *Node) run() {
	for {
		select {
		case <-n.stopCh:
			return
		case msg := <-n.mailbox:
			n.dispatch(msg)
		}
	}
}

func (n *Node) dispatch(msg any) {
	switch m := msg.(type) {
	case model.OrderMsg:
		n.handleOrder(m)
	case model.ForwardMsg:
		n.handleForward(m)
	case model.RequestMsg:
		n.handleRequest(m)
	case model.ReplyMsg:
		n.handleReply(m)
	case cmdTally:
		v, ok := n.byz.Decide()
		m.resp <- tallyResult{value: v, counts: n.byz.Tally(), ok: ok}
	case cmdRequestCS:
		ts := n.mux.Request(m.resource)
		n.waiters[m.resource] = append(n.waiters[m.resource], m.notify)
		n.checkWaiters(m.resource)
		m.resp <- ts
	case cmdCancelAdmission:
		n.removeWaiter(m.resource, m.notify)
	case cmdExitCS:
		n.mux.Exit(m.resource)
		close(m.done)
	default:
		n.log.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unknown mailbox message")
	}
}

// --- Byzantine handlers ---

func (n *Node) handleOrder(m model.OrderMsg) {
	n.events.Record(n.cfg.ID, model.EventOrderRecv, "",
		fmt.Sprintf("Received ORDER from commander %d: %s", m.From, m.Value))
	relay := n.byz.RecordOrder(m.Value)
	n.forwardOrder(relay)
}

// forwardOrder relays this node's (possibly inverted) view of the order
// to every peer. Exactly one relay per node per round; forwards of
// forwards do not exist.
func (n *Node) forwardOrder(relay model.Value) {
	body, err := json.Marshal(model.ForwardMsg{From: n.cfg.ID, Value: relay})
	if err != nil {
		n.log.Error().Err(err).Msg("marshal forward")
		return
	}
	for _, p := range n.cfg.Peers {
		if p.ID == n.cfg.ID {
			continue
		}
		n.events.Record(n.cfg.ID, model.EventForwardSent, "",
			fmt.Sprintf("Forwarding order to %d: %s", p.ID, relay))
		n.sender.enqueue(sendTask{peer: p, endpoint: model.EndpointForward, body: body})
	}
}

func (n *Node) handleForward(m model.ForwardMsg) {
	n.events.Record(n.cfg.ID, model.EventForwardRecv, "",
		fmt.Sprintf("Received FORWARD from %d: %s", m.From, m.Value))
	n.byz.RecordForward(m.From, m.Value)
}

// --- Lamport handlers ---

func (n *Node) handleRequest(m model.RequestMsg) {
	now := n.mux.HandleRequest(m.From, m.Timestamp, m.Resource)
	n.events.Record(n.cfg.ID, model.EventRequestRecv, m.Resource,
		fmt.Sprintf("Received REQUEST from %d ts=%d for resource=%s", m.From, m.Timestamp, m.Resource))
	n.log.Debug().Int64("clock", now).Str("resource", m.Resource).Msg("request received")

	// Reply immediately and unconditionally. The canonical algorithm
	// defers when this node holds an earlier pending request for the
	// same resource; this implementation never defers.
	peer, ok := n.peerByID(m.From)
	if !ok {
		n.log.Warn().Int("from", int(m.From)).Msg("request from unknown peer")
		return
	}
	body, err := json.Marshal(model.ReplyMsg{From: n.cfg.ID, Resource: m.Resource})
	if err != nil {
		n.log.Error().Err(err).Msg("marshal reply")
		return
	}
	n.events.Record(n.cfg.ID, model.EventReplySent, m.Resource,
		fmt.Sprintf("Sending REPLY to %d for resource=%s", m.From, m.Resource))
	n.sender.enqueue(sendTask{peer: peer, endpoint: model.EndpointReply, body: body})

	n.checkWaiters(m.Resource)
}

func (n *Node) handleReply(m model.ReplyMsg) {
	n.mux.HandleReply(m.From, m.Resource)
	n.events.Record(n.cfg.ID, model.EventReplyRecv, m.Resource,
		fmt.Sprintf("Received REPLY from %d for resource=%s", m.From, m.Resource))
	n.checkWaiters(m.Resource)
}

// checkWaiters wakes every admission waiter for resource once the node
// may enter. All registered waits belong to this node's own outstanding
// request, so they become admissible together.
func (n *Node) checkWaiters(resource string) {
	if len(n.waiters[resource]) == 0 || !n.mux.CanEnter(resource) {
		return
	}
	for _, ch := range n.waiters[resource] {
		close(ch)
	}
	delete(n.waiters, resource)
}

func (n *Node) removeWaiter(resource string, notify chan struct{}) {
	ws := n.waiters[resource]
	for i, ch := range ws {
		if ch == notify {
			n.waiters[resource] = append(ws[:i], ws[i+1:]...)
			return
		}
	}
}

func (n *Node) peerByID(id model.NodeID) (model.Peer, bool) {
	for _, p := range n.cfg.Peers {
		if p.ID == id {
			return p, true
		}
	}
	return model.Peer{}, false
}
