// Package scenario wires fixed topologies and drives the two protocol
// runs: a single commander broadcast with one faulty lieutenant, and
// four nodes contending for two named resources in sequence.
//
// The drivers are glue by design: they construct nodes, start their
// endpoints, issue the handful of top-level protocol calls, and collect
// what each node reports. Topology, fault assignment, and call sequence
// are fixed at process start; there is no runtime reconfiguration.
package scenario

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daviddao/protodrill/pkg/eventlog"
	"github.com/daviddao/protodrill/pkg/model"
	"github.com/daviddao/protodrill/pkg/node"
	"github.com/daviddao/protodrill/pkg/transport"
)

// Scenario names recorded against runs in the event store.
const (
	NameByzantine = "byzantine"
	NameLamport   = "lamport"
)

// Topology returns n peers with IDs 0..n-1 listening on consecutive
// localhost ports starting at basePort.
func Topology(n, basePort int) []model.Peer {
	peers := make([]model.Peer, n)
	for i := range peers {
		peers[i] = model.Peer{ID: model.NodeID(i), Addr: fmt.Sprintf("127.0.0.1:%d", basePort+i)}
	}
	return peers
}

// MemoryTopology returns n peers addressed by name for an in-memory
// network run.
func MemoryTopology(n int) []model.Peer {
	peers := make([]model.Peer, n)
	for i := range peers {
		peers[i] = model.Peer{ID: model.NodeID(i), Addr: fmt.Sprintf("node-%d", i)}
	}
	return peers
}

// Config carries what both drivers share.
type Config struct {
	Peers []model.Peer

	// Transport is the outbound path. If Network is non-nil the nodes
	// register on it instead of binding HTTP listeners; Transport should
	// then be the same Network.
	Transport transport.Transport
	Network   *transport.Network

	Events eventlog.Sink
	Logger zerolog.Logger

	// Node timing knobs; zero values fall back to the node defaults.
	SettleDelay       time.Duration
	HoldDuration      time.Duration
	AdmissionDeadline time.Duration

	// StartupDelay is how long the driver waits after starting the
	// endpoints before issuing protocol calls.
	StartupDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.StartupDelay <= 0 {
		c.StartupDelay = 300 * time.Millisecond
	}
	if c.Events == nil {
		c.Events = eventlog.Nop{}
	}
}

// buildNodes constructs and starts one node per peer. faulty marks the
// Byzantine relays; nil means all honest.
func buildNodes(cfg Config, faulty map[model.NodeID]bool) (map[model.NodeID]*node.Node, error) {
	nodes := make(map[model.NodeID]*node.Node, len(cfg.Peers))
	for _, self := range cfg.Peers {
		peers := make([]model.Peer, 0, len(cfg.Peers)-1)
		for _, p := range cfg.Peers {
			if p.ID != self.ID {
				peers = append(peers, p)
			}
		}
		n := node.New(node.Config{
			ID:                self.ID,
			Addr:              self.Addr,
			Peers:             peers,
			Faulty:            faulty[self.ID],
			SettleDelay:       cfg.SettleDelay,
			HoldDuration:      cfg.HoldDuration,
			AdmissionDeadline: cfg.AdmissionDeadline,
			Transport:         cfg.Transport,
			Events:            cfg.Events,
			Logger:            cfg.Logger,
		})
		if cfg.Network != nil {
			n.Join(cfg.Network)
		} else if err := n.Start(); err != nil {
			for _, started := range nodes {
				started.Stop()
			}
			return nil, fmt.Errorf("start node %d: %w", self.ID, err)
		}
		nodes[self.ID] = n
	}
	return nodes, nil
}

func stopAll(nodes map[model.NodeID]*node.Node) {
	for _, n := range nodes {
		n.Stop()
	}
}

// ---------------------------------------------------------------------------
// Scenario A — Byzantine agreement
// ---------------------------------------------------------------------------

// ByzantineConfig fixes scenario A: a designated commander broadcasts
// one order map; every listed faulty lieutenant inverts what it relays.
type ByzantineConfig struct {
	Config
	Commander model.NodeID
	Faulty    []model.NodeID
	Orders    map[model.NodeID]model.Value

	// RoundDelay is the gap between the broadcast and the decide calls,
	// giving forwards time to land before nodes settle and tally.
	RoundDelay time.Duration
}

// ByzantineResult collects each lieutenant's outcome.
type ByzantineResult struct {
	Decisions  map[model.NodeID]model.Value
	NoDecision []model.NodeID
}

// DefaultByzantine is scenario A as shipped: 3 nodes, node 0 commands
// ATTACK everywhere, node 2 relays inverted values.
func DefaultByzantine(basePort int) ByzantineConfig {
	peers := Topology(3, basePort)
	orders := make(map[model.NodeID]model.Value)
	for _, p := range peers {
		orders[p.ID] = model.Attack
	}
	return ByzantineConfig{
		Config:    Config{Peers: peers},
		Commander: 0,
		Faulty:    []model.NodeID{2},
		Orders:    orders,
	}
}

// RunByzantine executes scenario A and returns what each lieutenant
// decided. Lieutenants that never saw a commander order appear in
// NoDecision; nothing retries on their behalf.
func RunByzantine(bc ByzantineConfig) (*ByzantineResult, error) {
	bc.applyDefaults()
	if bc.RoundDelay <= 0 {
		bc.RoundDelay = time.Second
	}

	faulty := make(map[model.NodeID]bool, len(bc.Faulty))
	for _, id := range bc.Faulty {
		faulty[id] = true
	}
	nodes, err := buildNodes(bc.Config, faulty)
	if err != nil {
		return nil, err
	}
	defer stopAll(nodes)

	commander, ok := nodes[bc.Commander]
	if !ok {
		return nil, fmt.Errorf("commander %d not in topology", bc.Commander)
	}

	time.Sleep(bc.StartupDelay)
	commander.CommanderSend(bc.Orders)
	time.Sleep(bc.RoundDelay)

	result := &ByzantineResult{Decisions: make(map[model.NodeID]model.Value)}
	ids := make([]model.NodeID, 0, len(nodes))
	for id := range nodes {
		if id != bc.Commander {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if v, decided := nodes[id].Decide(); decided {
			result.Decisions[id] = v
		} else {
			result.NoDecision = append(result.NoDecision, id)
		}
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Scenario B — Lamport mutual exclusion
// ---------------------------------------------------------------------------

// LamportConfig fixes scenario B: every node requests each resource in
// order, with staggered starts so the requests genuinely contend.
type LamportConfig struct {
	Config
	Resources []string

	// Stagger delays node i's first request by (i+1) * Stagger.
	Stagger time.Duration
	// Pause separates a node's consecutive resource requests by
	// Pause + i*PauseStep.
	Pause     time.Duration
	PauseStep time.Duration
}

// LamportResult records, per node, which resources it entered and which
// attempts timed out.
type LamportResult struct {
	mu       sync.Mutex
	Entered  map[model.NodeID][]string
	TimedOut map[model.NodeID][]string
}

func (r *LamportResult) record(id model.NodeID, resource string, entered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entered {
		r.Entered[id] = append(r.Entered[id], resource)
	} else {
		r.TimedOut[id] = append(r.TimedOut[id], resource)
	}
}

// DefaultLamport is scenario B as shipped: 4 nodes, resources "A" then
// "B", one-second stagger.
func DefaultLamport(basePort int) LamportConfig {
	return LamportConfig{
		Config:    Config{Peers: Topology(4, basePort)},
		Resources: []string{"A", "B"},
		Stagger:   time.Second,
		Pause:     200 * time.Millisecond,
		PauseStep: 100 * time.Millisecond,
	}
}

// RunLamport executes scenario B. Each node runs its request sequence on
// its own goroutine; the driver waits for all of them.
func RunLamport(lc LamportConfig) (*LamportResult, error) {
	lc.applyDefaults()
	if len(lc.Resources) == 0 {
		lc.Resources = []string{"A", "B"}
	}
	if lc.Stagger <= 0 {
		lc.Stagger = time.Second
	}
	if lc.Pause <= 0 {
		lc.Pause = 200 * time.Millisecond
	}
	if lc.PauseStep <= 0 {
		lc.PauseStep = 100 * time.Millisecond
	}

	nodes, err := buildNodes(lc.Config, nil)
	if err != nil {
		return nil, err
	}
	defer stopAll(nodes)

	time.Sleep(lc.StartupDelay)

	result := &LamportResult{
		Entered:  make(map[model.NodeID][]string),
		TimedOut: make(map[model.NodeID][]string),
	}
	var wg sync.WaitGroup
	for id, n := range nodes {
		wg.Add(1)
		go func(id model.NodeID, n *node.Node) {
			defer wg.Done()
			time.Sleep(time.Duration(id+1) * lc.Stagger)
			for i, resource := range lc.Resources {
				if i > 0 {
					time.Sleep(lc.Pause + time.Duration(id)*lc.PauseStep)
				}
				result.record(id, resource, n.EnterCriticalSection(resource))
			}
		}(id, n)
	}
	wg.Wait()
	return result, nil
}
