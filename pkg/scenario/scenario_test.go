package scenario

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/daviddao/protodrill/pkg/eventlog"
	"github.com/daviddao/protodrill/pkg/model"
	"github.com/daviddao/protodrill/pkg/transport"
)

func TestTopology(t *testing.T) {
	peers := Topology(3, 9000)
	if len(peers) != 3 {
		t.Fatalf("got %d peers, want 3", len(peers))
	}
	if peers[0].Addr != "127.0.0.1:9000" || peers[2].Addr != "127.0.0.1:9002" {
		t.Fatalf("unexpected addrs: %v", peers)
	}
	if peers[1].ID != 1 {
		t.Fatalf("peer 1 has ID %d", peers[1].ID)
	}
}

func TestDefaultByzantineShape(t *testing.T) {
	bc := DefaultByzantine(8000)
	if len(bc.Peers) != 3 {
		t.Fatalf("got %d peers, want 3", len(bc.Peers))
	}
	if bc.Commander != 0 {
		t.Fatalf("commander = %d, want 0", bc.Commander)
	}
	if len(bc.Faulty) != 1 || bc.Faulty[0] != 2 {
		t.Fatalf("faulty = %v, want [2]", bc.Faulty)
	}
	for id, v := range bc.Orders {
		if v != model.Attack {
			t.Fatalf("order for %d = %s, want ATTACK", id, v)
		}
	}
}

func TestDefaultLamportShape(t *testing.T) {
	lc := DefaultLamport(8000)
	if len(lc.Peers) != 4 {
		t.Fatalf("got %d peers, want 4", len(lc.Peers))
	}
	if len(lc.Resources) != 2 || lc.Resources[0] != "A" || lc.Resources[1] != "B" {
		t.Fatalf("resources = %v, want [A B]", lc.Resources)
	}
}

// In-process scenario A: the honest lieutenant outvotes the single
// faulty relay, and the faulty lieutenant still tallies honestly for
// itself, so both decide ATTACK.
func TestRunByzantineInProcess(t *testing.T) {
	network := transport.NewNetwork()
	bc := DefaultByzantine(0)
	bc.Peers = MemoryTopology(3)
	bc.Transport = network
	bc.Network = network
	bc.StartupDelay = 50 * time.Millisecond
	bc.SettleDelay = 50 * time.Millisecond
	bc.RoundDelay = 300 * time.Millisecond

	result, err := RunByzantine(bc)
	if err != nil {
		t.Fatalf("RunByzantine: %v", err)
	}
	if len(result.NoDecision) != 0 {
		t.Fatalf("nodes without decision: %v", result.NoDecision)
	}
	if len(result.Decisions) != 2 {
		t.Fatalf("got %d decisions, want 2 (commander does not decide)", len(result.Decisions))
	}
	if _, ok := result.Decisions[0]; ok {
		t.Fatal("commander must not appear in the decisions")
	}
	for id, v := range result.Decisions {
		if v != model.Attack {
			t.Fatalf("node %d decided %s, want ATTACK", id, v)
		}
	}
}

func TestRunByzantineUnknownCommander(t *testing.T) {
	network := transport.NewNetwork()
	bc := DefaultByzantine(0)
	bc.Peers = MemoryTopology(3)
	bc.Transport = network
	bc.Network = network
	bc.Commander = 9

	if _, err := RunByzantine(bc); err == nil {
		t.Fatal("expected error for a commander outside the topology")
	}
}

// In-process scenario B against a real event store. Node 0 always holds
// the smallest (timestamp, id) request and wins both resources; every
// later requester keeps node 0's entry at its queue head — no release
// message ever removes it — and times out.
func TestRunLamportInProcess(t *testing.T) {
	store, err := eventlog.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	run, err := store.CreateRun(NameLamport)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	network := transport.NewNetwork()
	lc := DefaultLamport(0)
	lc.Peers = MemoryTopology(4)
	lc.Transport = network
	lc.Network = network
	lc.Events = store.SinkFor(run.ID)
	lc.StartupDelay = 50 * time.Millisecond
	lc.HoldDuration = 50 * time.Millisecond
	lc.AdmissionDeadline = 300 * time.Millisecond
	lc.Stagger = 50 * time.Millisecond
	lc.Pause = 50 * time.Millisecond
	lc.PauseStep = 10 * time.Millisecond

	result, err := RunLamport(lc)
	if err != nil {
		t.Fatalf("RunLamport: %v", err)
	}

	if got := result.Entered[0]; len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("node 0 entered %v, want [A B]", got)
	}
	for id := model.NodeID(1); id < 4; id++ {
		if len(result.Entered[id]) != 0 {
			t.Fatalf("node %d entered %v, want none", id, result.Entered[id])
		}
		if len(result.TimedOut[id]) != 2 {
			t.Fatalf("node %d timed out on %v, want both resources", id, result.TimedOut[id])
		}
	}

	// Safety, checked against the persisted event stream: occupancy of
	// each resource never overlaps.
	for _, resource := range lc.Resources {
		cs, err := store.CriticalSectionEvents(run.ID, resource)
		if err != nil {
			t.Fatalf("CriticalSectionEvents(%s): %v", resource, err)
		}
		if len(cs) == 0 || len(cs)%2 != 0 {
			t.Fatalf("resource %s: %d cs events", resource, len(cs))
		}
		for i := 0; i < len(cs); i += 2 {
			if cs[i].Kind != model.EventCSEnter || cs[i+1].Kind != model.EventCSExit {
				t.Fatalf("resource %s: events %d,%d = %s,%s", resource, i, i+1, cs[i].Kind, cs[i+1].Kind)
			}
			if cs[i].NodeID != cs[i+1].NodeID {
				t.Fatalf("resource %s: node %d entered before node %d exited",
					resource, cs[i+1].NodeID, cs[i].NodeID)
			}
		}
	}

	if store.CountEvents(run.ID) == 0 {
		t.Fatal("no events persisted for the run")
	}
}
