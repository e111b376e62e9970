package byzantine

import (
	"testing"

	"github.com/daviddao/protodrill/pkg/model"
)

func TestHonestNodeRelaysWhatItReceived(t *testing.T) {
	s := New(1, false)
	if relay := s.RecordOrder(model.Attack); relay != model.Attack {
		t.Fatalf("honest relay = %s, want ATTACK", relay)
	}
}

func TestFaultyNodeInvertsRelay(t *testing.T) {
	s := New(2, true)
	if relay := s.RecordOrder(model.Attack); relay != model.Retreat {
		t.Fatalf("faulty relay = %s, want RETREAT", relay)
	}
	s = New(2, true)
	if relay := s.RecordOrder(model.Retreat); relay != model.Attack {
		t.Fatalf("faulty relay = %s, want ATTACK", relay)
	}
}

func TestOwnRelayCountsInTally(t *testing.T) {
	s := New(1, false)
	s.RecordOrder(model.Attack)
	counts := s.Tally()
	// One vote from the commander's order, one from the node's own relay.
	if counts[model.Attack] != 2 {
		t.Fatalf("tally[ATTACK] = %d, want 2", counts[model.Attack])
	}
}

// Scenario A: node 1 is honest, the commander truthfully sent ATTACK,
// and the one faulty lieutenant forwarded RETREAT. The tally must be
// {ATTACK: 2, RETREAT: 1} and the decision ATTACK.
func TestHonestLieutenantOutvotesOneFault(t *testing.T) {
	s := New(1, false)
	s.RecordOrder(model.Attack)
	s.RecordForward(2, model.Retreat)

	counts := s.Tally()
	if counts[model.Attack] != 2 || counts[model.Retreat] != 1 {
		t.Fatalf("tally = %v, want {ATTACK:2 RETREAT:1}", counts)
	}

	v, ok := s.Decide()
	if !ok {
		t.Fatal("expected a decision")
	}
	if v != model.Attack {
		t.Fatalf("decided %s, want ATTACK", v)
	}
}

func TestNoCommanderOrderMeansNoDecision(t *testing.T) {
	s := New(1, false)
	s.RecordForward(2, model.Attack)
	if _, ok := s.Decide(); ok {
		t.Fatal("expected no decision without a commander order")
	}
	if s.Tally() != nil {
		t.Fatal("expected nil tally without a commander order")
	}
}

func TestTieBreaksToLexicographicallySmallest(t *testing.T) {
	// Even split: RETREAT x2 (commander's order plus the node's own
	// relay) vs ATTACK x2 (forwards from two peers).
	s := New(1, false)
	s.RecordOrder(model.Retreat)
	s.RecordForward(2, model.Attack)
	s.RecordForward(3, model.Attack)

	counts := s.Tally()
	if counts[model.Attack] != 2 || counts[model.Retreat] != 2 {
		t.Fatalf("tally = %v, want an even 2-2 split", counts)
	}

	// Run repeatedly: the winner must never depend on map iteration.
	for i := 0; i < 50; i++ {
		v, ok := s.Decide()
		if !ok {
			t.Fatal("expected a decision")
		}
		if v != model.Attack {
			t.Fatalf("iteration %d: tie broke to %s, want ATTACK (lexicographically smallest)", i, v)
		}
	}
}

func TestForwardOverwriteKeepsLatest(t *testing.T) {
	// Duplicate forwards from one peer keep the latest value rather
	// than double-counting the sender.
	s := New(1, false)
	s.RecordOrder(model.Attack)
	s.RecordForward(2, model.Retreat)
	s.RecordForward(2, model.Attack)

	counts := s.Tally()
	if counts[model.Attack] != 3 || counts[model.Retreat] != 0 {
		t.Fatalf("tally = %v, want {ATTACK:3}", counts)
	}
}
