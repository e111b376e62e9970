package clock

import "testing"

func TestTickMonotonicallyIncreases(t *testing.T) {
	var c Clock
	prev := c.Value()
	for i := 0; i < 100; i++ {
		ts := c.Tick()
		if ts <= prev {
			t.Fatalf("Tick %d: got %d, want > %d", i, ts, prev)
		}
		prev = ts
	}
}

func TestTickStartsFromZero(t *testing.T) {
	var c Clock
	if v := c.Value(); v != 0 {
		t.Fatalf("new clock: got %d, want 0", v)
	}
	if ts := c.Tick(); ts != 1 {
		t.Fatalf("first Tick: got %d, want 1", ts)
	}
}

func TestReceiveMaxPlusOne(t *testing.T) {
	var c Clock
	c.Set(5)

	// Receive a higher timestamp: should set to max(5, 10)+1 = 11
	ts := c.Receive(10)
	if ts != 11 {
		t.Fatalf("Receive(10) from 5: got %d, want 11", ts)
	}

	// Receive a lower timestamp: should set to max(11, 3)+1 = 12
	ts = c.Receive(3)
	if ts != 12 {
		t.Fatalf("Receive(3) from 11: got %d, want 12", ts)
	}
}

func TestReceiveEqualTimestamp(t *testing.T) {
	var c Clock
	c.Set(10)
	ts := c.Receive(10)
	if ts != 11 {
		t.Fatalf("Receive(10) from 10: got %d, want 11", ts)
	}
}

func TestReceiveNeverDecreases(t *testing.T) {
	var c Clock
	prev := c.Value()
	for _, received := range []int64{5, 2, 9, 9, 1, 20, 3} {
		ts := c.Receive(received)
		if ts <= prev {
			t.Fatalf("Receive(%d): clock went from %d to %d", received, prev, ts)
		}
		if ts < received+1 {
			t.Fatalf("Receive(%d): got %d, want >= %d", received, ts, received+1)
		}
		prev = ts
	}
}

func TestSetAndValue(t *testing.T) {
	var c Clock
	c.Set(42)
	if v := c.Value(); v != 42 {
		t.Fatalf("after Set(42): got %d, want 42", v)
	}
}

func TestTotalOrderLess_DifferentTimestamps(t *testing.T) {
	if !TotalOrderLess(1, 2, 2, 1) {
		t.Fatal("expected (1,2) < (2,1)")
	}
	if TotalOrderLess(2, 1, 1, 2) {
		t.Fatal("expected (2,1) NOT < (1,2)")
	}
}

func TestTotalOrderLess_SameTimestamp_TieBreakByNode(t *testing.T) {
	if !TotalOrderLess(5, 0, 5, 3) {
		t.Fatal("expected (5,0) < (5,3)")
	}
	if TotalOrderLess(5, 3, 5, 0) {
		t.Fatal("expected (5,3) NOT < (5,0)")
	}
}

func TestTotalOrderLess_Equal(t *testing.T) {
	if TotalOrderLess(5, 1, 5, 1) {
		t.Fatal("expected (5,1) NOT < (5,1) - strict less")
	}
}

func TestTotalOrderLess_Transitivity(t *testing.T) {
	// a < b < c => a < c
	a := TotalOrderLess(1, 0, 2, 0)
	b := TotalOrderLess(2, 0, 3, 0)
	c := TotalOrderLess(1, 0, 3, 0)
	if !a || !b || !c {
		t.Fatal("transitivity violated")
	}
}
