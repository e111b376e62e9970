package lamport

import (
	"container/heap"

	"github.com/daviddao/protodrill/pkg/clock"
	"github.com/daviddao/protodrill/pkg/model"
)

// Entry is one pending request in a resource's queue.
type Entry struct {
	Timestamp int64
	Node      model.NodeID
}

// requestQueue is a min-heap of entries ordered by the Lamport total
// order: timestamp first, node ID as tie-break.
type requestQueue []Entry

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	return clock.TotalOrderLess(q[i].Timestamp, q[i].Node, q[j].Timestamp, q[j].Node)
}

func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *requestQueue) Push(x any) { *q = append(*q, x.(Entry)) }

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

func (q *requestQueue) push(e Entry) { heap.Push(q, e) }

func (q *requestQueue) min() (Entry, bool) {
	if len(*q) == 0 {
		return Entry{}, false
	}
	return (*q)[0], true
}

// removeNode pops the head if it belongs to node; otherwise it scans and
// removes node's entries wherever they sit, re-heapifying the remainder.
// The scan path should not happen under correct usage, but losing track
// of a foreign head entry must never corrupt the queue.
func (q *requestQueue) removeNode(node model.NodeID) {
	if head, ok := q.min(); ok && head.Node == node {
		heap.Pop(q)
		return
	}
	kept := (*q)[:0]
	for _, e := range *q {
		if e.Node != node {
			kept = append(kept, e)
		}
	}
	*q = kept
	heap.Init(q)
}
