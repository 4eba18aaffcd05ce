// Package queue implements the admission queue: a min-heap of pending
// submissions ordered by effective start time, safe for concurrent Put from
// many submitters and Pop from the single monitor consumer (spec.md §4.4).
package queue

import (
	"container/heap"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/samber/lo"
)

// Item is one pending submission (spec.md §3 "Queue item").
type Item struct {
	EffectiveStartTime int64 // wall-clock epoch second
	ID                 string
	Image              string
	MissionPayload     map[string]any
	IssuerID           string
}

// heapSlice implements heap.Interface, ordered by (EffectiveStartTime, ID)
// ascending — a deterministic tie-break, per spec.md §3.
type heapSlice []Item

func (h heapSlice) Len() int { return len(h) }
func (h heapSlice) Less(i, j int) bool {
	if h[i].EffectiveStartTime != h[j].EffectiveStartTime {
		return h[i].EffectiveStartTime < h[j].EffectiveStartTime
	}
	return h[i].ID < h[j].ID
}
func (h heapSlice) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapSlice) Push(x any) {
	*h = append(*h, x.(Item))
}

func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a concurrency-safe min-heap of Items. The monitor is its sole
// consumer, so a single mutex around peek+pop is sufficient (spec.md §9).
type Queue struct {
	mu deadlock.Mutex
	h  heapSlice
}

// New returns an empty Queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Put enqueues item. It never blocks (spec.md §4.5 "Enqueue does not
// block").
func (q *Queue) Put(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, item)
}

// Empty reports whether the queue currently holds no items.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h) == 0
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Peek returns the head item without removing it.
func (q *Queue) Peek() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return Item{}, false
	}
	return q.h[0], true
}

// TryPop removes and returns the head item if its EffectiveStartTime has
// arrived (spec.md O5: "a queued item does not start before
// effective_start_time <= now"). It returns ok=false if the queue is empty
// or the head is not yet due.
func (q *Queue) TryPop(now time.Time) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return Item{}, false
	}
	if q.h[0].EffectiveStartTime > now.Unix() {
		return Item{}, false
	}
	item := heap.Pop(&q.h).(Item)
	return item, true
}

// Snapshot returns a copy of every queued item, in heap-array order.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.h))
	copy(out, q.h)
	return out
}

// SnapshotFor returns a copy of every queued item submitted by issuerID, in
// heap-array order (spec.md §4.5 get_queue_for).
func (q *Queue) SnapshotFor(issuerID string) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return lo.Filter(q.h, func(item Item, _ int) bool {
		return item.IssuerID == issuerID
	})
}
