package queue

import (
	"sort"
	"sync"

	"mcp/src/models"
)

// -----------------------------------------------------------------------------
// PriorityQueue is a bounded, priority-ordered buffer of messages for one
// topic. Items are kept sorted ascending by (priority, timestamp); ties on
// both break by insertion order.
// -----------------------------------------------------------------------------

type PriorityQueue struct {
	name    string
	maxSize int

	mu      sync.Mutex
	items   []models.MMessage
	dropped uint64
	evicted uint64
}

// -----------------------------------------------------------------------------

func NewPriorityQueue(name string, maxSize int) *PriorityQueue {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &PriorityQueue{
		name:    name,
		maxSize: maxSize,
		items:   make([]models.MMessage, 0, maxSize),
	}
}

// -----------------------------------------------------------------------------

// Enqueue inserts the message at its sorted position. When the queue is
// full, the message is admitted only if its priority is strictly higher
// (lower number) than the current worst entry, which is then evicted;
// otherwise the incoming message is silently dropped (backpressure policy:
// stale/low-priority events are sacrificed before high-priority ones).
// Returns false when the message was dropped.
func (q *PriorityQueue) Enqueue(msg models.MMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.maxSize {
		worst := q.items[len(q.items)-1]
		if msg.Priority >= worst.Priority {
			q.dropped++
			return false
		}
		q.items = q.items[:len(q.items)-1]
		q.evicted++
	}

	// O(n) insert keeping the sort invariant; acceptable at target queue
	// sizes <= 5000.
	idx := sort.Search(len(q.items), func(i int) bool {
		if q.items[i].Priority != msg.Priority {
			return q.items[i].Priority > msg.Priority
		}
		return q.items[i].Timestamp.After(msg.Timestamp)
	})

	q.items = append(q.items, models.MMessage{})
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = msg
	return true
}

// -----------------------------------------------------------------------------

// Dequeue removes and returns the head (highest priority, then oldest).
// The second return is false when the queue is empty.
func (q *PriorityQueue) Dequeue() (models.MMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.MMessage{}, false
	}

	head := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return head, true
}

// -----------------------------------------------------------------------------

func (q *PriorityQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// -----------------------------------------------------------------------------

func (q *PriorityQueue) MaxSize() int {
	return q.maxSize
}

// -----------------------------------------------------------------------------

// Clear empties the queue. Used only at shutdown.
func (q *PriorityQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// -----------------------------------------------------------------------------

// Stats returns a snapshot for monitoring. Dropped counts messages refused
// on a full queue; Evicted counts entries displaced by higher-priority
// arrivals.
func (q *PriorityQueue) Stats() models.MQueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return models.MQueueStats{
		Name:    q.name,
		Size:    len(q.items),
		MaxSize: q.maxSize,
		Dropped: q.dropped,
		Evicted: q.evicted,
	}
}
