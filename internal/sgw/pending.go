package sgw

import (
	"sync"
	"time"
)

// RegistrationMeta is the call metadata carried alongside a pending
// binding and stored for the lifetime of the call's registration.
type RegistrationMeta struct {
	CallID     string
	Extension  string
	Caller     string
	CallerName string
	LastSeen   time.Time
}

// pendingBinding is one FIFO entry awaiting adoption by the next new
// SSRC on its direction, per spec.md §3/§4.4.
type pendingBinding struct {
	callID      string
	enqueuedAt  time.Time
}

// pendingQueue is a per-direction FIFO of bindings, TTL-filtered on
// every read so an entry older than its TTL is invisible to consumers
// without needing an active expiry sweep.
type pendingQueue struct {
	mu    sync.Mutex
	ttl   time.Duration
	items []pendingBinding
}

func newPendingQueue(ttl time.Duration) *pendingQueue {
	return &pendingQueue{ttl: ttl}
}

// Enqueue pushes a new binding for callID onto the tail of the FIFO.
func (q *pendingQueue) Enqueue(callID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, pendingBinding{callID: callID, enqueuedAt: time.Now()})
}

// PopValid discards expired entries from the head, then pops and
// returns the next non-expired binding's CallId, or "" if none.
func (q *pendingQueue) PopValid() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for len(q.items) > 0 {
		head := q.items[0]
		q.items = q.items[1:]
		if now.Sub(head.enqueuedAt) <= q.ttl {
			return head.callID
		}
	}
	return ""
}
