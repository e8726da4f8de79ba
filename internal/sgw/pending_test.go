package sgw

import (
	"testing"
	"time"
)

func TestPendingQueueFIFOOrder(t *testing.T) {
	q := newPendingQueue(4 * time.Second)
	q.Enqueue("call-1")
	q.Enqueue("call-2")
	if got := q.PopValid(); got != "call-1" {
		t.Errorf("got %q, want call-1", got)
	}
	if got := q.PopValid(); got != "call-2" {
		t.Errorf("got %q, want call-2", got)
	}
	if got := q.PopValid(); got != "" {
		t.Errorf("got %q, want empty queue", got)
	}
}

func TestPendingQueueTTLExpiry(t *testing.T) {
	q := newPendingQueue(10 * time.Millisecond)
	q.Enqueue("call-1")
	time.Sleep(20 * time.Millisecond)
	if got := q.PopValid(); got != "" {
		t.Errorf("got %q, want expired entry to be invisible", got)
	}
}

func TestPendingQueueSkipsExpiredHead(t *testing.T) {
	q := newPendingQueue(10 * time.Millisecond)
	q.Enqueue("stale")
	time.Sleep(20 * time.Millisecond)
	q.Enqueue("fresh")
	if got := q.PopValid(); got != "fresh" {
		t.Errorf("got %q, want fresh to win after stale expires", got)
	}
}
