package widget

import "testing"

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	h := NewHub()
	h.Publish("200", map[string]string{"text": "hi"}) // must not panic
}

func TestRegisterUnregisterTracksCount(t *testing.T) {
	h := NewHub()
	s := &subscriber{send: make(chan []byte, 1)}
	h.register("200", s)
	if h.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", h.SubscriberCount())
	}
	h.unregister("200", s)
	if h.SubscriberCount() != 0 {
		t.Fatalf("count = %d, want 0 after unregister", h.SubscriberCount())
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	s := &subscriber{send: make(chan []byte, 1)}
	h.register("200", s)
	h.Publish("200", map[string]string{"text": "hi"})
	select {
	case payload := <-s.send:
		if len(payload) == 0 {
			t.Fatal("expected non-empty payload")
		}
	default:
		t.Fatal("expected event to be delivered to subscriber channel")
	}
}
