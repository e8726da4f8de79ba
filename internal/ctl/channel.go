package ctl

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// Channel is a handle to a PBX channel (original, snoop, or
// external-media). It holds only its own id/name and a pointer to the
// Client for issuing REST calls — never a hard reference back into
// another session's state, per Design Note §9's "weak lookup" guidance.
type Channel struct {
	ID   string
	Name string

	client *Client

	mu       sync.Mutex
	handlers map[string][]Handler
}

// On subscribes a handler to events of the given type scoped to this
// channel.
func (ch *Channel) On(eventType string, h Handler) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.handlers == nil {
		ch.handlers = make(map[string][]Handler)
	}
	ch.handlers[eventType] = append(ch.handlers[eventType], h)
}

func (ch *Channel) dispatch(ev Event) {
	ch.mu.Lock()
	handlers := append([]Handler(nil), ch.handlers[ev.Type]...)
	ch.mu.Unlock()
	for _, h := range handlers {
		h(ev, ch)
	}
}

// Hangup requests termination of this channel. Hanging up an
// already-gone channel is benign per spec.md §4.2's cleanup contract:
// a 404 from the PBX is swallowed here rather than surfaced.
func (ch *Channel) Hangup(ctx context.Context) error {
	path := fmt.Sprintf("/channels/%s", url.PathEscape(ch.ID))
	_, err := ch.client.deleteReq(ctx, path, nil)
	if err != nil && IsNotFound(err) {
		return nil
	}
	if err == nil {
		ch.client.dropChannel(ch.ID)
	}
	return err
}
