package ctl

import (
	"strings"
	"testing"
)

func TestConnectResolvesPrefixOnce(t *testing.T) {
	c := Connect("http://pbx:8088", "u", "p", "/ari")
	if c.baseURL != "http://pbx:8088/ari" {
		t.Errorf("baseURL = %q, want %q", c.baseURL, "http://pbx:8088/ari")
	}
}

func TestConnectDoesNotDoublePrefix(t *testing.T) {
	c := Connect("http://pbx:8088/ari", "u", "p", "/ari")
	if c.baseURL != "http://pbx:8088/ari" {
		t.Errorf("baseURL = %q, want no doubled prefix", c.baseURL)
	}
}

func TestEventStreamURLAriStyle(t *testing.T) {
	c := Connect("http://pbx:8088/ari", "u", "p", "/ari")
	got, err := c.eventStreamURL("tapper")
	if err != nil {
		t.Fatalf("eventStreamURL: %v", err)
	}
	if !strings.HasPrefix(got, "ws://pbx:8088/ari/events") {
		t.Errorf("eventStreamURL = %q, want ws://.../ari/events prefix", got)
	}
	if !strings.Contains(got, "app=tapper") {
		t.Errorf("eventStreamURL = %q, missing app query", got)
	}
}

func TestEventStreamURLWsStyle(t *testing.T) {
	c := Connect("http://pbx:8088", "u", "p", "")
	got, err := c.eventStreamURL("tapper")
	if err != nil {
		t.Fatalf("eventStreamURL: %v", err)
	}
	if !strings.HasPrefix(got, "ws://pbx:8088/ws") {
		t.Errorf("eventStreamURL = %q, want ws://.../ws prefix", got)
	}
}

func TestDispatchGlobalAndChannelHandlers(t *testing.T) {
	c := Connect("http://pbx:8088", "u", "p", "")

	var globalCalls, channelCalls int
	c.On("StasisStart", func(ev Event, ch *Channel) {
		globalCalls++
		if ch == nil || ch.ID != "chan-1" {
			t.Errorf("expected channel handle chan-1, got %+v", ch)
		}
	})

	ch := c.GetChannel("chan-1")
	ch.On("StasisStart", func(ev Event, ch *Channel) {
		channelCalls++
	})

	c.dispatch([]byte(`{"type":"StasisStart","channel":{"id":"chan-1","name":"SIP/100-1"}}`))

	if globalCalls != 1 {
		t.Errorf("globalCalls = %d, want 1", globalCalls)
	}
	if channelCalls != 1 {
		t.Errorf("channelCalls = %d, want 1", channelCalls)
	}
}

func TestDispatchUnknownEventTypeDelivered(t *testing.T) {
	c := Connect("http://pbx:8088", "u", "p", "")
	called := false
	c.On("SomeFutureEventType", func(ev Event, ch *Channel) {
		called = true
	})
	c.dispatch([]byte(`{"type":"SomeFutureEventType"}`))
	if !called {
		t.Error("expected unknown event type to still be dispatched")
	}
}
