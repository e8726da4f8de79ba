package ctl

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// eventEndpointStyle picks between the two known stasis event-stream
// URL layouts, per spec.md §4.1: an older deployment serves events at
// "/ari/events" alongside a REST base that already contains "/ari"; a
// newer one serves them at a bare "/ws".
func (c *Client) eventEndpointStyle() string {
	if strings.Contains(c.prefix, "ari") || strings.Contains(c.baseURL, "/ari") {
		return "/ari/events"
	}
	return "/ws"
}

// eventStreamURL derives the websocket URL from the REST base: swap
// the scheme to its streaming counterpart and append the resolved
// stream endpoint plus the stasis application subscription.
func (c *Client) eventStreamURL(appName string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("ctl: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	style := c.eventEndpointStyle()
	switch style {
	case "/ari/events":
		// Base already ends in the configured prefix (e.g. ".../ari");
		// replace a trailing "/ari" with "/ari/events" rather than
		// doubling it.
		u.Path = strings.TrimSuffix(u.Path, "/") + "/events"
	default:
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}

	q := u.Query()
	q.Set("app", appName)
	q.Set("subscribeAll", "true")
	if c.user != "" {
		q.Set("api_key", c.user+":"+c.pass)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Start opens the persistent event stream subscribed to appName and
// begins dispatching decoded events in a background goroutine. The
// stream reconnection policy is out of scope of the adapter per
// spec.md §4.1 — a read failure logs and the goroutine exits, leaving
// reconnection (or process exit) to the orchestrator.
func (c *Client) Start(ctx context.Context, appName string) error {
	streamURL, err := c.eventStreamURL(appName)
	if err != nil {
		return err
	}

	conn, _, _, err := ws.Dial(ctx, streamURL)
	if err != nil {
		return fmt.Errorf("ctl: dial event stream: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	c.eventsCancel = cancel

	c.eventsOnce.Do(func() {
		go c.readLoop(streamCtx, conn)
	})
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		msg, err := wsutil.ReadServerText(conn)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			slog.Warn("[CTL] event stream read failed", "error", err)
			return
		}
		c.dispatch(msg)
	}
}
