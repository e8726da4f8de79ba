// Package ctl is a thin, stable client over a PBX's stasis ("ARI
// style") control API: REST for imperative operations (create snoop,
// create bridge, create external-media channel, hang up channels,
// destroy bridges) plus a long-lived event stream subscribed to a
// named stasis application. See spec.md §4.1.
package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Client is a handle to one PBX control-plane connection. It is safe
// for concurrent use; the channel/handler maps are guarded the way
// the teacher guards session.Manager.sessions.
type Client struct {
	baseURL    string // REST base, with prefix resolved and not doubled
	user, pass string
	prefix     string
	httpClient *http.Client

	eventsOnce   sync.Once
	eventsCancel context.CancelFunc

	mu       sync.RWMutex
	channels map[string]*Channel       // channel id -> handle (refreshed on every event)
	handlers map[string][]Handler      // event type -> global handler list
}

// Connect resolves baseURL against prefix (if baseURL does not already
// end with it) and returns a ready-to-use handle. No network call is
// made until Start or a REST operation is invoked.
func Connect(baseURL, user, pass, prefix string) *Client {
	resolved := strings.TrimSuffix(baseURL, "/")
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(resolved, prefix) {
		resolved += prefix
	}
	return &Client{
		baseURL:    resolved,
		user:       user,
		pass:       pass,
		prefix:     prefix,
		httpClient: &http.Client{},
		channels:   make(map[string]*Channel),
		handlers:   make(map[string][]Handler),
	}
}

// On registers a global handler for an event type. Unknown event types
// are still dispatched (to handlers registered for that literal type
// string), per spec.md §4.1.
func (c *Client) On(eventType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], h)
}

// GetChannel returns (creating if unseen) the handle for a channel id.
func (c *Client) GetChannel(id string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateChannelLocked(id, "")
}

func (c *Client) getOrCreateChannelLocked(id, name string) *Channel {
	ch, ok := c.channels[id]
	if !ok {
		ch = &Channel{ID: id, Name: name, client: c}
		c.channels[id] = ch
		return ch
	}
	if name != "" {
		ch.Name = name
	}
	return ch
}

// dropChannel removes a channel handle from the registry, called once
// a channel is known to be gone (hung up, destroyed).
func (c *Client) dropChannel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, id)
}

// --- REST plumbing ---

func (c *Client) restURL(path string) string {
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	full := c.restURL(path)
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ctl: marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, fmt.Errorf("ctl: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.user, c.pass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ctl: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, query, body)
}

func (c *Client) deleteReq(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, query, nil)
}

// SnoopChannel installs a snoop on the given channel (by id, or by
// name if the id lookup 404s). Any 404 triggers one channel listing
// and a retry with the id whose name equals the argument; the argument
// is not checked for looking like a name first. See spec.md §4.1's
// name-fallback contract.
func (c *Client) SnoopChannel(ctx context.Context, channelIDOrName, app string, spy SpyDirection, appArgs string) (*Channel, error) {
	q := url.Values{
		"spy":     {string(spy)},
		"app":     {app},
		"appArgs": {appArgs},
	}
	path := fmt.Sprintf("/channels/%s/snoopChannel", url.PathEscape(channelIDOrName))
	body, err := c.post(ctx, path, q, nil)
	if err != nil {
		var re *RequestError
		if ok := asRequestError(err, &re); ok && re.NotFound() {
			resolvedID, lookupErr := c.resolveChannelIDByName(ctx, channelIDOrName)
			if lookupErr != nil {
				return nil, fmt.Errorf("ctl: snoopChannel: resolve name %q: %w", channelIDOrName, lookupErr)
			}
			path = fmt.Sprintf("/channels/%s/snoopChannel", url.PathEscape(resolvedID))
			body, err = c.post(ctx, path, q, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("ctl: snoopChannel: %w", err)
		}
	}

	var stub channelStub
	if err := json.Unmarshal(body, &stub); err != nil {
		return nil, fmt.Errorf("ctl: snoopChannel: decode response: %w", err)
	}

	c.mu.Lock()
	ch := c.getOrCreateChannelLocked(stub.ID, stub.Name)
	c.mu.Unlock()
	return ch, nil
}

// resolveChannelIDByName lists channels once and finds the one whose
// name matches, per spec.md §4.1's not-found retry contract.
func (c *Client) resolveChannelIDByName(ctx context.Context, name string) (string, error) {
	body, err := c.get(ctx, "/channels", nil)
	if err != nil {
		return "", err
	}
	var stubs []channelStub
	if err := json.Unmarshal(body, &stubs); err != nil {
		return "", fmt.Errorf("decode channel list: %w", err)
	}
	for _, s := range stubs {
		if s.Name == name {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("no channel named %q", name)
}

// ExternalMediaFormat groups the parameters of an external-media
// channel request.
type ExternalMediaFormat struct {
	ExternalHost  string // host:port to send RTP to
	Format        string // e.g. "slin16"
	Transport     string // e.g. "udp"
	Encapsulation string // e.g. "rtp"
}

// ExternalMedia creates a synthetic channel that emits the bridge's
// audio to an RTP/UDP endpoint outside the PBX.
func (c *Client) ExternalMedia(ctx context.Context, app, appArgs string, f ExternalMediaFormat) (*Channel, error) {
	q := url.Values{
		"app":           {app},
		"appArgs":       {appArgs},
		"external_host": {f.ExternalHost},
		"format":        {f.Format},
		"transport":     {f.Transport},
		"encapsulation": {f.Encapsulation},
	}
	body, err := c.post(ctx, "/channels/externalMedia", q, nil)
	if err != nil {
		return nil, fmt.Errorf("ctl: externalMedia: %w", err)
	}
	var stub channelStub
	if err := json.Unmarshal(body, &stub); err != nil {
		return nil, fmt.Errorf("ctl: externalMedia: decode response: %w", err)
	}

	c.mu.Lock()
	ch := c.getOrCreateChannelLocked(stub.ID, stub.Name)
	c.mu.Unlock()
	return ch, nil
}

// NewBridge returns a not-yet-created bridge handle.
func (c *Client) NewBridge() *Bridge {
	return &Bridge{client: c}
}

func asRequestError(err error, target **RequestError) bool {
	re, ok := err.(*RequestError)
	if ok {
		*target = re
	}
	return ok
}

// dispatch decodes a raw event message and fans it out globally and,
// if it carries a channel reference, to that channel's own
// subscribers, per spec.md §4.1 and Design Note §9.
func (c *Client) dispatch(raw []byte) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("[CTL] failed to decode event", "error", err)
		return
	}
	ev := Event{Type: env.Type, Raw: raw}

	var ch *Channel
	if env.Channel != nil && env.Channel.ID != "" {
		ev.ChannelID = env.Channel.ID
		c.mu.Lock()
		ch = c.getOrCreateChannelLocked(env.Channel.ID, env.Channel.Name)
		c.mu.Unlock()
	}

	c.mu.RLock()
	globalHandlers := append([]Handler(nil), c.handlers[env.Type]...)
	c.mu.RUnlock()
	for _, h := range globalHandlers {
		h(ev, ch)
	}

	if ch != nil {
		ch.dispatch(ev)
	}
}

// Close stops the event stream if one is running.
func (c *Client) Close() error {
	if c.eventsCancel != nil {
		c.eventsCancel()
	}
	return nil
}
