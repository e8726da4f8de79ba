// Package gwclient is TAP's HTTP client to FGW and SGW's control
// surfaces, grounded on internal/ui/client.Client's shape: a named
// backend, a base URL, and a shared http.Client with a fixed timeout.
package gwclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to one gateway's HTTP control API.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a client for a gateway reachable at baseURL.
func New(name, baseURL string) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// get issues a GET to path with the given query values and returns the
// HTTP status code (the gateways' control endpoints have no response
// bodies TAP needs to parse beyond status).
func (c *Client) get(ctx context.Context, path string, query url.Values) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("gwclient: build request to %s: %w", c.name, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gwclient: request to %s: %w", c.name, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// FGWRegister reserves port on the framed gateway for callID, per
// spec.md §4.2/§6.
func (c *Client) FGWRegister(ctx context.Context, callID string, port int, agentExtension, agentUsername, agentID string) (int, error) {
	return c.get(ctx, "/register", url.Values{
		"uuid":     {callID},
		"port":     {fmt.Sprintf("%d", port)},
		"exten":    {agentExtension},
		"username": {agentUsername},
		"agent_id": {agentID},
	})
}

// FGWUnregister releases port on the framed gateway.
func (c *Client) FGWUnregister(ctx context.Context, port int) (int, error) {
	return c.get(ctx, "/unregister", url.Values{"port": {fmt.Sprintf("%d", port)}})
}

// SGWRegister registers call context for one direction on the
// streaming gateway, per spec.md §4.2/§6.
func (c *Client) SGWRegister(ctx context.Context, callID, extension, caller, callerName, dir string) (int, error) {
	return c.get(ctx, "/register", url.Values{
		"uuid":       {callID},
		"exten":      {extension},
		"caller":     {caller},
		"callername": {callerName},
		"dir":        {dir},
	})
}

// SGWUnregister drops call context on the streaming gateway.
func (c *Client) SGWUnregister(ctx context.Context, callID string) (int, error) {
	return c.get(ctx, "/unregister", url.Values{"uuid": {callID}})
}
