package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Bridge is a handle to a PBX mixing bridge. Create() must be called
// before AddChannel/Destroy.
type Bridge struct {
	ID     string
	client *Client
}

// bridgeType is always "mixing" per spec.md §3 — the audio mixer used
// to combine a snoop with an external-media channel.
const bridgeType = "mixing"

// Create allocates the bridge on the PBX.
func (b *Bridge) Create(ctx context.Context) error {
	q := url.Values{"type": {bridgeType}}
	body, err := b.client.post(ctx, "/bridges", q, nil)
	if err != nil {
		return fmt.Errorf("ctl: create bridge: %w", err)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("ctl: create bridge: decode response: %w", err)
	}
	b.ID = resp.ID
	return nil
}

// AddChannel adds a channel to the bridge.
func (b *Bridge) AddChannel(ctx context.Context, ch *Channel) error {
	path := fmt.Sprintf("/bridges/%s/addChannel", url.PathEscape(b.ID))
	q := url.Values{"channel": {ch.ID}}
	_, err := b.client.post(ctx, path, q, nil)
	if err != nil {
		return fmt.Errorf("ctl: add channel %s to bridge %s: %w", ch.ID, b.ID, err)
	}
	return nil
}

// Destroy tears down the bridge. Destroying an already-destroyed
// bridge is benign, per spec.md §7.
func (b *Bridge) Destroy(ctx context.Context) error {
	path := fmt.Sprintf("/bridges/%s", url.PathEscape(b.ID))
	_, err := b.client.deleteReq(ctx, path, nil)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return err
}
