package ctl

import "encoding/json"

// SpyDirection is the "spy" argument to snoopChannel: which legs of
// the snooped channel's audio the new snoop channel exposes.
type SpyDirection string

const (
	SpyIn   SpyDirection = "in"
	SpyOut  SpyDirection = "out"
	SpyBoth SpyDirection = "both"
)

// ChannelRole classifies a channel handle the way TAP's reverse index
// needs to: an original PBX channel, a snoop shadow, or an
// external-media synthetic channel. Matches spec.md §3's ChannelRef.
type ChannelRole string

const (
	RoleOriginal      ChannelRole = "original"
	RoleSnoop         ChannelRole = "snoop"
	RoleExternalMedia ChannelRole = "external-media"
)

// channelStub is the minimal shape every stasis event payload carries
// when it refers to a channel, per Design Note §9's "shared has-channel
// mixin". Fields beyond "id"/"name" are accessed via Raw when a
// specific event type needs more.
type channelStub struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type eventEnvelope struct {
	Type    string          `json:"type"`
	Channel *channelStub    `json:"channel"`
	Raw     json.RawMessage `json:"-"`
}

// Event is the tagged-variant event delivered to both global and
// per-channel handlers. Type-specific fields are read out of Raw by
// the caller via json.Unmarshal, matching Design Note §9's "duck-typed
// event bodies modeled as a tagged variant".
type Event struct {
	Type      string
	ChannelID string // empty if the event carries no channel reference
	Raw       json.RawMessage
}

// Handler receives a dispatched event and, if the event carried a
// channel reference, the resolved channel handle (nil otherwise).
type Handler func(ev Event, ch *Channel)
