// Package tap implements the orchestrator (TAP): it drives CTL to
// install snoops, mixing bridges, and external-media channels per
// call, allocates framed-backend ports, registers call context with
// FGW/SGW, and owns each call's resource graph and cleanup, per
// spec.md §4.2.
package tap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jlortea/calltap/internal/ctl"
	"github.com/jlortea/calltap/internal/fgw/portpool"
	"github.com/jlortea/calltap/internal/metrics"
	"github.com/jlortea/calltap/internal/tap/config"
	"github.com/jlortea/calltap/internal/tap/gwclient"
)

// Orchestrator is the single process-wide owner of all TapSessions,
// the reverse channel→call index, and the single-flight bridge
// creation guard, per spec.md §5's "Global mutable state" design note.
type Orchestrator struct {
	cfg *config.Config
	ctl *ctl.Client
	fgw *gwclient.Client
	sgw *gwclient.Client
	pool *portpool.Pool

	mu           sync.RWMutex
	sessions     map[string]*TapSession // CallId -> session
	reverseIndex map[string]string      // ChannelId -> CallId

	bridgeGroup singleflight.Group
}

// New wires the orchestrator's CTL adapter and gateway clients and
// subscribes the stasis event handlers it needs.
func New(cfg *config.Config) *Orchestrator {
	o := &Orchestrator{
		cfg:          cfg,
		ctl:          ctl.Connect(cfg.CTLBaseURL, cfg.CTLUser, cfg.CTLPass, cfg.CTLPrefix),
		fgw:          gwclient.New("fgw", cfg.FGWBaseURL),
		sgw:          gwclient.New("sgw", cfg.SGWBaseURL),
		pool:         portpool.New(cfg.PortMin, cfg.PortMax),
		sessions:     make(map[string]*TapSession),
		reverseIndex: make(map[string]string),
	}

	o.ctl.On("StasisStart", o.onStasisStart)
	o.ctl.On("StasisEnd", o.onTerminalEvent)
	o.ctl.On("ChannelHangupRequest", o.onTerminalEvent)

	return o
}

// Start opens the PBX event stream.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.ctl.Start(ctx, o.cfg.AppName)
}

// stasisStartBody is the subset of a StasisStart event's raw JSON the
// orchestrator needs, per Design Note §9's tagged-variant approach.
type stasisStartBody struct {
	Args        []string `json:"args"`
	Application string   `json:"application"`
	Channel     struct {
		Name string `json:"name"`
	} `json:"channel"`
}

// parseArgs turns ARI-style "key=value" argv entries into a map.
func parseArgs(args []string) map[string]string {
	m := make(map[string]string, len(args))
	for _, a := range args {
		if k, v, ok := strings.Cut(a, "="); ok {
			m[k] = v
		}
	}
	return m
}

func (o *Orchestrator) onStasisStart(ev ctl.Event, ch *ctl.Channel) {
	var body stasisStartBody
	if err := json.Unmarshal(ev.Raw, &body); err != nil {
		return
	}
	if body.Application != "" && body.Application != o.cfg.AppName {
		return
	}

	args := parseArgs(body.Args)
	role := args["role"]

	// External-media channels re-enter the stasis application once
	// created; ignore them on entry, per spec.md §4.2.
	if role == "em" || strings.HasPrefix(body.Channel.Name, o.cfg.ExternalMediaPrefix) {
		return
	}
	if role != "snoop" {
		return
	}

	callID := args["call_id"]
	if callID == "" || ch == nil {
		return
	}

	o.mu.RLock()
	session := o.sessions[callID]
	o.mu.RUnlock()
	if session == nil || session.IsCleaned() {
		return
	}

	dirKey := args["dir"] // "" for framed, "in"/"out" for streaming

	o.mu.Lock()
	o.reverseIndex[ch.ID] = callID
	o.mu.Unlock()
	session.setSnoop(dirKey, ch)

	ch.On("StasisEnd", o.onTerminalEvent)

	go o.attachSnoopResources(session, dirKey, ch)
}

// attachSnoopResources implements the per-backend pipeline build-out
// of spec.md §4.2 steps 2-3: obtain-or-create the bridge, add the
// snoop, create the external-media channel, add it.
func (o *Orchestrator) attachSnoopResources(session *TapSession, dirKey string, snoop *ctl.Channel) {
	ctx := context.Background()

	bridge, err := o.getOrCreateBridge(ctx, session, dirKey)
	if err != nil {
		slog.Error("[TAP] bridge creation failed", "call_id", session.CallID, "dir", dirKey, "error", err)
		o.cleanupSession(session.CallID, "bridge creation failed")
		return
	}

	if err := bridge.AddChannel(ctx, snoop); err != nil {
		slog.Error("[TAP] add snoop to bridge failed", "call_id", session.CallID, "error", err)
		o.cleanupSession(session.CallID, "add snoop failed")
		return
	}

	emChannel, err := o.createExternalMedia(ctx, session, dirKey)
	if err != nil {
		slog.Error("[TAP] external-media creation failed", "call_id", session.CallID, "dir", dirKey, "error", err)
		o.cleanupSession(session.CallID, "external-media creation failed")
		return
	}
	session.setExternalMedia(dirKey, emChannel)

	if err := o.addToBridgeWithRetry(ctx, bridge, emChannel); err != nil {
		slog.Error("[TAP] add external-media to bridge failed", "call_id", session.CallID, "error", err)
		o.cleanupSession(session.CallID, "add external-media failed")
		return
	}

	slog.Info("[TAP] pipeline attached", "call_id", session.CallID, "dir", dirKey)
}

// getOrCreateBridge coalesces concurrent snoop arrivals for the same
// (call, direction) onto one bridge creation, per spec.md §4.2/§5/§8.
func (o *Orchestrator) getOrCreateBridge(ctx context.Context, session *TapSession, dirKey string) (*ctl.Bridge, error) {
	if b, ok := session.getBridge(dirKey); ok {
		return b, nil
	}

	key := session.CallID + "|" + dirKey
	v, err, _ := o.bridgeGroup.Do(key, func() (any, error) {
		if b, ok := session.getBridge(dirKey); ok {
			return b, nil
		}
		b := o.ctl.NewBridge()
		if err := b.Create(ctx); err != nil {
			return nil, err
		}
		session.setBridge(dirKey, b)
		return b, nil
	})
	if err != nil {
		o.bridgeGroup.Forget(key)
		return nil, err
	}
	return v.(*ctl.Bridge), nil
}

// addToBridgeWithRetry retries adding a channel to a bridge a bounded
// number of times, treating "not found" as retriable (the PBX may not
// have materialized the channel in its registry yet), per spec.md §4.2/§7.
func (o *Orchestrator) addToBridgeWithRetry(ctx context.Context, bridge *ctl.Bridge, ch *ctl.Channel) error {
	var lastErr error
	for attempt := 0; attempt < o.cfg.BridgeAddRetryAttempts; attempt++ {
		lastErr = bridge.AddChannel(ctx, ch)
		if lastErr == nil {
			return nil
		}
		if !ctl.IsNotFound(lastErr) {
			return lastErr
		}
		time.Sleep(time.Duration(o.cfg.BridgeAddRetryDelayMS) * time.Millisecond)
	}
	return lastErr
}

// createExternalMedia issues the backend-specific externalMedia call,
// per spec.md §4.2/§4.3/§4.4.
func (o *Orchestrator) createExternalMedia(ctx context.Context, session *TapSession, dirKey string) (*ctl.Channel, error) {
	var externalHost string
	switch session.Backend {
	case BackendFramed:
		externalHost = fmt.Sprintf("%s:%d", o.cfg.FGWRTPHost, session.Port)
	case BackendStreaming:
		if dirKey == "in" {
			externalHost = o.cfg.SGWRTPHostIn
		} else {
			externalHost = o.cfg.SGWRTPHostOut
		}
	}

	return o.ctl.ExternalMedia(ctx, o.cfg.AppName, "role=em", ctl.ExternalMediaFormat{
		ExternalHost:  externalHost,
		Format:        o.cfg.ExternalMediaFormat,
		Transport:     "udp",
		Encapsulation: "rtp",
	})
}

// onTerminalEvent handles StasisEnd/ChannelHangupRequest for any
// channel present in the reverse index, per spec.md §4.2's "Global
// terminal events".
func (o *Orchestrator) onTerminalEvent(ev ctl.Event, ch *ctl.Channel) {
	if ch == nil {
		return
	}
	o.mu.RLock()
	callID, ok := o.reverseIndex[ch.ID]
	o.mu.RUnlock()
	if !ok {
		return
	}
	o.cleanupSession(callID, ev.Type)
}

// Gauges implements metrics.Source.
func (o *Orchestrator) Gauges() []metrics.Gauge {
	o.mu.RLock()
	active := len(o.sessions)
	o.mu.RUnlock()
	return []metrics.Gauge{
		{Name: "tap_active_sessions", Help: "Number of active tap sessions", Value: float64(active)},
		{Name: "tap_ports_available", Help: "Number of free framed-backend ports", Value: float64(o.pool.Available())},
	}
}
