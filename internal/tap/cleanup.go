package tap

import (
	"context"
	"log/slog"
)

// cleanupSession implements spec.md §4.2/§5/§8's idempotent teardown:
// the "cleaned" latch is set before any effectful step runs, so
// overlapping terminal events collapse onto a single execution.
func (o *Orchestrator) cleanupSession(callID, reason string) {
	o.mu.RLock()
	session := o.sessions[callID]
	o.mu.RUnlock()
	if session == nil {
		return
	}
	if !session.markCleaned() {
		return
	}

	ctx := context.Background()
	slog.Info("[TAP] cleaning up session", "call_id", callID, "reason", reason)

	switch session.Backend {
	case BackendFramed:
		if session.Port != 0 {
			if status, err := o.fgw.FGWUnregister(ctx, session.Port); err != nil || status/100 != 2 {
				slog.Warn("[TAP] fgw unregister failed", "call_id", callID, "error", err, "status", status)
			}
			o.pool.Release(session.Port)
		}
	case BackendStreaming:
		if status, err := o.sgw.SGWUnregister(ctx, callID); err != nil || status/100 != 2 {
			slog.Warn("[TAP] sgw unregister failed", "call_id", callID, "error", err, "status", status)
		}
	}

	snoops, extMedia, bridges := session.snapshot()

	for _, b := range bridges {
		if err := b.Destroy(ctx); err != nil {
			slog.Debug("[TAP] bridge destroy (benign if already gone)", "call_id", callID, "error", err)
		}
	}
	for _, ch := range snoops {
		if err := ch.Hangup(ctx); err != nil {
			slog.Debug("[TAP] snoop hangup (benign if already gone)", "call_id", callID, "error", err)
		}
	}
	for _, ch := range extMedia {
		if err := ch.Hangup(ctx); err != nil {
			slog.Debug("[TAP] external-media hangup (benign if already gone)", "call_id", callID, "error", err)
		}
	}

	o.mu.Lock()
	for _, ch := range snoops {
		delete(o.reverseIndex, ch.ID)
	}
	for _, ch := range extMedia {
		delete(o.reverseIndex, ch.ID)
	}
	delete(o.sessions, callID)
	o.mu.Unlock()

	slog.Info("[TAP] session cleaned", "call_id", callID)
}
