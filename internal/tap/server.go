package tap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jlortea/calltap/internal/ctl"
	"github.com/jlortea/calltap/internal/metrics"
)

// Server exposes the orchestrator's HTTP control surface, per spec.md §4.2/§6.
type Server struct {
	o          *Orchestrator
	httpServer *http.Server
	startTime  time.Time
}

// NewServer builds the HTTP mux around an Orchestrator.
func NewServer(o *Orchestrator, bindAddr string, port int) *Server {
	s := &Server{o: o, startTime: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/start_tap", s.handleStartTap)
	mux.HandleFunc("/metrics", metrics.NewHandler(o).ServeHTTP)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: fmt.Sprintf("%s:%d", bindAddr, port), Handler: mux}
	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("[TAP] starting HTTP server", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[TAP] server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"status":"ok","uptime":%d}`, int64(time.Since(s.startTime).Seconds()))
}

// handleStartTap implements GET /start_tap, per spec.md §4.2/§6: it
// never lets a tap-side failure propagate beyond its own 500 — the
// dialplan must continue the call regardless (§7).
func (s *Server) handleStartTap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chanRef := q.Get("chan")
	callID := q.Get("uuid")
	if chanRef == "" || callID == "" {
		http.Error(w, "Missing chan or uuid", http.StatusBadRequest)
		return
	}

	backend := Backend(q.Get("gw"))
	if backend != BackendFramed && backend != BackendStreaming {
		backend = BackendFramed
	}

	meta := CallMeta{
		Extension:      q.Get("exten"),
		Caller:         q.Get("caller"),
		CallerName:     q.Get("callername"),
		AgentExtension: q.Get("agent_extension"),
		AgentUsername:  q.Get("agent_username"),
		AgentID:        q.Get("agent_id"),
	}

	if err := s.o.startTap(r.Context(), chanRef, callID, backend, meta); err != nil {
		slog.Error("[TAP] start_tap failed", "call_id", callID, "error", err)
		http.Error(w, "ERROR", http.StatusInternalServerError)
		return
	}

	fmt.Fprint(w, "OK")
}

// startTap creates the TapSession and kicks off the backend-specific
// resource acquisition (snoop creation); the rest of the pipeline is
// built out asynchronously as the corresponding StasisStart events
// arrive, per spec.md §4.2.
func (o *Orchestrator) startTap(ctx context.Context, chanRef, callID string, backend Backend, meta CallMeta) error {
	session := newTapSession(callID, backend, meta)

	o.mu.Lock()
	o.sessions[callID] = session
	o.mu.Unlock()

	switch backend {
	case BackendFramed:
		return o.startFramed(ctx, session, chanRef)
	default:
		return o.startStreaming(ctx, session, chanRef)
	}
}

func (o *Orchestrator) startFramed(ctx context.Context, session *TapSession, chanRef string) error {
	port, err := o.pool.Allocate()
	if err != nil {
		o.cleanupSession(session.CallID, "port allocation failed")
		return err
	}
	session.Port = port

	status, err := o.fgw.FGWRegister(ctx, session.CallID, port, session.Meta.AgentExtension, session.Meta.AgentUsername, session.Meta.AgentID)
	if err != nil || status/100 != 2 {
		o.pool.Release(port)
		o.cleanupSession(session.CallID, "fgw register failed")
		if err != nil {
			return err
		}
		return fmt.Errorf("tap: fgw register returned status %d", status)
	}

	appArgs := fmt.Sprintf("role=snoop,call_id=%s", session.CallID)
	if _, err := o.ctl.SnoopChannel(ctx, chanRef, o.cfg.AppName, ctl.SpyBoth, appArgs); err != nil {
		o.cleanupSession(session.CallID, "snoop creation failed")
		return err
	}
	return nil
}

func (o *Orchestrator) startStreaming(ctx context.Context, session *TapSession, chanRef string) error {
	for _, dir := range []string{"in", "out"} {
		status, err := o.sgw.SGWRegister(ctx, session.CallID, session.Meta.Extension, session.Meta.Caller, session.Meta.CallerName, dir)
		if err != nil || status/100 != 2 {
			// Non-fatal: logged (no counter is kept), and the tap
			// attempt continues.
			slog.Warn("[TAP] sgw register non-200", "call_id", session.CallID, "dir", dir, "status", status, "error", err)
		}
	}

	for _, dir := range []string{"in", "out"} {
		spy := ctl.SpyIn
		if dir == "out" {
			spy = ctl.SpyOut
		}
		appArgs := fmt.Sprintf("role=snoop,call_id=%s,dir=%s", session.CallID, dir)
		if _, err := o.ctl.SnoopChannel(ctx, chanRef, o.cfg.AppName, spy, appArgs); err != nil {
			o.cleanupSession(session.CallID, "snoop creation failed")
			return err
		}
	}
	return nil
}
