// Package fgw implements the framed-TCP gateway (FGW): it receives RTP
// on a pool of UDP ports, reframes 20ms PCM chunks into the
// START/AUDIO/END binary protocol, and forwards them over TCP to a
// downstream speech backend, per spec.md §4.3.
package fgw

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jlortea/calltap/internal/fgw/config"
	"github.com/jlortea/calltap/internal/fgw/portpool"
	"github.com/jlortea/calltap/internal/fgw/wavdump"
	"github.com/jlortea/calltap/internal/metrics"
)

// Gateway owns the pool of active sessions and the HTTP control plane,
// following the teacher's ui/server.Server shape: a config-built
// *http.Server plus whatever backing state the handlers need.
type Gateway struct {
	cfg *config.Config

	pool *portpool.Pool

	mu       sync.RWMutex
	sessions map[int]*Session // keyed by RTP port

	httpServer *http.Server
	startTime  time.Time
}

// NewGateway builds the gateway and its HTTP mux.
func NewGateway(cfg *config.Config) *Gateway {
	g := &Gateway{
		cfg:       cfg,
		pool:      portpool.New(cfg.RTPPortMin, cfg.RTPPortMax),
		sessions:  make(map[int]*Session),
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/register", g.handleRegister)
	mux.HandleFunc("/unregister", g.handleUnregister)
	mux.HandleFunc("/metrics", metrics.NewHandler(g).ServeHTTP)
	mux.HandleFunc("/health", g.handleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBindAddr, cfg.HTTPPort)
	g.httpServer = &http.Server{Addr: addr, Handler: mux}

	return g
}

// Start begins listening for HTTP control requests.
func (g *Gateway) Start() error {
	slog.Info("[FGW] starting HTTP server", "addr", g.httpServer.Addr)
	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[FGW] server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server and every active session.
func (g *Gateway) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}

	return g.httpServer.Shutdown(ctx)
}

// handleRegister implements GET /register?uuid=&port=&exten=&username=&agent_id=
// per spec.md §6: TAP supplies a port it has already chosen; FGW
// reserves it and starts the session, returning 409 if the port is
// already held.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callID := q.Get("uuid")
	portStr := q.Get("port")
	if callID == "" || portStr == "" {
		http.Error(w, "uuid and port are required", http.StatusBadRequest)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		http.Error(w, "invalid port", http.StatusBadRequest)
		return
	}

	if !g.pool.Reserve(port) {
		http.Error(w, "port already in use", http.StatusConflict)
		return
	}

	meta := CallMeta{
		CallID:         callID,
		AgentExtension: q.Get("exten"),
		AgentUsername:  q.Get("username"),
		AgentID:        q.Get("agent_id"),
	}

	var dumper *wavdump.Dumper
	if g.cfg.WavDumpEnabled {
		d, err := wavdump.New(g.cfg.WavDumpDir, callID, g.cfg.WavDumpSeconds)
		if err != nil {
			slog.Warn("[FGW] wavdump disabled for call", "call_id", callID, "error", err)
		} else {
			dumper = d
		}
	}

	session, err := NewSession(port, meta, g.cfg.DownstreamAddr, SessionConfig{
		RTPBindAddr:       g.cfg.RTPBindAddr,
		InactivityTimeout: g.cfg.InactivityTimeout,
		WatchdogInterval:  g.cfg.WatchdogInterval,
		Dumper:            dumper,
	}, func(reason string) {
		g.mu.Lock()
		delete(g.sessions, port)
		g.mu.Unlock()
		g.pool.Release(port)
		slog.Info("[FGW] port released", "port", port, "reason", reason)
	})
	if err != nil {
		g.pool.Release(port)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	g.mu.Lock()
	g.sessions[port] = session
	g.mu.Unlock()

	slog.Info("[FGW] session registered", "call_id", callID, "port", port)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "port": port})
}

// handleUnregister implements GET /unregister?port=, idempotent per
// spec.md §4.3.
func (g *Gateway) handleUnregister(w http.ResponseWriter, r *http.Request) {
	portStr := r.URL.Query().Get("port")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		http.Error(w, "invalid port", http.StatusBadRequest)
		return
	}

	g.mu.RLock()
	session, ok := g.sessions[port]
	g.mu.RUnlock()
	if ok {
		session.Close()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"status":"ok","uptime":%d}`, int64(time.Since(g.startTime).Seconds()))
}

// Gauges implements metrics.Source.
func (g *Gateway) Gauges() []metrics.Gauge {
	g.mu.RLock()
	active := len(g.sessions)
	g.mu.RUnlock()

	return []metrics.Gauge{
		{Name: "fgw_active_sessions", Help: "Number of active FGW sessions", Value: float64(active)},
		{Name: "fgw_ports_available", Help: "Number of free RTP ports in the configured range", Value: float64(g.pool.Available())},
		{Name: "fgw_ports_allocated", Help: "Number of RTP ports currently allocated", Value: float64(g.pool.Count())},
	}
}
