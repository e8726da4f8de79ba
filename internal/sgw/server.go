package sgw

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlortea/calltap/internal/metrics"
	"github.com/jlortea/calltap/internal/rtpparse"
	"github.com/jlortea/calltap/internal/sgw/assistant"
	"github.com/jlortea/calltap/internal/sgw/backoff"
	"github.com/jlortea/calltap/internal/sgw/config"
	"github.com/jlortea/calltap/internal/sgw/widget"
)

// Gateway owns the two direction-coded UDP listeners, the SSRC-keyed
// session table, per-direction pending FIFOs, the registration
// context table, the widget hub, and (optionally) the assistant
// manager — the whole of spec.md §4.4.
type Gateway struct {
	cfg *config.Config

	pendingIn  *pendingQueue
	pendingOut *pendingQueue

	hub       *widget.Hub
	assistant *assistant.Manager

	mu       sync.RWMutex
	sessions map[uint32]*Session // keyed by SSRC
	regs     map[string]RegistrationMeta // keyed by CallId

	droppedAdmission atomic.Int64

	httpServer *http.Server
	startTime  time.Time
}

// NewGateway builds the gateway, its UDP listeners, and its HTTP mux.
func NewGateway(cfg *config.Config) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		pendingIn:  newPendingQueue(cfg.PendingTTL),
		pendingOut: newPendingQueue(cfg.PendingTTL),
		hub:        widget.NewHub(),
		sessions:   make(map[uint32]*Session),
		regs:       make(map[string]RegistrationMeta),
		startTime:  time.Now(),
	}

	if cfg.AssistantEnabled {
		g.assistant = assistant.NewManager(assistant.Config{
			URL:        cfg.AssistantURL,
			AuthHeader: cfg.AssistantAuthHeader,
			Speaker:    cfg.AssistantSpeaker,
			Interval:   cfg.AssistantInterval,
			TailChars:  cfg.AssistantTailChars,
			MinChars:   cfg.AssistantMinChars,
		}, g.hub)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/register", g.handleRegister)
	mux.HandleFunc("/unregister", g.handleUnregister)
	mux.HandleFunc("/metrics", metrics.NewHandler(g).ServeHTTP)
	mux.HandleFunc("/ws", g.hub.ServeHTTP)
	mux.HandleFunc("/health", g.handleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBindAddr, cfg.HTTPPort)
	g.httpServer = &http.Server{Addr: addr, Handler: mux}

	if err := g.listenRTP(cfg.RTPBindAddrIn, DirIn); err != nil {
		return nil, err
	}
	if err := g.listenRTP(cfg.RTPBindAddrOut, DirOut); err != nil {
		return nil, err
	}

	go g.watchdogLoop()

	return g, nil
}

func (g *Gateway) listenRTP(addr string, dir Direction) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("sgw: resolve %s RTP addr %s: %w", dir, addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("sgw: listen %s RTP on %s: %w", dir, addr, err)
	}
	go g.receiveLoop(conn, dir)
	return nil
}

func (g *Gateway) receiveLoop(conn *net.UDPConn, dir Direction) {
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		pkt, err := rtpparse.Parse(buf[:n])
		if err != nil {
			continue
		}
		g.handlePacket(pkt.SSRC, dir, pkt.Payload)
	}
}

// handlePacket implements the SSRC-binding contract of spec.md §3/§4.4/§8:
// the first packet of an unknown SSRC adopts the pending binding (or
// the "unknown"/"mix" sentinel); subsequent packets cannot rebind it.
func (g *Gateway) handlePacket(ssrc uint32, dir Direction, payload []byte) {
	g.mu.RLock()
	session, ok := g.sessions[ssrc]
	g.mu.RUnlock()
	if ok {
		session.WritePCM(payload)
		return
	}

	g.mu.Lock()
	if session, ok := g.sessions[ssrc]; ok {
		g.mu.Unlock()
		session.WritePCM(payload)
		return
	}
	if len(g.sessions) >= g.cfg.SessionCap {
		g.mu.Unlock()
		g.droppedAdmission.Add(1)
		slog.Warn("[SGW] admission cap reached, dropping SSRC", "ssrc", ssrc)
		return
	}

	var queue *pendingQueue
	if dir == DirIn {
		queue = g.pendingIn
	} else {
		queue = g.pendingOut
	}
	callID := queue.PopValid()

	var reg RegistrationMeta
	if callID != "" {
		reg = g.regs[callID]
		reg.CallID = callID
	} else {
		reg = RegistrationMeta{CallID: "unknown", Extension: "mix"}
	}

	session := newSession(ssrc, dir, reg, g.cfg.UpstreamURL, upstreamParams{
		Token:          g.cfg.UpstreamToken,
		Language:       g.cfg.Language,
		InterimResults: g.cfg.InterimResults,
		Punctuate:      g.cfg.Punctuate,
		SmartFormat:    g.cfg.SmartFormat,
		Diarize:        g.cfg.Diarize,
	}, backoff.Policy{Base: 500 * time.Millisecond, Max: 8 * time.Second, Jitter: 200 * time.Millisecond}, g.cfg.BootBufferFrames, g.cfg.ByteSwap, sessionCallbacks{
		onTranscript: g.onTranscript,
		onClosed:     g.onSessionClosed,
	})
	g.sessions[ssrc] = session
	g.mu.Unlock()

	slog.Info("[SGW] session bound", "ssrc", ssrc, "dir", dir, "call_id", session.CallID, "room", session.Room)
	session.WritePCM(payload)
}

func (g *Gateway) onTranscript(s *Session, text string, isFinal bool, words int) {
	speaker := SpeakerLabel(RoleMode(g.cfg.RoleMode), s.Direction, s.Extension, s.Caller, s.CallerName)
	g.hub.Publish(s.Room, map[string]any{
		"event":   "stt",
		"text":    text,
		"isFinal": isFinal,
		"words":   words,
		"uuid":    s.CallID,
		"dir":     s.Direction,
		"speaker": speaker,
		"exten":   s.Extension,
		"caller":  s.Caller,
	})

	if isFinal && g.assistant != nil && s.CallID != "unknown" {
		role := "user"
		if (RoleMode(g.cfg.RoleMode) == RoleModeCallerIn && s.Direction == DirOut) ||
			(RoleMode(g.cfg.RoleMode) == RoleModeAgentIn && s.Direction == DirIn) {
			role = "agent"
		}
		g.assistant.Append(s.CallID, s.Room, role, text)
	}
}

func (g *Gateway) onSessionClosed(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s.SSRC)
	g.mu.Unlock()
}

// watchdogLoop tears down idle sessions, per spec.md §4.4.
func (g *Gateway) watchdogLoop() {
	ticker := time.NewTicker(g.cfg.WatchdogInterval)
	defer ticker.Stop()
	for range ticker.C {
		g.mu.RLock()
		var idle []*Session
		for _, s := range g.sessions {
			if s.IdleFor() >= g.cfg.InactivityTimeout {
				idle = append(idle, s)
			}
		}
		g.mu.RUnlock()

		for _, s := range idle {
			slog.Info("[SGW] session idle, closing", "ssrc", s.SSRC, "call_id", s.CallID)
			s.Close()

			if g.assistant != nil && !g.anySessionForCall(s.CallID) {
				g.assistant.Drop(s.CallID)
			}
		}
	}
}

func (g *Gateway) anySessionForCall(callID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, s := range g.sessions {
		if s.CallID == callID {
			return true
		}
	}
	return false
}

// handleRegister implements GET /register?uuid=&exten=&caller=&callername=&dir=(in|out)[&force_start=1]
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callID := q.Get("uuid")
	if callID == "" {
		http.Error(w, "missing uuid", http.StatusBadRequest)
		return
	}
	dir := Direction(q.Get("dir"))
	forceStart := q.Get("force_start") == "1"

	g.mu.Lock()
	_, existed := g.regs[callID]
	g.regs[callID] = RegistrationMeta{
		CallID:     callID,
		Extension:  q.Get("exten"),
		Caller:     q.Get("caller"),
		CallerName: q.Get("callername"),
		LastSeen:   time.Now(),
	}
	g.mu.Unlock()

	switch dir {
	case DirIn:
		g.pendingIn.Enqueue(callID)
	case DirOut:
		g.pendingOut.Enqueue(callID)
	}

	if !existed || forceStart {
		reg := g.regs[callID]
		from, to := FromTo(RoleMode(g.cfg.RoleMode), reg.Caller, reg.Extension)
		g.hub.Publish(reg.Extension, map[string]any{
			"event":      "call-start",
			"uuid":       callID,
			"exten":      reg.Extension,
			"caller":     reg.Caller,
			"callername": reg.CallerName,
			"from":       from,
			"to":         to,
			"timestamp":  reg.LastSeen,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleUnregister implements GET /unregister?uuid=.
func (g *Gateway) handleUnregister(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("uuid")
	g.mu.Lock()
	delete(g.regs, callID)
	g.mu.Unlock()

	if g.assistant != nil {
		g.assistant.Drop(callID)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"status":"ok","uptime":%d}`, int64(time.Since(g.startTime).Seconds()))
}

// Start begins listening for HTTP requests (RTP listeners are already
// running from NewGateway).
func (g *Gateway) Start() error {
	slog.Info("[SGW] starting HTTP server", "addr", g.httpServer.Addr)
	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[SGW] server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts down the HTTP server and every active session.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	if g.assistant != nil {
		g.assistant.Stop()
	}
	return g.httpServer.Close()
}

// Gauges implements metrics.Source.
func (g *Gateway) Gauges() []metrics.Gauge {
	g.mu.RLock()
	active := len(g.sessions)
	g.mu.RUnlock()

	return []metrics.Gauge{
		{Name: "sgw_active_sessions", Help: "Number of active SGW sessions", Value: float64(active)},
		{Name: "sgw_admission_dropped_total", Help: "Number of SSRCs dropped due to the admission cap", Value: float64(g.droppedAdmission.Load())},
		{Name: "sgw_widget_subscribers", Help: "Number of connected widget subscribers", Value: float64(g.hub.SubscriberCount())},
	}
}
