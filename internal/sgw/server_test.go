package sgw

import (
	"testing"
	"time"

	"github.com/jlortea/calltap/internal/sgw/config"
	"github.com/jlortea/calltap/internal/sgw/widget"
)

func newTestGateway(t *testing.T, sessionCap int) *Gateway {
	t.Helper()
	cfg := &config.Config{
		SessionCap:       sessionCap,
		BootBufferFrames: 50,
		RoleMode:         "caller-in",
		PendingTTL:       4 * time.Second,
		UpstreamURL:      "ws://127.0.0.1:1/nonexistent", // deliberately unreachable
	}
	return &Gateway{
		cfg:        cfg,
		pendingIn:  newPendingQueue(cfg.PendingTTL),
		pendingOut: newPendingQueue(cfg.PendingTTL),
		hub:        widget.NewHub(),
		sessions:   make(map[uint32]*Session),
		regs:       make(map[string]RegistrationMeta),
	}
}

func TestHandlePacketBindsUnknownSSRCWithoutPendingBinding(t *testing.T) {
	g := newTestGateway(t, 10)
	g.handlePacket(0xCCCC, DirIn, make([]byte, 10))

	g.mu.RLock()
	s, ok := g.sessions[0xCCCC]
	g.mu.RUnlock()
	if !ok {
		t.Fatal("expected a session to be created for the unknown SSRC")
	}
	if s.CallID != "unknown" || s.Room != "mix" {
		t.Errorf("got CallID=%q Room=%q, want unknown/mix sentinel", s.CallID, s.Room)
	}
	s.Close()
}

func TestHandlePacketAdoptsPendingBinding(t *testing.T) {
	g := newTestGateway(t, 10)
	g.regs["A1"] = RegistrationMeta{CallID: "A1", Extension: "200"}
	g.pendingIn.Enqueue("A1")

	g.handlePacket(0xAAAA, DirIn, make([]byte, 10))

	g.mu.RLock()
	s, ok := g.sessions[0xAAAA]
	g.mu.RUnlock()
	if !ok {
		t.Fatal("expected a session to be created")
	}
	if s.CallID != "A1" || s.Room != "200" {
		t.Errorf("got CallID=%q Room=%q, want A1/200", s.CallID, s.Room)
	}
	s.Close()
}

func TestHandlePacketDoesNotRebindExistingSSRC(t *testing.T) {
	g := newTestGateway(t, 10)
	g.handlePacket(0xDDDD, DirIn, make([]byte, 10))

	g.regs["A2"] = RegistrationMeta{CallID: "A2", Extension: "300"}
	g.pendingIn.Enqueue("A2")
	g.handlePacket(0xDDDD, DirIn, make([]byte, 10)) // second packet, same SSRC

	g.mu.RLock()
	s := g.sessions[0xDDDD]
	g.mu.RUnlock()
	if s.CallID != "unknown" {
		t.Errorf("CallID = %q, expected the SSRC to remain bound to its first adoption", s.CallID)
	}
	s.Close()
}

func TestHandlePacketAdmissionCap(t *testing.T) {
	g := newTestGateway(t, 1)
	g.handlePacket(0x1111, DirIn, make([]byte, 10))
	g.handlePacket(0x2222, DirIn, make([]byte, 10))

	g.mu.RLock()
	count := len(g.sessions)
	g.mu.RUnlock()
	if count != 1 {
		t.Fatalf("session count = %d, want 1 (cap reached)", count)
	}
	if g.droppedAdmission.Load() != 1 {
		t.Errorf("droppedAdmission = %d, want 1", g.droppedAdmission.Load())
	}

	// Close outside the lock: Session.Close calls onSessionClosed, which
	// takes g.mu for writing.
	g.mu.RLock()
	var open []*Session
	for _, s := range g.sessions {
		open = append(open, s)
	}
	g.mu.RUnlock()
	for _, s := range open {
		s.Close()
	}
}
