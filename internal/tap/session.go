package tap

import (
	"sync"

	"github.com/jlortea/calltap/internal/ctl"
)

// Backend selects which downstream speech backend a call is routed
// to, per spec.md §3/§4.2.
type Backend string

const (
	BackendFramed    Backend = "framed"
	BackendStreaming Backend = "streaming"
)

// CallMeta is the metadata collected from /start_tap's query
// parameters and threaded through to the gateways' /register calls.
type CallMeta struct {
	Extension      string
	Caller         string
	CallerName     string
	AgentExtension string
	AgentUsername  string
	AgentID        string
}

// TapSession is the resource graph for one call, per spec.md §3: at
// most one bridge per direction key present, a cleaned latch guarding
// idempotent teardown, and the channel/port resources it owns.
type TapSession struct {
	CallID  string
	Backend Backend
	Meta    CallMeta

	Port int // framed backend only; 0 if unset

	mu       sync.Mutex
	snoops   map[string]*ctl.Channel // keyed by direction ("" for framed, "in"/"out" for streaming)
	extMedia map[string]*ctl.Channel
	bridges  map[string]*ctl.Bridge
	cleaned  bool
}

func newTapSession(callID string, backend Backend, meta CallMeta) *TapSession {
	return &TapSession{
		CallID:   callID,
		Backend:  backend,
		Meta:     meta,
		snoops:   make(map[string]*ctl.Channel),
		extMedia: make(map[string]*ctl.Channel),
		bridges:  make(map[string]*ctl.Bridge),
	}
}

// IsCleaned reports whether cleanup has already run, per spec.md §3's
// invariant: no cleaned session may acquire new resources.
func (s *TapSession) IsCleaned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleaned
}

func (s *TapSession) setSnoop(dirKey string, ch *ctl.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snoops[dirKey] = ch
}

func (s *TapSession) setExternalMedia(dirKey string, ch *ctl.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extMedia[dirKey] = ch
}

func (s *TapSession) getBridge(dirKey string) (*ctl.Bridge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bridges[dirKey]
	return b, ok
}

func (s *TapSession) setBridge(dirKey string, b *ctl.Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bridges[dirKey] = b
}

// snapshot returns copies of the resource sets for teardown, taken
// under lock so cleanup doesn't race concurrent attachment.
func (s *TapSession) snapshot() (snoops, extMedia []*ctl.Channel, bridges []*ctl.Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.snoops {
		snoops = append(snoops, ch)
	}
	for _, ch := range s.extMedia {
		extMedia = append(extMedia, ch)
	}
	for _, b := range s.bridges {
		bridges = append(bridges, b)
	}
	return
}

// markCleaned sets the idempotency latch and reports whether this call
// was the one that transitioned it — per spec.md §5/§8, only the first
// caller runs the destructive steps.
func (s *TapSession) markCleaned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleaned {
		return false
	}
	s.cleaned = true
	return true
}
