package tap

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jlortea/calltap/internal/ctl"
	"github.com/jlortea/calltap/internal/fgw/portpool"
	"github.com/jlortea/calltap/internal/tap/config"
	"github.com/jlortea/calltap/internal/tap/gwclient"
)

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"role=snoop", "call_id=A1", "dir=in"})
	if got["role"] != "snoop" || got["call_id"] != "A1" || got["dir"] != "in" {
		t.Errorf("got %+v", got)
	}
}

// fakePBX serves just enough of the stasis REST surface for bridge
// creation/destroy and channel hangup, counting bridge creates so the
// single-flight test can assert exactly one happened.
func fakePBX(t *testing.T, bridgeCreates *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/bridges", func(w http.ResponseWriter, r *http.Request) {
		bridgeCreates.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"bridge-1"}`))
	})
	mux.HandleFunc("/bridges/bridge-1/addChannel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/bridges/bridge-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/channels/chan-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func newTestOrchestrator(t *testing.T, pbxURL string) *Orchestrator {
	t.Helper()
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(gw.Close)

	cfg := &config.Config{
		CTLBaseURL:             pbxURL,
		AppName:                "calltap",
		PortMin:                30000,
		PortMax:                30099,
		BridgeAddRetryAttempts: 3,
		BridgeAddRetryDelayMS:  1,
	}
	return &Orchestrator{
		cfg:          cfg,
		ctl:          ctl.Connect(pbxURL, "", "", ""),
		fgw:          gwclient.New("fgw", gw.URL),
		sgw:          gwclient.New("sgw", gw.URL),
		pool:         portpool.New(cfg.PortMin, cfg.PortMax),
		sessions:     make(map[string]*TapSession),
		reverseIndex: make(map[string]string),
	}
}

func TestGetOrCreateBridgeSingleFlight(t *testing.T) {
	var bridgeCreates atomic.Int64
	pbx := fakePBX(t, &bridgeCreates)
	defer pbx.Close()

	o := newTestOrchestrator(t, pbx.URL)
	session := newTapSession("A1", BackendStreaming, CallMeta{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.getOrCreateBridge(t.Context(), session, "in"); err != nil {
				t.Errorf("getOrCreateBridge: %v", err)
			}
		}()
	}
	wg.Wait()

	if bridgeCreates.Load() != 1 {
		t.Errorf("bridge creates = %d, want 1 (single-flight should coalesce)", bridgeCreates.Load())
	}
}

func TestCleanupSessionIdempotent(t *testing.T) {
	var bridgeCreates atomic.Int64
	pbx := fakePBX(t, &bridgeCreates)
	defer pbx.Close()

	o := newTestOrchestrator(t, pbx.URL)
	session := newTapSession("A1", BackendFramed, CallMeta{})
	session.Port = 30000
	o.pool.Reserve(30000)

	bridge, err := o.getOrCreateBridge(t.Context(), session, "")
	if err != nil {
		t.Fatalf("getOrCreateBridge: %v", err)
	}
	_ = bridge

	o.mu.Lock()
	o.sessions["A1"] = session
	o.mu.Unlock()

	o.cleanupSession("A1", "test")
	o.cleanupSession("A1", "test-again") // must be a no-op

	o.mu.RLock()
	_, stillPresent := o.sessions["A1"]
	o.mu.RUnlock()
	if stillPresent {
		t.Error("expected session to be removed after cleanup")
	}
	if o.pool.Held(30000) {
		t.Error("expected port to be released after cleanup")
	}
}
