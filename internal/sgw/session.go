package sgw

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jlortea/calltap/internal/sgw/backoff"
)

// sessionCallbacks decouples Session from the Gateway's widget hub,
// assistant state, and session-table bookkeeping so the session
// itself stays testable in isolation.
type sessionCallbacks struct {
	onTranscript func(s *Session, text string, isFinal bool, words int)
	onClosed     func(s *Session)
}

// Session is one (SSRC, direction) streaming pipeline: RTP in,
// upstream speech socket out, transcripts republished to the widget
// hub. Per spec.md §3, the pair is stable for the session's lifetime
// — no later packet can rebind it.
type Session struct {
	SSRC      uint32
	Direction Direction
	CallID    string
	Room      string // = extension

	Extension  string
	Caller     string
	CallerName string

	upstreamURL string
	params      upstreamParams
	backoffPol  backoff.Policy
	bootCap     int
	byteSwap    bool

	cbs sessionCallbacks

	ctx    context.Context
	cancel context.CancelFunc

	mu               sync.Mutex
	conn             netConnCloser
	open             bool
	boot             [][]byte
	closing          bool
	reconnectAttempt int
	lastRTP          time.Time
}

// transcriptResult mirrors the subset of the upstream "Results"
// message shape that carries a non-empty transcript, per spec.md §6.
type transcriptResult struct {
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
			Words      []any  `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
	Type    string `json:"type"`
}

// newSession constructs a Session and immediately starts its connect
// goroutine, matching FGW's "no lazy connect" shape (here: connect
// begins on first packet, since the session itself is created lazily
// on first packet per spec.md §4.4). Inactivity is checked by the
// Gateway's watchdogLoop, not per session.
func newSession(ssrc uint32, dir Direction, reg RegistrationMeta, upstreamURL string, params upstreamParams, bpol backoff.Policy, bootCap int, byteSwap bool, cbs sessionCallbacks) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		SSRC:        ssrc,
		Direction:   dir,
		CallID:      reg.CallID,
		Room:        reg.Extension,
		Extension:   reg.Extension,
		Caller:      reg.Caller,
		CallerName:  reg.CallerName,
		upstreamURL: upstreamURL,
		params:      params,
		backoffPol:  bpol,
		bootCap:     bootCap,
		byteSwap:    byteSwap,
		cbs:         cbs,
		ctx:         ctx,
		cancel:      cancel,
		lastRTP:     time.Now(),
	}
	go s.connectLoop()
	return s
}

// connectLoop dials, reads until the socket closes, then — unless the
// session is in deliberate teardown — reconnects with exponential
// backoff, per spec.md §4.4/§7/§8.
func (s *Session) connectLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := dialUpstream(s.ctx, s.upstreamURL, s.params)
		if err != nil {
			slog.Warn("[SGW] upstream dial failed", "ssrc", s.SSRC, "error", err)
			if !s.scheduleReconnect() {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.open = true
		boot := s.boot
		s.boot = nil
		s.mu.Unlock()

		for _, payload := range boot {
			if err := writeUpstreamBinary(conn, payload); err != nil {
				slog.Warn("[SGW] flush boot buffer failed", "ssrc", s.SSRC, "error", err)
				break
			}
		}

		s.readLoop(conn)

		s.mu.Lock()
		s.open = false
		s.conn = nil
		deliberate := s.closing
		s.mu.Unlock()

		if deliberate {
			return
		}
		if !s.scheduleReconnect() {
			return
		}
	}
}

// scheduleReconnect waits the backoff delay for the current attempt
// count and returns false if the session was torn down meanwhile.
func (s *Session) scheduleReconnect() bool {
	s.mu.Lock()
	attempt := s.reconnectAttempt
	s.reconnectAttempt++
	s.mu.Unlock()

	wait := s.backoffPol.Wait(attempt)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) readLoop(conn netConnCloser) {
	for {
		msg, err := readUpstreamText(conn)
		if err != nil {
			return
		}
		s.handleUpstreamMessage(msg)
	}
}

func (s *Session) handleUpstreamMessage(msg []byte) {
	var result transcriptResult
	if err := json.Unmarshal(msg, &result); err != nil {
		return
	}
	if len(result.Channel.Alternatives) == 0 {
		return
	}
	text := result.Channel.Alternatives[0].Transcript
	if text == "" {
		return
	}
	words := len(result.Channel.Alternatives[0].Words)
	if s.cbs.onTranscript != nil {
		s.cbs.onTranscript(s, text, result.IsFinal, words)
	}
}

// WritePCM forwards (or queues, pre-OPEN) one RTP payload's PCM bytes,
// per spec.md §4.4/§5(ii): boot frames flush before any live-mode
// frame, and writes within one SSRC preserve arrival order.
func (s *Session) WritePCM(payload []byte) {
	if s.byteSwap {
		payload = byteSwapPCM16(payload)
	}

	s.mu.Lock()
	s.lastRTP = time.Now()
	if s.closing {
		s.mu.Unlock()
		return
	}
	if !s.open {
		if len(s.boot) < s.bootCap {
			s.boot = append(s.boot, payload)
		}
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.mu.Unlock()

	if err := writeUpstreamBinary(conn, payload); err != nil {
		slog.Warn("[SGW] write PCM failed", "ssrc", s.SSRC, "error", err)
	}
}

// IdleFor reports how long it has been since the last RTP packet.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastRTP)
}

// Close deliberately tears the session down: no reconnect follows.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		conn.Close()
	}
	if s.cbs.onClosed != nil {
		s.cbs.onClosed(s)
	}
}

func byteSwapPCM16(pcm []byte) []byte {
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		out[i] = pcm[i+1]
		out[i+1] = pcm[i]
	}
	return out
}
