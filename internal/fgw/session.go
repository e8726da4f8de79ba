package fgw

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jlortea/calltap/internal/fgw/wavdump"
	"github.com/jlortea/calltap/internal/rtpparse"
)

// CallMeta is the per-call metadata threaded from TAP's /register call
// into the START frame, per spec.md §4.3.
type CallMeta struct {
	CallID         string
	AgentExtension string
	AgentUsername  string
	AgentID        string
}

// Session owns one UDP listening port and its paired downstream TCP
// connection for the lifetime of one call, matching
// rtpmanager/bridge.Bridge's one-goroutine-per-socket ownership shape:
// a UDP receive loop and a TCP connect/writer, both torn down by a
// single context.CancelFunc.
type Session struct {
	port           int
	meta           CallMeta
	downstreamAddr string

	udpConn *net.UDPConn

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	tcpConn   net.Conn
	connected bool
	ended     bool
	pending   [][]byte // queued AUDIO payloads produced before TCP connected
	reasm     reassembler
	lastRTP   time.Time

	dumper *wavdump.Dumper // nil unless diagnostics are enabled

	onClosed func(reason string)
}

// SessionConfig carries the knobs a Session needs that come from the
// gateway's config rather than per-call register parameters.
type SessionConfig struct {
	RTPBindAddr       string
	InactivityTimeout time.Duration
	WatchdogInterval  time.Duration
	Dumper            *wavdump.Dumper
}

// NewSession binds the UDP port and eagerly begins connecting to the
// downstream TCP peer — spec.md §4.3: "No lazy connect: the connect
// begins before any RTP arrives."
func NewSession(port int, meta CallMeta, downstreamAddr string, cfg SessionConfig, onClosed func(reason string)) (*Session, error) {
	udpAddr := &net.UDPAddr{IP: net.ParseIP(cfg.RTPBindAddr), Port: port}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("fgw: listen udp %d: %w", port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		port:           port,
		meta:           meta,
		downstreamAddr: downstreamAddr,
		udpConn:        conn,
		ctx:            ctx,
		cancel:         cancel,
		lastRTP:        time.Now(),
		dumper:         cfg.Dumper,
		onClosed:       onClosed,
	}

	go s.connectTCP()
	go s.receiveLoop()
	go s.watchdog(cfg.InactivityTimeout, cfg.WatchdogInterval)

	return s, nil
}

// connectTCP dials the downstream speech backend and, on success,
// writes START then flushes any frames queued while disconnected, in
// FIFO order, per spec.md §5(i)'s ordering guarantee.
func (s *Session) connectTCP() {
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(s.ctx, "tcp", s.downstreamAddr)
	if err != nil {
		slog.Error("[FGW] downstream TCP connect failed", "call_id", s.meta.CallID, "port", s.port, "error", err)
		s.sendEndAndClose("tcp connect failed")
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.tcpConn = conn

	if err := writeStartFrame(conn, s.meta); err != nil {
		s.mu.Unlock()
		slog.Error("[FGW] write START failed", "call_id", s.meta.CallID, "error", err)
		s.sendEndAndClose("tcp write failed")
		return
	}

	pending := s.pending
	s.pending = nil
	for _, payload := range pending {
		if err := writeAudioFrame(conn, payload); err != nil {
			s.mu.Unlock()
			slog.Error("[FGW] flush queued AUDIO failed", "call_id", s.meta.CallID, "error", err)
			s.sendEndAndClose("tcp write failed")
			return
		}
	}
	s.connected = true
	s.mu.Unlock()

	go s.watchTCPClose(conn)
}

// watchTCPClose detects the downstream peer closing the connection.
func (s *Session) watchTCPClose(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			s.sendEndAndClose("tcp closed")
			return
		}
	}
}

// receiveLoop reads inbound RTP datagrams, strips framing, and either
// writes AUDIO frames directly (if connected) or queues the payload.
func (s *Session) receiveLoop() {
	buf := make([]byte, 2048)
	for {
		n, _, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.sendEndAndClose("udp read error")
			return
		}

		pkt, err := rtpparse.Parse(buf[:n])
		if err != nil {
			continue
		}

		s.mu.Lock()
		s.lastRTP = time.Now()
		frames := s.reasm.Append(pkt.Payload)
		s.mu.Unlock()

		if s.dumper != nil {
			s.dumper.Write(pkt.Payload)
		}

		for _, frame := range frames {
			s.emitAudioFrame(frame)
		}
	}
}

// emitAudioFrame writes the frame if connected, otherwise queues it —
// spec.md §4.3: "AUDIO may be queued before the TCP connect completes".
func (s *Session) emitAudioFrame(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	if !s.connected {
		s.pending = append(s.pending, frame)
		return
	}
	if err := writeAudioFrame(s.tcpConn, frame); err != nil {
		slog.Error("[FGW] write AUDIO failed", "call_id", s.meta.CallID, "error", err)
		go s.sendEndAndClose("tcp write failed")
	}
}

// watchdog periodically checks for RTP inactivity, per spec.md §4.3.
func (s *Session) watchdog(inactivity, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastRTP)
			s.mu.Unlock()
			if idle >= inactivity {
				s.sendEndAndClose("inactivity")
				return
			}
		}
	}
}

// sendEndAndClose is the single idempotent teardown path every
// terminal cause funnels into, per spec.md §4.3/§5: the "ended" latch
// is set before effectful teardown so overlapping callers collapse to
// one.
func (s *Session) sendEndAndClose(reason string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	conn := s.tcpConn
	connected := s.connected
	s.mu.Unlock()

	if connected && conn != nil {
		if err := writeEndFrame(conn); err != nil {
			slog.Warn("[FGW] write END failed", "call_id", s.meta.CallID, "error", err)
		}
		conn.Close()
	} else if conn != nil {
		conn.Close()
	}

	s.cancel()
	s.udpConn.Close()
	if s.dumper != nil {
		s.dumper.Close()
	}

	slog.Info("[FGW] session ended", "call_id", s.meta.CallID, "port", s.port, "reason", reason)
	if s.onClosed != nil {
		s.onClosed(reason)
	}
}

// Close triggers the same teardown path as an external /unregister
// call, which is idempotent per spec.md §4.3.
func (s *Session) Close() {
	s.sendEndAndClose("unregister")
}
