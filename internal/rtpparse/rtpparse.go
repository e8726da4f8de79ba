// Package rtpparse strips RTP framing from inbound UDP datagrams,
// leaving the raw codec payload for the framed and streaming gateways.
package rtpparse

import (
	"errors"

	"github.com/pion/rtp"
)

// ErrShortPacket is returned when a datagram is too small to contain a
// valid RTP fixed header.
var ErrShortPacket = errors.New("rtpparse: packet shorter than RTP fixed header")

// Packet is the result of parsing one inbound RTP datagram: the fields
// the tap/gateway pipeline cares about, plus the payload with the
// fixed header, CSRC list, and extension (if present) already removed.
type Packet struct {
	SSRC      uint32
	Sequence  uint16
	Timestamp uint32
	Marker    bool
	Payload   []byte
}

// Parse decodes an inbound RTP datagram using pion/rtp and returns the
// SSRC plus the bare codec payload. CSRC count and the extension
// header (if the X bit is set) are honored by rtp.Packet.Unmarshal,
// matching the byte-skipping rule in spec §4.3/§6.
func Parse(datagram []byte) (Packet, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(datagram); err != nil {
		return Packet{}, err
	}
	return Packet{
		SSRC:      pkt.SSRC,
		Sequence:  pkt.SequenceNumber,
		Timestamp: pkt.Timestamp,
		Marker:    pkt.Marker,
		Payload:   pkt.Payload,
	}, nil
}

// SSRC extracts just the synchronization source identifier from an
// inbound datagram without decoding the full payload, for the hot path
// where SGW only needs the session key.
func SSRC(datagram []byte) (uint32, error) {
	if len(datagram) < 12 {
		return 0, ErrShortPacket
	}
	return uint32(datagram[8])<<24 | uint32(datagram[9])<<16 | uint32(datagram[10])<<8 | uint32(datagram[11]), nil
}
