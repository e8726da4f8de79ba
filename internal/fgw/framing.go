package fgw

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Frame type tags for the outbound binary protocol, per spec.md §4.3/§6:
// [TYPE:1][LENGTH:2 big-endian][PAYLOAD:LENGTH].
const (
	frameTypeEnd   byte = 0x00
	frameTypeStart byte = 0x01
	frameTypeAudio byte = 0x12
)

// audioFrameSize is 320 samples * 2 bytes at 16 kHz (20 ms), per
// spec.md §4.3.
const audioFrameSize = 640

// startPayload is the JSON body of the START frame.
type startPayload struct {
	CallUUID       string `json:"call_uuid"`
	AgentExtension string `json:"agent_extension"`
	AgentUsername  string `json:"agent_username"`
	AgentID        string `json:"agent_id"`
}

// writeFrame writes one [TYPE][LENGTH][PAYLOAD] frame to w.
func writeFrame(w io.Writer, frameType byte, payload []byte) error {
	if len(payload) > 0xFFFF {
		return fmt.Errorf("fgw: frame payload too large: %d bytes", len(payload))
	}
	header := make([]byte, 3)
	header[0] = frameType
	binary.BigEndian.PutUint16(header[1:], uint16(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// writeStartFrame writes the 0x01 START frame exactly once per
// connection, immediately upon TCP connect success.
func writeStartFrame(w io.Writer, meta CallMeta) error {
	payload, err := json.Marshal(startPayload{
		CallUUID:       meta.CallID,
		AgentExtension: meta.AgentExtension,
		AgentUsername:  meta.AgentUsername,
		AgentID:        meta.AgentID,
	})
	if err != nil {
		return fmt.Errorf("fgw: marshal start payload: %w", err)
	}
	return writeFrame(w, frameTypeStart, payload)
}

// writeAudioFrame writes one 0x12 AUDIO frame. Callers must ensure
// payload is exactly audioFrameSize bytes.
func writeAudioFrame(w io.Writer, payload []byte) error {
	if len(payload) != audioFrameSize {
		return fmt.Errorf("fgw: audio frame must be %d bytes, got %d", audioFrameSize, len(payload))
	}
	return writeFrame(w, frameTypeAudio, payload)
}

// writeEndFrame writes the 0x00 END frame with an empty payload.
func writeEndFrame(w io.Writer) error {
	return writeFrame(w, frameTypeEnd, nil)
}

// reassembler accumulates RTP payload bytes and drains exactly
// audioFrameSize-byte chunks, per spec.md §4.3.
type reassembler struct {
	buf []byte
}

// Append adds bytes and returns any complete 640-byte frames now
// available, draining them from the internal buffer in order.
func (r *reassembler) Append(payload []byte) [][]byte {
	r.buf = append(r.buf, payload...)

	var frames [][]byte
	for len(r.buf) >= audioFrameSize {
		frame := make([]byte, audioFrameSize)
		copy(frame, r.buf[:audioFrameSize])
		frames = append(frames, frame)
		r.buf = r.buf[audioFrameSize:]
	}
	return frames
}
