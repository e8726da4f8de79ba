package rtpparse

import (
	"testing"

	"github.com/pion/rtp"
)

func buildPacket(t *testing.T, ssrc uint32, ext bool, payload []byte) []byte {
	t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    0,
			SequenceNumber: 42,
			Timestamp:      1000,
			SSRC:           ssrc,
			Extension:      ext,
		},
		Payload: payload,
	}
	if ext {
		pkt.Header.ExtensionProfile = 0xBEDE
		if err := pkt.Header.SetExtension(1, []byte{0xAA, 0xBB, 0xCC, 0xDD}); err != nil {
			t.Fatalf("set extension: %v", err)
		}
	}
	data, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestParseStripsHeaderAndExtension(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	data := buildPacket(t, 0xAABBCCDD, true, payload)

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.SSRC != 0xAABBCCDD {
		t.Errorf("SSRC = %#x, want %#x", got.SSRC, 0xAABBCCDD)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("Payload = %v, want %v", got.Payload, payload)
	}
}

func TestParseNoExtension(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30}
	data := buildPacket(t, 1, false, payload)

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("Payload = %v, want %v", got.Payload, payload)
	}
}

func TestSSRC(t *testing.T) {
	data := buildPacket(t, 0x11223344, false, []byte{0x00})
	ssrc, err := SSRC(data)
	if err != nil {
		t.Fatalf("SSRC: %v", err)
	}
	if ssrc != 0x11223344 {
		t.Errorf("SSRC = %#x, want %#x", ssrc, 0x11223344)
	}
}

func TestSSRCShortPacket(t *testing.T) {
	_, err := SSRC([]byte{1, 2, 3})
	if err != ErrShortPacket {
		t.Errorf("err = %v, want ErrShortPacket", err)
	}
}
