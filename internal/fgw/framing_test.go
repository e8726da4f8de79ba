package fgw

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"
)

func TestWriteFrameHeaderShape(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, frameTypeAudio, bytes.Repeat([]byte{0xAB}, audioFrameSize)); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	b := buf.Bytes()
	if b[0] != frameTypeAudio {
		t.Errorf("type byte = %#x, want %#x", b[0], frameTypeAudio)
	}
	length := binary.BigEndian.Uint16(b[1:3])
	if length != audioFrameSize {
		t.Errorf("length = %d, want %d", length, audioFrameSize)
	}
	if len(b) != 3+audioFrameSize {
		t.Errorf("total frame len = %d, want %d", len(b), 3+audioFrameSize)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := writeFrame(&buf, frameTypeAudio, make([]byte, 0x10000))
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestWriteStartFrameEncodesMeta(t *testing.T) {
	var buf bytes.Buffer
	meta := CallMeta{CallID: "call-1", AgentExtension: "1001", AgentUsername: "alice", AgentID: "agt-9"}
	if err := writeStartFrame(&buf, meta); err != nil {
		t.Fatalf("writeStartFrame: %v", err)
	}
	b := buf.Bytes()
	if b[0] != frameTypeStart {
		t.Fatalf("type byte = %#x, want START", b[0])
	}
	length := binary.BigEndian.Uint16(b[1:3])
	var got startPayload
	if err := json.Unmarshal(b[3:3+length], &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.CallUUID != meta.CallID || got.AgentExtension != meta.AgentExtension ||
		got.AgentUsername != meta.AgentUsername || got.AgentID != meta.AgentID {
		t.Errorf("payload = %+v, want mirror of %+v", got, meta)
	}
}

func TestWriteAudioFrameRejectsWrongSize(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAudioFrame(&buf, make([]byte, audioFrameSize-1)); err == nil {
		t.Fatal("expected error for short audio payload")
	}
}

func TestWriteEndFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeEndFrame(&buf); err != nil {
		t.Fatalf("writeEndFrame: %v", err)
	}
	b := buf.Bytes()
	if b[0] != frameTypeEnd {
		t.Errorf("type byte = %#x, want END", b[0])
	}
	if binary.BigEndian.Uint16(b[1:3]) != 0 {
		t.Errorf("END frame should have zero length")
	}
}

func TestReassemblerDrainsExactFrames(t *testing.T) {
	var r reassembler

	// 100 bytes: no complete frame yet.
	frames := r.Append(bytes.Repeat([]byte{1}, 100))
	if len(frames) != 0 {
		t.Fatalf("expected 0 frames, got %d", len(frames))
	}

	// Top up to exactly one complete frame.
	frames = r.Append(bytes.Repeat([]byte{2}, audioFrameSize-100))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if len(frames[0]) != audioFrameSize {
		t.Errorf("frame len = %d, want %d", len(frames[0]), audioFrameSize)
	}

	// Two and a half frames at once: expect 2 frames out, half left buffered.
	frames = r.Append(bytes.Repeat([]byte{3}, audioFrameSize*2+audioFrameSize/2))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if len(r.buf) != audioFrameSize/2 {
		t.Errorf("leftover buf len = %d, want %d", len(r.buf), audioFrameSize/2)
	}
}

func TestReassemblerPreservesOrder(t *testing.T) {
	var r reassembler
	var frames [][]byte
	frames = append(frames, r.Append(bytes.Repeat([]byte{0xAA}, audioFrameSize))...)
	frames = append(frames, r.Append(bytes.Repeat([]byte{0xBB}, audioFrameSize))...)

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0][0] != 0xAA || frames[1][0] != 0xBB {
		t.Error("frames not drained in FIFO order")
	}
}
