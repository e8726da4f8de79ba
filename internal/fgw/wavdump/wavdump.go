// Package wavdump writes a short PCM16/16kHz WAV file per call for
// diagnostic purposes, capped at a configured number of seconds.
// Grounded on the spirit of the teacher's internal/rtpmanager diagnostic
// dump helpers; the WAV container itself is written with encoding/binary
// since no library in the example pack covers RIFF/WAV encoding.
package wavdump

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	sampleRate = 16000
	bitsPerSample = 16
	numChannels = 1
)

// Dumper accumulates PCM samples up to a byte cap and writes a WAV file
// to disk on Close.
type Dumper struct {
	mu     sync.Mutex
	path   string
	cap    int
	buf    []byte
	closed bool
}

// New creates a Dumper that will cap itself at seconds of 16kHz mono
// 16-bit PCM and write to dir/<callID>.wav on Close.
func New(dir, callID string, seconds int) (*Dumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wavdump: mkdir %s: %w", dir, err)
	}
	capBytes := seconds * sampleRate * (bitsPerSample / 8) * numChannels
	return &Dumper{
		path: filepath.Join(dir, callID+".wav"),
		cap:  capBytes,
	}, nil
}

// Write appends PCM bytes until the cap is reached; further writes are
// dropped silently so the dump stays bounded regardless of call length.
func (d *Dumper) Write(pcm []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(d.buf) >= d.cap {
		return
	}
	remaining := d.cap - len(d.buf)
	if remaining < len(pcm) {
		pcm = pcm[:remaining]
	}
	d.buf = append(d.buf, pcm...)
}

// Close writes the accumulated buffer as a WAV file. Safe to call once;
// subsequent calls are no-ops.
func (d *Dumper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if len(d.buf) == 0 {
		return nil
	}

	f, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("wavdump: create %s: %w", d.path, err)
	}
	defer f.Close()

	dataLen := uint32(len(d.buf))
	byteRate := sampleRate * numChannels * (bitsPerSample / 8)
	blockAlign := numChannels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	if _, err := f.Write(header); err != nil {
		return err
	}
	_, err = f.Write(d.buf)
	return err
}
