// Package backoff computes exponential reconnect delays with jitter
// for SgwSession's upstream streaming socket, per spec.md §4.4/§5/§8:
// base·2^k ≤ wait ≤ base·2^k + jitter, capped at a configured maximum.
package backoff

import (
	"math/rand"
	"time"
)

// Policy describes the exponential-with-jitter reconnect schedule.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// Wait returns the delay before reconnect attempt k (0-indexed):
// min(base * 2^k, max) + rand[0, jitter).
func (p Policy) Wait(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			d = p.Max
			break
		}
	}
	if d > p.Max {
		d = p.Max
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}
