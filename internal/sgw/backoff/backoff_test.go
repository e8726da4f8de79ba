package backoff

import "testing"

func TestWaitGrowsExponentiallyAndCaps(t *testing.T) {
	p := Policy{Base: 500 * 1e6, Max: 8 * 1e9, Jitter: 200 * 1e6} // ns: 500ms, 8s, 200ms

	cases := []struct {
		attempt int
		min, max int64
	}{
		{0, 500e6, 700e6},
		{1, 1000e6, 1200e6},
		{2, 2000e6, 2200e6},
		{10, 8000e6, 8200e6}, // capped
	}
	for _, c := range cases {
		got := int64(p.Wait(c.attempt))
		if got < c.min || got > c.max {
			t.Errorf("attempt %d: wait = %d, want in [%d, %d]", c.attempt, got, c.min, c.max)
		}
	}
}
