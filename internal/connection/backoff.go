package connection

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff computes reconnect delays: min(initial*2^attempt, max), then
// spread by +/- factor.
type backoff struct {
	initial time.Duration
	max     time.Duration
	factor  float64
	rand    func() float64
}

func newBackoff(cfg BackoffConfig) backoff {
	return backoff{
		initial: cfg.InitialDelay,
		max:     cfg.MaxDelay,
		factor:  cfg.RandomizationFactor,
		rand:    rand.Float64,
	}
}

// Duration returns the delay before retry number attempt (0-based).
func (b backoff) Duration(attempt int) time.Duration {
	if b.initial <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	d := float64(b.initial) * math.Pow(2, float64(attempt))
	if b.max > 0 && d > float64(b.max) {
		d = float64(b.max)
	}

	if b.factor > 0 {
		delta := b.factor * d
		d = d - delta + b.rand()*2*delta
	}

	return time.Duration(d)
}
