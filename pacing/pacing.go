// Package pacing produces request delays that avoid a mechanically uniform
// cadence. Delays are drawn from a three-tier mixture: mostly fast, with
// occasional pauses and rare long rests to break up the interval signature.
package pacing

import (
	"math/rand"
	"sync"
	"time"
)

const (
	fastMin = 200 * time.Millisecond
	fastMax = 600 * time.Millisecond

	pauseMin = 1000 * time.Millisecond
	pauseMax = 1600 * time.Millisecond

	restMin = 4 * time.Second
	restMax = 5 * time.Second

	tagMin = 100 * time.Millisecond
	tagMax = 300 * time.Millisecond

	fastProb  = 0.90
	pauseProb = 0.09
)

// Sampler draws delays from the mixture. Each call samples independently;
// there is no state beyond the random source.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a sampler seeded from the clock.
func New() *Sampler {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource returns a sampler over a caller-provided source.
func NewWithSource(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// NextDelay samples the delay to apply before the next detail request.
func (s *Sampler) NextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.rng.Float64()
	switch {
	case p < fastProb:
		return s.uniformLocked(fastMin, fastMax)
	case p < fastProb+pauseProb:
		return s.uniformLocked(pauseMin, pauseMax)
	default:
		return s.uniformLocked(restMin, restMax)
	}
}

// TagDelay samples the short delay applied before the tag API call so the
// two requests per item do not land back to back.
func (s *Sampler) TagDelay() time.Duration {
	return s.Uniform(tagMin, tagMax)
}

// Uniform samples uniformly from [min, max].
func (s *Sampler) Uniform(min, max time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uniformLocked(min, max)
}

func (s *Sampler) uniformLocked(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}
