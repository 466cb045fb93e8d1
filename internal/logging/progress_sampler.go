package logging

import "sync"

// ProgressSampler thins out progress logging. Each key (a job id) logs once
// per step of fractional progress; the last bucket is remembered per key.
type ProgressSampler struct {
	step float64

	mu   sync.Mutex
	last map[string]int
}

// NewProgressSampler returns a sampler emitting every step of progress in
// [0,1]. A non-positive step means 0.1.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 || step > 1 {
		step = 0.1
	}
	return &ProgressSampler{step: step, last: make(map[string]int)}
}

// ShouldLog reports whether fraction reached a new bucket for key.
func (s *ProgressSampler) ShouldLog(key string, fraction float64) bool {
	if s == nil {
		return true
	}
	if fraction < 0 {
		return false
	}
	if fraction > 1 {
		fraction = 1
	}
	bucket := int(fraction / s.step)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen := s.last[key]
	if seen && bucket <= prev {
		return false
	}
	s.last[key] = bucket
	return true
}

// Forget drops the state kept for key.
func (s *ProgressSampler) Forget(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.last, key)
	s.mu.Unlock()
}
