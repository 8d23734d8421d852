// Package testutil holds deterministic helpers for tests and scenario runs.
package testutil

import (
	"fmt"
	"sync"
)

// NameSequence generates materialization names prefix_1, prefix_2, ... so
// that trees built without explicit names serialize identically across
// runs. It implements relation.NameGenerator.
//
// Safe for concurrent use.
type NameSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewNameSequence returns a sequence starting at 1. An empty prefix
// defaults to "m".
func NewNameSequence(prefix string) *NameSequence {
	if prefix == "" {
		prefix = "m"
	}
	return &NameSequence{prefix: prefix}
}

// Generate returns the next name.
func (s *NameSequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s_%d", s.prefix, s.seq)
}

// Current returns how many names have been generated.
func (s *NameSequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset restarts the sequence, so the next name ends in _1.
func (s *NameSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
