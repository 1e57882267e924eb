package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates numbered correlation ids: "corr-0001",
// "corr-0002", ...
//
// This enables golden snapshot comparison: the same scenario produces the
// same ids on every run. Unlike engine.FixedGenerator it never runs out.
//
// Implements engine.CorrelationGenerator.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. If prefix is empty, "corr" is
// used.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "corr"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
