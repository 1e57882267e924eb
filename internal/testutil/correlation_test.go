package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialGenerator_Numbers(t *testing.T) {
	gen := NewSequentialGenerator("")

	assert.Equal(t, "corr-0001", gen.Generate())
	assert.Equal(t, "corr-0002", gen.Generate())
}

func TestSequentialGenerator_Prefix(t *testing.T) {
	gen := NewSequentialGenerator("scenario")

	assert.Equal(t, "scenario-0001", gen.Generate())
}

func TestSequentialGenerator_Reset(t *testing.T) {
	gen := NewSequentialGenerator("")
	gen.Generate()
	gen.Generate()

	gen.Reset()

	assert.Equal(t, "corr-0001", gen.Generate())
}

func TestSequentialGenerator_UniqueUnderConcurrency(t *testing.T) {
	gen := NewSequentialGenerator("")
	const n = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}
