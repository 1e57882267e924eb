package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/erpgate/internal/ir"
)

// testClock is a settable time source for expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// createTestStore opens a store in a fresh temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createClockedStore opens a store driven by a test clock.
func createClockedStore(t *testing.T, opts ...Option) (*Store, *testClock) {
	t.Helper()
	clock := newTestClock()
	s := createTestStore(t, append([]Option{WithClock(clock.Now)}, opts...)...)
	return s, clock
}

// createTestEntry builds a price change entry with the required fields set.
func createTestEntry(correlationID string) ir.AuditEntry {
	return ir.AuditEntry{
		Actor:         "buyer@example.com",
		Action:        ir.Action(ir.OpPriceChange, ir.LifecycleApplied),
		Target:        ir.LineTarget("PO-1", 10),
		Previous:      ir.IRObject{"unit_price": ir.IRInt(100)},
		Next:          ir.IRObject{"unit_price": ir.IRInt(115)},
		Reason:        "supplier increase",
		CorrelationID: correlationID,
	}
}
