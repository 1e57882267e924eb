package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAudit(t *testing.T, out string) AuditResult {
	t.Helper()
	var raw struct {
		Status string      `json:"status"`
		Data   AuditResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	require.Equal(t, "ok", raw.Status)
	return raw.Data
}

func TestAuditCommandText(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	out, err := execute(t, "audit", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] ")
	assert.Contains(t, out, "date_change.applied PO-1/10 by planner@example.com")
	assert.Contains(t, out, "key: move-po1")
	assert.Contains(t, out, "reason: vendor delay")
	assert.Contains(t, out, "[2] ")
	assert.Contains(t, out, "price_change.applied PO-2/1 by buyer@example.com")
	assert.Contains(t, out, `previous: {"unit_price":40}`)
	assert.Contains(t, out, `next: {"unit_price":42}`)
	assert.Contains(t, out, "2 entries")
	assert.NotContains(t, out, "NEEDS REVIEW")
}

func TestAuditCommandFilters(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	tests := []struct {
		name    string
		args    []string
		actions []string
	}{
		{"all", nil, []string{"date_change.applied", "price_change.applied"}},
		{"entity", []string{"--entity", "PO-2"}, []string{"price_change.applied"}},
		{"entity and line", []string{"--entity", "PO-1", "--line", "10"}, []string{"date_change.applied"}},
		{"wrong line", []string{"--entity", "PO-1", "--line", "20"}, nil},
		{"correlation", []string{"--correlation", "corr-2"}, []string{"price_change.applied"}},
		{"key", []string{"--key", "move-po1"}, []string{"date_change.applied"}},
		{"needs review", []string{"--needs-review"}, nil},
		{"limit", []string{"--limit", "1"}, []string{"date_change.applied"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "audit", "--db", db}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)

			result := decodeAudit(t, out)
			var actions []string
			for _, e := range result.Entries {
				actions = append(actions, e.Action)
			}
			assert.Equal(t, tt.actions, actions)
			assert.Equal(t, len(tt.actions), result.Count)
		})
	}
}

func TestAuditCommandJSONEntry(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	out, err := execute(t, "--format", "json", "audit", "--db", db, "--key", "move-po1")
	require.NoError(t, err)

	result := decodeAudit(t, out)
	require.Len(t, result.Entries, 1)
	e := result.Entries[0]
	assert.Equal(t, int64(1), e.ID)
	assert.Equal(t, "planner@example.com", e.Actor)
	assert.Equal(t, "PO-1", e.Target.EntityID)
	require.NotNil(t, e.Target.SubIndex)
	assert.Equal(t, 10, *e.Target.SubIndex)
	assert.Equal(t, "corr-1", e.CorrelationID)
	assert.Equal(t, "vendor delay", e.Reason)
	assert.Contains(t, e.Previous, "promised_date")
	assert.Contains(t, e.Next, "promised_date")
}

func TestAuditCommandEmpty(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	out, err := execute(t, "audit", "--db", db, "--entity", "PO-404")
	require.NoError(t, err)
	assert.Contains(t, out, "No audit entries found.")

	out, err = execute(t, "--format", "json", "audit", "--db", db, "--entity", "PO-404")
	require.NoError(t, err)
	assert.Contains(t, out, `"entries": []`)
}

func TestAuditCommandErrors(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"line without entity", []string{"audit", "--db", db, "--line", "10"}, "--line requires --entity"},
		{"negative limit", []string{"audit", "--db", db, "--limit", "-1"}, "--limit must not be negative"},
		{"missing database", []string{"audit", "--db", filepath.Join(t.TempDir(), "missing.db")}, "database not found"},
		{"positional args", []string{"audit", "--db", db, "extra"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
