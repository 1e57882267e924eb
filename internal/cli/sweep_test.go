package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepCommandPurgesOldRecords(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC().AddDate(0, 0, -400))

	out, err := execute(t, "sweep", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Swept 1 idempotency records and 2 audit entries")

	out, err = execute(t, "audit", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No audit entries found.")
}

func TestSweepCommandKeepsFreshRecords(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC())

	out, err := execute(t, "--format", "json", "sweep", "--db", db)
	require.NoError(t, err)

	var raw struct {
		Status string      `json:"status"`
		Data   SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	assert.Equal(t, "ok", raw.Status)
	assert.Zero(t, raw.Data.IdempotencyPurged)
	assert.Zero(t, raw.Data.AuditPurged)
	assert.False(t, raw.Data.SweptAt.IsZero())
}

func TestSweepCommandHonoursConfig(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC().AddDate(0, 0, -400))
	cfgPath := filepath.Join(t.TempDir(), "erpgate.yaml")
	cfg := "database: " + db + "\naudit_retention_days: 0\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := execute(t, "--config", cfgPath, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Swept 1 idempotency records and 0 audit entries")
}

func TestSweepCommandWritesMetrics(t *testing.T) {
	db := seedDatabase(t, time.Now().UTC().AddDate(0, 0, -400))
	metricsPath := filepath.Join(t.TempDir(), "erpgate.prom")

	_, err := execute(t, "sweep", "--db", db, "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `erpgate_swept_records_total{kind="audit"} 2`)
	assert.Contains(t, string(data), `erpgate_swept_records_total{kind="idempotency"} 1`)
}

func TestSweepCommandMissingDatabase(t *testing.T) {
	_, err := execute(t, "sweep", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}
