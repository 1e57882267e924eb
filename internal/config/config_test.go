package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 365, cfg.AuditRetentionDays)
	assert.Equal(t, 200, cfg.ReasonMaxLength)
	assert.Equal(t, 0.10, cfg.PriceMaterialityThreshold)
	assert.Equal(t, 0.20, cfg.QuantityMaterialityThreshold)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "erpgate.yaml", `
database: /var/lib/erpgate/state.db
idempotency_ttl: 48h
audit_retention_days: 90
price_materiality_threshold: 0.05
advisor_timeout: 2s
metrics_file: /var/lib/node_exporter/erpgate.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/erpgate/state.db", cfg.Database)
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 90, cfg.AuditRetentionDays)
	assert.Equal(t, 0.05, cfg.PriceMaterialityThreshold)
	assert.Equal(t, 0.20, cfg.QuantityMaterialityThreshold, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.AdvisorTimeout)
	assert.Equal(t, "/var/lib/node_exporter/erpgate.prom", cfg.MetricsFile)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "databse: typo.db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "erpgate.yaml", "database: file.db\nidempotency_ttl: 1h\n")
	t.Setenv("ERPGATE_DATABASE", "env.db")
	t.Setenv("ERPGATE_IDEMPOTENCY_TTL", "0s")
	t.Setenv("ERPGATE_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("ERPGATE_QUANTITY_MATERIALITY_THRESHOLD", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.Database)
	assert.Zero(t, cfg.IdempotencyTTL)
	assert.Equal(t, 30, cfg.AuditRetentionDays)
	assert.Equal(t, 0.5, cfg.QuantityMaterialityThreshold)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("ERPGATE_REASON_MAX_LENGTH", "lots")
	t.Setenv("ERPGATE_ADVISOR_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERPGATE_REASON_MAX_LENGTH")
	assert.Contains(t, err.Error(), "ERPGATE_ADVISOR_TIMEOUT")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database", func(c *Config) { c.Database = "" }},
		{"zero price threshold", func(c *Config) { c.PriceMaterialityThreshold = 0 }},
		{"negative quantity threshold", func(c *Config) { c.QuantityMaterialityThreshold = -0.1 }},
		{"negative reason length", func(c *Config) { c.ReasonMaxLength = -1 }},
		{"negative advisor timeout", func(c *Config) { c.AdvisorTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AllowsDisabledRetention(t *testing.T) {
	cfg := Default()
	cfg.IdempotencyTTL = 0
	cfg.AuditRetentionDays = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "ERPGATE_DATABASE=dotenv.db\nERPGATE_METRICS_FILE=from-dotenv.prom\n")
	t.Setenv("ERPGATE_DATABASE", "already-set.db")
	t.Setenv("ERPGATE_METRICS_FILE", "")
	os.Unsetenv("ERPGATE_METRICS_FILE")

	require.NoError(t, LoadEnvFile(path))
	t.Cleanup(func() { os.Unsetenv("ERPGATE_METRICS_FILE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "already-set.db", cfg.Database, "process environment wins")
	assert.Equal(t, "from-dotenv.prom", cfg.MetricsFile)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
}

func TestApplyEnv_Lookup(t *testing.T) {
	env := map[string]string{"ERPGATE_PRICE_MATERIALITY_THRESHOLD": "0.25"}
	cfg := Default()

	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.PriceMaterialityThreshold)
	assert.Equal(t, "erpgate.db", cfg.Database)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.StoreOptions(), 2)
	assert.Len(t, cfg.SweeperOptions(), 2)
}
