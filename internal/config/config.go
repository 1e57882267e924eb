// Package config loads erpgate settings.
//
// Sources, later ones winning:
//
//  1. built-in defaults (Default)
//  2. a YAML file; unknown keys are an error
//  3. ERPGATE_* environment variables, optionally seeded from a .env file
//
// The merged result is checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/erpgate/internal/engine"
	"github.com/roach88/erpgate/internal/gate"
	"github.com/roach88/erpgate/internal/store"
	"github.com/roach88/erpgate/internal/sweeper"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ERPGATE_"

// Config holds every tunable of the pipeline.
type Config struct {
	Database                     string        `yaml:"database"`
	IdempotencyTTL               time.Duration `yaml:"idempotency_ttl"`
	AuditRetentionDays           int           `yaml:"audit_retention_days"`
	ReasonMaxLength              int           `yaml:"reason_max_length"`
	PriceMaterialityThreshold    float64       `yaml:"price_materiality_threshold"`
	QuantityMaterialityThreshold float64       `yaml:"quantity_materiality_threshold"`
	AdvisorTimeout               time.Duration `yaml:"advisor_timeout"`
	MetricsFile                  string        `yaml:"metrics_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:                     "erpgate.db",
		IdempotencyTTL:               store.DefaultIdempotencyTTL,
		AuditRetentionDays:           sweeper.DefaultAuditRetentionDays,
		ReasonMaxLength:              store.DefaultReasonLimit,
		PriceMaterialityThreshold:    gate.DefaultPriceThreshold,
		QuantityMaterialityThreshold: gate.DefaultQuantityThreshold,
		AdvisorTimeout:               5 * time.Second,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFile adds the variables in a .env file to the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides cfg from ERPGATE_* variables found by lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	parse := func(name string, set func(string) error) {
		if v, ok := lookup(EnvPrefix + name); ok {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			}
		}
	}
	duration := func(dst *time.Duration) func(string) error {
		return func(v string) (err error) {
			*dst, err = time.ParseDuration(v)
			return err
		}
	}
	integer := func(dst *int) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.Atoi(v)
			return err
		}
	}
	float := func(dst *float64) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.ParseFloat(v, 64)
			return err
		}
	}

	str("DATABASE", &cfg.Database)
	str("METRICS_FILE", &cfg.MetricsFile)
	parse("IDEMPOTENCY_TTL", duration(&cfg.IdempotencyTTL))
	parse("ADVISOR_TIMEOUT", duration(&cfg.AdvisorTimeout))
	parse("AUDIT_RETENTION_DAYS", integer(&cfg.AuditRetentionDays))
	parse("REASON_MAX_LENGTH", integer(&cfg.ReasonMaxLength))
	parse("PRICE_MATERIALITY_THRESHOLD", float(&cfg.PriceMaterialityThreshold))
	parse("QUANTITY_MATERIALITY_THRESHOLD", float(&cfg.QuantityMaterialityThreshold))

	if len(errs) > 0 {
		return fmt.Errorf("environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c.document()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) document() map[string]any {
	return map[string]any{
		"database":                       c.Database,
		"idempotency_ttl":                c.IdempotencyTTL.Seconds(),
		"audit_retention_days":           c.AuditRetentionDays,
		"reason_max_length":              c.ReasonMaxLength,
		"price_materiality_threshold":    c.PriceMaterialityThreshold,
		"quantity_materiality_threshold": c.QuantityMaterialityThreshold,
		"advisor_timeout":                c.AdvisorTimeout.Seconds(),
		"metrics_file":                   c.MetricsFile,
	}
}

// StoreOptions returns the store settings carried by c.
func (c Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithIdempotencyTTL(c.IdempotencyTTL),
		store.WithReasonLimit(c.ReasonMaxLength),
	}
}

// WorkflowOptions returns the materiality thresholds and advisor timeout
// carried by c.
func (c Config) WorkflowOptions() []engine.Option {
	return []engine.Option{
		engine.WithThresholds(c.PriceMaterialityThreshold, c.QuantityMaterialityThreshold),
		engine.WithAdvisorTimeout(c.AdvisorTimeout),
	}
}

// SweeperOptions returns the retention settings carried by c.
func (c Config) SweeperOptions() []sweeper.Option {
	return []sweeper.Option{
		sweeper.WithIdempotencyTTL(c.IdempotencyTTL),
		sweeper.WithAuditRetentionDays(c.AuditRetentionDays),
	}
}
