package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Model         ModelConfig
	Pipeline      PipelineConfig
	Catalog       CatalogConfig
	Eval          EvalConfig
	RunLog        RunLogConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type ModelConfig struct {
	BaseURL     string
	Tag         string
	Temperature float64
	Timeout     time.Duration
}

type PipelineConfig struct {
	MaxRepairs     int
	RowLimit       int
	ExplainEnabled bool
	ExecTimeout    time.Duration
}

type CatalogConfig struct {
	SampleRows   int
	StatsColumns int
}

type EvalConfig struct {
	Workers     int
	ParquetPath string
}

type RunLogConfig struct {
	Path string
}

type ObservabilityConfig struct {
	LogLevel    slog.Level
	LogJSON     bool
	MetricsPath string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("DUCKASK_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid DUCKASK_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "DUCKASK_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKASK_MODEL_BASE_URL", &cfg.Model.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKASK_MODEL_TAG", &cfg.Model.Tag); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "DUCKASK_MODEL_TEMPERATURE", &cfg.Model.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKASK_MODEL_TIMEOUT", &cfg.Model.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKASK_MAX_REPAIRS", &cfg.Pipeline.MaxRepairs); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKASK_ROW_LIMIT", &cfg.Pipeline.RowLimit); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKASK_EXPLAIN_ENABLED", &cfg.Pipeline.ExplainEnabled); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "DUCKASK_EXEC_TIMEOUT", &cfg.Pipeline.ExecTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKASK_SCHEMA_SAMPLE_ROWS", &cfg.Catalog.SampleRows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKASK_SCHEMA_STATS_COLUMNS", &cfg.Catalog.StatsColumns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "DUCKASK_EVAL_WORKERS", &cfg.Eval.Workers); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKASK_EVAL_PARQUET_PATH", &cfg.Eval.ParquetPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKASK_RUNLOG_PATH", &cfg.RunLog.Path); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "DUCKASK_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "DUCKASK_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "DUCKASK_METRICS_PATH", &cfg.Observability.MetricsPath); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Model.BaseURL == "" {
		return Config{}, fmt.Errorf("model base URL is required")
	}
	if cfg.Model.Tag == "" {
		return Config{}, fmt.Errorf("model tag is required")
	}
	if cfg.Pipeline.MaxRepairs < 0 {
		return Config{}, fmt.Errorf("DUCKASK_MAX_REPAIRS must be >= 0")
	}
	if cfg.Eval.Workers < 1 {
		return Config{}, fmt.Errorf("DUCKASK_EVAL_WORKERS must be >= 1")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "duckask"},
		Model: ModelConfig{
			BaseURL:     "http://localhost:11434",
			Tag:         "llama3:8b-instruct-q4_K_M",
			Temperature: 0.1,
			Timeout:     60 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxRepairs:     1,
			RowLimit:       50,
			ExplainEnabled: true,
			ExecTimeout:    30 * time.Second,
		},
		Catalog: CatalogConfig{
			SampleRows:   5,
			StatsColumns: 5,
		},
		Eval: EvalConfig{
			Workers: 1,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Pipeline.ExplainEnabled = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
