// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the bytegraph configuration.
//
// Values are layered: the embedded bytegraph.yaml, then an optional user
// file, then BYTEGRAPH_* environment variables. The merged result is
// normalized and validated before use.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed bytegraph.yaml
var defaultConfigYAML []byte

// MaxYAMLFileSize bounds a user configuration file.
const MaxYAMLFileSize = 1 << 20

// DefaultChunkSize replaces a non-positive analysis.chunk_size.
const DefaultChunkSize = 1000

// Environment overrides.
const (
	EnvWorkers     = "BYTEGRAPH_WORKERS"
	EnvChunkSize   = "BYTEGRAPH_CHUNK_SIZE"
	EnvPort        = "BYTEGRAPH_PORT"
	EnvSnapshotDir = "BYTEGRAPH_SNAPSHOT_DIR"
	EnvLogLevel    = "BYTEGRAPH_LOG_LEVEL"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the complete bytegraph configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Security SecurityConfig `yaml:"security"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// Debug runs gin in debug mode.
	Debug bool `yaml:"debug"`

	// AnalyzeRate limits analyze requests per second. 0 disables the limit.
	AnalyzeRate  float64 `yaml:"analyze_rate" validate:"min=0"`
	AnalyzeBurst int     `yaml:"analyze_burst" validate:"min=0"`
}

// AnalysisConfig configures the batch coordinator.
type AnalysisConfig struct {
	// WorkerPoolSize is the number of files analyzed in parallel.
	// Values <= 0 are replaced by the CPU count.
	WorkerPoolSize int `yaml:"worker_pool_size" validate:"min=1"`

	// ChunkSize is the number of files per streamed chunk.
	// Values <= 0 are replaced by DefaultChunkSize.
	ChunkSize int `yaml:"chunk_size" validate:"min=1"`

	// Exclude lists doublestar patterns skipped in directory modes.
	Exclude []string `yaml:"exclude" validate:"dive,required"`
}

// SecurityConfig restricts which paths requests may name.
type SecurityConfig struct {
	AllowedRoots []string `yaml:"allowed_roots" validate:"dive,required"`
}

// SnapshotConfig configures result persistence.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is the badger directory. Empty keeps snapshots in memory.
	Dir string `yaml:"dir"`
}

// LoggingConfig configures the default slog logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is auto (JSON unless the log output is a terminal), text or json.
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is stdout (spans written to stderr) or otlp.
	Exporter string `yaml:"exporter" validate:"oneof=stdout otlp"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	Insecure bool   `yaml:"insecure"`
}

// SlogLevel returns the configured level as a slog.Level.
func (c LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// =============================================================================
// Loading
// =============================================================================

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded defaults with environment overrides applied.
func Default() (*Config, error) {
	return Parse(nil, os.LookupEnv)
}

// LoadFile loads path over the embedded defaults. An empty path loads the
// defaults only.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadFile: %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse layers data and the environment over the embedded defaults.
//
// Description:
//
//	Keys absent from data keep their default. Lists in data replace the
//	default list. After environment overrides, non-positive worker and
//	chunk sizes are silently replaced and the result is validated.
//
// Inputs:
//
//	data - User YAML. May be empty.
//	lookup - Environment lookup. Nil disables environment overrides.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if parsing, an override, or validation fails.
func Parse(data []byte, lookup LookupEnv) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("Parse: embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("Parse: parsing YAML: %w", err)
		}
	}
	if lookup != nil {
		if err := applyEnv(&cfg, lookup); err != nil {
			return nil, fmt.Errorf("Parse: %w", err)
		}
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Analysis.WorkerPoolSize <= 0 {
		cfg.Analysis.WorkerPoolSize = runtime.NumCPU()
	}
	if cfg.Analysis.ChunkSize <= 0 {
		cfg.Analysis.ChunkSize = DefaultChunkSize
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("Parse: validation: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup LookupEnv) error {
	ints := []struct {
		key string
		dst *int
	}{
		{EnvWorkers, &cfg.Analysis.WorkerPoolSize},
		{EnvChunkSize, &cfg.Analysis.ChunkSize},
		{EnvPort, &cfg.Server.Port},
	}
	for _, o := range ints {
		v, ok := lookup(o.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		*o.dst = n
	}

	if v, ok := lookup(EnvSnapshotDir); ok && v != "" {
		cfg.Snapshot.Dir = v
		cfg.Snapshot.Enabled = true
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
