// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.Debug)
	assert.Equal(t, runtime.NumCPU(), cfg.Analysis.WorkerPoolSize)
	assert.Equal(t, 1000, cfg.Analysis.ChunkSize)
	assert.Equal(t, []string{"**/module-info.class", "**/package-info.class"}, cfg.Analysis.Exclude)
	assert.Empty(t, cfg.Security.AllowedRoots)
	assert.False(t, cfg.Snapshot.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestParse_UserFileOverlay(t *testing.T) {
	data := []byte(`
server:
  port: 9090
analysis:
  worker_pool_size: 3
  exclude: ["**/generated/**"]
security:
  allowed_roots: ["/srv/classes"]
logging:
  level: DEBUG
`)
	cfg, err := Parse(data, nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Analysis.WorkerPoolSize)
	assert.Equal(t, 1000, cfg.Analysis.ChunkSize)
	assert.Equal(t, []string{"**/generated/**"}, cfg.Analysis.Exclude)
	assert.Equal(t, []string{"/srv/classes"}, cfg.Security.AllowedRoots)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
}

func TestParse_EnvOverrides(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9090\n"), env(map[string]string{
		EnvWorkers:     "6",
		EnvChunkSize:   "250",
		EnvPort:        "7070",
		EnvSnapshotDir: "/var/lib/bytegraph",
		EnvLogLevel:    "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Analysis.WorkerPoolSize)
	assert.Equal(t, 250, cfg.Analysis.ChunkSize)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Snapshot.Enabled)
	assert.Equal(t, "/var/lib/bytegraph", cfg.Snapshot.Dir)
	assert.Equal(t, slog.LevelWarn, cfg.Logging.SlogLevel())
}

func TestParse_SilentSubstitution(t *testing.T) {
	cfg, err := Parse([]byte("analysis:\n  worker_pool_size: -4\n  chunk_size: 0\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Analysis.WorkerPoolSize)
	assert.Equal(t, DefaultChunkSize, cfg.Analysis.ChunkSize)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		env  map[string]string
	}{
		{"bad log level", "logging:\n  level: verbose\n", nil},
		{"bad format", "logging:\n  format: xml\n", nil},
		{"port out of range", "server:\n  port: 70000\n", nil},
		{"empty allowed root", "security:\n  allowed_roots: [\"\"]\n", nil},
		{"malformed yaml", "server: [", nil},
		{"non-numeric env", "", map[string]string{EnvWorkers: "many"}},
		{"bad env level", "", map[string]string{EnvLogLevel: "loud"}},
		{"unknown exporter", "tracing:\n  exporter: zipkin\n", nil},
		{"otlp without endpoint", "tracing:\n  exporter: otlp\n", nil},
		{"negative analyze rate", "server:\n  analyze_rate: -1\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bytegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracing:\n  enabled: true\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, LoggingConfig{Level: tt.level}.SlogLevel())
		})
	}
}
