// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/bytegraph/services/bytegraph"
	"github.com/AleutianAI/bytegraph/services/bytegraph/batch"
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile/classfiletest"
	"github.com/AleutianAI/bytegraph/services/bytegraph/config"
	"github.com/AleutianAI/bytegraph/services/bytegraph/input"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
	"github.com/AleutianAI/bytegraph/services/bytegraph/snapshot"
	"github.com/AleutianAI/bytegraph/services/bytegraph/watch"
)

func writeRepository(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	c := classfiletest.New("com/x/repo/OrderRepository").
		Annotate("Lorg/springframework/stereotype/Repository;")
	c.Method(classfile.AccPublic, "save", "(Ljava/lang/Object;)V").
		Line(12).
		Op(classfile.OpReturn)

	p := filepath.Join(dir, "com", "x", "repo", "OrderRepository.class")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, c.Bytes(), 0o600))
	return dir
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bytegraph.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

// execute runs the CLI and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp()
	a.root.SetArgs(args)
	a.root.SetOut(&stdout)
	a.root.SetErr(&stderr)
	err := a.root.ExecuteContext(context.Background())
	a.close()
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeCmd(t *testing.T) {
	dir := writeRepository(t)

	stdout, _, err := execute(t, "analyze", dir)
	require.NoError(t, err)

	var resp bytegraph.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, input.ModeClassDir, resp.Mode)
	assert.Equal(t, 1, resp.Succeeded)
	require.Len(t, resp.Classes, 1)
	assert.Equal(t, "com.x.repo.OrderRepository", resp.Classes[0].FQN)
	assert.Empty(t, resp.AnalysisID)
}

func TestAnalyzeCmd_PackageRoot(t *testing.T) {
	dir := writeRepository(t)

	stdout, _, err := execute(t, "analyze", dir, "--mode", "package-root", "--package", "com.x.repo", "--pretty")
	require.NoError(t, err)
	assert.Contains(t, stdout, "\n  \"root\"")

	var resp bytegraph.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 1, resp.Stats.Classes)
}

func TestAnalyzeCmd_Errors(t *testing.T) {
	dir := writeRepository(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"unknown mode", []string{"analyze", dir, "--mode", "jar"}, input.ErrInvalidRequest},
		{"persist without snapshots", []string{"analyze", dir, "--persist"}, bytegraph.ErrSnapshotsDisabled},
		{"missing package", []string{"analyze", dir, "--mode", "package-root"}, input.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, _, err := execute(t, "analyze")
	assert.Error(t, err)
}

func TestAnalyzeCmd_Persist(t *testing.T) {
	dir := writeRepository(t)
	cfgPath := writeConfig(t, "snapshot:\n  enabled: true\nlogging:\n  level: debug\n")

	stdout, stderr, err := execute(t, "--config", cfgPath, "analyze", dir, "--persist", "--label", "ci")
	require.NoError(t, err)

	var resp bytegraph.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.NotEmpty(t, resp.AnalysisID)
	assert.Contains(t, stderr, "Snapshot store opened")
}

func TestConfigFlag_Invalid(t *testing.T) {
	cfgPath := writeConfig(t, "logging:\n  level: loud\n")
	_, _, err := execute(t, "--config", cfgPath, "version")
	assert.Error(t, err)

	_, _, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "bytegraph "+bytegraph.Version+"\n", stdout)
}

func TestNewRouter(t *testing.T) {
	svc, err := bytegraph.NewService(bytegraph.ServiceConfig{})
	require.NoError(t, err)
	router := newRouter(svc, config.ServerConfig{Port: 8080})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/bytegraph/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/bytegraph/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUseJSON(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, useJSON(&buf, "json"))
	assert.False(t, useJSON(&buf, "text"))
	assert.True(t, useJSON(&buf, "auto"))

	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, useJSON(f, "auto"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggingConfig{Level: "warn", Format: "text"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "k=v")
}

func TestSetupTracing(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := setupTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "stdout"}, &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "cli.test-span")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "cli.test-span")
}

func TestSetupTracing_OTLP(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// The gRPC exporter connects lazily, so setup succeeds without a collector.
	shutdown, err := setupTracing(context.Background(), config.TracingConfig{
		Enabled:  true,
		Exporter: "otlp",
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
	}, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestNewWatchLine(t *testing.T) {
	line := newWatchLine(watch.Update{Initial: true, AnalysisID: "abc"})
	assert.True(t, line.Skipped)
	assert.Equal(t, "abc", line.AnalysisID)

	line = newWatchLine(watch.Update{
		Changed: []string{"a", "b"},
		Removed: []string{"c"},
		Result:  &batch.Result{Succeeded: 2, Failed: 1, Stats: model.Stats{Classes: 2}},
		Diff:    &snapshot.Diff{Summary: snapshot.DiffSummary{TotalChanges: 3}},
	})
	assert.False(t, line.Skipped)
	assert.Equal(t, 2, line.Changed)
	assert.Equal(t, 1, line.Removed)
	assert.Equal(t, 1, line.Failed)
	assert.Equal(t, 2, line.Stats.Classes)
	require.NotNil(t, line.Diff)
	assert.Equal(t, 3, line.Diff.TotalChanges)
	assert.Nil(t, newWatchLine(watch.Update{}).Diff)
}

func TestSnapshotsCmd(t *testing.T) {
	dir := writeRepository(t)
	snapDir := filepath.Join(t.TempDir(), "snapshots")
	cfgPath := writeConfig(t, "snapshot:\n  enabled: true\n  dir: "+snapDir+"\n")

	stdout, _, err := execute(t, "--config", cfgPath, "snapshots", "list")
	require.NoError(t, err)
	assert.Equal(t, "No snapshots found.\n", stdout)

	analyze := func() string {
		out, _, err := execute(t, "--config", cfgPath, "analyze", dir, "--persist", "--label", "nightly")
		require.NoError(t, err)
		var resp bytegraph.AnalyzeResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.NotEmpty(t, resp.AnalysisID)
		return resp.AnalysisID
	}
	first := analyze()

	c := classfiletest.New("com/x/repo/InvoiceRepository").
		Annotate("Lorg/springframework/stereotype/Repository;")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "com", "x", "repo", "InvoiceRepository.class"), c.Bytes(), 0o600))
	second := analyze()

	stdout, _, err = execute(t, "--config", cfgPath, "snapshots", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, first)
	assert.Contains(t, stdout, second)
	assert.Contains(t, stdout, "nightly")

	stdout, _, err = execute(t, "--config", cfgPath, "snapshots", "diff", first, second)
	require.NoError(t, err)
	var diff snapshot.Diff
	require.NoError(t, json.Unmarshal([]byte(stdout), &diff))
	assert.Equal(t, []string{"com.x.repo.InvoiceRepository"}, diff.NodesAdded)

	stdout, _, err = execute(t, "--config", cfgPath, "snapshots", "search", second, "repository", "--type", "class")
	require.NoError(t, err)
	assert.Contains(t, stdout, "com.x.repo.InvoiceRepository")
	assert.Contains(t, stdout, "com.x.repo.OrderRepository")

	stdout, _, err = execute(t, "--config", cfgPath, "snapshots", "delete", first)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+first+"\n", stdout)

	_, _, err = execute(t, "--config", cfgPath, "snapshots", "diff", first, second)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestSnapshotsCmd_NoDir(t *testing.T) {
	_, _, err := execute(t, "snapshots", "list")
	assert.ErrorIs(t, err, errNoSnapshotDir)
}
