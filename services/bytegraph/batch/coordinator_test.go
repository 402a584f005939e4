// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile/classfiletest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func serviceClass(i int) []byte {
	c := classfiletest.New(fmt.Sprintf("com/x/Service%d", i)).
		Annotate("Lorg/springframework/stereotype/Service;")
	c.Method(classfile.AccPublic, "run", "()V").
		Line(10 + i).
		Invoke(classfile.OpInvokeStatic, "com/x/Util", "help", "()V").
		Op(classfile.OpReturn)
	return c.Bytes()
}

func sources(good, corrupt int) []Source {
	out := make([]Source, 0, good+corrupt)
	for i := 0; i < good; i++ {
		out = append(out, Source{Path: fmt.Sprintf("Service%d.class", i), Data: serviceClass(i)})
	}
	for i := 0; i < corrupt; i++ {
		out = append(out, Source{Path: fmt.Sprintf("Broken%d.class", i), Data: []byte{0xCA, 0xFE, 0xBA}})
	}
	return out
}

func TestNewCoordinator_Defaults(t *testing.T) {
	c := NewCoordinator(WithWorkerCount(0), WithChunkSize(-1))
	opts := c.Options()
	assert.Positive(t, opts.WorkerCount)
	assert.Equal(t, DefaultChunkSize, opts.ChunkSize)
	assert.NotNil(t, opts.Registry)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Loader)
}

func TestCoordinator_Analyze(t *testing.T) {
	c := NewCoordinator(WithWorkerCount(4))
	res, err := c.Analyze(context.Background(), sources(5, 0))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Empty(t, res.FileErrors)
	assert.False(t, res.Incomplete)
	assert.Equal(t, 5, res.Stats.Classes)
	assert.Equal(t, 5, res.Stats.Methods)
	assert.Equal(t, 5, res.Stats.Calls)
	assert.Len(t, res.Hashes, 5)
	assert.Equal(t, Hash(serviceClass(0)), res.Hashes["Service0.class"])
}

func TestCoordinator_PartialFailure(t *testing.T) {
	c := NewCoordinator(WithWorkerCount(3))
	res, err := c.Analyze(context.Background(), sources(6, 2))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.FileErrors, 2)
	failed := map[string]bool{}
	for _, fe := range res.FileErrors {
		failed[fe.Source] = true
		assert.NotZero(t, fe.Hash)
		assert.Error(t, fe.Err)
	}
	assert.True(t, failed["Broken0.class"])
	assert.True(t, failed["Broken1.class"])
	assert.Equal(t, 6, res.Stats.Classes)
	assert.NotContains(t, res.Hashes, "Broken0.class")
}

func TestCoordinator_NilRegistry(t *testing.T) {
	c := NewCoordinator(WithRegistry(nil))

	_, err := c.Analyze(context.Background(), sources(1, 0))
	assert.ErrorIs(t, err, ErrNilRegistry)

	_, err = c.AnalyzeChunked(context.Background(), sources(1, 0), func(ChunkEvent) error { return nil })
	assert.ErrorIs(t, err, ErrNilRegistry)
}

func TestCoordinator_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCoordinator().Analyze(ctx, sources(2, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_CancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loads atomic.Int32
	loader := func(_ context.Context, path string) ([]byte, error) {
		loads.Add(1)
		cancel()
		return serviceClass(int(loads.Load())), nil
	}

	srcs := make([]Source, 10)
	for i := range srcs {
		srcs[i] = Source{Path: fmt.Sprintf("Lazy%d.class", i)}
	}

	c := NewCoordinator(WithWorkerCount(1), WithSourceLoader(loader))
	res, err := c.Analyze(ctx, srcs)
	require.NoError(t, err)

	assert.True(t, res.Incomplete)
	assert.Less(t, res.Succeeded+res.Failed, len(srcs))
	assert.Equal(t, int(loads.Load()), res.Succeeded)
}

func TestCoordinator_CancelWhileWaitingForWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var loads atomic.Int32
	loader := func(_ context.Context, path string) ([]byte, error) {
		if loads.Add(1) == 1 {
			close(started)
			<-release
		}
		return serviceClass(0), nil
	}

	srcs := []Source{{Path: "First.class"}, {Path: "Second.class"}, {Path: "Third.class"}}
	c := NewCoordinator(WithWorkerCount(1), WithSourceLoader(loader))

	done := make(chan *Result, 1)
	go func() {
		res, err := c.Analyze(ctx, srcs)
		assert.NoError(t, err)
		done <- res
	}()

	<-started
	cancel()
	close(release)
	res := <-done

	require.NotNil(t, res)
	assert.True(t, res.Incomplete)
	assert.Equal(t, int32(1), loads.Load(), "no file starts after cancellation")
	assert.Equal(t, 1, res.Succeeded)
}

func TestCoordinator_SourceLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Service0.class")
	require.NoError(t, os.WriteFile(path, serviceClass(0), 0o600))

	srcs := []Source{{Path: path}, {Path: filepath.Join(dir, "Missing.class")}}
	res, err := NewCoordinator().Analyze(context.Background(), srcs)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.FileErrors, 1)
	assert.Zero(t, res.FileErrors[0].Hash)
	assert.ErrorIs(t, res.FileErrors[0], os.ErrNotExist)
}

func TestCoordinator_AnalyzeChunked(t *testing.T) {
	c := NewCoordinator(WithWorkerCount(2), WithChunkSize(2))

	var events []ChunkEvent
	summary, err := c.AnalyzeChunked(context.Background(), sources(4, 1), func(ev ChunkEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	for i, ev := range events[:3] {
		assert.False(t, ev.Complete)
		assert.Equal(t, i, ev.ChunkIndex)
		assert.Equal(t, 5, ev.TotalCount)
	}
	assert.Len(t, events[0].Classes, 2)
	assert.Len(t, events[1].Classes, 2)
	assert.Empty(t, events[2].Classes)
	assert.Equal(t, 2, events[0].ProcessedCount)
	assert.InDelta(t, 40.0, events[0].ProgressPercent, 0.001)
	assert.Equal(t, 1, events[2].FailedCount)
	assert.Equal(t, 4, events[2].CumulativeStats.Classes)

	last := events[3]
	assert.True(t, last.Complete)
	assert.InDelta(t, 100.0, last.ProgressPercent, 0.001)
	assert.Equal(t, 5, last.ProcessedCount)

	assert.Equal(t, 3, summary.Chunks)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Hashes, 4)
	assert.False(t, summary.Incomplete)

	cls := events[0].Classes[0]
	require.Len(t, cls.Methods, 1)
	assert.Equal(t, "com.x.Util.help()", cls.Methods[0].Calls[0].Target)
}

func TestCoordinator_AnalyzeChunked_Empty(t *testing.T) {
	var events []ChunkEvent
	summary, err := NewCoordinator().AnalyzeChunked(context.Background(), nil, func(ev ChunkEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Complete)
	assert.InDelta(t, 100.0, events[0].ProgressPercent, 0.001)
	assert.Zero(t, summary.Chunks)
}

func TestCoordinator_AnalyzeChunked_EmitError(t *testing.T) {
	errClosed := errors.New("client gone")
	calls := 0
	summary, err := NewCoordinator(WithChunkSize(1)).AnalyzeChunked(context.Background(), sources(3, 0), func(ChunkEvent) error {
		calls++
		return errClosed
	})
	assert.ErrorIs(t, err, errClosed)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, summary.Chunks)
}

func TestCoordinator_Spans(t *testing.T) {
	exporter := setupTestTracer(t)

	_, err := NewCoordinator(WithChunkSize(2)).AnalyzeChunked(context.Background(), sources(3, 0), func(ChunkEvent) error { return nil })
	require.NoError(t, err)

	names := map[string]int{}
	for _, s := range exporter.GetSpans() {
		names[s.Name]++
	}
	assert.Equal(t, 1, names["batch.AnalyzeChunked"])
	assert.Equal(t, 2, names["batch.chunk"])
}

func TestCoordinator_ConcurrentRuns(t *testing.T) {
	c := NewCoordinator(WithWorkerCount(8))
	srcs := sources(40, 5)

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			res, err := c.Analyze(context.Background(), srcs)
			if err == nil && (res.Succeeded != 40 || res.Failed != 5) {
				err = fmt.Errorf("got %d/%d", res.Succeeded, res.Failed)
			}
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "aggregating", StateAggregating.String())
	assert.Equal(t, "complete", StateComplete.String())
	assert.Equal(t, "unknown", State(99).String())
}
