// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// countingService runs until canceled, optionally failing its first runs.
type countingService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTreeDefaults(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{})
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}

	custom := NewTree(quietLogger(), TreeConfig{FailureBackoff: time.Second})
	if custom.config.FailureBackoff != time.Second {
		t.Errorf("FailureBackoff = %v, want 1s", custom.config.FailureBackoff)
	}
	if custom.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %v, want default 5", custom.config.FailureThreshold)
	}
}

func TestTreeRunsBothLayers(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	syncSvc := &countingService{name: "sync"}
	opsSvc := &countingService{name: "ops"}
	tree.AddSyncService(syncSvc)
	tree.AddOpsService(opsSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return syncSvc.starts.Load() >= 1 && opsSvc.starts.Load() >= 1 })
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeRestartsFailingService(t *testing.T) {
	tree := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	failing := &countingService{name: "flaky", failures: 2}
	stable := &countingService{name: "stable"}
	tree.AddSyncService(failing)
	tree.AddOpsService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitFor(t, func() bool { return failing.starts.Load() >= 3 })
	if stable.starts.Load() != 1 {
		t.Errorf("stable service started %d times, want 1", stable.starts.Load())
	}
}
