// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubServer blocks in ListenAndServe until Shutdown, unless listenErr is set.
type stubServer struct {
	listenErr   error
	shutdownErr error

	once      sync.Once
	stop      chan struct{}
	listening atomic.Bool
	shutdowns atomic.Int32
}

func newStubServer() *stubServer {
	return &stubServer{stop: make(chan struct{})}
}

func (s *stubServer) ListenAndServe() error {
	s.listening.Store(true)
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(context.Context) error {
	s.shutdowns.Add(1)
	s.once.Do(func() { close(s.stop) })
	return s.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newStubServer()
	svc := NewHTTPServerService(srv, ":0", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	eventually(t, srv.listening.Load)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("Shutdown called %d times, want 1", srv.shutdowns.Load())
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	srv := newStubServer()
	srv.listenErr = &net.OpError{Op: "listen", Err: errors.New("address already in use")}

	err := NewHTTPServerService(srv, ":9464", time.Second).Serve(context.Background())
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Errorf("Serve() = %v, want wrapped listen error", err)
	}
}

func TestHTTPServerServiceShutdownError(t *testing.T) {
	srv := newStubServer()
	srv.shutdownErr = errors.New("deadline exceeded")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewHTTPServerService(srv, ":0", time.Second).Serve(ctx) }()
	eventually(t, srv.listening.Load)
	cancel()

	if err := <-done; err == nil || errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want shutdown error", err)
	}
}

func TestHTTPServerServiceRealServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewHTTPServerService(srv, addr, time.Second).Serve(ctx) }()

	eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	})
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
}
