// Copyright (c) 2025 TechEmpower and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package server owns the HTTP listening socket, the root request
// pipeline, and the graceful-then-forceful shutdown protocol.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/TechEmpower/tfb-status-sub003/internal/noop"
)

// Config holds the already-parsed listening configuration.
type Config struct {
	// Host to bind. Empty binds all interfaces.
	Host string `config:"host"`

	// Port to bind. Zero asks the operating system for an
	// ephemeral port; see [Server.Port].
	Port int `config:"port"`

	// TLS enables HTTPS when non-nil. HTTP/2 is negotiated via ALPN.
	TLS *TLSConfig `config:"tls"`

	// GracefulTimeout bounds how long Stop waits for in-flight
	// requests to finish naturally. Defaults to 10s.
	GracefulTimeout time.Duration `config:"graceful_shutdown_timeout"`

	// ForcefulTimeout bounds how long Stop waits for the listener
	// to wind down before severing connections. Defaults to 5s.
	ForcefulTimeout time.Duration `config:"forceful_shutdown_timeout"`
}

// TLSConfig points at PEM encoded key material.
type TLSConfig struct {
	CertFile string `config:"cert_file"`
	KeyFile  string `config:"key_file"`
}

const (
	defaultGracefulTimeout = 10 * time.Second
	defaultForcefulTimeout = 5 * time.Second
)

// Option represents configurable attributes of [Server].
type Option func(*Server)

// LogHandler configures the logging sink used by the server and its
// request pipeline.
func LogHandler(h slog.Handler) Option {
	return func(s *Server) {
		s.log = slog.New(h)
	}
}

// Listener allows you to supply the [net.Listener] directly instead
// of having one bound from [Config]. Intended for tests.
func Listener(ls net.Listener) Option {
	return func(s *Server) {
		s.ls = ls
	}
}

// ErrNotRunning is returned by [Server.Port] when the server has not
// been started.
var ErrNotRunning = errors.New("server is not running")

// Server manages the lifecycle of the HTTP listener around a handler.
// Start and Stop are idempotent and safe for concurrent use.
type Server struct {
	cfg      Config
	log      *slog.Logger
	pipeline *Pipeline
	listen   func(network, addr string) (net.Listener, error)

	mu      sync.Mutex
	running bool
	ls      net.Listener
	srv     *http.Server
	done    chan error
	stopped chan struct{}
}

// New initializes a [Server] which serves h behind a [Pipeline].
func New(h http.Handler, cfg Config, opts ...Option) *Server {
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.ForcefulTimeout <= 0 {
		cfg.ForcefulTimeout = defaultForcefulTimeout
	}

	s := &Server{
		cfg:    cfg,
		log:    slog.New(noop.LogHandler{}),
		listen: net.Listen,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pipeline = NewPipeline(h, s.log)
	return s
}

// Start binds the listener and begins serving in the background.
// Starting an already-running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ls := s.ls
	if ls == nil {
		var err error
		ls, err = s.listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
		if err != nil {
			return err
		}
	}

	if s.cfg.TLS != nil {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		if err != nil {
			ls.Close()
			return err
		}
		ls = tls.NewListener(ls, &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
		})
	}

	s.ls = ls
	s.srv = &http.Server{
		Handler: s.pipeline,
	}
	s.done = make(chan error, 1)
	s.stopped = make(chan struct{})

	// A previous Stop left the gate closed.
	s.pipeline.Open()

	go func(srv *http.Server, done chan error) {
		done <- srv.Serve(ls)
	}(s.srv, s.done)

	s.running = true
	s.log.LogAttrs(
		context.Background(),
		slog.LevelInfo,
		"started server",
		slog.String("addr", ls.Addr().String()),
	)
	return nil
}

// Port returns the port the server is listening on. When the
// configured port was zero, this is the ephemeral port assigned by
// the operating system. It fails with [ErrNotRunning] if the server
// has not been started.
func (s *Server) Port() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0, ErrNotRunning
	}

	addr, ok := s.ls.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("listener address is not a TCP address")
	}
	return addr.Port, nil
}

// Stop shuts the server down in two bounded phases. First the
// pipeline's gate is closed, rejecting new requests with 503, and
// in-flight requests are given up to GracefulTimeout to finish
// naturally; cancelling ctx skips ahead. Then the listener is told to
// stop, bounded by ForcefulTimeout, after which any remaining
// connections are severed. Stop always returns within roughly the sum
// of the two timeouts. Stopping an already-stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "shutting down server")

	s.pipeline.Close()
	graceCtx, cancelGrace := context.WithTimeout(ctx, s.cfg.GracefulTimeout)
	err := s.pipeline.Drain(graceCtx)
	cancelGrace()
	if err != nil {
		s.log.LogAttrs(
			ctx,
			slog.LevelWarn,
			"proceeding to forceful shutdown with requests still in flight",
			slog.String("cause", err.Error()),
		)
	}

	// The forceful bound holds even if ctx is already cancelled.
	forceCtx, cancelForce := context.WithTimeout(context.Background(), s.cfg.ForcefulTimeout)
	err = s.srv.Shutdown(forceCtx)
	cancelForce()
	if err != nil {
		s.log.LogAttrs(
			ctx,
			slog.LevelWarn,
			"severing remaining connections",
			slog.String("cause", err.Error()),
		)
		s.srv.Close()
	}

	serveErr := <-s.done
	s.running = false
	s.ls = nil
	close(s.stopped)

	s.log.LogAttrs(ctx, slog.LevelInfo, "shut down server")
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

// Run starts the server and blocks until the context is cancelled or
// serving fails, then stops it. It is the conventional entry point
// for a main package:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	return srv.Run(ctx)
func (s *Server) Run(ctx context.Context) error {
	err := s.Start()
	if err != nil {
		return err
	}

	s.mu.Lock()
	done := s.done
	stopped := s.stopped
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-done:
		// put the serve error back for Stop to collect
		done <- err
		return s.Stop(context.Background())
	case <-stopped:
		return nil
	}
}
