// Package server exposes the printer backend over HTTP: print and test
// submission plus listing, serving and deleting saved label artifacts.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/zpl-print-server/adapter"
)

// Options tunes the HTTP surface.
type Options struct {
	// AllowedOrigins feeds the CORS middleware; empty means allow all.
	AllowedOrigins []string

	// Logger for request and lifecycle logs; nil means no logging.
	Logger *zerolog.Logger
}

// Server runs the HTTP listener in front of a printer adapter. It can be
// started again after Stop.
type Server struct {
	adapter  adapter.Adapter
	address  string
	logger   zerolog.Logger
	handler  http.Handler
	httpSrv  *http.Server
	listener net.Listener
	mu       sync.Mutex
	running  bool
	wg       sync.WaitGroup
}

// New creates a server for the given adapter and listen address.
func New(device adapter.Adapter, address string, opts Options) *Server {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s := &Server{
		adapter: device,
		address: address,
		logger:  logger,
	}
	s.handler = s.router(opts)
	return s
}

// Start starts the server and blocks until Stop is called.
func (s *Server) Start() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.serve()
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve()
	}()
	return nil
}

func (s *Server) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// A fresh http.Server per start; a Shutdown http.Server refuses to
	// serve again.
	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = listener
	s.running = true
	s.logger.Info().Str("addr", listener.Addr().String()).Str("backend", s.adapter.Kind()).Msg("server listening")
	return nil
}

func (s *Server) serve() {
	s.mu.Lock()
	srv, listener := s.httpSrv, s.listener
	s.mu.Unlock()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msg("http server")
	}
}

// Stop shuts the server down gracefully and waits for in-flight requests.
// The adapter is left open; its owner closes it.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpSrv
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	s.wg.Wait()
	s.logger.Info().Msg("server stopped")
	return err
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the bound listener address when running, otherwise the
// configured one.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// GetAdapter returns the underlying adapter.
func (s *Server) GetAdapter() adapter.Adapter {
	return s.adapter
}
