// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes a Service over a local gin API. The engine is
// mounted on an http.Server so shutdown can follow the process lifecycle
// instead of gin.Run's blocking loop.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/tether"
)

const readHeaderTimeout = 10 * time.Second

type Server struct {
	engine *gin.Engine
	logger logger.Logger
	port   int

	mu     sync.Mutex
	srv    *http.Server
	cancel context.CancelFunc
}

// New builds the engine for svc. environment selects the gin mode.
func New(svc *tether.Service, port int, environment string, l logger.Logger) *Server {
	switch environment {
	case "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(l))
	NewHandler(svc, l).RegisterRoutes(engine)

	return &Server{engine: engine, logger: l, port: port}
}

// Engine exposes the router for in-process use
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.New(errors.ServerStart, "already running")
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	s.srv = srv
	s.cancel = cancel
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	s.logger.Info("Status API listening", "port", s.port)

	select {
	case err := <-errChan:
		s.mu.Lock()
		s.srv, s.cancel = nil, nil
		s.mu.Unlock()
		cancel()
		return errors.Wrap(err, errors.ServerStart).
			WithMetadata("port", fmt.Sprintf("%d", s.port))
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Request contexts are cancelled first so open event streams end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.srv, s.cancel = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	cancel()
	s.logger.Info("Status API shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.ServerShutdown)
	}
	return nil
}
