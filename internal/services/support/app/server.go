// Package server hosts the support HTTP/WebSocket process: ticket and note
// CRUD over JSON, live ticket lifecycle streaming over WebSocket, and push
// notification fan-out.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fieldops/pitsignal/internal/platform/audit"
	"github.com/fieldops/pitsignal/internal/platform/logging"
	"github.com/fieldops/pitsignal/internal/platform/timeouts"
	"github.com/fieldops/pitsignal/internal/services/support/domain"
	"github.com/fieldops/pitsignal/internal/services/support/notify"
	"github.com/fieldops/pitsignal/internal/services/support/registry"
	"github.com/fieldops/pitsignal/internal/services/support/storage/sqlite"
)

// Config defines the inputs for the support service process.
type Config struct {
	HTTPAddr          string
	DBPath            string
	PushRelayURL      string
	NotifyQueueSize   int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the support HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
	dispatcher      *notify.Dispatcher
}

// NewServer builds a fully wired support server: SQLite storage, the event
// registry, the notification pipeline, and the HTTP/WebSocket surface.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	logger := logging.New("support")
	auditLog := audit.New(logger)

	store, err := sqlite.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open support storage: %w", err)
	}

	adapter := newDomainStoreAdapter(store, store, store, store, store, nil)
	eventRegistry := registry.New(adapter, logger)

	var gateway notify.Gateway = notify.NopGateway{}
	if strings.TrimSpace(config.PushRelayURL) != "" {
		gateway = notify.NewRelayGateway(config.PushRelayURL, nil, adapter, logger)
	}
	dispatcher := notify.NewDispatcher(gateway, config.NotifyQueueSize, auditLog, logger)
	notifier := notify.NewFollowerNotifier(adapter, dispatcher, logger)

	tickets := domain.NewService(adapter, eventRegistry, notifier, nil, nil)
	notes := domain.NewNoteService(adapter, nil, nil)

	handler := newHandler(handlerDeps{
		tickets:  tickets,
		notes:    notes,
		registry: eventRegistry,
		profiles: adapter,
		push:     adapter,
		audit:    auditLog,
		log:      logger,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
		dispatcher:      dispatcher,
	}, nil
}

// Run creates and serves a support server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init support server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve support: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("support server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("support server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources. Queued notifications are delivered before
// storage shuts down.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close support storage: %v", err)
		}
	}
}
