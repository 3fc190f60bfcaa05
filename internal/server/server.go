// Package server provides the LeapLedger JSON API over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapledger/internal/service"
	"golang.org/x/sync/errgroup"
)

// Server is the ledger API server.
type Server struct {
	svc    *service.Service
	host   string
	port   int
	logger *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Service *service.Service
	Host    string
	Port    int
	Logger  *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:    cfg.Service,
		host:   cfg.Host,
		port:   cfg.Port,
		logger: logger,
	}
}

// Handler builds the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	h := &handlers{svc: s.svc, logger: s.logger}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/token", h.getToken)
		r.Get("/supply", h.getSupply)
		r.Get("/accounts/{address}/balance", h.getBalance)
		r.Get("/accounts/{owner}/allowances/{spender}", h.getAllowance)
		r.Get("/events", h.getEvents)

		r.Post("/transfers", h.postTransfer)
		r.Post("/approvals", h.postApproval)
		r.Post("/burns", h.postBurn)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/tax/enabled", h.postTaxEnabled)
			r.Post("/tax/fraction", h.postTaxFraction)
			r.Post("/tax/receiver", h.postTaxReceiver)
			r.Post("/tax/exemptions", h.postTaxExemption)
			r.Post("/owner", h.postOwner)
		})
	})

	return r
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://%s", addr))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
