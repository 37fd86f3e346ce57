// Package server exposes a question answering chain and its vector store
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/sevigo/sourceqa/chains"
	"github.com/sevigo/sourceqa/vectorstores"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	qa       chains.Chain
	store    vectorstores.VectorStore
	opts     options
	logger   *slog.Logger
	validate *validator.Validate
}

type options struct {
	logger         *slog.Logger
	allowedOrigins []string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	requestTimeout time.Duration
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(o *options) {
		o.allowedOrigins = origins
	}
}

func WithTimeouts(read, write time.Duration) Option {
	return func(o *options) {
		if read > 0 {
			o.readTimeout = read
		}
		if write > 0 {
			o.writeTimeout = write
		}
	}
}

// WithRequestTimeout bounds the context of every request handler.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// New returns a server answering questions with qa. The question is passed
// under qa's single input key.
func New(qa chains.Chain, store vectorstores.VectorStore, opts ...Option) (*Server, error) {
	if qa == nil || store == nil {
		return nil, errors.New("server: chain and vector store are required")
	}
	if len(qa.InputKeys()) != 1 {
		return nil, chains.ErrMultipleInputsInRun
	}

	o := options{
		logger:         slog.Default(),
		allowedOrigins: []string{"*"},
		readTimeout:    30 * time.Second,
		writeTimeout:   2 * time.Minute,
		requestTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Server{
		qa:       qa,
		store:    store,
		opts:     o,
		logger:   o.logger.With("component", "http_server"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/documents", s.handleAddDocuments)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.readTimeout,
		WriteTimeout: s.opts.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
