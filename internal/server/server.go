// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"libraryloans/internal/catalog"
	"libraryloans/internal/circulation"
	"libraryloans/internal/httpapi"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Books  catalog.Service
	Loans  circulation.Service
	Health Pinger
	Logger *zap.Logger
	// Meter defaults to the global meter provider's.
	Meter          metric.Meter
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the middleware stack and every route.
func NewRouter(deps Deps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter("libraryloans/server")
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	errs := httpapi.NewErrors(logger)
	limiter := rate.NewLimiter(rate.Limit(deps.RateLimitRPS), deps.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(metrics.middleware)
	r.Use(recoverer(errs, logger))
	r.Use(rateLimit(limiter))

	r.NotFound(httpapi.NotFound)
	r.MethodNotAllowed(httpapi.MethodNotAllowed)

	r.Get("/healthz", healthHandler(deps.Health, errs))
	r.Route("/api/books", catalog.NewHandler(deps.Books, errs).Routes)
	r.Route("/api/loans", circulation.NewHandler(deps.Loans, errs).Routes)

	return r, nil
}

func healthHandler(p Pinger, errs *httpapi.Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.PingContext(r.Context()); err != nil {
				errs.Write(w, r, fmt.Errorf("health check: %w", err))
				return
			}
		}
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	httpServer      *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

func New(addr string, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server", zap.Duration("timeout", s.shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
