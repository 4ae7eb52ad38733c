package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vbonduro/renocheck/internal/inspection"
	"github.com/vbonduro/renocheck/internal/metrics"
)

// Sessions is the subset of inspection.Manager that Server requires.
type Sessions interface {
	Open(ctx context.Context, key inspection.Key) (*inspection.Session, error)
}

// FileOpener serves objects of a blob store that has no public endpoint of
// its own. local.Store satisfies it.
type FileOpener interface {
	Open(ctx context.Context, objectPath string) (io.ReadCloser, string, error)
}

type Server struct {
	sessions Sessions
	files    FileOpener
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	router   chi.Router
	logger   *slog.Logger
}

// NewServer wires the JSON API. files may be nil, in which case /files is not
// served. gatherer defaults to the Prometheus default registry.
func NewServer(sessions Sessions, files FileOpener, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		sessions: sessions,
		files:    files,
		metrics:  m,
		gatherer: gatherer,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/inspections/{propertyID}/{type}", func(r chi.Router) {
		r.Get("/", s.handleGetInspection)
		r.Post("/refresh", s.handleRefresh)
		r.Patch("/sections/{sectionID}", s.handleUpdateSection)
		r.Post("/sections/{sectionID}/attachments", s.handleCreateAttachment)
		r.Post("/save", s.handleSave)
		r.Get("/validation", s.handleValidation)
		r.Post("/finalize", s.handleFinalize)
	})

	if s.files != nil {
		r.Get("/files/*", s.handleGetFile)
	}
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; media-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request and records it in the HTTP metrics under
// its route pattern, so that path parameters do not explode label cardinality.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		duration := time.Since(start)
		s.metrics.HTTPRequest(r.Method, route, strconv.Itoa(status), duration)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
