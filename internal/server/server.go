// Package server exposes the classifier and the run catalog over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/ashdetect/internal/catalog"
	"github.com/chrissnell/ashdetect/internal/log"
	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/chrissnell/ashdetect/pkg/pipeline"
	"github.com/chrissnell/ashdetect/pkg/product"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxSceneBytes bounds the size of a POST /classify body.
const MaxSceneBytes = 1 << 30

const shutdownTimeout = 10 * time.Second

// Server serves classification requests
type Server struct {
	pipeline  *pipeline.Pipeline
	catalog   *catalog.Catalog
	formatter *product.Formatter
	logger    *zap.SugaredLogger
	handler   http.Handler
	Server    http.Server
}

// RunSummary is the JSON reply to POST /classify.
type RunSummary struct {
	catalog.Run
	Recorded bool `json:"recorded"`
}

// New creates a server listening on addr. A nil catalog disables the /runs
// endpoints and run recording.
func New(addr string, p *pipeline.Pipeline, cat *catalog.Catalog, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		pipeline:  p,
		catalog:   cat,
		formatter: product.NewFormatter(),
		logger:    logger,
	}

	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)
	router.HandleFunc("/healthz", s.health).Methods("GET")
	router.HandleFunc("/classify", s.classify).Methods("POST")
	router.HandleFunc("/runs", s.listRuns).Methods("GET")
	router.HandleFunc("/runs/{id}", s.getRun).Methods("GET")
	s.handler = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}))(
		handlers.CompressHandler(router))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Errorw("handler panic", "panic", fmt.Sprint(v...))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting classifier server on %s", s.Server.Addr)
		errc <- s.Server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("classifier server: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down classifier server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("classifier server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"catalog": s.catalog != nil,
	})
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var sc pipeline.Scene
	body := http.MaxBytesReader(w, r.Body, MaxSceneBytes)
	if err := product.Decode(body, product.FormatForContentType(r.Header.Get("Content-Type")), &sc); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid scene bundle", err)
		return
	}

	res, err := s.pipeline.Run(r.Context(), sc)
	if err != nil {
		s.sendError(w, statusFor(err), "classification failed", err)
		return
	}

	summary := RunSummary{Run: catalog.FromResult(res, started)}
	if s.catalog != nil {
		run, err := s.catalog.Record(r.Context(), summary.Run)
		if err != nil {
			s.logger.Errorw("failed to record run", "error", err)
		} else {
			summary.Run = run
			summary.Recorded = true
		}
	}

	if s.formatter.RequestedFormat(r) == product.MsgPack {
		if summary.Recorded {
			w.Header().Set("X-Run-ID", summary.ID)
		}
		if err := s.formatter.WriteResponse(w, r, http.StatusOK, res); err != nil {
			s.logger.Errorw("failed to write product", "error", err)
		}
		return
	}
	s.sendJSON(w, http.StatusOK, summary)
}

// statusFor maps a pipeline error to an HTTP status. Scenes that cannot be
// classified at all are the client's problem.
func statusFor(err error) int {
	switch {
	case errors.Is(err, grid.ErrShapeMismatch), errors.Is(err, pipeline.ErrEphemeris):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.sendError(w, http.StatusServiceUnavailable, "run catalog is disabled", nil)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := s.catalog.List(r.Context(), limit)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	s.sendJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.sendError(w, http.StatusServiceUnavailable, "run catalog is disabled", nil)
		return
	}

	id := mux.Vars(r)["id"]
	run, err := s.catalog.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to get run", err)
		return
	}
	s.sendJSON(w, http.StatusOK, run)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", product.JSON.ContentType())
	w.WriteHeader(status)
	if err := product.Encode(w, product.JSON, data); err != nil {
		s.logger.Errorw("failed to write response", "error", err)
	}
}

// sendError sends an error response in JSON format
func (s *Server) sendError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]any{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().Unix(),
	}
	if err != nil {
		errorResponse["details"] = err.Error()
	}
	s.sendJSON(w, status, errorResponse)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.size += n
	return n, err
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		// Health probes would drown out everything else
		if r.URL.Path == "/healthz" {
			return
		}
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		log.LogHTTPRequest(s.logger, log.HTTPRequest{
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     rec.status,
			Duration:   time.Since(start),
			Size:       rec.size,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}
