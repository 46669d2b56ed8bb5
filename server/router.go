package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nixxel-company-limited/zpl-print-server/adapter"
)

// maxPayloadSize bounds an inbound print payload. Label command streams
// are small; a megabyte is already generous.
const maxPayloadSize = 1 << 20

// tester is implemented by backends that can verify connectivity with a
// built-in sample payload.
type tester interface {
	Test(ctx context.Context) (*adapter.Result, error)
}

// artifactSource is implemented by backends that persist rendered labels.
type artifactSource interface {
	List() ([]adapter.Artifact, error)
	Delete(name string) error
	Resolve(name string) (path, contentType string, err error)
}

func (s *Server) router(opts Options) http.Handler {
	r := chi.NewRouter()

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(100, time.Minute))
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Post("/print", s.handlePrint)
	r.Post("/print/test", s.handleTest)
	r.Get("/labels", s.handleListLabels)
	r.Get("/labels/{name}", s.handleGetLabel)
	r.Delete("/labels/{name}", s.handleDeleteLabel)

	return r
}

// logRequests emits one structured line per request with a fresh id.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("id", uuid.NewString()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, "empty payload")
		return
	}

	result, err := s.adapter.Send(r.Context(), payload)
	if err != nil {
		s.logger.Error().Err(err).Str("backend", s.adapter.Kind()).Msg("send failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	t, ok := s.adapter.(tester)
	if !ok {
		writeError(w, http.StatusNotImplemented, "backend does not support test prints")
		return
	}
	result, err := t.Test(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("test print failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	src, ok := s.adapter.(artifactSource)
	if !ok {
		writeError(w, http.StatusNotImplemented, "backend does not save labels")
		return
	}
	artifacts, err := src.List()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (s *Server) handleGetLabel(w http.ResponseWriter, r *http.Request) {
	src, ok := s.adapter.(artifactSource)
	if !ok {
		writeError(w, http.StatusNotImplemented, "backend does not save labels")
		return
	}
	path, contentType, err := src.Resolve(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "label not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read label")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	src, ok := s.adapter.(artifactSource)
	if !ok {
		writeError(w, http.StatusNotImplemented, "backend does not save labels")
		return
	}
	if err := src.Delete(chi.URLParam(r, "name")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps the backend error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var rse *adapter.RenderServiceError
	switch {
	case errors.Is(err, adapter.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, adapter.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, adapter.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &rse),
		errors.Is(err, adapter.ErrDeviceNotFound),
		errors.Is(err, adapter.ErrNoOutputEndpoint),
		errors.Is(err, adapter.ErrTransfer),
		errors.Is(err, adapter.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
