// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/usecases"
)

const maxBodyBytes = 1 << 20

// FunctionDispatcher answers agent function calls.
type FunctionDispatcher interface {
	Dispatch(ctx context.Context, inv entities.FunctionInvocation) entities.Envelope
}

// BatchProcessor handles normalized webhook entries.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, entries []usecases.InboundEntry) usecases.BatchResult
}

// FunctionObserver counts dispatched function calls.
type FunctionObserver interface {
	FunctionDispatched(function string, status int)
}

// Server is the HTTP server for the agent function endpoint and the channel webhook.
type Server struct {
	dispatcher   FunctionDispatcher
	conversation BatchProcessor
	observer     FunctionObserver
	metrics      http.Handler
	log          logrus.FieldLogger
	addr         string
	timeout      time.Duration
}

// NewServer creates a new HTTP server. observer may be nil.
func NewServer(
	dispatcher FunctionDispatcher,
	conversation BatchProcessor,
	observer FunctionObserver,
	addr string,
	timeout time.Duration,
	log logrus.FieldLogger,
) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Server{
		dispatcher:   dispatcher,
		conversation: conversation,
		observer:     observer,
		metrics:      promhttp.Handler(),
		log:          log.WithField("component", "http"),
		addr:         addr,
		timeout:      timeout,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	r.HandleFunc("/agent/functions", s.handleFunction).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/whatsapp", s.handleWebhook).Methods(http.MethodPost)
	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.timeout + 5*time.Second,
	}

	s.log.WithField("addr", s.addr).Info("coursebridge server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("Shutdown incomplete")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleFunction runs one agent function call and answers with its envelope.
func (s *Server) handleFunction(w http.ResponseWriter, r *http.Request) {
	var inv entities.FunctionInvocation
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&inv); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid function invocation: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	env := s.dispatcher.Dispatch(ctx, inv)
	if env.Err != nil {
		s.log.WithError(env.Err).Debug("Function call rejected")
	}
	status := env.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if s.observer != nil {
		s.observer.FunctionDispatched(string(env.Response.Function), status)
	}
	writeJSON(w, status, env)
}

// handleWebhook normalizes a webhook batch and processes it before acknowledging.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unreadable body"})
		return
	}

	entries, skipped, err := ParseWebhook(body)
	if err != nil {
		s.log.WithError(err).Warn("Rejecting webhook")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for _, skipErr := range skipped {
		s.log.WithError(skipErr).Error("Skipping webhook record")
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result := s.conversation.ProcessBatch(ctx, entries)
	result.Dropped += len(skipped)
	writeJSON(w, http.StatusOK, result)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type ctxKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		id, _ := r.Context().Value(ctxKey{}).(string)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
			"request_id": id,
		}).Debug("Request served")
	})
}
