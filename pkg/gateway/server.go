// Package gateway exposes the decision pipeline over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentinelgate/pkg/anomaly"
	"sentinelgate/pkg/genai"
	"sentinelgate/pkg/guard"
	"sentinelgate/pkg/ledger"
	"sentinelgate/shared/logging"
)

var httpDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{Namespace: "sentinelgate", Subsystem: "http", Name: "request_duration_seconds", Help: "HTTP request latency by route."},
	[]string{"route"},
)

func init() {
	_ = prometheus.Register(httpDuration)
}

// Generator is the downstream answer-generation boundary; ErrEmptyResponse
// from it maps to the "unavailable" outcome.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Chat outcomes: answered carries model text, blocked carries the decision,
// unavailable means the gateway allowed the prompt but no answer could be
// produced.
const (
	OutcomeAnswered    = "answered"
	OutcomeBlocked     = "blocked"
	OutcomeUnavailable = "unavailable"
)

// Server holds the pipeline and its collaborators and exposes HTTP handlers.
type Server struct {
	engine      *guard.Engine
	detector    *anomaly.Detector
	store       *anomaly.Store
	generator   Generator
	audit       *ledger.Ledger
	callTimeout time.Duration
}

func New(engine *guard.Engine, detector *anomaly.Detector, store *anomaly.Store, generator Generator, audit *ledger.Ledger) *Server {
	return &Server{
		engine:      engine,
		detector:    detector,
		store:       store,
		generator:   generator,
		audit:       audit,
		callTimeout: 60 * time.Second,
	}
}

// Mux wires all routes, including prometheus metrics.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.Handle("/v1/analyze", s.timed("analyze", s.AnalyzeHandler))
	mux.Handle("/v1/chat", s.timed("chat", s.ChatHandler))
	mux.Handle("/v1/logs", s.timed("logs", s.LogsHandler))
	mux.Handle("/v1/retrain", s.timed("retrain", s.RetrainHandler))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) timed(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// PromptRequest is the input payload for /v1/analyze and /v1/chat.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

func decodePrompt(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", false
	}
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return "", false
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return "", false
	}
	return req.Prompt, true
}

// AnalyzeHandler runs the pipeline and returns the decision without invoking
// downstream generation.
func (s *Server) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	prompt, ok := decodePrompt(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.callTimeout)
	defer cancel()

	decision := s.engine.Process(ctx, prompt)
	if err := s.audit.Append(prompt, decision); err != nil {
		logging.Errorf("audit append failed: %v", err)
	}
	writeJSON(w, http.StatusOK, decision)
}

// ChatResponse is the output of /v1/chat.
type ChatResponse struct {
	Decision guard.Decision `json:"decision"`
	Outcome  string         `json:"outcome"`
	Answer   string         `json:"answer,omitempty"`
}

// ChatHandler runs the pipeline and, for allowed prompts, fetches the
// downstream answer. A refusal or generation error is reported as
// "unavailable", distinct from both blocked and answered.
func (s *Server) ChatHandler(w http.ResponseWriter, r *http.Request) {
	prompt, ok := decodePrompt(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*s.callTimeout)
	defer cancel()

	decision := s.engine.Process(ctx, prompt)
	if err := s.audit.Append(prompt, decision); err != nil {
		logging.Errorf("audit append failed: %v", err)
	}

	resp := ChatResponse{Decision: decision, Outcome: OutcomeBlocked}
	if decision.Action == guard.ActionAllowed {
		finalPrompt := prompt
		if decision.SanitizedPrompt != "" {
			finalPrompt = decision.SanitizedPrompt
		}
		answer, err := s.generator.GenerateText(ctx, finalPrompt)
		switch {
		case err == nil:
			resp.Outcome = OutcomeAnswered
			resp.Answer = answer
		case errors.Is(err, genai.ErrEmptyResponse):
			resp.Outcome = OutcomeUnavailable
		default:
			logging.Errorf("downstream generation failed: %v", err)
			resp.Outcome = OutcomeUnavailable
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// LogsHandler returns all audit records, most recent first.
func (s *Server) LogsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	records, err := s.audit.Query()
	if err != nil {
		logging.Errorf("audit query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit log unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

// RetrainHandler refits the outlier model on the baseline corpus and persists
// the new state. Training swaps the state exclusively with in-flight scoring.
func (s *Server) RetrainHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state, err := s.detector.Train(anomaly.BaselineCorpus())
	if err != nil {
		logging.Errorf("retrain failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := s.store.Save(state); err != nil {
		logging.Errorf("persist model state failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "trained", "version": state.Version, "trained_at": state.TrainedAt})
}
