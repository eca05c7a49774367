package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/internal/service/pipeline"
	"github.com/sandevgo/loanpilot/pkg/log"
)

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	SessionID          string                   `json:"session_id"`
	FinalResponse      string                   `json:"final_response"`
	Outcome            core.Outcome             `json:"outcome"`
	Escalate           bool                     `json:"escalate"`
	RecommendedActions []core.RecommendedAction `json:"recommended_actions,omitempty"`
	Sources            []core.RetrievalResult   `json:"sources,omitempty"`
}

// Server is the thin HTTP front of the pipeline: one chat endpoint and a
// health probe. It implements srv.Service.
type Server struct {
	srv      *http.Server
	pipeline *pipeline.Pipeline
}

func NewServer(addr string, p *pipeline.Pipeline) *Server {
	s := &Server{pipeline: p}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.srv.Addr).Msg("starting http server")

	// Hand the process context (with logger) to every request.
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromCtx(ctx)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid json body"}`, http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, `{"error": "query is required"}`, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	state, err := s.pipeline.Run(ctx, req.Query, req.SessionID, nil)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
		http.Error(w, `{"error": "internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{
		SessionID:          req.SessionID,
		FinalResponse:      state.FinalResponse,
		Outcome:            state.Outcome,
		Escalate:           state.Escalate,
		RecommendedActions: state.RecommendedActions,
		Sources:            state.Retrieval,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to encode chat response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status": "ok"}`))
}
