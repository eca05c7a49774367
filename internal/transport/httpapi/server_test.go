package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/internal/service/pipeline"
)

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return `{"intent": "other", "urgency": "low", "sla_risk": "low"}`, nil
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(ctx context.Context, query string) ([]core.RetrievalResult, error) {
	return nil, nil
}

type stubChecker struct{}

func (stubChecker) CheckInput(ctx context.Context, text string) core.SafetyResult {
	return core.SafetyResult{Safe: true, Confidence: 1}
}

func (stubChecker) CheckOutput(ctx context.Context, text string) core.SafetyResult {
	return core.SafetyResult{Safe: true, Confidence: 1}
}

func (stubChecker) ConfidentEnough(r core.SafetyResult) bool { return r.Safe }

type stubEscalator struct{}

func (stubEscalator) RequiresHuman(query string, intent core.IntentResult) bool { return false }

type stubMemory struct{}

func (stubMemory) ReadContext(ctx context.Context, sessionID string) core.MemoryContext {
	return core.MemoryContext{}
}

func (stubMemory) AppendWorking(ctx context.Context, sessionID, role, content string) error {
	return nil
}

func (stubMemory) WriteEpisodic(ctx context.Context, sessionID, content string, metadata map[string]string) error {
	return nil
}

func newTestServer() *Server {
	p := pipeline.New(stubCompleter{}, stubRetriever{}, stubChecker{}, stubEscalator{}, stubMemory{}, nil, pipeline.Config{
		ConfidenceMaxDistance: 1.1,
		Timeout:               5 * time.Second,
	})
	return NewServer(":0", p)
}

func TestHandleChat(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{"query": "what are the loan eligibility rules"}`))
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"session_id"`)
	assert.Contains(t, body, `"final_response"`)
	assert.Contains(t, body, `"outcome":"respond"`)
}

func TestHandleChatRejectsEmptyQuery(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatRejectsBadJSON(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
