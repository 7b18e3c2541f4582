package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/agent/process", http.StatusOK, 20*time.Millisecond)
	m.ObserveIntent("create_assignment", true)
	m.ObserveIntent("delete_assignment", false)
	m.ObserveLLMRequest("intent", "ok")
	m.ObserveVoiceAttach("error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `agent_intents_total{intent="create_assignment",success="true"} 1`)
	assert.Contains(t, string(body), `llm_requests_total{outcome="ok",purpose="intent"} 1`)
	assert.Contains(t, string(body), `voice_agent_attach_attempts_total{outcome="error"} 1`)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.Equal(t, uint64(2), snap.IntentsTotal)
	assert.Equal(t, uint64(1), snap.FailedIntents)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveIntent("x", true)
	m.ObserveLLMRequest("x", "ok")
	m.ObserveVoiceAttach("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
