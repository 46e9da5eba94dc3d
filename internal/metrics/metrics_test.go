package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.ChatOutcome("guest", "ok")
	r.ChatOutcome("guest", "ok")
	r.ChatOutcome("guest", "refused")
	r.PersistFailed("replace")
	r.ObserveCompletion(250*time.Millisecond, nil)
	r.ObserveCompletion(time.Second, errors.New("boom"))

	body := scrape(t, r)
	assert.Contains(t, body, `kataba_chat_requests_total{mode="guest",outcome="ok"} 2`)
	assert.Contains(t, body, `kataba_chat_requests_total{mode="guest",outcome="refused"} 1`)
	assert.Contains(t, body, `kataba_conversations_persist_failures_total{operation="replace"} 1`)
	assert.Contains(t, body, `kataba_completion_latency_seconds_count{status="ok"} 1`)
	assert.Contains(t, body, `kataba_completion_latency_seconds_count{status="error"} 1`)
}

func TestRecorderInstrumentHandler(t *testing.T) {
	r := NewRecorder()

	h := r.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Contains(t, scrape(t, r), `kataba_http_requests_total{code="418",method="get"} 1`)
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.PersistFailed("create")

	assert.Contains(t, scrape(t, a), `operation="create"`)
	assert.NotContains(t, scrape(t, b), `operation="create"`)
}
