package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bbtrace/bbtrace/internal/metrics"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.EventRingDropped.Store(3)
	m.BasicBlockHits.Add(10)
	m.SessionAttached.Store(1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"bbtrace_event_ring_dropped_total 3",
		"bbtrace_basic_block_hits_total 10",
		"bbtrace_session_attached 1",
		"# TYPE bbtrace_session_attached gauge",
		"# TYPE bbtrace_event_ring_dropped_total counter",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("response body does not contain %q:\n%s", want, body)
		}
	}
}

func TestHandlerZeroValueIsReady(t *testing.T) {
	m := metrics.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "bbtrace_command_ring_dropped_total 0") {
		t.Errorf("expected zero-valued counter in output:\n%s", rec.Body.String())
	}
}
