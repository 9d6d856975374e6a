package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/contactkeval/implied-vol/internal/data"
	"github.com/contactkeval/implied-vol/internal/engine"
	"github.com/contactkeval/implied-vol/internal/pricing"
)

func TestObserve(t *testing.T) {
	m := New()

	bs := data.Record{ID: "1", Model: pricing.BlackScholes}
	ba := data.Record{ID: "2", Model: pricing.Bachelier}
	outcomes := []engine.Outcome{
		{Record: bs, Result: pricing.Result{Converged: true, Iterations: 4}, Elapsed: time.Microsecond},
		{Record: bs, Result: pricing.Result{Converged: true, Iterations: 6}},
		{Record: ba, Result: pricing.Result{Reason: pricing.ReasonAboveMaximum}},
		{Record: data.Record{ID: "3"}, Err: errors.Wrap(pricing.ErrInvalidInput, "spot")},
	}
	for _, o := range outcomes {
		m.Observe(o)
	}

	tests := []struct {
		model, status string
		want          float64
	}{
		{"BlackScholes", "solved", 2},
		{"Bachelier", "no_solution", 1},
		{"unknown", "invalid", 1},
		{"Bachelier", "solved", 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.SolvesTotal.WithLabelValues(tt.model, tt.status))
		if got != tt.want {
			t.Errorf("solves_total{%s,%s} = %v, want %v", tt.model, tt.status, got, tt.want)
		}
	}
	if n, err := testutil.GatherAndCount(m.Registry(), "ivcalc_solves_total"); err != nil || n != 4 {
		t.Fatalf("gathered %d solves_total series (err %v), want 4", n, err)
	}
	if n := testutil.CollectAndCount(m.SolveIterations); n != 1 {
		t.Fatalf("expected one iterations series, got %d", n)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/v1/implied-vol", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `ivcalc_http_requests_total{code="200",method="POST",path="/api/v1/implied-vol"} 1`) {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
