package server

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/implied-vol/internal/engine"
	"github.com/contactkeval/implied-vol/internal/metrics"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	return New(engine.NewRunner(engine.Config{Workers: 2}, engine.WithObserver(m)), m)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestImpliedVol(t *testing.T) {
	s := newTestServer()

	body := `{"quotes":[
		{"id":"1","spot":1.9119,"strike":2.0264,"rate":-0.0009,"expiry":0.05304082192,"option_type":"Call","model":"Bachelier","market_price":0.096576518},
		{"id":"2","spot":"1.2286","strike":"1.3582","rate":"-0.0048","expiry":"0.5319065753","option_type":"put","model":"blackscholes","market_price":"0.39162934"},
		{"id":"3","spot":0.2817,"strike":0.3065,"rate":-0.0027,"expiry":0.09375753425,"option_type":"Put","model":"BlackScholes","market_price":0.33722994},
		{"id":"4","spot":1,"strike":1,"rate":0,"expiry":1,"option_type":"straddle","model":"BlackScholes","market_price":0.1}
	]}`
	rec := do(t, s, http.MethodPost, "/api/v1/implied-vol", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp ImpliedVolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 4 || resp.RunID == "" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}

	tests := []struct {
		id       string
		vol      float64 // 0 = expect null
		tol      float64
		reason   string
		hasError bool
	}{
		{id: "1", vol: 1.597868342, tol: 1e-4},
		{id: "2", vol: 0.8660063945, tol: 1e-6},
		{id: "3", reason: "above maximum achievable price"},
		{id: "4", hasError: true},
	}
	for i, tt := range tests {
		got := resp.Results[i]
		if got.ID != tt.id {
			t.Fatalf("result %d has id %s, want %s", i, got.ID, tt.id)
		}
		if tt.vol == 0 {
			if got.ImpliedVol != nil || got.Converged {
				t.Errorf("id %s: expected null vol, got %+v", tt.id, got)
			}
		} else if got.ImpliedVol == nil || math.Abs(*got.ImpliedVol-tt.vol) > tt.tol {
			t.Errorf("id %s: vol %v, want %v", tt.id, got.ImpliedVol, tt.vol)
		}
		if got.Reason != tt.reason {
			t.Errorf("id %s: reason %q, want %q", tt.id, got.Reason, tt.reason)
		}
		if (got.Error != "") != tt.hasError {
			t.Errorf("id %s: error %q", tt.id, got.Error)
		}
	}
	if resp.Summary.Solved != 2 || resp.Summary.NoSolution != 1 || resp.Summary.Invalid != 1 {
		t.Fatalf("summary: %+v", resp.Summary)
	}

	// solve counters are exported
	m := do(t, s, http.MethodGet, "/metrics", "")
	if !strings.Contains(m.Body.String(), `ivcalc_solves_total{model="BlackScholes",status="solved"} 1`) {
		t.Fatalf("metrics missing solve counter:\n%s", m.Body.String())
	}
}

func TestImpliedVolBadRequests(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"quotes":[`, http.StatusBadRequest},
		{"missing quotes", `{}`, http.StatusBadRequest},
		{"empty quotes", `{"quotes":[]}`, http.StatusBadRequest},
		{"bad number", `{"quotes":[{"id":"x","spot":"abc","option_type":"call","model":"bachelier"}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPost, "/api/v1/implied-vol", tt.body); rec.Code != tt.code {
				t.Fatalf("status %d, want %d: %s", rec.Code, tt.code, rec.Body.String())
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}
