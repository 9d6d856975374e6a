// Package server exposes the solver over HTTP.
//
//	POST /api/v1/implied-vol   solve a batch of quotes
//	GET  /health               liveness
//	GET  /metrics              Prometheus metrics
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/implied-vol/internal/data"
	"github.com/contactkeval/implied-vol/internal/engine"
	"github.com/contactkeval/implied-vol/internal/logger"
	"github.com/contactkeval/implied-vol/internal/metrics"
	"github.com/contactkeval/implied-vol/internal/pricing"
)

// MaxQuotesPerRequest bounds the batch size of a single request.
const MaxQuotesPerRequest = 10000

type Server struct {
	runner  *engine.Runner
	metrics *metrics.Metrics
	router  *gin.Engine
}

// New wires the routes. runner must have been built with metrics as its observer
// for solve counters to be exported.
func New(runner *engine.Runner, m *metrics.Metrics) *Server {
	s := &Server{runner: runner, metrics: m}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe)
	s.RegisterRoutes(r)
	s.router = r
	return s
}

// RegisterRoutes binds the handlers to router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", s.Health)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/implied-vol", s.ImpliedVol)
	}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("REST server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down REST server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	s.metrics.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	logger.Debugf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// QuoteRequest is one quote to solve. Numbers may be sent as JSON numbers or strings.
type QuoteRequest struct {
	ID          string          `json:"id"`
	Spot        decimal.Decimal `json:"spot"`
	Strike      decimal.Decimal `json:"strike"`
	Rate        decimal.Decimal `json:"rate"`
	Expiry      decimal.Decimal `json:"expiry"` // years
	OptionType  string          `json:"option_type"`
	Model       string          `json:"model"`
	MarketPrice decimal.Decimal `json:"market_price"`
}

type ImpliedVolRequest struct {
	Quotes []QuoteRequest `json:"quotes" binding:"required"`
}

// QuoteResult is the answer for one quote. ImpliedVol is null when there is no solution.
type QuoteResult struct {
	ID         string   `json:"id"`
	ImpliedVol *float64 `json:"implied_vol"`
	Converged  bool     `json:"converged"`
	Iterations int      `json:"iterations"`
	Reason     string   `json:"reason,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type ImpliedVolResponse struct {
	RunID   string         `json:"run_id"`
	Results []QuoteResult  `json:"results"`
	Summary engine.Summary `json:"summary"`
}

// ImpliedVol solves every quote in the request. Invalid quotes are reported
// per item; only a malformed body fails the whole request.
func (s *Server) ImpliedVol(c *gin.Context) {
	var req ImpliedVolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Quotes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no quotes"})
		return
	}
	if len(req.Quotes) > MaxQuotesPerRequest {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many quotes"})
		return
	}

	records := make([]data.Record, len(req.Quotes))
	for i, q := range req.Quotes {
		records[i] = toRecord(q)
	}

	outcomes, summary, err := s.runner.Run(c.Request.Context(), records)
	if err != nil {
		logger.Errorf("implied-vol request aborted: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	resp := ImpliedVolResponse{
		RunID:   summary.RunID,
		Results: make([]QuoteResult, len(outcomes)),
		Summary: summary,
	}
	for i, o := range outcomes {
		resp.Results[i] = toResult(o)
	}
	c.JSON(http.StatusOK, resp)
}

func toRecord(q QuoteRequest) data.Record {
	optType, err := pricing.ParseOptionType(q.OptionType)
	if err != nil {
		return data.Record{ID: q.ID, Err: err}
	}
	model, err := pricing.ParseModel(q.Model)
	if err != nil {
		return data.Record{ID: q.ID, Err: err}
	}
	return data.NewRecord(q.ID, pricing.Quote{
		Spot:        q.Spot.InexactFloat64(),
		Strike:      q.Strike.InexactFloat64(),
		Rate:        q.Rate.InexactFloat64(),
		Expiry:      q.Expiry.InexactFloat64(),
		Type:        optType,
		MarketPrice: q.MarketPrice.InexactFloat64(),
	}, model)
}

func toResult(o engine.Outcome) QuoteResult {
	r := QuoteResult{
		ID:         o.Record.ID,
		Converged:  o.Result.Converged,
		Iterations: o.Result.Iterations,
		Reason:     o.Result.Reason.String(),
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
		return r
	}
	if vol, ok := o.ImpliedVol(); ok {
		r.ImpliedVol = &vol
	}
	return r
}
