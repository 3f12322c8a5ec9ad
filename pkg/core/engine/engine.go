// Package engine hosts the analysis orchestrator: the only component with
// side effects. It coordinates the external fetches, runs the pure extractors,
// aggregates and classifies, and owns the cache and job lifecycle.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/adityaloshali/stonky/pkg/core/fetch"
	"github.com/adityaloshali/stonky/pkg/core/metrics"
	"github.com/adityaloshali/stonky/pkg/core/scoring"
	"github.com/adityaloshali/stonky/pkg/core/sector"
	"github.com/adityaloshali/stonky/pkg/core/store"
	"github.com/adityaloshali/stonky/pkg/models"
)

// Options are the engine's startup knobs. They are fixed for the engine's
// lifetime; changing weights or windows is a deployment, not a runtime call.
type Options struct {
	Freshness       time.Duration
	JobTimeout      time.Duration
	Weights         map[string]float64
	ForensicPenalty float64
	Valuation       metrics.ValuationParams
	// Pause before the single retry of a failed required fetch.
	RetryBackoff time.Duration
}

// Sources bundles the external collaborators. Financials and Quotes are
// required; Holdings and Peers may be nil and the affected metrics degrade.
type Sources struct {
	Financials fetch.FinancialsSource
	Holdings   fetch.ShareholdingSource
	Quotes     fetch.QuoteSource
	Peers      fetch.PeerSource
}

// job tracks one in-flight computation. Waiters block on done; result and err
// are written exactly once, before done is closed.
type job struct {
	id      string
	symbol  string
	status  models.JobStatus
	result  *models.AnalysisResult
	err     *models.AnalysisError
	done    chan struct{}
	started time.Time
}

// Engine is the analysis orchestrator.
type Engine struct {
	sources  Sources
	resolver *sector.Resolver
	cache    *store.ResultCache
	opts     Options

	mu          sync.Mutex
	jobs        map[string]*job
	lastFailure map[string]*models.AnalysisError
}

// New builds an engine, validating the scoring weights up front so a bad
// deployment dies at startup rather than on the first request.
func New(sources Sources, resolver *sector.Resolver, cache *store.ResultCache, opts Options) (*Engine, error) {
	if sources.Financials == nil || sources.Quotes == nil {
		return nil, models.Errorf(models.KindConfiguration, "", "financials and quote sources are required")
	}
	if err := scoring.ValidateWeights(opts.Weights); err != nil {
		return nil, err
	}
	if opts.Freshness <= 0 || opts.JobTimeout <= 0 {
		return nil, models.Errorf(models.KindConfiguration, "", "freshness and job timeout must be positive")
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	return &Engine{
		sources:     sources,
		resolver:    resolver,
		cache:       cache,
		opts:        opts,
		jobs:        make(map[string]*job),
		lastFailure: make(map[string]*models.AnalysisError),
	}, nil
}

// Analyze returns the cached result when fresh, otherwise attaches to the
// symbol's in-flight job (starting one if none exists) and blocks until it
// reaches a terminal state. forceRefresh bypasses the freshness check but
// still coalesces onto an already-running job.
func (e *Engine) Analyze(ctx context.Context, symbol string, forceRefresh bool) (*models.AnalysisResult, error) {
	key := normalize(symbol)
	if key == "" {
		return nil, models.Errorf(models.KindNotFound, symbol, "empty symbol")
	}

	if !forceRefresh {
		if res, ok := e.cache.Get(ctx, key); ok && res.FreshWithin(e.opts.Freshness, time.Now()) {
			return res, nil
		}
	}

	j := e.attach(key)

	select {
	case <-j.done:
		if j.err != nil {
			return nil, j.err
		}
		return j.result, nil
	case <-ctx.Done():
		// The job keeps running for other waiters; only this caller gives up.
		return nil, models.NewError(models.KindTimeout, key, ctx.Err())
	}
}

// attach finds the in-flight job for a symbol or atomically creates one.
// The check and the create sit under one lock: at most one computation per
// symbol can ever be in flight.
func (e *Engine) attach(key string) *job {
	e.mu.Lock()
	defer e.mu.Unlock()

	if j, ok := e.jobs[key]; ok {
		return j
	}
	j := &job{
		id:      uuid.NewString(),
		symbol:  key,
		status:  models.JobPending,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	e.jobs[key] = j
	delete(e.lastFailure, key)
	go e.run(j)
	return j
}

// GetJobStatus serves polling callers: an active job wins, then the cached
// result, then the last recorded failure.
func (e *Engine) GetJobStatus(ctx context.Context, symbol string) (models.JobView, bool) {
	key := normalize(symbol)

	e.mu.Lock()
	if j, ok := e.jobs[key]; ok {
		view := models.JobView{ID: j.id, Symbol: key, Status: j.status}
		e.mu.Unlock()
		return view, true
	}
	failure := e.lastFailure[key]
	e.mu.Unlock()

	if res, ok := e.cache.Get(ctx, key); ok {
		return models.JobView{Symbol: key, Status: models.JobComplete, Result: res}, true
	}
	if failure != nil {
		return models.JobView{Symbol: key, Status: models.JobFailed, Error: failure}, true
	}
	return models.JobView{}, false
}

// run executes one job under the wall-clock budget and releases all waiters
// with a single terminal outcome. The job context is independent of any one
// caller, so an impatient waiter cannot cancel work others depend on.
func (e *Engine) run(j *job) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.JobTimeout)
	defer cancel()

	e.setStatus(j, models.JobRunning)
	log.Info().Str("symbol", j.symbol).Str("job", j.id).Msg("analysis started")

	res, err := e.compute(ctx, j.symbol)
	if err != nil {
		e.fail(j, ctx, err)
		return
	}

	e.cache.Put(context.Background(), res)
	e.complete(j, res)
}

// compute fans out the external fetches, joins them, and runs the pure
// pipeline. Only required-fetch failures and timeouts propagate; everything
// else degrades the affected metric.
func (e *Engine) compute(ctx context.Context, symbol string) (*models.AnalysisResult, error) {
	type finRes struct {
		series models.FinancialSeries
		err    error
	}
	type quoteRes struct {
		company models.Company
		err     error
	}
	type holdRes struct {
		series models.ShareholdingSeries
		err    error
	}

	finCh := make(chan finRes, 1)
	quoteCh := make(chan quoteRes, 1)
	holdCh := make(chan holdRes, 1)

	go func() {
		s, err := withRetry(ctx, e.opts.RetryBackoff, symbol, func() (models.FinancialSeries, error) {
			return e.sources.Financials.FetchFinancials(ctx, symbol)
		})
		finCh <- finRes{s, err}
	}()
	go func() {
		c, err := withRetry(ctx, e.opts.RetryBackoff, symbol, func() (models.Company, error) {
			return e.sources.Quotes.FetchQuote(ctx, symbol)
		})
		quoteCh <- quoteRes{c, err}
	}()
	go func() {
		if e.sources.Holdings == nil {
			holdCh <- holdRes{models.ShareholdingSeries{Symbol: symbol}, nil}
			return
		}
		// Optional series: one attempt, failures degrade Ownership.
		s, err := e.sources.Holdings.FetchShareholding(ctx, symbol)
		holdCh <- holdRes{s, err}
	}()

	fin := <-finCh
	quote := <-quoteCh
	hold := <-holdCh

	if fin.err != nil {
		return nil, fin.err
	}
	if quote.err != nil {
		return nil, quote.err
	}
	if hold.err != nil {
		log.Warn().Str("symbol", symbol).Err(hold.err).Msg("shareholding unavailable, ownership degrades")
		hold.series = models.ShareholdingSeries{Symbol: symbol}
	}

	var sectorPE float64
	var sectorPEOK bool
	if e.sources.Peers != nil && quote.company.Sector != "" {
		pe, ok, err := e.sources.Peers.FetchSectorMedianPE(ctx, quote.company.Sector)
		if err != nil {
			log.Warn().Str("symbol", symbol).Err(err).Msg("sector median PE unavailable")
		} else {
			sectorPE, sectorPEOK = pe, ok
		}
	}

	results := map[string]models.MetricResult{
		models.MetricGrowth:    metrics.ExtractGrowth(fin.series),
		models.MetricQuality:   metrics.ExtractQuality(fin.series),
		models.MetricRisk:      metrics.ExtractRisk(fin.series, quote.company.Sector, e.resolver),
		models.MetricValuation: metrics.ExtractValuation(fin.series, quote.company, e.opts.Valuation, sectorPE, sectorPEOK),
		models.MetricOwnership: metrics.ExtractOwnership(hold.series),
	}

	composite, reasoning, err := scoring.Composite(results, e.opts.Weights, e.opts.ForensicPenalty)
	if err != nil {
		return nil, err
	}
	verdict := scoring.Verdict(results[models.MetricRisk], results[models.MetricValuation], composite)

	return &models.AnalysisResult{
		Symbol:     symbol,
		Company:    quote.company,
		Metrics:    results,
		Composite:  composite,
		Verdict:    verdict,
		Reasoning:  reasoning,
		ComputedAt: time.Now(),
	}, nil
}

// withRetry retries a required fetch exactly once, after a backoff, and only
// for transient upstream failures. Not-found and malformed data are final.
func withRetry[T any](ctx context.Context, backoff time.Duration, symbol string, fn func() (T, error)) (T, error) {
	out, err := fn()
	if err == nil || !models.IsKind(err, models.KindSourceUnavailable) {
		return out, err
	}
	log.Warn().Str("symbol", symbol).Err(err).Msg("fetch failed, retrying once")
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return out, err
	}
	return fn()
}

func (e *Engine) setStatus(j *job, s models.JobStatus) {
	e.mu.Lock()
	j.status = s
	e.mu.Unlock()
}

// complete publishes the result and removes the job so the map only ever
// holds in-flight work.
func (e *Engine) complete(j *job, res *models.AnalysisResult) {
	e.mu.Lock()
	j.status = models.JobComplete
	j.result = res
	delete(e.jobs, j.symbol)
	e.mu.Unlock()
	close(j.done)
	log.Info().Str("symbol", j.symbol).Str("job", j.id).
		Float64("composite", res.Composite).Str("verdict", string(res.Verdict)).
		Dur("took", time.Since(j.started)).Msg("analysis complete")
}

// fail classifies the error, releases all waiters with the same failure, and
// removes the job so a future request can retry. Partial work is discarded.
func (e *Engine) fail(j *job, ctx context.Context, err error) {
	var ae *models.AnalysisError
	if !errors.As(err, &ae) {
		ae = models.NewError(models.KindSourceUnavailable, j.symbol, err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ae = models.NewError(models.KindTimeout, j.symbol, err)
	}
	if ae.Symbol == "" {
		ae.Symbol = j.symbol
	}

	e.mu.Lock()
	j.status = models.JobFailed
	j.err = ae
	e.lastFailure[j.symbol] = ae
	delete(e.jobs, j.symbol)
	e.mu.Unlock()
	close(j.done)
	log.Error().Str("symbol", j.symbol).Str("job", j.id).Str("kind", string(ae.Kind)).
		Err(ae.Err).Msg("analysis failed")
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
