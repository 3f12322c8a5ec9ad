package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaloshali/stonky/pkg/core/metrics"
	"github.com/adityaloshali/stonky/pkg/core/sector"
	"github.com/adityaloshali/stonky/pkg/core/store"
	"github.com/adityaloshali/stonky/pkg/models"
)

// fakeSources implements all four collaborator contracts with counters and
// switchable failure modes.
type fakeSources struct {
	finCalls   atomic.Int64
	quoteCalls atomic.Int64
	holdCalls  atomic.Int64

	finFailures atomic.Int64 // fail this many financial fetches, then succeed
	holdFail    atomic.Bool
	finDelay    time.Duration
	finNotFound atomic.Bool
}

func (f *fakeSources) FetchFinancials(ctx context.Context, symbol string) (models.FinancialSeries, error) {
	f.finCalls.Add(1)
	if f.finDelay > 0 {
		select {
		case <-time.After(f.finDelay):
		case <-ctx.Done():
			return models.FinancialSeries{}, models.NewError(models.KindSourceUnavailable, symbol, ctx.Err())
		}
	}
	if f.finNotFound.Load() {
		return models.FinancialSeries{}, models.Errorf(models.KindNotFound, symbol, "no such company")
	}
	if f.finFailures.Load() > 0 {
		f.finFailures.Add(-1)
		return models.FinancialSeries{}, models.Errorf(models.KindSourceUnavailable, symbol, "upstream down")
	}

	s := models.FinancialSeries{Symbol: symbol}
	rev := 100.0
	for i := 0; i < 5; i++ {
		s.Years = append(s.Years, models.YearRecord{
			FiscalYear:   2020 + i,
			Revenue:      rev,
			NetProfit:    50,
			CashFromOps:  100,
			ROCE:         20,
			ROE:          20,
			DebtToEquity: 0.1,
			EPS:          50,
			BookValue:    500,
			PE:           20,
		})
		rev *= 1.12
	}
	return s, nil
}

func (f *fakeSources) FetchQuote(ctx context.Context, symbol string) (models.Company, error) {
	f.quoteCalls.Add(1)
	return models.Company{Symbol: symbol, Sector: "IT - Software", Price: 500, PE: 20}, nil
}

func (f *fakeSources) FetchShareholding(ctx context.Context, symbol string) (models.ShareholdingSeries, error) {
	f.holdCalls.Add(1)
	if f.holdFail.Load() {
		return models.ShareholdingSeries{}, models.Errorf(models.KindSourceUnavailable, symbol, "nse down")
	}
	var snaps []models.OwnershipSnapshot
	for i := 0; i < 4; i++ {
		snaps = append(snaps, models.OwnershipSnapshot{
			Quarter:     fmt.Sprintf("Q%d", i+1),
			Date:        time.Date(2024, time.Month(3*i+1), 1, 0, 0, 0, 0, time.UTC),
			PromoterPct: 50, FIIPct: 20 + float64(i), DIIPct: 10, PublicPct: 20 - float64(i),
		})
	}
	return models.ShareholdingSeries{Symbol: symbol, Snapshots: snaps}, nil
}

func (f *fakeSources) FetchSectorMedianPE(ctx context.Context, sectorLabel string) (float64, bool, error) {
	return 25, true, nil
}

func newTestEngine(t *testing.T, f *fakeSources) *Engine {
	t.Helper()
	e, err := New(
		Sources{Financials: f, Quotes: f, Holdings: f, Peers: f},
		sector.NewResolver(nil),
		store.NewResultCache(nil),
		Options{
			Freshness:       24 * time.Hour,
			JobTimeout:      2 * time.Second,
			Weights:         map[string]float64{models.MetricQuality: 0.30, models.MetricRisk: 0.25, models.MetricValuation: 0.25, models.MetricGrowth: 0.15, models.MetricOwnership: 0.05},
			ForensicPenalty: 10,
			Valuation:       metrics.ValuationParams{DiscountRate: 0.10, TerminalGrowth: 0.03},
			RetryBackoff:    10 * time.Millisecond,
		},
	)
	require.NoError(t, err)
	return e
}

func TestAnalyzeHappyPath(t *testing.T) {
	f := &fakeSources{}
	e := newTestEngine(t, f)

	res, err := e.Analyze(context.Background(), "relianz", false)
	require.NoError(t, err)

	assert.Equal(t, "RELIANZ", res.Symbol, "symbols normalize to upper case")
	assert.Equal(t, 100.0, res.Composite)
	assert.Equal(t, models.VerdictStrongBuy, res.Verdict)
	assert.Equal(t, models.FlagGreen, res.Metrics[models.MetricRisk].Flag)
	assert.Equal(t, models.Undervalued, res.Metrics[models.MetricValuation].Call)
	assert.NotEmpty(t, res.Reasoning)
	assert.Equal(t, 25.0, res.Metrics[models.MetricValuation].Values["pe_sector_median"])
}

func TestSingleFlightPerSymbol(t *testing.T) {
	f := &fakeSources{finDelay: 50 * time.Millisecond}
	e := newTestEngine(t, f)

	const n = 25
	results := make([]*models.AnalysisResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Analyze(context.Background(), "TCS", false)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), f.finCalls.Load(), "N concurrent callers must trigger exactly one fetch cycle")
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i], "all waiters observe the identical result")
	}
}

func TestFreshnessIdempotence(t *testing.T) {
	f := &fakeSources{}
	e := newTestEngine(t, f)
	ctx := context.Background()

	_, err := e.Analyze(ctx, "TCS", false)
	require.NoError(t, err)
	fin, quote, hold := f.finCalls.Load(), f.quoteCalls.Load(), f.holdCalls.Load()

	_, err = e.Analyze(ctx, "TCS", false)
	require.NoError(t, err)
	assert.Equal(t, fin, f.finCalls.Load(), "a fresh cache hit must perform zero fetches")
	assert.Equal(t, quote, f.quoteCalls.Load())
	assert.Equal(t, hold, f.holdCalls.Load())
}

func TestForceRefreshBypassesCache(t *testing.T) {
	f := &fakeSources{}
	e := newTestEngine(t, f)
	ctx := context.Background()

	first, err := e.Analyze(ctx, "TCS", false)
	require.NoError(t, err)

	second, err := e.Analyze(ctx, "TCS", true)
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.finCalls.Load())
	assert.NotSame(t, first, second, "forceRefresh produces a superseding result")
	assert.False(t, second.ComputedAt.Before(first.ComputedAt))
}

func TestRequiredFetchRetriesOnceThenFails(t *testing.T) {
	f := &fakeSources{}
	f.finFailures.Store(5) // more failures than the one retry allows
	e := newTestEngine(t, f)

	_, err := e.Analyze(context.Background(), "TCS", false)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindSourceUnavailable))
	assert.Equal(t, int64(2), f.finCalls.Load(), "exactly one retry")

	// The failed job is gone; a later call starts fresh and succeeds.
	f.finFailures.Store(0)
	res, err := e.Analyze(context.Background(), "TCS", false)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictStrongBuy, res.Verdict)
}

func TestRequiredFetchRecoversOnRetry(t *testing.T) {
	f := &fakeSources{}
	f.finFailures.Store(1)
	e := newTestEngine(t, f)

	res, err := e.Analyze(context.Background(), "TCS", false)
	require.NoError(t, err, "a single transient failure should be absorbed by the retry")
	assert.Equal(t, int64(2), f.finCalls.Load())
	assert.Equal(t, models.VerdictStrongBuy, res.Verdict)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	f := &fakeSources{}
	f.finNotFound.Store(true)
	e := newTestEngine(t, f)

	_, err := e.Analyze(context.Background(), "NOPE", false)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.Equal(t, int64(1), f.finCalls.Load(), "not-found is final, no retry")
}

func TestJobTimeout(t *testing.T) {
	f := &fakeSources{finDelay: 5 * time.Second} // beyond the 2s budget
	e := newTestEngine(t, f)

	_, err := e.Analyze(context.Background(), "SLOW", false)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindTimeout), "expected timeout kind, got %v", err)

	// Partial work is discarded, not cached.
	view, ok := e.GetJobStatus(context.Background(), "SLOW")
	require.True(t, ok)
	assert.Equal(t, models.JobFailed, view.Status)
	assert.Nil(t, view.Result)
}

func TestOptionalShareholdingDegrades(t *testing.T) {
	f := &fakeSources{}
	f.holdFail.Store(true)
	e := newTestEngine(t, f)

	res, err := e.Analyze(context.Background(), "TCS", false)
	require.NoError(t, err, "a missing optional series must not fail the job")

	own := res.Metrics[models.MetricOwnership]
	assert.False(t, own.Available)
	// Remaining weights renormalize: everything else GREEN still scores 100.
	assert.Equal(t, 100.0, res.Composite)
}

func TestWaitersShareFailure(t *testing.T) {
	f := &fakeSources{finDelay: 50 * time.Millisecond}
	f.finFailures.Store(5)
	e := newTestEngine(t, f)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Analyze(context.Background(), "TCS", false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Error(t, errs[i])
		assert.True(t, models.IsKind(errs[i], models.KindSourceUnavailable))
	}
	assert.Equal(t, int64(2), f.finCalls.Load(), "one cycle, one retry, shared by all waiters")
}

func TestGetJobStatus(t *testing.T) {
	f := &fakeSources{finDelay: 100 * time.Millisecond}
	e := newTestEngine(t, f)
	ctx := context.Background()

	_, ok := e.GetJobStatus(ctx, "TCS")
	assert.False(t, ok, "unknown symbol has no status")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Analyze(ctx, "TCS", false)
	}()

	// Poll while the job is in flight.
	require.Eventually(t, func() bool {
		view, ok := e.GetJobStatus(ctx, "TCS")
		return ok && (view.Status == models.JobPending || view.Status == models.JobRunning)
	}, time.Second, 5*time.Millisecond)

	<-done
	view, ok := e.GetJobStatus(ctx, "TCS")
	require.True(t, ok)
	assert.Equal(t, models.JobComplete, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, "TCS", view.Result.Symbol)
}

func TestGetJobStatusAfterFailure(t *testing.T) {
	f := &fakeSources{}
	f.finNotFound.Store(true)
	e := newTestEngine(t, f)
	ctx := context.Background()

	_, err := e.Analyze(ctx, "GHOST", false)
	require.Error(t, err)

	view, ok := e.GetJobStatus(ctx, "GHOST")
	require.True(t, ok)
	assert.Equal(t, models.JobFailed, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, models.KindNotFound, view.Error.Kind)
}

func TestCallerContextCancellation(t *testing.T) {
	f := &fakeSources{finDelay: 500 * time.Millisecond}
	e := newTestEngine(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Analyze(ctx, "TCS", false)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindTimeout))

	// The job itself kept running and completed for everyone else.
	res, err := e.Analyze(context.Background(), "TCS", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.finCalls.Load(), "the abandoned job's result is reused")
	assert.NotNil(t, res)
}
