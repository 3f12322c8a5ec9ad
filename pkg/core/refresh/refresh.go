// Package refresh runs the scheduled re-analysis of watched symbols so the
// morning's first request is served warm instead of paying a fetch cycle.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"github.com/adityaloshali/stonky/pkg/core/engine"
)

// Refresher re-analyzes a fixed watchlist plus every symbol the cache has
// already seen, on a cron schedule.
type Refresher struct {
	cron      *cron.Cron
	engine    *engine.Engine
	watchlist []string
	symbols   func() []string
}

// New builds a refresher. symbols supplies the already-cached symbols at run
// time and may be nil when only the static watchlist should be refreshed.
func New(eng *engine.Engine, watchlist []string, symbols func() []string) *Refresher {
	return &Refresher{
		cron:      cron.New(),
		engine:    eng,
		watchlist: watchlist,
		symbols:   symbols,
	}
}

// Start registers the refresh task under the given cron spec and starts the
// scheduler.
func (r *Refresher) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.runOnce); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	r.cron.Start()
	log.Info().Str("cron", spec).Int("watchlist", len(r.watchlist)).Msg("refresher started")
	return nil
}

// Stop halts the scheduler. A refresh already in progress finishes.
func (r *Refresher) Stop() {
	r.cron.Stop()
	log.Info().Msg("refresher stopped")
}

// RunNow triggers a refresh cycle immediately, outside the schedule.
func (r *Refresher) RunNow() {
	r.runOnce()
}

func (r *Refresher) runOnce() {
	started := time.Now()
	symbols := r.targets()
	log.Info().Int("symbols", len(symbols)).Msg("scheduled refresh starting")

	var failed int
	for _, sym := range symbols {
		// Sequential on purpose: the upstream rate limiter makes parallel
		// refreshes pointless, and one bad symbol must not stop the rest.
		if _, err := r.engine.Analyze(context.Background(), sym, true); err != nil {
			failed++
			log.Warn().Str("symbol", sym).Err(err).Msg("scheduled refresh failed for symbol")
		}
	}

	log.Info().Int("symbols", len(symbols)).Int("failed", failed).
		Dur("took", time.Since(started)).Msg("scheduled refresh finished")
}

// targets merges the static watchlist with the cache's known symbols,
// deduplicated, preserving watchlist order first.
func (r *Refresher) targets() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(sym string) {
		if sym == "" {
			return
		}
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	for _, s := range r.watchlist {
		add(s)
	}
	if r.symbols != nil {
		for _, s := range r.symbols() {
			add(s)
		}
	}
	return out
}
