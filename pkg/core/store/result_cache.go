package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"

	"github.com/adityaloshali/stonky/pkg/models"
)

// ResultCache is the sole long-lived store of AnalysisResults, keyed by
// symbol. Each entry carries its own computation timestamp, so freshness is
// evaluated per entry with no separate last-updated registry.
//
// The memory map is authoritative for the running process; when a pool is
// present, completed results are also upserted to Postgres (JSONB snapshot
// rows) and misses fall through to it, so a restart does not force a refetch
// of every symbol.
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]*models.AnalysisResult
	pool    *pgxpool.Pool
}

// NewResultCache builds a cache. pool may be nil for memory-only operation.
func NewResultCache(pool *pgxpool.Pool) *ResultCache {
	return &ResultCache{
		results: make(map[string]*models.AnalysisResult),
		pool:    pool,
	}
}

// Get returns the most recent completed result for a symbol, consulting
// Postgres on a memory miss. Freshness is the caller's decision; the cache
// returns whatever it holds.
func (c *ResultCache) Get(ctx context.Context, symbol string) (*models.AnalysisResult, bool) {
	key := cacheKey(symbol)

	c.mu.RLock()
	res, ok := c.results[key]
	c.mu.RUnlock()
	if ok {
		return res, true
	}

	if c.pool == nil {
		return nil, false
	}
	res, err := c.loadRow(ctx, key)
	if err != nil || res == nil {
		return nil, false
	}
	c.mu.Lock()
	c.results[key] = res
	c.mu.Unlock()
	return res, true
}

// Put stores a completed result, superseding any previous entry for the
// symbol. The Postgres write is best effort: a persistence failure is logged,
// not propagated, because the result is already safely in memory.
func (c *ResultCache) Put(ctx context.Context, res *models.AnalysisResult) {
	key := cacheKey(res.Symbol)

	c.mu.Lock()
	c.results[key] = res
	c.mu.Unlock()

	if c.pool == nil {
		return
	}
	if err := c.saveRow(ctx, key, res); err != nil {
		log.Warn().Str("symbol", res.Symbol).Err(err).Msg("failed to persist analysis result")
	}
}

// Symbols returns the symbols currently held in memory.
func (c *ResultCache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.results))
	for s := range c.results {
		out = append(out, s)
	}
	return out
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS analysis_snapshots (
		symbol       TEXT PRIMARY KEY,
		data         JSONB NOT NULL,
		computed_at  TIMESTAMPTZ NOT NULL
	)`

// EnsureSchema creates the snapshot table when persistence is enabled.
func (c *ResultCache) EnsureSchema(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	_, err := c.pool.Exec(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("ensure analysis_snapshots: %w", err)
	}
	return nil
}

func (c *ResultCache) saveRow(ctx context.Context, key string, res *models.AnalysisResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = c.pool.Exec(ctx, `
		INSERT INTO analysis_snapshots (symbol, data, computed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE
		SET data = EXCLUDED.data, computed_at = EXCLUDED.computed_at`,
		key, data, res.ComputedAt)
	return err
}

func (c *ResultCache) loadRow(ctx context.Context, key string) (*models.AnalysisResult, error) {
	var data []byte
	err := c.pool.QueryRow(ctx,
		`SELECT data FROM analysis_snapshots WHERE symbol = $1`, key).Scan(&data)
	if err != nil {
		return nil, nil // miss
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return &res, nil
}

func cacheKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// FreshIn is a small helper used by the orchestrator and handlers alike.
func FreshIn(res *models.AnalysisResult, window time.Duration) bool {
	return res != nil && res.FreshWithin(window, time.Now())
}
