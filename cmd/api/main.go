package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/phuslu/log"

	"github.com/adityaloshali/stonky/pkg/api/analysis"
	"github.com/adityaloshali/stonky/pkg/core/config"
	"github.com/adityaloshali/stonky/pkg/core/engine"
	"github.com/adityaloshali/stonky/pkg/core/fetch"
	"github.com/adityaloshali/stonky/pkg/core/refresh"
	"github.com/adityaloshali/stonky/pkg/core/sector"
	"github.com/adityaloshali/stonky/pkg/core/store"
)

func main() {
	// .env for local development; real deployments set the environment.
	godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	ctx := context.Background()

	// Postgres is optional: without it results live in memory only.
	if cfg.Database.URL != "" {
		if err := store.InitDB(ctx, cfg.Database.URL); err != nil {
			log.Warn().Err(err).Msg("database unavailable, running memory-only")
		}
	}
	cache := store.NewResultCache(store.GetPool())
	if err := cache.EnsureSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("schema setup failed, running memory-only")
	}

	screener := fetch.NewScreenerClient(fetch.ScreenerConfig{
		BaseURL:       cfg.Screener.BaseURL,
		SessionCookie: cfg.Screener.SessionCookie,
		Timeout:       time.Duration(cfg.Screener.TimeoutSecs) * time.Second,
		RatePerSec:    cfg.Screener.RatePerSec,
	})

	eng, err := engine.New(
		engine.Sources{
			Financials: screener,
			Holdings:   screener,
			Quotes:     screener,
			Peers:      screener,
		},
		sector.NewResolver(cfg.Sector.Rules),
		cache,
		engine.Options{
			Freshness:       cfg.FreshnessWindow(),
			JobTimeout:      cfg.JobTimeout(),
			Weights:         cfg.Engine.Weights.Map(),
			ForensicPenalty: cfg.Engine.ForensicPenalty,
			Valuation:       cfg.ValuationParams(),
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("engine setup failed")
	}

	refresher := refresh.New(eng, cfg.Refresh.Watchlist, cache.Symbols)
	if err := refresher.Start(cfg.Refresh.Cron); err != nil {
		log.Fatal().Err(err).Msg("refresher setup failed")
	}
	defer refresher.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Int("status", v.Status).Str("uri", v.URI).Msg("request")
			return nil
		},
	}))

	analysis.New(eng).Register(e)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("api server starting")
		if err := e.Start(cfg.Server.Addr); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	store.Close()
}
