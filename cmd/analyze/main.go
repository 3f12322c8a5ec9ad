// One-shot analysis from the command line: fetch, score, print, exit.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"github.com/adityaloshali/stonky/pkg/core/config"
	"github.com/adityaloshali/stonky/pkg/core/engine"
	"github.com/adityaloshali/stonky/pkg/core/fetch"
	"github.com/adityaloshali/stonky/pkg/core/sector"
	"github.com/adityaloshali/stonky/pkg/core/store"
	"github.com/adityaloshali/stonky/pkg/models"
)

func main() {
	godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: analyze [-config config.yaml] [-json] SYMBOL")
		os.Exit(2)
	}
	symbol := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	screener := fetch.NewScreenerClient(fetch.ScreenerConfig{
		BaseURL:       cfg.Screener.BaseURL,
		SessionCookie: cfg.Screener.SessionCookie,
		Timeout:       time.Duration(cfg.Screener.TimeoutSecs) * time.Second,
		RatePerSec:    cfg.Screener.RatePerSec,
	})

	eng, err := engine.New(
		engine.Sources{Financials: screener, Holdings: screener, Quotes: screener, Peers: screener},
		sector.NewResolver(cfg.Sector.Rules),
		store.NewResultCache(nil),
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

	res, err := eng.Analyze(context.Background(), symbol, true)
	if err != nil {
		log.Fatal().Str("symbol", symbol).Err(err).Msg("analysis failed")
	}

	if *asJSON {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return
	}
	printSummary(res)
}

func printSummary(res *models.AnalysisResult) {
	fmt.Printf("%s (%s)\n", res.Company.Name, res.Symbol)
	fmt.Printf("Sector: %s   Price: %.2f\n\n", res.Company.Sector, res.Company.Price)

	order := []string{
		models.MetricGrowth, models.MetricQuality, models.MetricRisk,
		models.MetricValuation, models.MetricOwnership,
	}
	for _, name := range order {
		m := res.Metrics[name]
		if !m.Available {
			fmt.Printf("%-11s n/a (%s)\n", name, m.Unavailable)
			continue
		}
		line := fmt.Sprintf("%-11s %s", name, m.Flag)
		if m.Call != "" {
			line += fmt.Sprintf(" (%s)", m.Call)
		}
		for _, f := range m.SecondaryFlags {
			line += " [" + f + "]"
		}
		for _, f := range m.OwnershipFlags {
			line += " [" + f + "]"
		}
		fmt.Println(line)
	}

	fmt.Printf("\nComposite: %.1f\nVerdict:   %s\n\n%s\n", res.Composite, res.Verdict, res.Reasoning)
}
