// Package scoring combines the five metric results into the composite score
// and final verdict. All functions are stateless and perform no I/O.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/adityaloshali/stonky/pkg/core/metrics"
	"github.com/adityaloshali/stonky/pkg/models"
)

// Default composite weights. Quality dominates: a mediocre business at a fair
// price beats a good price on a bad business.
var DefaultWeights = map[string]float64{
	models.MetricQuality:   0.30,
	models.MetricRisk:      0.25,
	models.MetricValuation: 0.25,
	models.MetricGrowth:    0.15,
	models.MetricOwnership: 0.05,
}

const (
	// Points subtracted from the weighted composite when the Quality
	// extractor raises its aggressive-accounting flag.
	DefaultForensicPenalty = 10.0

	weightSumEpsilon   = 1e-6
	ownershipFlagCost  = 20.0
)

// ValidateWeights checks that the configured weights cover exactly the five
// metrics and sum to 1.0 within epsilon. Violations are configuration errors.
func ValidateWeights(weights map[string]float64) error {
	known := []string{
		models.MetricGrowth, models.MetricQuality, models.MetricRisk,
		models.MetricValuation, models.MetricOwnership,
	}
	sum := 0.0
	for _, name := range known {
		w, ok := weights[name]
		if !ok {
			return models.Errorf(models.KindConfiguration, "", "missing weight for %q", name)
		}
		if w < 0 {
			return models.Errorf(models.KindConfiguration, "", "negative weight for %q", name)
		}
		sum += w
	}
	if len(weights) != len(known) {
		return models.Errorf(models.KindConfiguration, "", "unknown metric in weights")
	}
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return models.Errorf(models.KindConfiguration, "", "weights sum to %f, want 1.0", sum)
	}
	return nil
}

// SubScore normalizes a metric result to 0-100.
func SubScore(res models.MetricResult) float64 {
	switch res.Metric {
	case models.MetricOwnership:
		return math.Max(0, 100-ownershipFlagCost*float64(len(res.OwnershipFlags)))
	case models.MetricValuation:
		switch res.Call {
		case models.Undervalued:
			return 100
		case models.Overvalued:
			return 0
		default:
			return 50
		}
	default:
		switch res.Flag {
		case models.FlagGreen:
			return 100
		case models.FlagYellow:
			return 50
		default:
			return 0
		}
	}
}

// Composite computes the weighted 0-100 score over the available metrics.
// Unavailable metrics are excluded and the remaining weights renormalized, so
// a company with no shareholding data is not silently punished for it. The
// forensic penalty is applied after weighting and the result clamped.
func Composite(results map[string]models.MetricResult, weights map[string]float64, penalty float64) (float64, string, error) {
	var weightSum float64
	for name, res := range results {
		if res.Available {
			weightSum += weights[name]
		}
	}
	if weightSum <= 0 {
		return 0, "", models.Errorf(models.KindInsufficientData, "", "no metric available to score")
	}

	// Stable iteration order keeps the reasoning string deterministic.
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	score := 0.0
	parts := make([]string, 0, len(names))
	for _, name := range names {
		res := results[name]
		if !res.Available {
			parts = append(parts, fmt.Sprintf("%s=n/a", name))
			continue
		}
		sub := SubScore(res)
		score += sub * weights[name] / weightSum
		parts = append(parts, fmt.Sprintf("%s=%.0f", name, sub))
	}

	if q, ok := results[models.MetricQuality]; ok && q.HasSecondary(models.FlagAggressiveAccounting) {
		score -= penalty
		parts = append(parts, fmt.Sprintf("forensic=-%.0f", penalty))
	}

	score = metrics.Clamp(score, 0, 100)
	reasoning := fmt.Sprintf("composite=%.1f: %s", score, strings.Join(parts, " "))
	return score, reasoning, nil
}
