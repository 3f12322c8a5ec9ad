package metrics

import "github.com/adityaloshali/stonky/pkg/models"

// Growth flag threshold: 3-year revenue CAGR above this is GREEN.
const growthGreenCAGR = 0.10

// ExtractGrowth computes trailing 3y and 5y CAGR for revenue and net profit.
// A window whose base value is non-positive is undefined for that window and
// excluded from both the values map and the flag decision. Fewer than the
// minimum history years degrades the whole metric to unavailable.
func ExtractGrowth(series models.FinancialSeries) models.MetricResult {
	sorted := series.Sorted()
	if len(sorted.Years) < models.MinHistoryYears {
		return models.UnavailableMetric(models.MetricGrowth, "insufficient history")
	}

	res := models.MetricResult{
		Metric:    models.MetricGrowth,
		Available: true,
		Values:    map[string]float64{},
	}

	windows := []struct {
		name  string
		years int
	}{
		{"3y", 3},
		{"5y", 5},
	}

	for _, w := range windows {
		if len(sorted.Years) < w.years {
			continue
		}
		first := sorted.Years[len(sorted.Years)-w.years]
		last := sorted.Years[len(sorted.Years)-1]
		span := float64(w.years - 1)

		if g, ok := CAGR(first.Revenue, last.Revenue, span); ok {
			res.Values["revenue_cagr_"+w.name] = g
		}
		if g, ok := CAGR(first.NetProfit, last.NetProfit, span); ok {
			res.Values["profit_cagr_"+w.name] = g
		}
	}

	// Flag on the 3y revenue CAGR when defined; an undefined window cannot
	// claim growth, so it falls to RED.
	res.Flag = models.FlagRed
	if g, ok := res.Values["revenue_cagr_3y"]; ok && g > growthGreenCAGR {
		res.Flag = models.FlagGreen
	}
	return res
}
