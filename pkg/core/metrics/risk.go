package metrics

import (
	"github.com/adityaloshali/stonky/pkg/core/sector"
	"github.com/adityaloshali/stonky/pkg/models"
)

// ExtractRisk compares the latest year's debt-to-equity against the sector's
// resolved threshold. The resolver is total, so the extractor never fails on
// an unrecognized sector; only an empty series degrades it to unavailable.
func ExtractRisk(series models.FinancialSeries, sectorLabel string, resolver *sector.Resolver) models.MetricResult {
	latest, ok := series.Latest()
	if !ok {
		return models.UnavailableMetric(models.MetricRisk, "no annual records")
	}

	threshold := resolver.Threshold(sectorLabel)
	res := models.MetricResult{
		Metric:    models.MetricRisk,
		Available: true,
		Values: map[string]float64{
			"debt_to_equity": latest.DebtToEquity,
			"threshold":      threshold,
		},
	}
	if latest.DebtToEquity < threshold {
		res.Flag = models.FlagGreen
	} else {
		res.Flag = models.FlagRed
	}
	return res
}
