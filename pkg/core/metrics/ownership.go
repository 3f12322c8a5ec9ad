package metrics

import "github.com/adityaloshali/stonky/pkg/models"

// Quarters of FII history used for the stake-trend regression.
const fiiTrendQuarters = 4

// ExtractOwnership inspects the shareholding pattern and emits zero or more
// warning flags: any promoter pledging, a falling FII stake over the trailing
// four quarters, and a quarter-over-quarter promoter decrease. Ownership
// health is multi-signal, so the result carries a flag list; the primary flag
// is RED when anything fired and GREEN otherwise.
func ExtractOwnership(series models.ShareholdingSeries) models.MetricResult {
	latest, ok := series.Latest()
	if !ok {
		return models.UnavailableMetric(models.MetricOwnership, "no shareholding data")
	}

	res := models.MetricResult{
		Metric:    models.MetricOwnership,
		Available: true,
		Values: map[string]float64{
			"promoter_pct": latest.PromoterPct,
			"pledged_pct":  latest.PledgedPct,
			"fii_pct":      latest.FIIPct,
		},
	}

	if latest.PledgedPct > 0 {
		res.OwnershipFlags = append(res.OwnershipFlags, models.OwnPromoterPledging)
	}

	if len(series.Snapshots) >= fiiTrendQuarters {
		recent := series.Snapshots[len(series.Snapshots)-fiiTrendQuarters:]
		var fii []float64
		for _, s := range recent {
			fii = append(fii, s.FIIPct)
		}
		if slope, defined := Slope(fii); defined {
			res.Values["fii_slope_4q"] = slope
			if slope < 0 {
				res.OwnershipFlags = append(res.OwnershipFlags, models.OwnFIIReducing)
			}
		}
	}

	if len(series.Snapshots) >= 2 {
		prev := series.Snapshots[len(series.Snapshots)-2]
		res.Values["promoter_change_qoq"] = latest.PromoterPct - prev.PromoterPct
		if latest.PromoterPct < prev.PromoterPct {
			res.OwnershipFlags = append(res.OwnershipFlags, models.OwnPromoterSelling)
		}
	}

	if len(res.OwnershipFlags) > 0 {
		res.Flag = models.FlagRed
	} else {
		res.Flag = models.FlagGreen
	}
	return res
}
