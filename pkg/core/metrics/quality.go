package metrics

import "github.com/adityaloshali/stonky/pkg/models"

const (
	// Both trailing averages must clear this (in percent) for GREEN.
	qualityReturnBar = 15.0
	// Cumulative profit more than 20% ahead of cumulative operating cash
	// over the forensic window suggests earnings not backed by cash.
	forensicProfitCashRatio = 1.2
	forensicWindowYears     = 5
)

// ExtractQuality averages trailing 3-year ROCE and ROE and applies the
// profitability decision table:
//
//	ROCE avg > 15 and ROE avg > 15  -> GREEN (genuinely profitable)
//	ROCE avg < 15 and ROE avg > 15  -> RED   (returns driven by leverage)
//	otherwise                       -> YELLOW
//
// It also runs a forensic check over the trailing 5 years: cumulative net
// profit exceeding cumulative operating cash flow by more than 20% raises the
// secondary aggressive-accounting flag without overriding the primary flag.
func ExtractQuality(series models.FinancialSeries) models.MetricResult {
	sorted := series.Sorted()
	if len(sorted.Years) < models.MinHistoryYears {
		return models.UnavailableMetric(models.MetricQuality, "insufficient history")
	}

	recent := sorted.Years[len(sorted.Years)-models.MinHistoryYears:]
	var roce, roe []float64
	for _, y := range recent {
		roce = append(roce, y.ROCE)
		roe = append(roe, y.ROE)
	}
	roceAvg := Mean(roce)
	roeAvg := Mean(roe)

	res := models.MetricResult{
		Metric:    models.MetricQuality,
		Available: true,
		Values: map[string]float64{
			"roce_avg_3y": roceAvg,
			"roe_avg_3y":  roeAvg,
		},
	}

	switch {
	case roceAvg > qualityReturnBar && roeAvg > qualityReturnBar:
		res.Flag = models.FlagGreen
	case roceAvg < qualityReturnBar && roeAvg > qualityReturnBar:
		res.Flag = models.FlagRed
	default:
		res.Flag = models.FlagYellow
	}

	window := sorted.Years
	if len(window) > forensicWindowYears {
		window = window[len(window)-forensicWindowYears:]
	}
	var cumProfit, cumCFO float64
	for _, y := range window {
		cumProfit += y.NetProfit
		cumCFO += y.CashFromOps
	}
	res.Values["cum_profit_5y"] = cumProfit
	res.Values["cum_cfo_5y"] = cumCFO
	// A negative cash pile under positive reported profit trips this trivially,
	// which is the point.
	if cumProfit > 0 && cumProfit > forensicProfitCashRatio*cumCFO {
		res.SecondaryFlags = append(res.SecondaryFlags, models.FlagAggressiveAccounting)
	}
	return res
}
