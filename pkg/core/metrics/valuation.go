package metrics

import (
	"math"

	"github.com/adityaloshali/stonky/pkg/models"
)

const (
	grahamMultiplier = 22.5
	dcfHorizonYears  = 5
	// Cap on the projected FCF growth rate. Short noisy histories can imply
	// absurd CAGRs; anything beyond this band is extrapolation, not data.
	dcfGrowthCap = 0.20
	peHistoryYears = 5
)

// ValuationParams are the startup-configured DCF rates.
type ValuationParams struct {
	DiscountRate   float64
	TerminalGrowth float64
}

// GrahamNumber computes sqrt(22.5 * EPS * book value per share), the
// conservative fair-price heuristic. Undefined for non-positive inputs.
func GrahamNumber(eps, bookValue float64) (float64, bool) {
	if eps <= 0 || bookValue <= 0 {
		return 0, false
	}
	return math.Sqrt(grahamMultiplier * eps * bookValue), true
}

// ExtractValuation produces the Graham number, a per-share DCF estimate and
// the PE comparison, then classifies current price against whichever fair
// value anchors are defined: below all anchors is Undervalued, above all is
// Overvalued, anything else is Fair. With no usable anchor the metric is
// unavailable rather than guessed.
//
// sectorPE is the peer median PE from the orchestrator's peer fetch; pass
// ok=false when it could not be obtained and the comparison degrades to
// current-vs-historical only.
func ExtractValuation(series models.FinancialSeries, company models.Company, params ValuationParams, sectorPE float64, sectorPEOK bool) models.MetricResult {
	sorted := series.Sorted()
	latest, ok := sorted.Latest()
	if !ok {
		return models.UnavailableMetric(models.MetricValuation, "no annual records")
	}

	res := models.MetricResult{
		Metric:    models.MetricValuation,
		Available: true,
		Values:    map[string]float64{},
	}

	var anchors []float64

	if graham, defined := GrahamNumber(latest.EPS, latest.BookValue); defined {
		res.Values["graham_number"] = graham
		anchors = append(anchors, graham)
	}

	if dcf, defined := dcfPerShare(sorted, params); defined {
		res.Values["dcf_value"] = dcf
		anchors = append(anchors, dcf)
	}

	// PE comparison is informational; it does not feed the price anchors.
	res.Values["pe_current"] = company.PE
	if len(sorted.Years) >= models.MinHistoryYears {
		window := sorted.Years
		if len(window) > peHistoryYears {
			window = window[len(window)-peHistoryYears:]
		}
		var pes []float64
		for _, y := range window {
			if y.PE > 0 {
				pes = append(pes, y.PE)
			}
		}
		if len(pes) > 0 {
			res.Values["pe_median_5y"] = Median(pes)
		}
	}
	if sectorPEOK {
		res.Values["pe_sector_median"] = sectorPE
	}

	if len(anchors) == 0 {
		return models.UnavailableMetric(models.MetricValuation, "no fair value anchor computable")
	}

	below, above := 0, 0
	for _, a := range anchors {
		if company.Price < a {
			below++
		} else if company.Price > a {
			above++
		}
	}
	switch {
	case below == len(anchors):
		res.Call = models.Undervalued
	case above == len(anchors):
		res.Call = models.Overvalued
	default:
		res.Call = models.FairValued
	}
	return res
}

// dcfPerShare projects per-share free cash flow (operating cash flow proxy)
// forward five years at the capped trailing 3-year FCF CAGR, discounts each
// flow, and adds a Gordon-growth terminal value when the terminal rate is
// strictly below the discount rate. Share count is implied from net profit
// over EPS in the latest year.
func dcfPerShare(sorted models.FinancialSeries, params ValuationParams) (float64, bool) {
	if len(sorted.Years) < models.MinHistoryYears {
		return 0, false
	}
	latest := sorted.Years[len(sorted.Years)-1]
	if latest.EPS <= 0 || latest.NetProfit <= 0 {
		return 0, false
	}
	shares := latest.NetProfit / latest.EPS
	fcf := latest.CashFromOps / shares
	if fcf <= 0 {
		return 0, false
	}

	base := sorted.Years[len(sorted.Years)-models.MinHistoryYears]
	growth, defined := CAGR(base.CashFromOps, latest.CashFromOps, float64(models.MinHistoryYears-1))
	if !defined {
		return 0, false
	}
	growth = Clamp(growth, -dcfGrowthCap, dcfGrowthCap)

	// Discount-factor walk, terminal value capitalized off the final flow.
	value := 0.0
	discount := 1.0
	flow := fcf
	for i := 0; i < dcfHorizonYears; i++ {
		flow *= 1 + growth
		discount /= 1 + params.DiscountRate
		value += flow * discount
	}
	if params.TerminalGrowth < params.DiscountRate {
		terminal := flow * (1 + params.TerminalGrowth) / (params.DiscountRate - params.TerminalGrowth)
		value += terminal * discount
	}
	return value, true
}
