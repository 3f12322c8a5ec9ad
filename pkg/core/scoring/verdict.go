package scoring

import "github.com/adityaloshali/stonky/pkg/models"

// Composite scores at or above this open the buy-side verdicts.
const verdictScoreBar = 60.0

// Verdict maps (risk flag, valuation call, composite) to the recommendation.
// The table is exhaustive over its discrete inputs; every combination is an
// explicit case, including degraded inputs (unavailable risk or valuation),
// which land on HOLD rather than falling through silently.
//
//	Risk   Valuation    Composite  Verdict
//	RED    any          any        AVOID
//	GREEN  Undervalued  >=60       STRONG_BUY
//	GREEN  Fair         >=60       ACCUMULATE
//	GREEN  Overvalued   any        WAIT
//	otherwise           <60        HOLD
func Verdict(risk models.MetricResult, valuation models.MetricResult, composite float64) models.Verdict {
	if risk.Available && risk.Flag == models.FlagRed {
		return models.VerdictAvoid
	}
	if !risk.Available || !valuation.Available {
		return models.VerdictHold
	}

	switch valuation.Call {
	case models.Undervalued:
		if composite >= verdictScoreBar {
			return models.VerdictStrongBuy
		}
		return models.VerdictHold
	case models.FairValued:
		if composite >= verdictScoreBar {
			return models.VerdictAccumulate
		}
		return models.VerdictHold
	case models.Overvalued:
		return models.VerdictWait
	default:
		return models.VerdictHold
	}
}
