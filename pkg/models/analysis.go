package models

import "time"

// Flag is the qualitative outcome of a metric extractor.
type Flag string

const (
	FlagGreen  Flag = "GREEN"
	FlagYellow Flag = "YELLOW"
	FlagRed    Flag = "RED"
)

// ValuationCall classifies current price against the fair-value anchors.
type ValuationCall string

const (
	Undervalued ValuationCall = "Undervalued"
	FairValued  ValuationCall = "Fair"
	Overvalued  ValuationCall = "Overvalued"
)

// Verdict is the final recommendation label.
type Verdict string

const (
	VerdictStrongBuy  Verdict = "STRONG_BUY"
	VerdictAccumulate Verdict = "ACCUMULATE"
	VerdictWait       Verdict = "WAIT"
	VerdictHold       Verdict = "HOLD"
	VerdictAvoid      Verdict = "AVOID"
)

// Ownership flag labels. Ownership health is multi-signal, so the extractor
// emits zero or more of these instead of a single flag.
const (
	OwnPromoterPledging = "promoter-pledging"
	OwnFIIReducing      = "fii-reducing-stake"
	OwnPromoterSelling  = "promoter-selling"
)

// FlagAggressiveAccounting is the Quality extractor's secondary forensic flag,
// raised when cumulative profit runs well ahead of cumulative operating cash.
const FlagAggressiveAccounting = "aggressive-accounting"

// MetricResult is one extractor's output. Values holds the computed figures
// keyed by name; a metric missing from the map was undefined for this company
// (e.g. CAGR over a non-positive base). Immutable once produced.
type MetricResult struct {
	Metric         string             `json:"metric"`
	Available      bool               `json:"available"`
	Unavailable    string             `json:"unavailable_reason,omitempty"`
	Flag           Flag               `json:"flag,omitempty"`
	Values         map[string]float64 `json:"values,omitempty"`
	OwnershipFlags []string           `json:"ownership_flags,omitempty"`
	SecondaryFlags []string           `json:"secondary_flags,omitempty"`
	Call           ValuationCall      `json:"call,omitempty"`
}

// Unavailable builds a MetricResult marking the extractor as having no usable
// data. The reason is surfaced to callers, never an error.
func UnavailableMetric(metric, reason string) MetricResult {
	return MetricResult{Metric: metric, Available: false, Unavailable: reason}
}

// HasSecondary reports whether a secondary flag is present.
func (m MetricResult) HasSecondary(flag string) bool {
	for _, f := range m.SecondaryFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Metric names, used as keys in AnalysisResult and as scoring identities.
const (
	MetricGrowth    = "growth"
	MetricQuality   = "quality"
	MetricRisk      = "risk"
	MetricValuation = "valuation"
	MetricOwnership = "ownership"
)

// AnalysisResult is the unit of caching and the unit returned to callers.
// A re-analysis produces a new value superseding the old one in the cache.
type AnalysisResult struct {
	Symbol     string                  `json:"symbol"`
	Company    Company                 `json:"company"`
	Metrics    map[string]MetricResult `json:"metrics"`
	Composite  float64                 `json:"composite"`
	Verdict    Verdict                 `json:"verdict"`
	Reasoning  string                  `json:"reasoning"`
	ComputedAt time.Time               `json:"computed_at"`
}

// FreshWithin reports whether the result was computed inside the window.
func (r *AnalysisResult) FreshWithin(window time.Duration, now time.Time) bool {
	return now.Sub(r.ComputedAt) < window
}

// JobStatus tracks an in-flight computation for a symbol.
type JobStatus string

const (
	JobPending  JobStatus = "PENDING"
	JobRunning  JobStatus = "RUNNING"
	JobComplete JobStatus = "COMPLETE"
	JobFailed   JobStatus = "FAILED"
)

// JobView is the polling snapshot returned by GetJobStatus.
type JobView struct {
	ID     string          `json:"id"`
	Symbol string          `json:"symbol"`
	Status JobStatus       `json:"status"`
	Result *AnalysisResult `json:"result,omitempty"`
	Error  *AnalysisError  `json:"error,omitempty"`
}
