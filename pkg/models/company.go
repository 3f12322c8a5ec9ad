package models

import (
	"fmt"
	"sort"
	"time"
)

// MinHistoryYears is the minimum number of annual records required before the
// trailing-window extractors produce a result instead of insufficient-data.
const MinHistoryYears = 3

// Company identifies a listed company plus its current market snapshot.
type Company struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Name     string  `json:"name"`
	Sector   string  `json:"sector"`
	Price    float64 `json:"price"`
	PE       float64 `json:"pe"`
}

// YearRecord holds one fiscal year of annual fundamentals.
// Percentages (ROCE, ROE) are stored in percent units, i.e. 15.0 means 15%.
// Amounts (revenue, profit, cash flow) are in Crores, matching the source.
type YearRecord struct {
	FiscalYear    int     `json:"fiscal_year"`
	Revenue       float64 `json:"revenue"`
	NetProfit     float64 `json:"net_profit"`
	CashFromOps   float64 `json:"cash_from_ops"`
	ROCE          float64 `json:"roce"`
	ROE           float64 `json:"roe"`
	DebtToEquity  float64 `json:"debt_to_equity"`
	EPS           float64 `json:"eps"`
	BookValue     float64 `json:"book_value"`
	PE            float64 `json:"pe"`
}

// FinancialSeries is a company's ordered annual history, oldest first.
type FinancialSeries struct {
	Symbol string       `json:"symbol"`
	Years  []YearRecord `json:"years"`
}

// Sorted returns a copy of the series with records ordered by fiscal year.
func (s FinancialSeries) Sorted() FinancialSeries {
	out := FinancialSeries{Symbol: s.Symbol, Years: make([]YearRecord, len(s.Years))}
	copy(out.Years, s.Years)
	sort.Slice(out.Years, func(i, j int) bool {
		return out.Years[i].FiscalYear < out.Years[j].FiscalYear
	})
	return out
}

// Validate enforces the series invariant: fiscal years strictly increasing
// and unique once sorted.
func (s FinancialSeries) Validate() error {
	sorted := s.Sorted()
	for i := 1; i < len(sorted.Years); i++ {
		if sorted.Years[i].FiscalYear == sorted.Years[i-1].FiscalYear {
			return NewError(KindMalformedData, s.Symbol,
				fmt.Errorf("duplicate fiscal year %d", sorted.Years[i].FiscalYear))
		}
	}
	return nil
}

// Latest returns the most recent year record, or false for an empty series.
func (s FinancialSeries) Latest() (YearRecord, bool) {
	if len(s.Years) == 0 {
		return YearRecord{}, false
	}
	return s.Sorted().Years[len(s.Years)-1], true
}

// ownershipSumTolerance allows for rounding in published shareholding tables.
const ownershipSumTolerance = 1.0

// OwnershipSnapshot is one quarterly shareholding pattern.
// PledgedPct is the pledged share of the promoter holding, not of the company.
type OwnershipSnapshot struct {
	Quarter     string    `json:"quarter"`
	Date        time.Time `json:"date"`
	PromoterPct float64   `json:"promoter_pct"`
	PledgedPct  float64   `json:"pledged_pct"`
	FIIPct      float64   `json:"fii_pct"`
	DIIPct      float64   `json:"dii_pct"`
	PublicPct   float64   `json:"public_pct"`
}

// Valid reports whether the four ownership buckets sum to ~100.
func (o OwnershipSnapshot) Valid() bool {
	sum := o.PromoterPct + o.FIIPct + o.DIIPct + o.PublicPct
	return sum >= 100-ownershipSumTolerance && sum <= 100+ownershipSumTolerance
}

// ShareholdingSeries is an ordered run of quarterly snapshots, oldest first.
type ShareholdingSeries struct {
	Symbol    string              `json:"symbol"`
	Snapshots []OwnershipSnapshot `json:"snapshots"`
}

// NewShareholdingSeries builds a series from raw snapshots, dropping any that
// fail the sum-to-100 check. It returns a malformed-data error only when no
// valid snapshot remains out of a non-empty input.
func NewShareholdingSeries(symbol string, raw []OwnershipSnapshot) (ShareholdingSeries, error) {
	s := ShareholdingSeries{Symbol: symbol}
	for _, snap := range raw {
		if snap.Valid() {
			s.Snapshots = append(s.Snapshots, snap)
		}
	}
	sort.Slice(s.Snapshots, func(i, j int) bool {
		return s.Snapshots[i].Date.Before(s.Snapshots[j].Date)
	})
	if len(raw) > 0 && len(s.Snapshots) == 0 {
		return s, NewError(KindMalformedData, symbol,
			fmt.Errorf("all %d shareholding snapshots malformed", len(raw)))
	}
	return s, nil
}

// Latest returns the most recent snapshot, or false for an empty series.
func (s ShareholdingSeries) Latest() (OwnershipSnapshot, bool) {
	if len(s.Snapshots) == 0 {
		return OwnershipSnapshot{}, false
	}
	return s.Snapshots[len(s.Snapshots)-1], true
}
