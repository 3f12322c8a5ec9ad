// Package fetch defines the external collaborator contracts the engine
// depends on, plus the screener.in implementation. The orchestrator only ever
// sees the interfaces; everything about sessions, markup and rate limits
// stays behind them.
package fetch

import (
	"context"

	"github.com/adityaloshali/stonky/pkg/models"
)

// FinancialsSource supplies a company's annual fundamental history.
// Errors carry the taxonomy kind: not-found when the symbol does not exist,
// source-unavailable for anything transient.
type FinancialsSource interface {
	FetchFinancials(ctx context.Context, symbol string) (models.FinancialSeries, error)
}

// ShareholdingSource supplies the quarterly shareholding pattern. The series
// is optional for an analysis: a failure here degrades the Ownership metric
// instead of failing the job.
type ShareholdingSource interface {
	FetchShareholding(ctx context.Context, symbol string) (models.ShareholdingSeries, error)
}

// QuoteSource supplies the company identity and current market snapshot
// (price, PE, sector label).
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (models.Company, error)
}

// PeerSource supplies the sector's median PE for the valuation comparison.
// ok=false means the figure is unknown; callers degrade, they do not fail.
type PeerSource interface {
	FetchSectorMedianPE(ctx context.Context, sectorLabel string) (pe float64, ok bool, err error)
}
