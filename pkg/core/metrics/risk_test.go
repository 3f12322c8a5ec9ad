package metrics

import (
	"testing"

	"github.com/adityaloshali/stonky/pkg/core/sector"
	"github.com/adityaloshali/stonky/pkg/models"
)

func deSeries(de float64) models.FinancialSeries {
	return models.FinancialSeries{Symbol: "TEST", Years: []models.YearRecord{
		{FiscalYear: 2023, DebtToEquity: 0.1},
		{FiscalYear: 2024, DebtToEquity: de},
	}}
}

func TestExtractRiskSectorThresholds(t *testing.T) {
	resolver := sector.NewResolver(nil)

	tests := []struct {
		name   string
		sector string
		de     float64
		want   models.Flag
	}{
		// The same leverage reads differently across sectors.
		{"bank below threshold", "Private Sector Bank", 1.5, models.FlagGreen},
		{"IT above threshold", "IT - Software", 1.5, models.FlagRed},
		{"IT asset light", "IT - Software", 0.1, models.FlagGreen},
		{"unknown sector uses default", "Textiles", 0.9, models.FlagGreen},
		{"unknown sector over default", "Textiles", 1.1, models.FlagRed},
		// Strictly below: equality is RED.
		{"exactly at threshold", "Textiles", 1.0, models.FlagRed},
		{"empty sector uses default", "", 0.5, models.FlagGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExtractRisk(deSeries(tt.de), tt.sector, resolver)
			if !res.Available {
				t.Fatal("expected risk to be available")
			}
			if res.Flag != tt.want {
				t.Errorf("sector %q D/E %.2f: expected %s, got %s",
					tt.sector, tt.de, tt.want, res.Flag)
			}
		})
	}
}

func TestExtractRiskUsesLatestYear(t *testing.T) {
	// Unsorted input: the 2024 record must win.
	s := models.FinancialSeries{Symbol: "TEST", Years: []models.YearRecord{
		{FiscalYear: 2024, DebtToEquity: 3.0},
		{FiscalYear: 2023, DebtToEquity: 0.1},
	}}
	res := ExtractRisk(s, "Bank", sector.NewResolver(nil))
	if res.Flag != models.FlagRed {
		t.Errorf("latest D/E 3.0 vs bank threshold 2.0 should be RED, got %s", res.Flag)
	}
}

func TestExtractRiskEmptySeries(t *testing.T) {
	res := ExtractRisk(models.FinancialSeries{Symbol: "TEST"}, "Bank", sector.NewResolver(nil))
	if res.Available {
		t.Error("empty series should degrade to unavailable")
	}
}
