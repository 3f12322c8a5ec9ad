package metrics

import (
	"testing"
	"time"

	"github.com/adityaloshali/stonky/pkg/models"
)

func quarter(i int, promoter, pledged, fii float64) models.OwnershipSnapshot {
	public := 100 - promoter - fii - 10 // DII fixed at 10
	return models.OwnershipSnapshot{
		Quarter:     "Q",
		Date:        time.Date(2024, time.Month(3*i+1), 1, 0, 0, 0, 0, time.UTC),
		PromoterPct: promoter,
		PledgedPct:  pledged,
		FIIPct:      fii,
		DIIPct:      10,
		PublicPct:   public,
	}
}

func holding(snaps ...models.OwnershipSnapshot) models.ShareholdingSeries {
	return models.ShareholdingSeries{Symbol: "TEST", Snapshots: snaps}
}

func TestExtractOwnershipClean(t *testing.T) {
	res := ExtractOwnership(holding(
		quarter(0, 50, 0, 20),
		quarter(1, 50, 0, 21),
		quarter(2, 50, 0, 22),
		quarter(3, 50, 0, 23),
	))
	if !res.Available {
		t.Fatal("expected ownership to be available")
	}
	if len(res.OwnershipFlags) != 0 {
		t.Errorf("expected no flags, got %v", res.OwnershipFlags)
	}
	if res.Flag != models.FlagGreen {
		t.Errorf("expected GREEN, got %s", res.Flag)
	}
}

func TestExtractOwnershipFlags(t *testing.T) {
	// Pledging, FII exiting and the promoter trimming, all at once.
	res := ExtractOwnership(holding(
		quarter(0, 55, 0, 25),
		quarter(1, 55, 0, 24),
		quarter(2, 54, 2, 23),
		quarter(3, 52, 5, 22),
	))
	want := map[string]bool{
		models.OwnPromoterPledging: true,
		models.OwnFIIReducing:      true,
		models.OwnPromoterSelling:  true,
	}
	if len(res.OwnershipFlags) != len(want) {
		t.Fatalf("expected %d flags, got %v", len(want), res.OwnershipFlags)
	}
	for _, f := range res.OwnershipFlags {
		if !want[f] {
			t.Errorf("unexpected flag %q", f)
		}
	}
	if res.Flag != models.FlagRed {
		t.Errorf("expected RED with flags present, got %s", res.Flag)
	}
	if res.Values["fii_slope_4q"] >= 0 {
		t.Errorf("expected negative FII slope, got %f", res.Values["fii_slope_4q"])
	}
}

func TestExtractOwnershipShortHistory(t *testing.T) {
	// Two quarters: no FII regression, but QoQ promoter change still works.
	res := ExtractOwnership(holding(
		quarter(0, 55, 0, 20),
		quarter(1, 54, 0, 20),
	))
	if _, ok := res.Values["fii_slope_4q"]; ok {
		t.Error("FII slope needs four quarters")
	}
	if len(res.OwnershipFlags) != 1 || res.OwnershipFlags[0] != models.OwnPromoterSelling {
		t.Errorf("expected only promoter-selling, got %v", res.OwnershipFlags)
	}
}

func TestExtractOwnershipNoData(t *testing.T) {
	res := ExtractOwnership(models.ShareholdingSeries{Symbol: "TEST"})
	if res.Available {
		t.Error("empty series should degrade to unavailable")
	}
}

func TestShareholdingSeriesDropsMalformed(t *testing.T) {
	good := quarter(1, 50, 0, 20)
	bad := models.OwnershipSnapshot{
		Quarter: "Q0", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PromoterPct: 50, FIIPct: 20, DIIPct: 10, PublicPct: 5, // sums to 85
	}
	s, err := models.NewShareholdingSeries("TEST", []models.OwnershipSnapshot{bad, good})
	if err != nil {
		t.Fatalf("one valid snapshot should survive: %v", err)
	}
	if len(s.Snapshots) != 1 {
		t.Fatalf("expected malformed snapshot dropped, got %d", len(s.Snapshots))
	}

	// All snapshots malformed is a malformed-data error.
	_, err = models.NewShareholdingSeries("TEST", []models.OwnershipSnapshot{bad})
	if !models.IsKind(err, models.KindMalformedData) {
		t.Errorf("expected malformed-data error, got %v", err)
	}
}
