package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/adityaloshali/stonky/pkg/core/metrics"
	"github.com/adityaloshali/stonky/pkg/models"
)

// ScreenerConfig configures the screener.in client.
type ScreenerConfig struct {
	BaseURL       string
	SessionCookie string
	Timeout       time.Duration
	RatePerSec    float64
}

// ScreenerClient scrapes screener.in's consolidated company page for annual
// fundamentals, the quarterly shareholding pattern and the current market
// snapshot. One page fetch backs all three contracts; responses are parsed
// with goquery against the page's section ids.
//
// Authentication uses the browser session cookie (sessionid), the same way
// the export endpoints are used interactively.
type ScreenerClient struct {
	cfg     ScreenerConfig
	client  *http.Client
	limiter *rate.Limiter
}

var _ FinancialsSource = (*ScreenerClient)(nil)
var _ ShareholdingSource = (*ScreenerClient)(nil)
var _ QuoteSource = (*ScreenerClient)(nil)
var _ PeerSource = (*ScreenerClient)(nil)

// NewScreenerClient builds a client with a shared rate limiter so concurrent
// jobs cannot hammer the upstream.
func NewScreenerClient(cfg ScreenerConfig) *ScreenerClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 0.5
	}
	return &ScreenerClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

// FetchFinancials parses the profit & loss, cash flow and ratios tables into
// an annual series keyed by fiscal year.
func (c *ScreenerClient) FetchFinancials(ctx context.Context, symbol string) (models.FinancialSeries, error) {
	doc, err := c.companyPage(ctx, symbol)
	if err != nil {
		return models.FinancialSeries{}, err
	}
	series := parseFinancials(doc, symbol)
	if len(series.Years) == 0 {
		return series, models.Errorf(models.KindMalformedData, symbol, "no annual rows on company page")
	}
	if err := series.Validate(); err != nil {
		return series, err
	}
	log.Info().Str("symbol", symbol).Int("years", len(series.Years)).Msg("fetched fundamentals")
	return series, nil
}

// FetchShareholding parses the quarterly shareholding table. Malformed
// snapshots are dropped by the series constructor.
func (c *ScreenerClient) FetchShareholding(ctx context.Context, symbol string) (models.ShareholdingSeries, error) {
	doc, err := c.companyPage(ctx, symbol)
	if err != nil {
		return models.ShareholdingSeries{}, err
	}
	raw := parseShareholding(doc)
	return models.NewShareholdingSeries(symbol, raw)
}

// FetchQuote parses the top-ratios strip and the peers section's sector link.
func (c *ScreenerClient) FetchQuote(ctx context.Context, symbol string) (models.Company, error) {
	doc, err := c.companyPage(ctx, symbol)
	if err != nil {
		return models.Company{}, err
	}
	company := parseQuote(doc, symbol)
	if company.Price == 0 {
		return company, models.Errorf(models.KindMalformedData, symbol, "no current price on company page")
	}
	return company, nil
}

// FetchSectorMedianPE pulls the sector listing and takes the median of the
// peer P/E column. An empty listing is unknown, not an error.
func (c *ScreenerClient) FetchSectorMedianPE(ctx context.Context, sectorLabel string) (float64, bool, error) {
	u := fmt.Sprintf("%s/market/?sector=%s", c.cfg.BaseURL, url.QueryEscape(sectorLabel))
	doc, err := c.get(ctx, u)
	if err != nil {
		return 0, false, err
	}
	pes := parsePeerPEs(doc)
	if len(pes) == 0 {
		return 0, false, nil
	}
	return metrics.Median(pes), true, nil
}

func (c *ScreenerClient) companyPage(ctx context.Context, symbol string) (*goquery.Document, error) {
	u := fmt.Sprintf("%s/company/%s/consolidated/", c.cfg.BaseURL, url.PathEscape(symbol))
	doc, err := c.get(ctx, u)
	if err != nil {
		var ae *models.AnalysisError
		if errors.As(err, &ae) {
			ae.Symbol = symbol
		}
		return nil, err
	}
	return doc, nil
}

func (c *ScreenerClient) get(ctx context.Context, u string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, models.NewError(models.KindSourceUnavailable, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, models.NewError(models.KindSourceUnavailable, "", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Referer", c.cfg.BaseURL+"/")
	if c.cfg.SessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.cfg.SessionCookie})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.NewError(models.KindSourceUnavailable, "", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.Errorf(models.KindNotFound, "", "company page not found")
	case resp.StatusCode == http.StatusForbidden:
		// Session cookies expire; surface this distinctly in logs.
		log.Warn().Str("url", u).Msg("screener session rejected, update SCREENER_COOKIE")
		return nil, models.Errorf(models.KindSourceUnavailable, "", "session expired (403)")
	case resp.StatusCode != http.StatusOK:
		return nil, models.Errorf(models.KindSourceUnavailable, "", "unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, models.NewError(models.KindSourceUnavailable, "", err)
	}
	return doc, nil
}

// parseFinancials reads the year-columned data tables. Row labels follow the
// page's wording ("Sales", "Net Profit", "Cash from Operating Activity").
func parseFinancials(doc *goquery.Document, symbol string) models.FinancialSeries {
	years := map[int]*models.YearRecord{}

	record := func(fy int) *models.YearRecord {
		if r, ok := years[fy]; ok {
			return r
		}
		r := &models.YearRecord{FiscalYear: fy}
		years[fy] = r
		return r
	}

	assign := map[string]func(r *models.YearRecord, v float64){
		"Sales":                        func(r *models.YearRecord, v float64) { r.Revenue = v },
		"Net Profit":                   func(r *models.YearRecord, v float64) { r.NetProfit = v },
		"EPS in Rs":                    func(r *models.YearRecord, v float64) { r.EPS = v },
		"Cash from Operating Activity": func(r *models.YearRecord, v float64) { r.CashFromOps = v },
		"ROCE %":                       func(r *models.YearRecord, v float64) { r.ROCE = v },
		"ROE %":                        func(r *models.YearRecord, v float64) { r.ROE = v },
		"Debt / Equity":                func(r *models.YearRecord, v float64) { r.DebtToEquity = v },
	}

	for _, section := range []string{"#profit-loss", "#cash-flow", "#ratios"} {
		doc.Find(section + " table.data-table").Each(func(_ int, table *goquery.Selection) {
			var fiscalYears []int
			table.Find("thead th").Each(func(i int, th *goquery.Selection) {
				if i == 0 {
					fiscalYears = append(fiscalYears, 0) // label column
					return
				}
				fiscalYears = append(fiscalYears, yearOf(th.Text()))
			})

			table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
				cells := tr.Find("td")
				label := strings.TrimSpace(cells.First().Text())
				setter, ok := assign[label]
				if !ok {
					return
				}
				cells.Each(func(i int, td *goquery.Selection) {
					if i == 0 || i >= len(fiscalYears) || fiscalYears[i] == 0 {
						return
					}
					if v, ok := parseNumber(td.Text()); ok {
						setter(record(fiscalYears[i]), v)
					}
				})
			})
		})
	}

	series := models.FinancialSeries{Symbol: symbol}
	for _, r := range years {
		series.Years = append(series.Years, *r)
	}
	series = series.Sorted()

	// Book value is only published as a current figure; attach it to the
	// latest year so the Graham number sees it.
	if bv, ok := topRatio(doc, "Book Value"); ok && len(series.Years) > 0 {
		series.Years[len(series.Years)-1].BookValue = bv
	}
	if pe, ok := topRatio(doc, "Stock P/E"); ok && len(series.Years) > 0 {
		series.Years[len(series.Years)-1].PE = pe
	}
	return series
}

// parseShareholding reads the quarter-columned shareholding table.
func parseShareholding(doc *goquery.Document) []models.OwnershipSnapshot {
	snaps := map[string]*models.OwnershipSnapshot{}
	var order []string

	snapshot := func(q string) *models.OwnershipSnapshot {
		if s, ok := snaps[q]; ok {
			return s
		}
		s := &models.OwnershipSnapshot{Quarter: q, Date: quarterDate(q)}
		snaps[q] = s
		order = append(order, q)
		return s
	}

	assign := map[string]func(s *models.OwnershipSnapshot, v float64){
		"Promoters": func(s *models.OwnershipSnapshot, v float64) { s.PromoterPct = v },
		"Pledged":   func(s *models.OwnershipSnapshot, v float64) { s.PledgedPct = v },
		"FIIs":      func(s *models.OwnershipSnapshot, v float64) { s.FIIPct = v },
		"DIIs":      func(s *models.OwnershipSnapshot, v float64) { s.DIIPct = v },
		"Public":    func(s *models.OwnershipSnapshot, v float64) { s.PublicPct = v },
	}

	doc.Find("#shareholding table.data-table").Each(func(_ int, table *goquery.Selection) {
		var quarters []string
		table.Find("thead th").Each(func(i int, th *goquery.Selection) {
			quarters = append(quarters, strings.TrimSpace(th.Text()))
		})

		table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			label := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cells.First().Text()), "+"))
			setter, ok := assign[label]
			if !ok {
				return
			}
			cells.Each(func(i int, td *goquery.Selection) {
				if i == 0 || i >= len(quarters) || quarters[i] == "" {
					return
				}
				if v, ok := parseNumber(td.Text()); ok {
					setter(snapshot(quarters[i]), v)
				}
			})
		})
	})

	out := make([]models.OwnershipSnapshot, 0, len(order))
	for _, q := range order {
		out = append(out, *snaps[q])
	}
	return out
}

// parseQuote reads the company name, top ratios and the sector link.
func parseQuote(doc *goquery.Document, symbol string) models.Company {
	company := models.Company{Symbol: symbol, Exchange: "NSE"}
	company.Name = strings.TrimSpace(doc.Find("h1").First().Text())
	if v, ok := topRatio(doc, "Current Price"); ok {
		company.Price = v
	}
	if v, ok := topRatio(doc, "Stock P/E"); ok {
		company.PE = v
	}
	company.Sector = strings.TrimSpace(doc.Find("#peers p.sub a").First().Text())
	return company
}

// parsePeerPEs collects the P/E column from a peer/sector listing table.
func parsePeerPEs(doc *goquery.Document) []float64 {
	var pes []float64
	doc.Find("table.data-table").Each(func(_ int, table *goquery.Selection) {
		peCol := -1
		table.Find("thead th").Each(func(i int, th *goquery.Selection) {
			if strings.Contains(strings.TrimSpace(th.Text()), "P/E") {
				peCol = i
			}
		})
		if peCol < 0 {
			return
		}
		table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			td := tr.Find("td").Eq(peCol)
			if v, ok := parseNumber(td.Text()); ok && v > 0 {
				pes = append(pes, v)
			}
		})
	})
	return pes
}

// topRatio finds a value in the #top-ratios name/value strip.
func topRatio(doc *goquery.Document, name string) (float64, bool) {
	var val float64
	var found bool
	doc.Find("#top-ratios li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if strings.TrimSpace(li.Find(".name").Text()) != name {
			return true
		}
		if v, ok := parseNumber(li.Find(".number").Text()); ok {
			val, found = v, true
		}
		return false
	})
	return val, found
}

// parseNumber strips currency symbols, separators and percent signs.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for _, cut := range []string{",", "%", "₹", "Rs.", "Cr."} {
		s = strings.ReplaceAll(s, cut, "")
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// yearOf extracts the fiscal year from a column header like "Mar 2024".
func yearOf(s string) int {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0
	}
	y, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || y < 1900 {
		return 0
	}
	return y
}

// quarterDate turns a "Mar 2024" column header into a sortable date.
func quarterDate(q string) time.Time {
	t, err := time.Parse("Jan 2006", q)
	if err != nil {
		return time.Time{}
	}
	return t
}
