package market

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
)

const polygonBaseURL = "https://api.polygon.io"

// PolygonClient adapts the Polygon.io aggregates API
type PolygonClient struct {
	httpProvider
}

// PolygonConfig configures the Polygon adapter
type PolygonConfig struct {
	BaseURL        string
	APIKey         string
	RequestsPerMin int
	Timeout        time.Duration
}

// NewPolygonClient creates a Polygon.io client
func NewPolygonClient(config PolygonConfig) *PolygonClient {
	if config.BaseURL == "" {
		config.BaseURL = polygonBaseURL
	}
	if config.RequestsPerMin == 0 {
		config.RequestsPerMin = 5 // free tier
	}
	return &PolygonClient{
		httpProvider: newHTTPProvider("polygon", config.BaseURL, config.APIKey, config.RequestsPerMin, config.Timeout),
	}
}

func (p *PolygonClient) Name() string { return "polygon" }

type polygonAggsResponse struct {
	Results []struct {
		Open      float64 `json:"o"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"` // milliseconds
	} `json:"results"`
}

// Quote returns the previous session's close as the current price
func (p *PolygonClient) Quote(ctx context.Context, ticker string) (*Quote, error) {
	const op = "market.quote"

	params := url.Values{"apiKey": {p.apiKey}}
	var resp polygonAggsResponse
	path := fmt.Sprintf("/v2/aggs/ticker/%s/prev", ticker)
	if err := p.getJSON(ctx, op, path, params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		return nil, errs.FromProvider(errs.KindFatal, op, p.name,
			fmt.Errorf("no results for %s", ticker))
	}

	bar := resp.Results[0]
	return &Quote{
		Price: decimal.NewFromFloat(bar.Close),
		Open:  decimal.NewFromFloat(bar.Open),
		High:  decimal.NewFromFloat(bar.High),
		Low:   decimal.NewFromFloat(bar.Low),
	}, nil
}

// Historical returns up to days daily bars, newest first
func (p *PolygonClient) Historical(ctx context.Context, ticker string, days int) ([]Bar, error) {
	const op = "market.historical"

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -(days + 5)) // buffer for weekends

	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
	params := url.Values{
		"apiKey": {p.apiKey},
		"limit":  {fmt.Sprintf("%d", days)},
	}

	var resp polygonAggsResponse
	if err := p.getJSON(ctx, op, path, params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		return nil, errs.FromProvider(errs.KindFatal, op, p.name,
			fmt.Errorf("no bars for %s", ticker))
	}

	bars := make([]Bar, 0, len(resp.Results))
	for _, r := range resp.Results {
		bars = append(bars, Bar{
			Date:   time.UnixMilli(r.Timestamp).UTC().Truncate(24 * time.Hour),
			Open:   decimal.NewFromFloat(r.Open),
			High:   decimal.NewFromFloat(r.High),
			Low:    decimal.NewFromFloat(r.Low),
			Close:  decimal.NewFromFloat(r.Close),
			Volume: int64(r.Volume),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.After(bars[j].Date) })
	if len(bars) > days {
		bars = bars[:days]
	}
	return bars, nil
}

// Indicators is not offered by the Polygon free tier
func (p *PolygonClient) Indicators(ctx context.Context, ticker string) (map[string]float64, error) {
	return nil, p.unsupported("market.indicators")
}
