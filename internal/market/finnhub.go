package market

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubClient adapts the Finnhub quote API
type FinnhubClient struct {
	httpProvider
}

// FinnhubConfig configures the Finnhub adapter
type FinnhubConfig struct {
	BaseURL        string
	APIKey         string
	RequestsPerMin int
	Timeout        time.Duration
}

// NewFinnhubClient creates a Finnhub client
func NewFinnhubClient(config FinnhubConfig) *FinnhubClient {
	if config.BaseURL == "" {
		config.BaseURL = finnhubBaseURL
	}
	if config.RequestsPerMin == 0 {
		config.RequestsPerMin = 60 // free tier
	}
	return &FinnhubClient{
		httpProvider: newHTTPProvider("finnhub", config.BaseURL, config.APIKey, config.RequestsPerMin, config.Timeout),
	}
}

func (f *FinnhubClient) Name() string { return "finnhub" }

type finnhubQuoteResponse struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
}

// Quote returns the live quote with day range and previous close
func (f *FinnhubClient) Quote(ctx context.Context, ticker string) (*Quote, error) {
	const op = "market.quote"

	params := url.Values{
		"symbol": {ticker},
		"token":  {f.apiKey},
	}
	var resp finnhubQuoteResponse
	if err := f.getJSON(ctx, op, "/quote", params, &resp); err != nil {
		return nil, err
	}

	// Finnhub returns zeros for unknown symbols rather than an error.
	if resp.Current <= 0 {
		return nil, errs.FromProvider(errs.KindFatal, op, f.name,
			fmt.Errorf("no quote for %s", ticker))
	}

	quote := &Quote{
		Price:         decimal.NewFromFloat(resp.Current),
		Open:          decimal.NewFromFloat(resp.Open),
		High:          decimal.NewFromFloat(resp.High),
		Low:           decimal.NewFromFloat(resp.Low),
		PreviousClose: decimal.NewFromFloat(resp.PreviousClose),
	}
	if resp.PreviousClose > 0 {
		quote.ChangePercent = (resp.Current - resp.PreviousClose) / resp.PreviousClose * 100
	}
	return quote, nil
}

// Historical is not offered on the Finnhub free tier
func (f *FinnhubClient) Historical(ctx context.Context, ticker string, days int) ([]Bar, error) {
	return nil, f.unsupported("market.historical")
}

// Indicators is not offered on the Finnhub free tier
func (f *FinnhubClient) Indicators(ctx context.Context, ticker string) (map[string]float64, error) {
	return nil, f.unsupported("market.indicators")
}
