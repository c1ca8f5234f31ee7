package market

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/errs"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageClient adapts the Alpha Vantage query API
type AlphaVantageClient struct {
	httpProvider
}

// AlphaVantageConfig configures the Alpha Vantage adapter
type AlphaVantageConfig struct {
	BaseURL        string
	APIKey         string
	RequestsPerMin int
	Timeout        time.Duration
}

// NewAlphaVantageClient creates an Alpha Vantage client
func NewAlphaVantageClient(config AlphaVantageConfig) *AlphaVantageClient {
	if config.BaseURL == "" {
		config.BaseURL = alphaVantageBaseURL
	}
	if config.RequestsPerMin == 0 {
		config.RequestsPerMin = 5
	}
	return &AlphaVantageClient{
		httpProvider: newHTTPProvider("alphavantage", config.BaseURL, config.APIKey, config.RequestsPerMin, config.Timeout),
	}
}

func (a *AlphaVantageClient) Name() string { return "alphavantage" }

// avThrottle carries the throttle notes Alpha Vantage embeds in a 200 body
type avThrottle struct {
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// throttled reports whether a 200 response is actually a rate-limit note
func (t avThrottle) throttled() (string, bool) {
	if t.Note != "" {
		return t.Note, true
	}
	if t.Information != "" {
		return t.Information, true
	}
	return "", false
}

type avGlobalQuoteResponse struct {
	avThrottle
	GlobalQuote struct {
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		PreviousClose string `json:"08. previous close"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// Quote returns the Alpha Vantage global quote
func (a *AlphaVantageClient) Quote(ctx context.Context, ticker string) (*Quote, error) {
	const op = "market.quote"

	params := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {ticker},
		"apikey":   {a.apiKey},
	}
	var resp avGlobalQuoteResponse
	if err := a.getJSON(ctx, op, "/query", params, &resp); err != nil {
		return nil, err
	}
	if note, ok := resp.throttled(); ok {
		return nil, errs.FromProvider(errs.KindTransient, op, a.name,
			fmt.Errorf("rate limited: %s", note))
	}
	if resp.GlobalQuote.Price == "" {
		return nil, errs.FromProvider(errs.KindFatal, op, a.name,
			fmt.Errorf("no quote for %s", ticker))
	}

	price, err := decimal.NewFromString(resp.GlobalQuote.Price)
	if err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, a.name,
			fmt.Errorf("malformed price %q: %w", resp.GlobalQuote.Price, err))
	}

	quote := &Quote{Price: price}
	if v, err := decimal.NewFromString(resp.GlobalQuote.Open); err == nil {
		quote.Open = v
	}
	if v, err := decimal.NewFromString(resp.GlobalQuote.High); err == nil {
		quote.High = v
	}
	if v, err := decimal.NewFromString(resp.GlobalQuote.Low); err == nil {
		quote.Low = v
	}
	if v, err := decimal.NewFromString(resp.GlobalQuote.PreviousClose); err == nil {
		quote.PreviousClose = v
	}
	if pct := strings.TrimSuffix(resp.GlobalQuote.ChangePercent, "%"); pct != "" {
		if v, err := strconv.ParseFloat(pct, 64); err == nil {
			quote.ChangePercent = v
		}
	}
	return quote, nil
}

type avDailyResponse struct {
	avThrottle
	TimeSeries map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

// Historical returns up to days daily bars, newest first
func (a *AlphaVantageClient) Historical(ctx context.Context, ticker string, days int) ([]Bar, error) {
	const op = "market.historical"

	params := url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {ticker},
		"apikey":     {a.apiKey},
		"outputsize": {"compact"}, // last 100 days
	}
	var resp avDailyResponse
	if err := a.getJSON(ctx, op, "/query", params, &resp); err != nil {
		return nil, err
	}
	if note, ok := resp.throttled(); ok {
		return nil, errs.FromProvider(errs.KindTransient, op, a.name,
			fmt.Errorf("rate limited: %s", note))
	}
	if len(resp.TimeSeries) == 0 {
		return nil, errs.FromProvider(errs.KindFatal, op, a.name,
			fmt.Errorf("no bars for %s", ticker))
	}

	dates := make([]string, 0, len(resp.TimeSeries))
	for d := range resp.TimeSeries {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > days {
		dates = dates[:days]
	}

	bars := make([]Bar, 0, len(dates))
	for _, dateStr := range dates {
		values := resp.TimeSeries[dateStr]
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, errs.FromProvider(errs.KindFatal, op, a.name,
				fmt.Errorf("malformed date %q: %w", dateStr, err))
		}
		bar := Bar{Date: date.UTC()}
		if bar.Open, err = decimal.NewFromString(values.Open); err != nil {
			return nil, errs.FromProvider(errs.KindFatal, op, a.name,
				fmt.Errorf("malformed open for %s: %w", dateStr, err))
		}
		if bar.High, err = decimal.NewFromString(values.High); err != nil {
			return nil, errs.FromProvider(errs.KindFatal, op, a.name,
				fmt.Errorf("malformed high for %s: %w", dateStr, err))
		}
		if bar.Low, err = decimal.NewFromString(values.Low); err != nil {
			return nil, errs.FromProvider(errs.KindFatal, op, a.name,
				fmt.Errorf("malformed low for %s: %w", dateStr, err))
		}
		if bar.Close, err = decimal.NewFromString(values.Close); err != nil {
			return nil, errs.FromProvider(errs.KindFatal, op, a.name,
				fmt.Errorf("malformed close for %s: %w", dateStr, err))
		}
		if bar.Volume, err = strconv.ParseInt(values.Volume, 10, 64); err != nil {
			return nil, errs.FromProvider(errs.KindFatal, op, a.name,
				fmt.Errorf("malformed volume for %s: %w", dateStr, err))
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

type avRSIResponse struct {
	avThrottle
	Analysis map[string]struct {
		RSI string `json:"RSI"`
	} `json:"Technical Analysis: RSI"`
}

// Indicators returns the latest 14-day RSI
func (a *AlphaVantageClient) Indicators(ctx context.Context, ticker string) (map[string]float64, error) {
	const op = "market.indicators"

	params := url.Values{
		"function":    {"RSI"},
		"symbol":      {ticker},
		"interval":    {"daily"},
		"time_period": {"14"},
		"series_type": {"close"},
		"apikey":      {a.apiKey},
	}
	var resp avRSIResponse
	if err := a.getJSON(ctx, op, "/query", params, &resp); err != nil {
		return nil, err
	}
	if note, ok := resp.throttled(); ok {
		return nil, errs.FromProvider(errs.KindTransient, op, a.name,
			fmt.Errorf("rate limited: %s", note))
	}
	if len(resp.Analysis) == 0 {
		return nil, errs.FromProvider(errs.KindFatal, op, a.name,
			fmt.Errorf("no RSI data for %s", ticker))
	}

	latest := ""
	for d := range resp.Analysis {
		if d > latest {
			latest = d
		}
	}
	rsi, err := strconv.ParseFloat(resp.Analysis[latest].RSI, 64)
	if err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, a.name,
			fmt.Errorf("malformed RSI %q: %w", resp.Analysis[latest].RSI, err))
	}
	return map[string]float64{"rsi": rsi}, nil
}
