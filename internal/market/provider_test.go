package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphamachine/engine/internal/errs"
)

func TestPolygonQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/NVDA/prev", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		w.Write([]byte(`{"results": [{"o": 148.5, "h": 152.1, "l": 147.2, "c": 150.25, "v": 42000000, "t": 1755734400000}]}`))
	}))
	defer server.Close()

	client := NewPolygonClient(PolygonConfig{BaseURL: server.URL, APIKey: "test-key", RequestsPerMin: 100})
	quote, err := client.Quote(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "150.25", quote.Price.String())
	assert.Equal(t, "148.5", quote.Open.String())
}

func TestPolygonHistoricalNewestFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Polygon returns bars oldest first.
		w.Write([]byte(`{"results": [
			{"o": 100, "h": 102, "l": 99, "c": 101, "v": 1000, "t": 1755648000000},
			{"o": 101, "h": 104, "l": 100, "c": 103, "v": 1100, "t": 1755734400000}
		]}`))
	}))
	defer server.Close()

	client := NewPolygonClient(PolygonConfig{BaseURL: server.URL, APIKey: "k", RequestsPerMin: 100})
	bars, err := client.Historical(context.Background(), "NVDA", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Date.After(bars[1].Date), "bars must be newest first")
	assert.Equal(t, "103", bars[0].Close.String())
}

func TestPolygonServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewPolygonClient(PolygonConfig{BaseURL: server.URL, APIKey: "k", RequestsPerMin: 100})
	_, err := client.Quote(context.Background(), "NVDA")
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
}

func TestPolygonIndicatorsUnsupported(t *testing.T) {
	client := NewPolygonClient(PolygonConfig{BaseURL: "http://unused", APIKey: "k"})
	_, err := client.Indicators(context.Background(), "NVDA")
	require.Error(t, err)
	assert.True(t, errs.IsUnavailable(err))
}

func TestFinnhubQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "NVDA", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		w.Write([]byte(`{"c": 150.25, "h": 152.1, "l": 147.2, "o": 148.5, "pc": 145.0}`))
	}))
	defer server.Close()

	client := NewFinnhubClient(FinnhubConfig{BaseURL: server.URL, APIKey: "test-token"})
	quote, err := client.Quote(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "150.25", quote.Price.String())
	assert.Equal(t, "145", quote.PreviousClose.String())
	assert.InDelta(t, 3.62, quote.ChangePercent, 0.01)
}

func TestFinnhubZeroQuoteIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c": 0, "h": 0, "l": 0, "o": 0, "pc": 0}`))
	}))
	defer server.Close()

	client := NewFinnhubClient(FinnhubConfig{BaseURL: server.URL, APIKey: "t"})
	_, err := client.Quote(context.Background(), "ZZZZZ")
	require.Error(t, err)
	assert.False(t, errs.IsTransient(err), "unknown symbols must move the chain on without retry")
}

func TestAlphaVantageQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Global Quote": {
			"02. open": "148.5000",
			"03. high": "152.1000",
			"04. low": "147.2000",
			"05. price": "150.2500",
			"08. previous close": "145.0000",
			"10. change percent": "3.6207%"
		}}`))
	}))
	defer server.Close()

	client := NewAlphaVantageClient(AlphaVantageConfig{BaseURL: server.URL, APIKey: "k", RequestsPerMin: 100})
	quote, err := client.Quote(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, "150.25", quote.Price.String())
	assert.InDelta(t, 3.6207, quote.ChangePercent, 0.0001)
}

func TestAlphaVantageThrottleNoteIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Alpha Vantage reports throttling inside a 200 body.
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	}))
	defer server.Close()

	client := NewAlphaVantageClient(AlphaVantageConfig{BaseURL: server.URL, APIKey: "k", RequestsPerMin: 100})
	_, err := client.Quote(context.Background(), "NVDA")
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))

	_, err = client.Historical(context.Background(), "NVDA", 30)
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
}

func TestAlphaVantageHistorical(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Time Series (Daily)": {
			"2026-08-20": {"1. open": "100.0", "2. high": "102.0", "3. low": "99.0", "4. close": "101.0", "5. volume": "1000"},
			"2026-08-21": {"1. open": "101.0", "2. high": "104.0", "3. low": "100.0", "4. close": "103.0", "5. volume": "1100"}
		}}`))
	}))
	defer server.Close()

	client := NewAlphaVantageClient(AlphaVantageConfig{BaseURL: server.URL, APIKey: "k", RequestsPerMin: 100})
	bars, err := client.Historical(context.Background(), "NVDA", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2026-08-21", bars[0].Date.Format("2006-01-02"))
	assert.Equal(t, "103", bars[0].Close.String())
	assert.Equal(t, int64(1100), bars[0].Volume)
}

func TestAlphaVantageRSI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RSI", r.URL.Query().Get("function"))
		assert.Equal(t, "14", r.URL.Query().Get("time_period"))
		w.Write([]byte(`{"Technical Analysis: RSI": {
			"2026-08-20": {"RSI": "45.1000"},
			"2026-08-21": {"RSI": "28.4500"}
		}}`))
	}))
	defer server.Close()

	client := NewAlphaVantageClient(AlphaVantageConfig{BaseURL: server.URL, APIKey: "k", RequestsPerMin: 100})
	indicators, err := client.Indicators(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.InDelta(t, 28.45, indicators["rsi"], 0.0001, "latest date wins")
}

func TestProviderLocalRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c": 100, "pc": 99}`))
	}))
	defer server.Close()

	client := NewFinnhubClient(FinnhubConfig{BaseURL: server.URL, APIKey: "t", RequestsPerMin: 1})
	_, err := client.Quote(context.Background(), "NVDA")
	require.NoError(t, err)

	_, err = client.Quote(context.Background(), "NVDA")
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
}
