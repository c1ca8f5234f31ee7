package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alphamachine/engine/internal/errs"
)

// Provider is a single market data vendor. Quote, Historical and
// Indicators each map to one upstream endpoint; a vendor that does not
// offer an operation returns an Unavailable error so the chain moves on
// without retrying.
type Provider interface {
	Name() string
	Quote(ctx context.Context, ticker string) (*Quote, error)
	Historical(ctx context.Context, ticker string, days int) ([]Bar, error)
	Indicators(ctx context.Context, ticker string) (map[string]float64, error)
}

// httpProvider carries the pieces every vendor adapter shares
type httpProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newHTTPProvider(name, baseURL, apiKey string, requestsPerMin int, timeout time.Duration) httpProvider {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if requestsPerMin == 0 {
		requestsPerMin = 60
	}
	return httpProvider{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMin)/60.0), requestsPerMin),
	}
}

// getJSON performs a rate-limited GET and decodes the body into target.
// Status codes are classified into error kinds: 429 and 5xx are
// transient, other non-200s and malformed bodies are fatal for this
// provider.
func (p *httpProvider) getJSON(ctx context.Context, op, path string, params url.Values, target interface{}) error {
	if !p.limiter.Allow() {
		return errs.FromProvider(errs.KindTransient, op, p.name,
			fmt.Errorf("local rate limit exhausted"))
	}

	reqURL := p.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return errs.FromProvider(errs.KindFatal, op, p.name, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errs.FromProvider(errs.KindTransient, op, p.name,
			fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.FromProvider(errs.KindTransient, op, p.name,
			fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		kind := errs.KindFatal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = errs.KindTransient
		}
		return errs.FromProvider(kind, op, p.name,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errs.FromProvider(errs.KindFatal, op, p.name,
			fmt.Errorf("malformed response body: %w", err))
	}
	return nil
}

func (p *httpProvider) unsupported(op string) error {
	return errs.FromProvider(errs.KindUnavailable, op, p.name,
		fmt.Errorf("operation not offered by %s", p.name))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
