package sentiment

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

const newsAPIBaseURL = "https://newsapi.org"

// NewsClient fetches recent headlines from NewsAPI and scores them
type NewsClient struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewsConfig configures the NewsAPI adapter
type NewsConfig struct {
	BaseURL        string
	APIKey         string
	PageSize       int
	RequestsPerMin int
	Timeout        time.Duration
}

// NewNewsClient creates a NewsAPI client
func NewNewsClient(config NewsConfig) *NewsClient {
	if config.BaseURL == "" {
		config.BaseURL = newsAPIBaseURL
	}
	if config.PageSize == 0 {
		config.PageSize = 30
	}
	if config.RequestsPerMin == 0 {
		config.RequestsPerMin = 30
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &NewsClient{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		pageSize:   config.PageSize,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(config.RequestsPerMin)/60.0), config.RequestsPerMin),
	}
}

func (n *NewsClient) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Fetch pulls the latest articles mentioning the ticker and averages
// their headline scores.
func (n *NewsClient) Fetch(ctx context.Context, ticker string) (*NewsReading, error) {
	const op = "sentiment.news"

	if !n.limiter.Allow() {
		return nil, errs.FromProvider(errs.KindTransient, op, n.Name(),
			fmt.Errorf("local rate limit exhausted"))
	}

	params := url.Values{
		"q":        {ticker},
		"apiKey":   {n.apiKey},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"pageSize": {fmt.Sprintf("%d", n.pageSize)},
	}
	req, err := http.NewRequestWithContext(ctx, "GET", n.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, n.Name(), err)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, errs.FromProvider(errs.KindTransient, op, n.Name(),
			fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.FromProvider(errs.KindTransient, op, n.Name(),
			fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		kind := errs.KindFatal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = errs.KindTransient
		}
		return nil, errs.FromProvider(kind, op, n.Name(),
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed newsAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, n.Name(),
			fmt.Errorf("malformed response body: %w", err))
	}

	reading := &NewsReading{}
	var sum float64
	for _, article := range parsed.Articles {
		if article.Title == "" {
			continue
		}
		reading.ArticleCount++
		sum += scoreHeadline(article.Title)
		if len(reading.Headlines) < 10 {
			title := article.Title
			if len(title) > 150 {
				title = title[:150]
			}
			reading.Headlines = append(reading.Headlines, title)
		}
	}
	// A source with nothing to say contributes no weight.
	if reading.ArticleCount > 0 {
		reading.Score = sum / float64(reading.ArticleCount)
		reading.Available = true
	}
	return reading, nil
}
