package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alphamachine/engine/internal/errs"
)

const redditBaseURL = "https://www.reddit.com"

// defaultSubreddits are the communities searched for ticker mentions
var defaultSubreddits = []string{"wallstreetbets", "stocks", "investing", "stockmarket"}

// RedditClient searches finance subreddits for ticker mentions over the
// public JSON endpoints and scores the posts.
type RedditClient struct {
	baseURL    string
	userAgent  string
	subreddits []string
	perSub     int
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// RedditConfig configures the Reddit adapter
type RedditConfig struct {
	BaseURL        string
	UserAgent      string
	Subreddits     []string
	PostsPerSub    int
	RequestsPerMin int
	Timeout        time.Duration
}

// NewRedditClient creates a Reddit search client
func NewRedditClient(config RedditConfig, logger zerolog.Logger) *RedditClient {
	if config.BaseURL == "" {
		config.BaseURL = redditBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = "alphamachine/1.0"
	}
	if len(config.Subreddits) == 0 {
		config.Subreddits = defaultSubreddits
	}
	if config.PostsPerSub == 0 {
		config.PostsPerSub = 25
	}
	if config.RequestsPerMin == 0 {
		config.RequestsPerMin = 30
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &RedditClient{
		baseURL:    config.BaseURL,
		userAgent:  config.UserAgent,
		subreddits: config.Subreddits,
		perSub:     config.PostsPerSub,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(config.RequestsPerMin)/60.0), config.RequestsPerMin),
		log:        logger,
	}
}

func (r *RedditClient) Name() string { return "reddit" }

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Score       int     `json:"score"`
				UpvoteRatio float64 `json:"upvote_ratio"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch searches each configured subreddit for the ticker over the last
// day and averages the post scores. One subreddit failing does not fail
// the reading; every subreddit failing does.
func (r *RedditClient) Fetch(ctx context.Context, ticker string) (*SocialReading, error) {
	const op = "sentiment.reddit"

	reading := &SocialReading{}
	var sum float64
	var lastErr error
	failures := 0

	for _, sub := range r.subreddits {
		posts, err := r.searchSubreddit(ctx, op, sub, ticker)
		if err != nil {
			failures++
			lastErr = err
			r.log.Warn().Err(err).Str("subreddit", sub).Str("ticker", ticker).
				Msg("Subreddit search failed")
			continue
		}
		for _, post := range posts {
			reading.Mentions++
			sum += scorePost(post.Title, post.Selftext, post.Score, post.UpvoteRatio)
			if post.Score > 50 && len(reading.TopPosts) < 5 {
				title := post.Title
				if len(title) > 100 {
					title = title[:100]
				}
				reading.TopPosts = append(reading.TopPosts, title)
			}
		}
	}

	if failures == len(r.subreddits) {
		return nil, errs.FromProvider(errs.KindUnavailable, op, r.Name(),
			fmt.Errorf("all subreddit searches failed: %w", lastErr))
	}
	// A source with nothing to say contributes no weight.
	if reading.Mentions > 0 {
		reading.Score = sum / float64(reading.Mentions)
		reading.Available = true
	}
	return reading, nil
}

type redditPost struct {
	Title       string
	Selftext    string
	Score       int
	UpvoteRatio float64
}

func (r *RedditClient) searchSubreddit(ctx context.Context, op, subreddit, ticker string) ([]redditPost, error) {
	if !r.limiter.Allow() {
		return nil, errs.FromProvider(errs.KindTransient, op, r.Name(),
			fmt.Errorf("local rate limit exhausted"))
	}

	params := url.Values{
		"q":           {ticker},
		"restrict_sr": {"1"},
		"t":           {"day"},
		"limit":       {fmt.Sprintf("%d", r.perSub)},
	}
	reqURL := fmt.Sprintf("%s/r/%s/search.json?%s", r.baseURL, subreddit, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, r.Name(), err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errs.FromProvider(errs.KindTransient, op, r.Name(),
			fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.FromProvider(errs.KindTransient, op, r.Name(),
			fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		kind := errs.KindFatal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = errs.KindTransient
		}
		return nil, errs.FromProvider(kind, op, r.Name(),
			fmt.Errorf("status %d for r/%s", resp.StatusCode, subreddit))
	}

	var parsed redditSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, r.Name(),
			fmt.Errorf("malformed response body: %w", err))
	}

	posts := make([]redditPost, 0, len(parsed.Data.Children))
	for _, child := range parsed.Data.Children {
		posts = append(posts, redditPost{
			Title:       child.Data.Title,
			Selftext:    child.Data.Selftext,
			Score:       child.Data.Score,
			UpvoteRatio: child.Data.UpvoteRatio,
		})
	}
	return posts, nil
}
