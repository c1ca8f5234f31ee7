package sentiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/errs"
	"github.com/alphamachine/engine/internal/retry"
)

type fakeSocial struct {
	reading *SocialReading
	err     error
}

func (f *fakeSocial) Name() string { return "reddit" }
func (f *fakeSocial) Fetch(ctx context.Context, ticker string) (*SocialReading, error) {
	return f.reading, f.err
}

type fakeNews struct {
	reading *NewsReading
	err     error
}

func (f *fakeNews) Name() string { return "newsapi" }
func (f *fakeNews) Fetch(ctx context.Context, ticker string) (*NewsReading, error) {
	return f.reading, f.err
}

func newTestSentiment(social SocialSource, news NewsSource) *Service {
	return NewService(ServiceConfig{
		Social:   social,
		News:     news,
		Breakers: breaker.NewRegistry(breaker.DefaultSettings()),
		Retry: retry.Config{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			BackoffFactor:  1,
		},
		OperationTimeout: time.Second,
	}, zerolog.Nop())
}

func TestSnapshotCombinesBothSources(t *testing.T) {
	svc := newTestSentiment(
		&fakeSocial{reading: &SocialReading{Mentions: 40, Score: -0.5, Available: true}},
		&fakeNews{reading: &NewsReading{ArticleCount: 12, Score: -0.25, Available: true}},
	)

	snapshot, err := svc.Snapshot(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.True(t, snapshot.Available)
	// 0.6*(-0.5) + 0.4*(-0.25) = -0.4
	assert.InDelta(t, -0.4, snapshot.Combined, 1e-9)
	assert.Equal(t, "bearish", snapshot.Label)
}

func TestSnapshotSingleSourceTakesFullWeight(t *testing.T) {
	svc := newTestSentiment(
		&fakeSocial{err: errs.FromProvider(errs.KindUnavailable, "sentiment.reddit", "reddit", errors.New("down"))},
		&fakeNews{reading: &NewsReading{ArticleCount: 8, Score: 0.5, Available: true}},
	)

	snapshot, err := svc.Snapshot(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.True(t, snapshot.Available)
	assert.InDelta(t, 0.5, snapshot.Combined, 1e-9)
	assert.False(t, snapshot.Reddit.Available)
	assert.True(t, snapshot.News.Available)
}

func TestSnapshotNoSourcesIsNeutralUnavailable(t *testing.T) {
	down := errors.New("down")
	svc := newTestSentiment(
		&fakeSocial{err: errs.FromProvider(errs.KindUnavailable, "sentiment.reddit", "reddit", down)},
		&fakeNews{err: errs.FromProvider(errs.KindUnavailable, "sentiment.news", "newsapi", down)},
	)

	snapshot, err := svc.Snapshot(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.False(t, snapshot.Available)
	assert.Zero(t, snapshot.Combined)
	assert.Equal(t, "neutral", snapshot.Label)
}

func TestSnapshotRejectsInvalidTicker(t *testing.T) {
	svc := newTestSentiment(&fakeSocial{}, &fakeNews{})

	_, err := svc.Snapshot(context.Background(), "toolong123")
	require.Error(t, err)
	assert.True(t, errs.IsBadInput(err))
}

func TestLabelBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.5, "bullish"},
		{0.2, "slightly_bullish"},
		{0.05, "neutral"},
		{0.0, "neutral"},
		{-0.05, "neutral"},
		{-0.2, "slightly_bearish"},
		{-0.5, "bearish"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, labelFor(tt.score), "score %v", tt.score)
	}
}

func TestScoreHeadline(t *testing.T) {
	assert.Equal(t, 0.5, scoreHeadline("NVDA shares surge after record earnings beat"))
	assert.Equal(t, -0.5, scoreHeadline("Chipmaker warns of decline, shares plunge"))
	assert.Equal(t, 0.0, scoreHeadline("Company announces quarterly results"))
	// Balanced hits cancel out.
	assert.Equal(t, 0.0, scoreHeadline("Stock gains then falls in volatile decline and rally"))
}

func TestScorePostEngagement(t *testing.T) {
	// Keyword-positive post boosted by community agreement.
	assert.InDelta(t, 0.6, scorePost("NVDA calls printing, going long", "", 500, 0.95), 1e-9)
	// Downvoted post gets dampened.
	assert.InDelta(t, 0.4, scorePost("buy the dip", "", -3, 0.4), 1e-9)
	// Neutral text with no engagement stays neutral.
	assert.Zero(t, scorePost("What do you think about this company?", "", 10, 0.7))
}
