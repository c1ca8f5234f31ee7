// Package sentiment aggregates social and news sentiment for a ticker.
// Both sources are optional: whichever responds contributes to the
// combined score with its configured weight, a lone source takes the
// full weight, and a snapshot with neither source is neutral and marked
// unavailable.
package sentiment

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/retry"
	"github.com/alphamachine/engine/internal/validation"
)

// SocialSource produces a social-media sentiment reading
type SocialSource interface {
	Name() string
	Fetch(ctx context.Context, ticker string) (*SocialReading, error)
}

// NewsSource produces a news sentiment reading
type NewsSource interface {
	Name() string
	Fetch(ctx context.Context, ticker string) (*NewsReading, error)
}

// ServiceConfig wires the sentiment service
type ServiceConfig struct {
	Social   SocialSource
	News     NewsSource
	Breakers *breaker.Registry
	Retry    retry.Config

	SocialWeight     float64       // default 0.6
	NewsWeight       float64       // default 0.4
	OperationTimeout time.Duration // default 10s
}

// Service combines the sentiment sources
type Service struct {
	social    SocialSource
	news      NewsSource
	breakers  *breaker.Registry
	retry     retry.Config
	wSocial   float64
	wNews     float64
	opTimeout time.Duration
	log       zerolog.Logger
}

// NewService creates the sentiment aggregation service
func NewService(config ServiceConfig, logger zerolog.Logger) *Service {
	if config.SocialWeight == 0 {
		config.SocialWeight = 0.6
	}
	if config.NewsWeight == 0 {
		config.NewsWeight = 0.4
	}
	if config.OperationTimeout == 0 {
		config.OperationTimeout = 10 * time.Second
	}
	return &Service{
		social:    config.Social,
		news:      config.News,
		breakers:  config.Breakers,
		retry:     config.Retry,
		wSocial:   config.SocialWeight,
		wNews:     config.NewsWeight,
		opTimeout: config.OperationTimeout,
		log:       logger,
	}
}

// Snapshot fetches both sources in parallel and combines them. Source
// failures degrade the snapshot instead of failing it.
func (s *Service) Snapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	if err := validation.Ticker(ticker); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Ticker: ticker,
		AsOf:   time.Now().UTC(),
	}

	var g errgroup.Group
	g.Go(func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		var reading *SocialReading
		err := retry.Do(opCtx, s.retry, "sentiment.social", func() error {
			return s.breakers.Do("sentiment.social", s.social.Name(), func() error {
				r, err := s.social.Fetch(opCtx, ticker)
				if err != nil {
					return err
				}
				reading = r
				return nil
			})
		})
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Social sentiment unavailable")
			return nil
		}
		snapshot.Reddit = *reading
		return nil
	})
	g.Go(func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		var reading *NewsReading
		err := retry.Do(opCtx, s.retry, "sentiment.news", func() error {
			return s.breakers.Do("sentiment.news", s.news.Name(), func() error {
				r, err := s.news.Fetch(opCtx, ticker)
				if err != nil {
					return err
				}
				reading = r
				return nil
			})
		})
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("News sentiment unavailable")
			return nil
		}
		snapshot.News = *reading
		return nil
	})
	_ = g.Wait()

	s.combine(snapshot)
	return snapshot, nil
}

// combine applies the weighted average: both sources at their configured
// weights, one source at full weight, neither source neutral.
func (s *Service) combine(snapshot *Snapshot) {
	wSocial, wNews := 0.0, 0.0
	if snapshot.Reddit.Available {
		wSocial = s.wSocial
	}
	if snapshot.News.Available {
		wNews = s.wNews
	}

	total := wSocial + wNews
	if total == 0 {
		snapshot.Combined = 0
		snapshot.Available = false
		snapshot.Label = labelFor(0)
		return
	}

	snapshot.Combined = (snapshot.Reddit.Score*wSocial + snapshot.News.Score*wNews) / total
	snapshot.Available = true
	snapshot.Label = labelFor(snapshot.Combined)

	s.log.Debug().
		Str("ticker", snapshot.Ticker).
		Float64("combined", snapshot.Combined).
		Str("label", snapshot.Label).
		Msg("Sentiment combined")
}
