// Command signalgen generates trading signals for tickers and manages
// their lifecycle. Results print as indented JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/alphamachine/engine/internal/agents"
	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/config"
	"github.com/alphamachine/engine/internal/consensus"
	"github.com/alphamachine/engine/internal/llm"
	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/retry"
	"github.com/alphamachine/engine/internal/sentiment"
	"github.com/alphamachine/engine/internal/signal"
	"github.com/alphamachine/engine/internal/store"
)

func main() {
	command := flag.String("command", "generate", "Command to run: generate, get, list or advance")
	configPath := flag.String("config", "", "Config directory (defaults to ./ and ./config)")
	tickers := flag.String("tickers", "", "Comma-separated tickers; empty runs the active watchlist")
	id := flag.Int64("id", 0, "Signal ID for get/advance")
	status := flag.String("status", "", "Target status for advance, or list filter")
	pnl := flag.String("pnl", "", "Realized P&L recorded when advancing to CLOSED")
	notes := flag.String("notes", "", "Notes recorded when advancing")
	ticker := flag.String("ticker", "", "Ticker filter for list")
	signalType := flag.String("type", "", "Signal type filter for list")
	limit := flag.Int("limit", 20, "Row limit for list")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx := context.Background()
	svc, st, err := buildService(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		os.Exit(1)
	}
	defer st.Close()

	switch *command {
	case "generate":
		var list []string
		if *tickers != "" {
			list = strings.Split(*tickers, ",")
		}
		results, err := svc.GenerateBatch(ctx, list)
		exitOn(err)
		printJSON(results)
	case "get":
		sig, err := svc.GetSignal(ctx, *id)
		exitOn(err)
		printJSON(sig)
	case "list":
		signals, err := svc.ListSignals(ctx, store.ListFilter{
			Ticker:     *ticker,
			SignalType: *signalType,
			Status:     store.Status(*status),
			Limit:      *limit,
		})
		exitOn(err)
		printJSON(signals)
	case "advance":
		var realized *decimal.Decimal
		if *pnl != "" {
			d, err := decimal.NewFromString(*pnl)
			exitOn(err)
			realized = &d
		}
		var note *string
		if *notes != "" {
			note = notes
		}
		sig, err := svc.UpdateSignalStatus(ctx, *id, store.Status(*status), realized, note)
		exitOn(err)
		printJSON(sig)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		fmt.Fprintf(os.Stderr, "Usage: signalgen -command=[generate|get|list|advance]\n")
		os.Exit(1)
	}
}

// buildService wires the full pipeline from configuration
func buildService(ctx context.Context, cfg *config.Config) (*signal.Service, *store.Store, error) {
	breakers := breaker.NewRegistry(breaker.Settings{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		CountWindow:         cfg.Breaker.CountWindow,
		Cooldown:            cfg.Breaker.Cooldown,
	})
	retryCfg := retry.Config{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		BackoffFactor:  cfg.Retry.BackoffFactor,
		Jitter:         cfg.Retry.Jitter,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cache := market.NewCache(redisClient, config.NewLogger("cache"))

	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, nil, err
	}
	marketSvc := market.NewService(market.ServiceConfig{
		Providers:        providers,
		Cache:            cache,
		Breakers:         breakers,
		Retry:            retryCfg,
		QuoteTTL:         cfg.Market.Cache.QuoteTTL,
		HistoricalTTL:    cfg.Market.Cache.HistoricalTTL,
		IndicatorsTTL:    cfg.Market.Cache.IndicatorsTTL,
		OperationTimeout: cfg.Deadlines.Operation,
	}, config.NewLogger("market"))

	social := sentiment.NewRedditClient(sentiment.RedditConfig{
		BaseURL:        cfg.Sentiment.Social.BaseURL,
		RequestsPerMin: cfg.Sentiment.Social.RequestsPerMinute,
	}, config.NewProviderLogger("reddit"))
	news := sentiment.NewNewsClient(sentiment.NewsConfig{
		BaseURL:        cfg.Sentiment.News.BaseURL,
		APIKey:         cfg.Sentiment.News.APIKey,
		RequestsPerMin: cfg.Sentiment.News.RequestsPerMinute,
	})
	sentSvc := sentiment.NewService(sentiment.ServiceConfig{
		Social:           social,
		News:             news,
		Breakers:         breakers,
		Retry:            retryCfg,
		SocialWeight:     cfg.Sentiment.SocialWeight,
		NewsWeight:       cfg.Sentiment.NewsWeight,
		OperationTimeout: cfg.Deadlines.Operation,
	}, config.NewLogger("sentiment"))

	panel := buildPanel(cfg, breakers, retryCfg)

	takeProfit := 0.0
	if len(cfg.Trading.TakeProfitLevels) > 0 {
		takeProfit = cfg.Trading.TakeProfitLevels[0]
	}
	engine := consensus.NewEngine(cfg.Agents.Weights, consensus.Params{
		BuyThreshold:   cfg.Trading.BuyThreshold,
		StopLossPct:    cfg.Trading.StopLossPct,
		TakeProfitPct:  takeProfit,
		Capital:        cfg.Trading.Capital,
		MaxPositionPct: cfg.Trading.MaxPositionPct,
	}, config.NewLogger("consensus"))

	st, err := store.New(ctx, cfg.Database.GetDSN(), config.NewLogger("store"))
	if err != nil {
		return nil, nil, err
	}

	svc := signal.NewService(marketSvc, sentSvc, panel, engine, st,
		cfg.Deadlines.Request, config.NewLogger("signal"))
	return svc, st, nil
}

// buildProviders assembles the market provider chain in configured order
func buildProviders(cfg *config.Config) ([]market.Provider, error) {
	var providers []market.Provider
	for _, name := range cfg.Market.Chain {
		pc := cfg.Market.Providers[name]
		switch name {
		case "polygon":
			providers = append(providers, market.NewPolygonClient(market.PolygonConfig{
				BaseURL: pc.BaseURL, APIKey: pc.APIKey, RequestsPerMin: pc.RequestsPerMinute,
			}))
		case "finnhub":
			providers = append(providers, market.NewFinnhubClient(market.FinnhubConfig{
				BaseURL: pc.BaseURL, APIKey: pc.APIKey, RequestsPerMin: pc.RequestsPerMinute,
			}))
		case "alphavantage":
			providers = append(providers, market.NewAlphaVantageClient(market.AlphaVantageConfig{
				BaseURL: pc.BaseURL, APIKey: pc.APIKey, RequestsPerMin: pc.RequestsPerMinute,
			}))
		default:
			return nil, fmt.Errorf("unknown market provider %q in chain", name)
		}
	}
	return providers, nil
}

// buildPanel creates the four analyst agents in registration order
func buildPanel(cfg *config.Config, breakers *breaker.Registry, retryCfg retry.Config) *agents.Panel {
	client := func(vendor string) *llm.Client {
		p := cfg.LLM.Providers[vendor]
		return llm.NewClient(llm.ClientConfig{
			Provider:    vendor,
			Endpoint:    p.Endpoint,
			APIKey:      p.APIKey,
			Model:       p.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		})
	}

	weights := cfg.Agents.Weights
	members := []agents.Agent{
		agents.NewContrarianAgent(client("openai"), weights["contrarian"],
			breakers, retryCfg, config.NewAgentLogger("contrarian")),
		agents.NewGrowthAgent(client("anthropic"), weights["growth"],
			breakers, retryCfg, config.NewAgentLogger("growth")),
		agents.NewMultimodalAgent(client("gemini"), weights["multimodal"],
			breakers, retryCfg, config.NewAgentLogger("multimodal")),
		agents.NewPredictorAgent(weights["predictor"], cfg.Trading.BuyThreshold,
			cfg.Trading.StrongThreshold, config.NewAgentLogger("predictor")),
	}
	return agents.NewPanel(members, cfg.Agents.PanelTimeout, config.NewLogger("panel"))
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func exitOn(err error) {
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
