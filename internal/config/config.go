package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Market    MarketConfig    `mapstructure:"market"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Deadlines DeadlineConfig  `mapstructure:"deadlines"`
	Backtest  BacktestConfig  `mapstructure:"backtest"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the market-data cache
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MarketConfig contains the market-data provider chain settings
type MarketConfig struct {
	// Chain lists provider names in fallback order.
	Chain     []string                  `mapstructure:"chain"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Cache     CacheConfig               `mapstructure:"cache"`
}

// ProviderConfig contains per-provider settings
type ProviderConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// CacheConfig contains the cache TTLs per operation
type CacheConfig struct {
	QuoteTTL      time.Duration `mapstructure:"quote_ttl"`
	HistoricalTTL time.Duration `mapstructure:"historical_ttl"`
	IndicatorsTTL time.Duration `mapstructure:"indicators_ttl"`
	SentimentTTL  time.Duration `mapstructure:"sentiment_ttl"`
	// StaleMultiplier extends each TTL into a stale-allowed window used
	// only after the full provider chain has failed.
	StaleMultiplier int `mapstructure:"stale_multiplier"`
}

// SentimentConfig contains sentiment-source settings
type SentimentConfig struct {
	News   ProviderConfig `mapstructure:"news"`
	Social ProviderConfig `mapstructure:"social"`
	// Weights applied when both sources are available. A missing source
	// shifts its weight to the remaining one.
	NewsWeight   float64 `mapstructure:"news_weight"`
	SocialWeight float64 `mapstructure:"social_weight"`
}

// LLMConfig contains per-vendor LLM gateway settings
type LLMConfig struct {
	Providers   map[string]LLMProviderConfig `mapstructure:"providers"`
	Temperature float64                      `mapstructure:"temperature"`
	MaxTokens   int                          `mapstructure:"max_tokens"`
	Timeout     time.Duration                `mapstructure:"timeout"`
}

// LLMProviderConfig contains one vendor's endpoint and model
type LLMProviderConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// AgentsConfig contains per-agent weights. Weights are immutable per
// request; the consensus engine swaps them atomically between requests.
type AgentsConfig struct {
	Weights      map[string]float64 `mapstructure:"weights"`
	PanelTimeout time.Duration      `mapstructure:"panel_timeout"`
}

// TradingConfig contains risk and sizing parameters
type TradingConfig struct {
	Capital          float64   `mapstructure:"capital"`
	MaxPositionPct   float64   `mapstructure:"max_position_pct"`
	StopLossPct      float64   `mapstructure:"stop_loss_pct"`
	TakeProfitLevels []float64 `mapstructure:"take_profit_levels"`
	// Signal-level thresholds. Tunable; do not hardcode at call sites.
	BuyThreshold    float64 `mapstructure:"buy_threshold"`
	StrongThreshold float64 `mapstructure:"strong_threshold"`
}

// RetryConfig contains the shared provider retry policy
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	BackoffFactor  float64       `mapstructure:"backoff_factor"`
	Jitter         float64       `mapstructure:"jitter"`
}

// BreakerConfig contains per-provider circuit breaker settings
type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	CountWindow         time.Duration `mapstructure:"count_window"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
}

// DeadlineConfig contains the time budgets from the concurrency model
type DeadlineConfig struct {
	Operation time.Duration `mapstructure:"operation"` // per top-level data operation
	Request   time.Duration `mapstructure:"request"`   // whole signal request
	Backtest  time.Duration `mapstructure:"backtest"`
}

// BacktestConfig contains backtest defaults
type BacktestConfig struct {
	StartingCapital float64 `mapstructure:"starting_capital"`
	HoldPeriodDays  int     `mapstructure:"hold_period_days"`
}

// Load reads configuration from the given path (or the defaults when the
// file is absent) with environment-variable overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("ALPHA")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults plus env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "alphamachine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "alpha")
	v.SetDefault("database.database", "alphamachine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Market provider chain: primary -> secondary -> tertiary
	v.SetDefault("market.chain", []string{"polygon", "finnhub", "alphavantage"})
	v.SetDefault("market.providers.polygon.base_url", "https://api.polygon.io")
	v.SetDefault("market.providers.polygon.requests_per_minute", 5)
	v.SetDefault("market.providers.finnhub.base_url", "https://finnhub.io/api/v1")
	v.SetDefault("market.providers.finnhub.requests_per_minute", 60)
	v.SetDefault("market.providers.alphavantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("market.providers.alphavantage.requests_per_minute", 5)

	// Cache TTLs
	v.SetDefault("market.cache.quote_ttl", "60s")
	v.SetDefault("market.cache.historical_ttl", "1h")
	v.SetDefault("market.cache.indicators_ttl", "15m")
	v.SetDefault("market.cache.sentiment_ttl", "15m")
	v.SetDefault("market.cache.stale_multiplier", 10)

	// Sentiment
	v.SetDefault("sentiment.news.base_url", "https://newsapi.org/v2")
	v.SetDefault("sentiment.news.requests_per_minute", 10)
	v.SetDefault("sentiment.social.base_url", "https://www.reddit.com")
	v.SetDefault("sentiment.social.requests_per_minute", 30)
	v.SetDefault("sentiment.social_weight", 0.6)
	v.SetDefault("sentiment.news_weight", 0.4)

	// LLM vendors
	v.SetDefault("llm.providers.openai.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("llm.providers.openai.model", "gpt-4o")
	v.SetDefault("llm.providers.anthropic.endpoint", "https://api.anthropic.com/v1/chat/completions")
	v.SetDefault("llm.providers.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.providers.gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions")
	v.SetDefault("llm.providers.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", "30s")

	// Agents
	v.SetDefault("agents.weights.contrarian", 1.0)
	v.SetDefault("agents.weights.growth", 1.0)
	v.SetDefault("agents.weights.multimodal", 1.0)
	v.SetDefault("agents.weights.predictor", 1.0)
	v.SetDefault("agents.panel_timeout", "30s")

	// Trading
	v.SetDefault("trading.capital", 50000.0)
	v.SetDefault("trading.max_position_pct", 0.10)
	v.SetDefault("trading.stop_loss_pct", 0.10)
	v.SetDefault("trading.take_profit_levels", []float64{0.25, 0.50, 1.00})
	v.SetDefault("trading.buy_threshold", 0.1)
	v.SetDefault("trading.strong_threshold", 0.5)

	// Retry
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "500ms")
	v.SetDefault("retry.max_backoff", "8s")
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("retry.jitter", 1.0)

	// Circuit breakers
	v.SetDefault("breaker.consecutive_failures", 5)
	v.SetDefault("breaker.count_window", "60s")
	v.SetDefault("breaker.cooldown", "30s")

	// Deadlines
	v.SetDefault("deadlines.operation", "10s")
	v.SetDefault("deadlines.request", "45s")
	v.SetDefault("deadlines.backtest", "5m")

	// Backtest
	v.SetDefault("backtest.starting_capital", 50000.0)
	v.SetDefault("backtest.hold_period_days", 30)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode, c.PoolSize)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
