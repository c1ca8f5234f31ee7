package agents

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/llm"
	"github.com/alphamachine/engine/internal/retry"
)

const growthSystemPrompt = `You are a growth-focused stock analyst who identifies momentum and growth opportunities.

Your growth philosophy:
1. Buy strong momentum stocks (>10% monthly gain) with positive sentiment
2. Avoid negative momentum (<-5%) even if cheap
3. Risk management: Never buy overbought (RSI > 75) without confirmation
4. Prefer stocks with increasing volume + positive sentiment

` + verdictFormat

// GrowthAgent rides momentum with volume and sentiment confirmation
type GrowthAgent struct {
	llmAgent
}

// NewGrowthAgent creates the growth analyst
func NewGrowthAgent(client *llm.Client, weight float64, breakers *breaker.Registry, retryCfg retry.Config, logger zerolog.Logger) *GrowthAgent {
	if weight == 0 {
		weight = 1.0
	}
	return &GrowthAgent{llmAgent{
		name:     "growth",
		weight:   weight,
		client:   client,
		breakers: breakers,
		retry:    retryCfg,
		log:      logger,
	}}
}

// Analyze prompts the model with momentum, volume trend and sentiment
func (a *GrowthAgent) Analyze(ctx context.Context, inputs Inputs) Verdict {
	rsi := rsiOf(inputs.Market)
	combined := sentimentOf(inputs.Sentiment)
	momentum30 := momentumOf(inputs.Market, "price_change_30d")
	momentum7 := momentumOf(inputs.Market, "price_change_7d")
	trend := volumeTrendOf(inputs.Market)

	var b promptBuilder
	b.add("Analyze %s from a GROWTH and MOMENTUM perspective.", inputs.Ticker)
	b.section("CURRENT DATA")
	b.add("Ticker: %s", inputs.Ticker)
	if inputs.Market != nil && inputs.Market.HasPrice {
		b.add("Current Price: $%s", inputs.Market.CurrentPrice.StringFixed(2))
	} else {
		b.add("Current Price: N/A")
	}

	b.section("TECHNICAL INDICATORS")
	b.add("RSI: %.1f", rsi)
	b.add("7-Day Change: %+.2f%%", momentum7)
	if momentum7 > 10 {
		b.callout("STRONG 7-DAY MOMENTUM")
	}
	b.add("30-Day Change: %+.2f%%", momentum30)
	if momentum30 > 15 {
		b.callout("STRONG 30-DAY TREND")
	} else if momentum30 < -10 {
		b.callout("NEGATIVE MOMENTUM - CAUTION")
	}
	b.add("Volume Trend: %s", trend)

	b.section("SENTIMENT DATA")
	b.add("Combined Sentiment: %.3f", combined)
	b.add("Total Mentions: %d", mentionsOf(inputs.Sentiment))

	b.section("YOUR GROWTH TASK")
	b.add("Evaluate this stock from a growth/momentum perspective:")
	b.add("1. Is momentum strong and sustainable? (>10%% monthly = strong)")
	b.add("2. Does the technical setup support growth continuation?")
	b.add("3. Is sentiment supportive of further gains?")
	b.add("")
	b.add("Remember: Growth investors ride momentum - buy strength, sell weakness.")
	b.add("Respond with ONLY the JSON object as specified.")

	dataUsed := map[string]interface{}{
		"rsi":          rsi,
		"sentiment":    combined,
		"momentum_30d": momentum30,
		"volume_trend": string(trend),
	}
	return a.analyzeWith(ctx, growthSystemPrompt, b.String(), dataUsed)
}
