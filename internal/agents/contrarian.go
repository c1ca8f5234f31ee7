package agents

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/llm"
	"github.com/alphamachine/engine/internal/retry"
)

const contrarianSystemPrompt = `You are a contrarian value investor who profits by going against the crowd.

Your core philosophy:
1. Buy when others are fearful (negative sentiment + oversold RSI < 30)
2. Sell when others are greedy (extreme positive sentiment + overbought RSI > 70)
3. Look for value in fear, recognize danger in euphoria
4. The crowd is usually wrong at extremes

` + verdictFormat

// ContrarianAgent looks for crowd extremes to trade against
type ContrarianAgent struct {
	llmAgent
}

// NewContrarianAgent creates the contrarian analyst
func NewContrarianAgent(client *llm.Client, weight float64, breakers *breaker.Registry, retryCfg retry.Config, logger zerolog.Logger) *ContrarianAgent {
	if weight == 0 {
		weight = 1.0
	}
	return &ContrarianAgent{llmAgent{
		name:     "contrarian",
		weight:   weight,
		client:   client,
		breakers: breakers,
		retry:    retryCfg,
		log:      logger,
	}}
}

// Analyze prompts the model with price, RSI, sentiment and mention
// counts annotated with contrarian callouts.
func (a *ContrarianAgent) Analyze(ctx context.Context, inputs Inputs) Verdict {
	rsi := rsiOf(inputs.Market)
	combined := sentimentOf(inputs.Sentiment)
	mentions := mentionsOf(inputs.Sentiment)

	var b promptBuilder
	b.add("Analyze %s from a CONTRARIAN perspective.", inputs.Ticker)
	b.section("CURRENT DATA")
	b.add("Ticker: %s", inputs.Ticker)
	if inputs.Market != nil && inputs.Market.HasPrice {
		b.add("Current Price: $%s", inputs.Market.CurrentPrice.StringFixed(2))
	} else {
		b.add("Current Price: N/A")
	}

	b.section("TECHNICAL INDICATORS")
	b.add("RSI: %.1f", rsi)
	if rsi < 30 {
		b.callout("OVERSOLD (contrarian bullish signal)")
	} else if rsi > 70 {
		b.callout("OVERBOUGHT (contrarian bearish signal)")
	}
	if c7 := momentumOf(inputs.Market, "price_change_7d"); c7 != 0 {
		b.add("7-Day Change: %+.2f%%", c7)
	}
	if c30 := momentumOf(inputs.Market, "price_change_30d"); c30 != 0 {
		b.add("30-Day Change: %+.2f%%", c30)
	}

	b.section("SENTIMENT (Crowd Mood)")
	b.add("Combined Sentiment: %.3f", combined)
	if combined > 0.5 {
		b.callout("EXTREME GREED (contrarian sell signal)")
	} else if combined < -0.5 {
		b.callout("EXTREME FEAR (contrarian buy signal)")
	}
	b.add("Total Mentions: %d", mentions)

	b.section("YOUR CONTRARIAN TASK")
	b.add("Evaluate this stock from a contrarian perspective:")
	b.add("1. Is the crowd overly fearful? (opportunity to buy)")
	b.add("2. Is the crowd overly greedy? (time to sell)")
	b.add("3. Are there extreme technical conditions (oversold/overbought)?")
	b.add("")
	b.add("Remember: Contrarians profit by doing the opposite of the emotional crowd.")
	b.add("Respond with ONLY the JSON object as specified.")

	dataUsed := map[string]interface{}{
		"rsi":       rsi,
		"sentiment": combined,
		"mentions":  mentions,
	}
	return a.analyzeWith(ctx, contrarianSystemPrompt, b.String(), dataUsed)
}
