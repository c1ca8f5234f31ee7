package agents

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/llm"
	"github.com/alphamachine/engine/internal/retry"
)

const multimodalSystemPrompt = `You are a synthesis analyst who weighs quantitative signals against qualitative narrative.

Your approach:
1. Cross-check the numbers against what the news and social chatter actually say
2. Penalize stories that the data does not confirm, and data the story contradicts
3. Weigh recency: a fresh narrative shift matters more than a stale consensus
4. When numbers and narrative agree, act with conviction; when they conflict, stay cautious

` + verdictFormat

// MultimodalAgent synthesizes numeric features with recent text snippets
type MultimodalAgent struct {
	llmAgent
}

// NewMultimodalAgent creates the synthesis analyst
func NewMultimodalAgent(client *llm.Client, weight float64, breakers *breaker.Registry, retryCfg retry.Config, logger zerolog.Logger) *MultimodalAgent {
	if weight == 0 {
		weight = 1.0
	}
	return &MultimodalAgent{llmAgent{
		name:     "multimodal",
		weight:   weight,
		client:   client,
		breakers: breakers,
		retry:    retryCfg,
		log:      logger,
	}}
}

// Analyze prompts the model with the numeric picture plus a compact
// summary of recent headlines and social posts.
func (a *MultimodalAgent) Analyze(ctx context.Context, inputs Inputs) Verdict {
	rsi := rsiOf(inputs.Market)
	combined := sentimentOf(inputs.Sentiment)

	var b promptBuilder
	b.add("Synthesize a view on %s from the data and the narrative below.", inputs.Ticker)
	b.section("QUANTITATIVE PICTURE")
	b.add("Ticker: %s", inputs.Ticker)
	if inputs.Market != nil && inputs.Market.HasPrice {
		b.add("Current Price: $%s", inputs.Market.CurrentPrice.StringFixed(2))
	} else {
		b.add("Current Price: N/A")
	}
	b.add("RSI: %.1f", rsi)
	b.add("7-Day Change: %+.2f%%", momentumOf(inputs.Market, "price_change_7d"))
	b.add("30-Day Change: %+.2f%%", momentumOf(inputs.Market, "price_change_30d"))
	b.add("Volume Trend: %s", volumeTrendOf(inputs.Market))
	b.add("Combined Sentiment: %.3f", combined)

	headlines, posts := 0, 0
	if inputs.Sentiment != nil {
		if len(inputs.Sentiment.News.Headlines) > 0 {
			b.section("RECENT HEADLINES")
			for _, h := range inputs.Sentiment.News.Headlines {
				b.add("- %s", h)
				headlines++
			}
		}
		if len(inputs.Sentiment.Reddit.TopPosts) > 0 {
			b.section("TOP SOCIAL POSTS")
			for _, p := range inputs.Sentiment.Reddit.TopPosts {
				b.add("- %s", p)
				posts++
			}
		}
	}
	if headlines == 0 && posts == 0 {
		b.section("NARRATIVE")
		b.add("No recent news or social coverage available.")
	}

	b.section("YOUR SYNTHESIS TASK")
	b.add("1. Do the numbers and the narrative point the same way?")
	b.add("2. What is the narrative missing that the data shows, or vice versa?")
	b.add("3. How fresh and credible is the coverage?")
	b.add("")
	b.add("Respond with ONLY the JSON object as specified.")

	dataUsed := map[string]interface{}{
		"rsi":       rsi,
		"sentiment": combined,
		"headlines": headlines,
		"top_posts": posts,
	}
	return a.analyzeWith(ctx, multimodalSystemPrompt, b.String(), dataUsed)
}
