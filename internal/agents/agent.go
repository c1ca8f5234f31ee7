// Package agents defines the analyst panel: independent agents that
// each turn a market and sentiment snapshot into one verdict. Agents
// never leak errors across the boundary; anything that goes wrong
// inside an agent becomes a failed HOLD verdict.
package agents

import (
	"context"

	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/sentiment"
)

// SignalLevel is the 5-level recommendation scale
type SignalLevel string

const (
	StrongSell SignalLevel = "STRONG_SELL"
	Sell       SignalLevel = "SELL"
	Hold       SignalLevel = "HOLD"
	Buy        SignalLevel = "BUY"
	StrongBuy  SignalLevel = "STRONG_BUY"
)

// Default score thresholds for mapping a score to a signal level. The
// live values come from configuration; these back LevelFromScore when a
// caller passes zeros.
const (
	DefaultBuyThreshold    = 0.1
	DefaultStrongThreshold = 0.5
)

// Inputs is everything an agent may look at for one ticker
type Inputs struct {
	Ticker    string
	Market    *market.Snapshot
	Sentiment *sentiment.Snapshot
}

// Verdict is one agent's opinion on a ticker
type Verdict struct {
	AgentName  string                 `json:"agent_name"`
	Signal     SignalLevel            `json:"signal"`
	RawScore   float64                `json:"raw_score"`  // -1..1
	Confidence float64                `json:"confidence"` // 0..1
	Reasoning  string                 `json:"reasoning"`
	DataUsed   map[string]interface{} `json:"data_used,omitempty"`
	Failed     bool                   `json:"failed"`
}

// Agent is the contract every panel member satisfies. Analyze must not
// panic or return an error; failures become failed HOLD verdicts.
type Agent interface {
	Name() string
	Weight() float64
	Analyze(ctx context.Context, inputs Inputs) Verdict
}

// FailedVerdict builds the canonical failure verdict: HOLD, zero
// confidence, reasoning prefixed so downstream audit can spot it.
func FailedVerdict(agentName, reason string) Verdict {
	return Verdict{
		AgentName:  agentName,
		Signal:     Hold,
		RawScore:   0,
		Confidence: 0,
		Reasoning:  "Analysis failed: " + reason,
		Failed:     true,
	}
}

// LevelFromScore maps a score in [-1,1] to the 5-level scale. Zero
// thresholds select the defaults.
func LevelFromScore(score, buyThreshold, strongThreshold float64) SignalLevel {
	if buyThreshold == 0 {
		buyThreshold = DefaultBuyThreshold
	}
	if strongThreshold == 0 {
		strongThreshold = DefaultStrongThreshold
	}
	switch {
	case score >= strongThreshold:
		return StrongBuy
	case score >= buyThreshold:
		return Buy
	case score <= -strongThreshold:
		return StrongSell
	case score <= -buyThreshold:
		return Sell
	default:
		return Hold
	}
}
