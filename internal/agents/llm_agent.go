package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alphamachine/engine/internal/breaker"
	"github.com/alphamachine/engine/internal/llm"
	"github.com/alphamachine/engine/internal/retry"
)

// verdictFormat is appended to every LLM system prompt so all three
// model-backed agents emit the same strict schema.
const verdictFormat = `IMPORTANT: You must respond with ONLY valid JSON in this exact format:
{
    "recommendation": "BUY" | "SELL" | "HOLD",
    "confidence": 1 to 5,
    "reasoning": "Your analysis in 2-3 sentences"
}`

// llmAgent is the shared plumbing under the model-backed agents: one
// provider-bound client, calls routed through retry and that provider's
// circuit breaker, responses parsed against the strict verdict schema.
type llmAgent struct {
	name     string
	weight   float64
	client   *llm.Client
	breakers *breaker.Registry
	retry    retry.Config
	log      zerolog.Logger
}

func (a *llmAgent) Name() string    { return a.name }
func (a *llmAgent) Weight() float64 { return a.weight }

// consult sends the prompts and returns a validated verdict response
func (a *llmAgent) consult(ctx context.Context, systemPrompt, userPrompt string) (*llm.VerdictResponse, error) {
	var content string
	err := retry.Do(ctx, a.retry, "agent."+a.name, func() error {
		return a.breakers.Do("agent."+a.name, a.client.Provider(), func() error {
			c, err := a.client.CompleteWithSystem(ctx, systemPrompt, userPrompt)
			if err != nil {
				return err
			}
			content = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return llm.ParseVerdict(a.client.Provider(), strings.TrimSpace(content))
}

// toVerdict converts a parsed model response into an agent verdict.
// Confidence normalizes from the 1-5 scale; the raw score is direction
// times confidence.
func (a *llmAgent) toVerdict(resp *llm.VerdictResponse, dataUsed map[string]interface{}) Verdict {
	confidence := float64(resp.Confidence) / 5.0

	var direction float64
	switch resp.Recommendation {
	case "BUY":
		direction = 1
	case "SELL":
		direction = -1
	}
	raw := direction * confidence

	return Verdict{
		AgentName:  a.name,
		Signal:     LevelFromScore(raw, 0, 0),
		RawScore:   raw,
		Confidence: confidence,
		Reasoning:  resp.Reasoning,
		DataUsed:   dataUsed,
	}
}

// analyzeWith runs the consult-and-convert cycle, converting every
// failure into the canonical failed HOLD verdict.
func (a *llmAgent) analyzeWith(ctx context.Context, systemPrompt, userPrompt string, dataUsed map[string]interface{}) Verdict {
	resp, err := a.consult(ctx, systemPrompt, userPrompt)
	if err != nil {
		a.log.Warn().Err(err).Str("agent", a.name).Msg("Agent analysis failed")
		return FailedVerdict(a.name, err.Error())
	}
	return a.toVerdict(resp, dataUsed)
}

// promptBuilder accumulates the annotated sections of a user prompt
type promptBuilder struct {
	lines []string
}

func (b *promptBuilder) add(format string, args ...interface{}) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *promptBuilder) section(title string) {
	b.lines = append(b.lines, "", "=== "+title+" ===")
}

func (b *promptBuilder) callout(note string) {
	b.lines = append(b.lines, "  -> "+note)
}

func (b *promptBuilder) String() string {
	return strings.Join(b.lines, "\n")
}
