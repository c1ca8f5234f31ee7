package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/alphamachine/engine/internal/validation"
)

// Panel runs every registered agent in parallel under a shared deadline
// and returns the verdicts in registration order. An agent that panics,
// errs or misses the deadline contributes a failed HOLD verdict; the
// panel itself only errors on bad input.
type Panel struct {
	agents  []Agent
	timeout time.Duration
	log     zerolog.Logger
}

// NewPanel creates a panel over the given agents. Zero timeout selects
// the 30s default.
func NewPanel(agents []Agent, timeout time.Duration, logger zerolog.Logger) *Panel {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Panel{agents: agents, timeout: timeout, log: logger}
}

// Agents returns the panel members in registration order
func (p *Panel) Agents() []Agent {
	return p.agents
}

// Weights returns the agent weight map for consensus
func (p *Panel) Weights() map[string]float64 {
	weights := make(map[string]float64, len(p.agents))
	for _, a := range p.agents {
		weights[a.Name()] = a.Weight()
	}
	return weights
}

type indexedVerdict struct {
	index   int
	verdict Verdict
}

// Analyze fans the inputs out to every agent. The returned slice always
// has one verdict per agent, ordered by registration.
func (p *Panel) Analyze(ctx context.Context, inputs Inputs) ([]Verdict, error) {
	if err := validation.Ticker(inputs.Ticker); err != nil {
		return nil, err
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make(chan indexedVerdict, len(p.agents))
	for i, agent := range p.agents {
		go func(i int, agent Agent) {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error().
						Str("agent", agent.Name()).
						Interface("panic", r).
						Msg("Agent panicked")
					results <- indexedVerdict{i, FailedVerdict(agent.Name(), fmt.Sprintf("panic: %v", r))}
				}
			}()
			results <- indexedVerdict{i, p.normalize(agent, agent.Analyze(deadlineCtx, inputs))}
		}(i, agent)
	}

	verdicts := make([]Verdict, len(p.agents))
	received := make([]bool, len(p.agents))
	pending := len(p.agents)
	for pending > 0 {
		select {
		case r := <-results:
			verdicts[r.index] = r.verdict
			received[r.index] = true
			pending--
		case <-deadlineCtx.Done():
			// Unfinished agents contribute failed HOLDs; finished ones
			// are kept as-is.
			for i, agent := range p.agents {
				if !received[i] {
					p.log.Warn().
						Str("agent", agent.Name()).
						Str("ticker", inputs.Ticker).
						Msg("Agent missed the panel deadline")
					verdicts[i] = FailedVerdict(agent.Name(), "deadline exceeded")
				}
			}
			return verdicts, nil
		}
	}
	return verdicts, nil
}

// normalize enforces the verdict contract regardless of what the agent
// produced: failed verdicts are HOLD at zero confidence, scores and
// confidences stay in range, reasoning is never empty.
func (p *Panel) normalize(agent Agent, v Verdict) Verdict {
	if v.AgentName == "" {
		v.AgentName = agent.Name()
	}
	if v.Failed {
		v.Signal = Hold
		v.Confidence = 0
		v.RawScore = 0
	}
	v.RawScore = clamp(v.RawScore, -1, 1)
	v.Confidence = clamp(v.Confidence, 0, 1)
	if v.Reasoning == "" {
		v.Reasoning = "No reasoning provided"
	}
	return v
}
