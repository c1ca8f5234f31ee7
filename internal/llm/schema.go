package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alphamachine/engine/internal/errs"
)

// VerdictResponse is the structured payload analyst agents instruct the
// model to return. Confidence is on a 1-5 scale and gets normalized to
// 0-1 by the agent layer.
type VerdictResponse struct {
	Recommendation string `json:"recommendation"` // "BUY", "SELL", "HOLD"
	Confidence     int    `json:"confidence"`     // 1..5
	Reasoning      string `json:"reasoning"`
}

// ParseVerdict extracts and validates a verdict from raw model output.
// The content may wrap the JSON in markdown code fences.
func ParseVerdict(provider, content string) (*VerdictResponse, error) {
	const op = "llm.parse_verdict"

	content = extractJSONFromMarkdown(content)

	var verdict VerdictResponse
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return nil, errs.FromProvider(errs.KindFatal, op, provider,
			fmt.Errorf("failed to parse verdict JSON: %w", err))
	}

	switch verdict.Recommendation {
	case "BUY", "SELL", "HOLD":
	default:
		return nil, errs.FromProvider(errs.KindFatal, op, provider,
			fmt.Errorf("invalid recommendation %q", verdict.Recommendation))
	}
	if verdict.Confidence < 1 || verdict.Confidence > 5 {
		return nil, errs.FromProvider(errs.KindFatal, op, provider,
			fmt.Errorf("confidence %d out of range 1-5", verdict.Confidence))
	}
	if verdict.Reasoning == "" {
		return nil, errs.FromProvider(errs.KindFatal, op, provider,
			fmt.Errorf("verdict is missing reasoning"))
	}

	return &verdict, nil
}

// extractJSONFromMarkdown strips ```json ... ``` or ``` ... ``` fences
func extractJSONFromMarkdown(content string) string {
	start := -1
	end := -1

	contentBytes := []byte(content)
	if idx := bytes.Index(contentBytes, []byte("```json")); idx >= 0 {
		start = idx + 7
	} else if idx := bytes.Index(contentBytes, []byte("```")); idx >= 0 {
		start = idx + 3
	}

	if start >= 0 {
		if idx := bytes.Index(contentBytes[start:], []byte("```")); idx >= 0 {
			end = start + idx
			content = content[start:end]
		}
	}

	return string(bytes.TrimSpace([]byte(content)))
}
