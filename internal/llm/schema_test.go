package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *VerdictResponse
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"recommendation": "BUY", "confidence": 4, "reasoning": "oversold bounce"}`,
			want:    &VerdictResponse{Recommendation: "BUY", Confidence: 4, Reasoning: "oversold bounce"},
		},
		{
			name: "json fenced in markdown",
			content: "Here is my analysis:\n```json\n" +
				`{"recommendation": "SELL", "confidence": 3, "reasoning": "overbought"}` +
				"\n```",
			want: &VerdictResponse{Recommendation: "SELL", Confidence: 3, Reasoning: "overbought"},
		},
		{
			name: "bare code fence",
			content: "```\n" +
				`{"recommendation": "HOLD", "confidence": 2, "reasoning": "mixed signals"}` +
				"\n```",
			want: &VerdictResponse{Recommendation: "HOLD", Confidence: 2, Reasoning: "mixed signals"},
		},
		{
			name:    "invalid recommendation",
			content: `{"recommendation": "SHORT", "confidence": 4, "reasoning": "x"}`,
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			content: `{"recommendation": "BUY", "confidence": 6, "reasoning": "x"}`,
			wantErr: true,
		},
		{
			name:    "confidence below range",
			content: `{"recommendation": "BUY", "confidence": 0, "reasoning": "x"}`,
			wantErr: true,
		},
		{
			name:    "missing reasoning",
			content: `{"recommendation": "BUY", "confidence": 4, "reasoning": ""}`,
			wantErr: true,
		},
		{
			name:    "not json at all",
			content: "I think you should buy this stock.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict("openai", tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONFromMarkdown(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSONFromMarkdown("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, extractJSONFromMarkdown("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, extractJSONFromMarkdown(`{"a": 1}`))
}
