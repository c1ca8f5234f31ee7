package sentiment

import "strings"

// Keyword lexicons for headline and post scoring. Each hit in either
// direction moves the text toward +-0.5; balanced or no hits score 0.
var (
	newsPositive = []string{
		"surge", "rally", "gain", "bullish", "upgrade", "beat", "record",
		"soar", "jump", "rise", "growth", "profit", "breakthrough",
	}
	newsNegative = []string{
		"plunge", "drop", "bearish", "downgrade", "miss", "crash", "fall",
		"decline", "loss", "concern", "warning", "cut", "layoff", "lawsuit",
	}
	socialPositive = []string{
		"buy", "bullish", "moon", "rocket", "gain", "profit", "calls",
		"long", "undervalued", "breakout", "surge", "beat", "upgrade",
	}
	socialNegative = []string{
		"sell", "bearish", "crash", "dump", "loss", "puts", "short",
		"overvalued", "downgrade", "weak", "miss", "plunge", "drop",
	}
)

func keywordScore(text string, positive, negative []string) float64 {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, kw := range positive {
		if strings.Contains(lower, kw) {
			pos++
		}
	}
	for _, kw := range negative {
		if strings.Contains(lower, kw) {
			neg++
		}
	}

	switch {
	case pos > neg:
		return 0.5
	case neg > pos:
		return -0.5
	default:
		return 0
	}
}

// scoreHeadline rates one news headline
func scoreHeadline(headline string) float64 {
	return keywordScore(headline, newsPositive, newsNegative)
}

// scorePost rates one social post, nudged by community engagement: a
// well-upvoted post amplifies its sentiment, a downvoted one dampens it.
func scorePost(title, body string, upvotes int, upvoteRatio float64) float64 {
	text := title
	if body != "" {
		if len(body) > 500 {
			body = body[:500]
		}
		text += " " + body
	}

	score := keywordScore(text, socialPositive, socialNegative)
	if upvotes > 100 && upvoteRatio > 0.8 {
		score = clampScore(score + 0.1)
	} else if upvotes < 0 {
		score = clampScore(score - 0.1)
	}
	return score
}

func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
