package sentiment

import "time"

// SocialReading is the social-media side of the sentiment picture
type SocialReading struct {
	Mentions  int      `json:"mentions"`
	Score     float64  `json:"score"` // -1..1
	Available bool     `json:"available"`
	TopPosts  []string `json:"top_posts,omitempty"`
}

// NewsReading is the news side of the sentiment picture
type NewsReading struct {
	ArticleCount int      `json:"article_count"`
	Score        float64  `json:"score"` // -1..1
	Available    bool     `json:"available"`
	Headlines    []string `json:"headlines,omitempty"`
}

// Snapshot is the combined sentiment view of a ticker. Combined is a
// weighted average of the available sources; when neither source
// responded, Available is false and Combined is 0.
type Snapshot struct {
	Ticker    string        `json:"ticker"`
	AsOf      time.Time     `json:"as_of"`
	Combined  float64       `json:"combined_sentiment"`
	Label     string        `json:"sentiment_label"`
	Available bool          `json:"available"`
	Reddit    SocialReading `json:"reddit"`
	News      NewsReading   `json:"news"`
}

// labelFor maps a combined score to its descriptive band
func labelFor(score float64) string {
	switch {
	case score > 0.3:
		return "bullish"
	case score > 0.1:
		return "slightly_bullish"
	case score < -0.3:
		return "bearish"
	case score < -0.1:
		return "slightly_bearish"
	default:
		return "neutral"
	}
}
