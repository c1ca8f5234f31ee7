package agents

import (
	"github.com/alphamachine/engine/internal/market"
	"github.com/alphamachine/engine/internal/sentiment"
)

// Shared edge-case policy: every agent sees the same substitutions for
// missing or out-of-range inputs.

const neutralRSI = 50.0

// rsiOf returns the RSI clamped to [0,100], neutral 50 when absent
func rsiOf(m *market.Snapshot) float64 {
	if m == nil {
		return neutralRSI
	}
	rsi, ok := m.RSI()
	if !ok {
		return neutralRSI
	}
	return clamp(rsi, 0, 100)
}

// sentimentOf returns the combined sentiment clamped to [-1,1], 0 when absent
func sentimentOf(s *sentiment.Snapshot) float64 {
	if s == nil || !s.Available {
		return 0
	}
	return clamp(s.Combined, -1, 1)
}

// mentionsOf returns the total social + news mention count
func mentionsOf(s *sentiment.Snapshot) int {
	if s == nil {
		return 0
	}
	return s.Reddit.Mentions + s.News.ArticleCount
}

// momentumOf returns the price change percent over the given horizon,
// 0 when the indicator is absent.
func momentumOf(m *market.Snapshot, key string) float64 {
	if m == nil || m.Indicators == nil {
		return 0
	}
	return m.Indicators[key]
}

// volumeTrendOf returns the tagged volume trend, unknown when absent
func volumeTrendOf(m *market.Snapshot) market.VolumeTrend {
	if m == nil || m.VolumeTrend == "" {
		return market.VolumeUnknown
	}
	return m.VolumeTrend
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
