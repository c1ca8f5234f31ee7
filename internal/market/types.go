package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeTrend tags the direction of recent trading volume
type VolumeTrend string

const (
	VolumeIncreasing VolumeTrend = "increasing"
	VolumeDecreasing VolumeTrend = "decreasing"
	VolumeNeutral    VolumeTrend = "neutral"
	VolumeUnknown    VolumeTrend = "unknown"
)

// Bar is a single daily OHLCV bar
type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Quote is the current-price view of a ticker from one provider
type Quote struct {
	Price         decimal.Decimal `json:"price"`
	Open          decimal.Decimal `json:"open,omitempty"`
	High          decimal.Decimal `json:"high,omitempty"`
	Low           decimal.Decimal `json:"low,omitempty"`
	PreviousClose decimal.Decimal `json:"previous_close,omitempty"`
	ChangePercent float64         `json:"change_percent,omitempty"`
}

// Snapshot is the aggregated market view of a ticker. Fields the chain
// could not deliver are left at their zero value with the matching Has*
// flag false; a degraded snapshot is still a valid snapshot.
type Snapshot struct {
	Ticker string    `json:"ticker"`
	AsOf   time.Time `json:"as_of"`

	CurrentPrice decimal.Decimal `json:"current_price"`
	HasPrice     bool            `json:"has_price"`
	SourceUsed   string          `json:"source_used,omitempty"`

	// Historical is ordered newest to oldest, at most 100 bars.
	Historical []Bar `json:"historical,omitempty"`

	Indicators  map[string]float64 `json:"indicators,omitempty"`
	VolumeTrend VolumeTrend        `json:"volume_trend"`

	// Stale marks fields served from the stale cache window after a
	// full chain failure.
	Stale bool `json:"stale,omitempty"`
}

// RSI returns the rsi indicator and whether it was available
func (s *Snapshot) RSI() (float64, bool) {
	v, ok := s.Indicators["rsi"]
	return v, ok
}
