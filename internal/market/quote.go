package market

import (
	"math"
	"strings"
	"time"
)

// Quote 是某一资产在某一时刻的不可变行情快照。
type Quote struct {
	AssetID      string    `json:"asset_id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Price        float64   `json:"price"`
	High24h      float64   `json:"high_24h"`
	Low24h       float64   `json:"low_24h"`
	Change24hPct float64   `json:"change_24h_pct"`
	MarketCap    float64   `json:"market_cap"`
	Volume       float64   `json:"volume"`
	Sparkline    []float64 `json:"sparkline,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Valid reports whether the quote can be traded against.
func (q Quote) Valid() bool {
	if strings.TrimSpace(q.AssetID) == "" {
		return false
	}
	return q.Price > 0 && !math.IsNaN(q.Price) && !math.IsInf(q.Price, 0)
}

// RangePosition 返回当前价格在 24h 区间中的位置，0 为最低，1 为最高。
// 区间无效时返回 0.5。
func (q Quote) RangePosition() float64 {
	span := q.High24h - q.Low24h
	if span <= 0 {
		return 0.5
	}
	pos := (q.Price - q.Low24h) / span
	return math.Max(0, math.Min(1, pos))
}

func (q Quote) clone() Quote {
	if q.Sparkline != nil {
		q.Sparkline = append([]float64(nil), q.Sparkline...)
	}
	return q
}
