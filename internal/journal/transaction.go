package journal

import (
	"strings"
	"time"
)

// Side 交易方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide 解析大小写不敏感的方向字符串。
func ParseSide(raw string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(raw))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// Origin 标记交易由谁发起。
type Origin string

const (
	OriginManual Origin = "MANUAL"
	OriginAuto   Origin = "AUTO"
)

// Transaction 是一笔已成交记录，创建后不再修改。
type Transaction struct {
	ID         string    `json:"id"`
	Side       Side      `json:"side"`
	AssetID    string    `json:"asset_id"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	AmountUSD  float64   `json:"amount_usd"`
	Timestamp  time.Time `json:"timestamp"`
	Origin     Origin    `json:"origin"`
	Rationale  string    `json:"rationale,omitempty"`
	Confidence *int      `json:"confidence,omitempty"`
}

// IsAuto reports whether the scheduler placed this trade.
func (t Transaction) IsAuto() bool { return t.Origin == OriginAuto }
