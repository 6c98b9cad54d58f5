package wallet

import (
	"github.com/shopspring/decimal"

	"cryptomind/internal/market"
)

// PositionValue 是单个持仓的估值。
type PositionValue struct {
	Holding
	Price         float64 `json:"price"`
	Priced        bool    `json:"priced"` // false 表示没有实时报价，按成本价估值
	MarketValue   float64 `json:"market_value"`
	CostValue     float64 `json:"cost_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	UnrealizedPct float64 `json:"unrealized_pct"`
}

// Valuation 是钱包总估值。
type Valuation struct {
	Cash          float64         `json:"cash"`
	HoldingsValue float64         `json:"holdings_value"`
	NetWorth      float64         `json:"net_worth"`
	Positions     []PositionValue `json:"positions"`
}

// NetWorth = 现金 + Σ(数量 × 最新价)。没有报价的资产按成本价计。
func NetWorth(s Snapshot, quotes map[string]market.Quote) float64 {
	return Valuate(s, quotes).NetWorth
}

// Valuate 计算净值及每个持仓的市值和浮动盈亏。纯函数。
func Valuate(s Snapshot, quotes map[string]market.Quote) Valuation {
	total := decimal.Zero
	out := Valuation{Cash: s.Cash}
	for _, h := range s.SortedHoldings() {
		qty := decFromFloat(h.Quantity)
		cost := qty.Mul(decFromFloat(h.AvgCost))
		pv := PositionValue{Holding: h, Price: h.AvgCost}
		if q, ok := quotes[h.AssetID]; ok && q.Valid() {
			pv.Price = q.Price
			pv.Priced = true
		}
		value := qty.Mul(decFromFloat(pv.Price))
		pnl := value.Sub(cost)
		pv.MarketValue = decToFloat(value)
		pv.CostValue = decToFloat(cost)
		pv.UnrealizedPnL = decToFloat(pnl)
		if cost.IsPositive() {
			pv.UnrealizedPct = decToFloat(pnl.Div(cost).Mul(decimal.NewFromInt(100)))
		}
		total = total.Add(value)
		out.Positions = append(out.Positions, pv)
	}
	out.HoldingsValue = decToFloat(total)
	out.NetWorth = decToFloat(decFromFloat(s.Cash).Add(total))
	return out
}
