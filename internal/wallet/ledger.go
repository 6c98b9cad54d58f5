package wallet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Holding 是某一资产的持仓。
type Holding struct {
	AssetID  string  `json:"asset_id"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// Snapshot 是 Ledger 的只读副本。
type Snapshot struct {
	Cash     float64            `json:"cash"`
	Holdings map[string]Holding `json:"holdings"`
}

// Holding looks up one asset in the snapshot.
func (s Snapshot) Holding(assetID string) (Holding, bool) {
	h, ok := s.Holdings[assetID]
	return h, ok
}

// SortedHoldings 按资产 id 排序返回持仓列表。
func (s Snapshot) SortedHoldings() []Holding {
	out := make([]Holding, 0, len(s.Holdings))
	for _, h := range s.Holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

type position struct {
	symbol string
	qty    decimal.Decimal
	basis  decimal.Decimal
}

// Ledger 记录现金与持仓。Ledger 不做并发保护，由唯一的写入方持有。
type Ledger struct {
	cash      decimal.Decimal
	positions map[string]*position
}

func NewLedger(seedBalance float64) *Ledger {
	return &Ledger{
		cash:      decFromFloat(seedBalance),
		positions: make(map[string]*position),
	}
}

func (l *Ledger) Cash() float64 {
	return decToFloat(l.cash)
}

// Holding 返回持仓；不存在时 ok 为 false。
func (l *Ledger) Holding(assetID string) (Holding, bool) {
	p, ok := l.positions[assetID]
	if !ok {
		return Holding{}, false
	}
	return p.toHolding(assetID), true
}

// ApplyBuy 增加持仓并扣减现金，平均成本按数量加权：
// (oldQty*oldBasis + usdSpent) / (oldQty + quantity)。
func (l *Ledger) ApplyBuy(assetID, symbol string, quantity, fillPrice, usdSpent float64) {
	qty := decFromFloat(quantity)
	spent := decFromFloat(usdSpent)
	p, ok := l.positions[assetID]
	if !ok {
		basis := decFromFloat(fillPrice)
		if qty.IsPositive() {
			basis = spent.Div(qty)
		}
		l.positions[assetID] = &position{symbol: strings.ToUpper(symbol), qty: qty, basis: basis}
	} else {
		newQty := p.qty.Add(qty)
		if newQty.IsPositive() {
			p.basis = p.qty.Mul(p.basis).Add(spent).Div(newQty)
		}
		p.qty = newQty
		if p.symbol == "" {
			p.symbol = strings.ToUpper(symbol)
		}
	}
	l.cash = l.cash.Sub(spent)
}

// ApplySell 减少持仓并增加现金，不改变平均成本。
// 剩余数量不超过 DustQuantity 时删除持仓。
func (l *Ledger) ApplySell(assetID string, quantity, usdReceived float64) error {
	p, ok := l.positions[assetID]
	if !ok {
		return fmt.Errorf("no holding for %s", assetID)
	}
	p.qty = p.qty.Sub(decFromFloat(quantity))
	if p.qty.LessThanOrEqual(decDust) {
		delete(l.positions, assetID)
	}
	l.cash = l.cash.Add(decFromFloat(usdReceived))
	return nil
}

// Snapshot 返回当前状态的深拷贝。
func (l *Ledger) Snapshot() Snapshot {
	out := Snapshot{
		Cash:     l.Cash(),
		Holdings: make(map[string]Holding, len(l.positions)),
	}
	for id, p := range l.positions {
		out.Holdings[id] = p.toHolding(id)
	}
	return out
}

// Clone copies the ledger so a trial mutation can be discarded.
func (l *Ledger) Clone() *Ledger {
	cp := &Ledger{cash: l.cash, positions: make(map[string]*position, len(l.positions))}
	for id, p := range l.positions {
		pp := *p
		cp.positions[id] = &pp
	}
	return cp
}

func (p *position) toHolding(assetID string) Holding {
	return Holding{
		AssetID:  assetID,
		Symbol:   p.symbol,
		Quantity: decToFloat(p.qty),
		AvgCost:  decToFloat(p.basis),
	}
}
