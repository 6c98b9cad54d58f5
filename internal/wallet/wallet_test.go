package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptomind/internal/market"
)

func TestLedger_BuyThenSell(t *testing.T) {
	l := NewLedger(50000)

	l.ApplyBuy("btc", "btc", 100, 100, 10000)
	h, ok := l.Holding("btc")
	require.True(t, ok)
	assert.Equal(t, 40000.0, l.Cash())
	assert.Equal(t, 100.0, h.Quantity)
	assert.Equal(t, 100.0, h.AvgCost)
	assert.Equal(t, "BTC", h.Symbol)

	// 6000 USD at 120 is 50 units.
	require.NoError(t, l.ApplySell("btc", 50, 6000))
	h, _ = l.Holding("btc")
	assert.Equal(t, 46000.0, l.Cash())
	assert.Equal(t, 50.0, h.Quantity)
	assert.Equal(t, 100.0, h.AvgCost, "sell must not move cost basis")
}

func TestLedger_WeightedCostBasis(t *testing.T) {
	l := NewLedger(50000)
	l.ApplyBuy("eth", "eth", 10, 100, 1000)
	l.ApplyBuy("eth", "eth", 5, 200, 1000)

	h, _ := l.Holding("eth")
	assert.InDelta(t, 15, h.Quantity, 1e-12)
	assert.InDelta(t, 2000.0/15.0, h.AvgCost, 1e-9)
	assert.InDelta(t, 48000, l.Cash(), 1e-9)
}

func TestLedger_DustRemoved(t *testing.T) {
	l := NewLedger(1000)
	l.ApplyBuy("sol", "sol", 1, 100, 100)
	require.NoError(t, l.ApplySell("sol", 1-5e-7, 99.99995))

	_, ok := l.Holding("sol")
	assert.False(t, ok)
	assert.Empty(t, l.Snapshot().Holdings)
}

func TestLedger_SellWithoutHolding(t *testing.T) {
	l := NewLedger(1000)
	assert.Error(t, l.ApplySell("doge", 1, 1))
	assert.Equal(t, 1000.0, l.Cash())
}

func TestLedger_SnapshotAndCloneAreIndependent(t *testing.T) {
	l := NewLedger(1000)
	l.ApplyBuy("btc", "btc", 1, 100, 100)

	snap := l.Snapshot()
	cp := l.Clone()
	cp.ApplyBuy("btc", "btc", 1, 100, 100)

	h, _ := l.Holding("btc")
	assert.Equal(t, 1.0, h.Quantity)
	assert.Equal(t, 1.0, snap.Holdings["btc"].Quantity)
	assert.Equal(t, 900.0, l.Cash())
	assert.Equal(t, 800.0, cp.Cash())
}

func TestNetWorth(t *testing.T) {
	l := NewLedger(50000)
	l.ApplyBuy("btc", "btc", 100, 100, 10000)
	l.ApplyBuy("eth", "eth", 10, 50, 500)
	snap := l.Snapshot()

	quotes := map[string]market.Quote{
		"btc": {AssetID: "btc", Price: 120},
	}
	// eth has no quote and falls back to cost basis.
	assert.InDelta(t, 39500+100*120+10*50, NetWorth(snap, quotes), 1e-9)

	v := Valuate(snap, quotes)
	require.Len(t, v.Positions, 2)
	assert.Equal(t, "btc", v.Positions[0].AssetID)
	assert.True(t, v.Positions[0].Priced)
	assert.InDelta(t, 2000, v.Positions[0].UnrealizedPnL, 1e-9)
	assert.InDelta(t, 20, v.Positions[0].UnrealizedPct, 1e-9)
	assert.False(t, v.Positions[1].Priced)

	assert.Equal(t, NetWorth(snap, quotes), NetWorth(snap, quotes))
}

func TestNetWorth_EmptyLedger(t *testing.T) {
	assert.Equal(t, 50000.0, NetWorth(NewLedger(50000).Snapshot(), nil))
}
