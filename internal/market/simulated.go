package market

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimulatedConfig 控制随机游走参数。
type SimulatedConfig struct {
	Volatility float64 // 每步价格波动的标准差（相对值）
	HistoryLen int     // sparkline 保留的点数，同时作为 24h 窗口
	Rand       *rand.Rand
	Now        func() time.Time
}

type simAsset struct {
	seed    Seed
	price   float64
	open    float64
	history []float64
	rolled  bool // 初始 24h 区间已滚出窗口
}

// SimulatedFeed 在本地生成随机游走行情，用于演示和测试。
type SimulatedFeed struct {
	mu     sync.Mutex
	cfg    SimulatedConfig
	rng    *rand.Rand
	assets []*simAsset
}

func NewSimulatedFeed(seeds []Seed, cfg SimulatedConfig) *SimulatedFeed {
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.004
	}
	if cfg.HistoryLen < 2 {
		cfg.HistoryLen = 48
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	f := &SimulatedFeed{cfg: cfg, rng: rng}
	for _, s := range seeds {
		if s.Price <= 0 || s.AssetID == "" {
			continue
		}
		open := s.Price / (1 + s.Change24hPct/100)
		a := &simAsset{seed: s, price: s.Price, open: open}
		a.history = append(a.history, s.Price)
		f.assets = append(f.assets, a)
	}
	return f
}

// Quotes 推进一步随机游走并返回每个资产的最新报价。
func (f *SimulatedFeed) Quotes(ctx context.Context) ([]Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.cfg.Now()
	out := make([]Quote, 0, len(f.assets))
	for _, a := range f.assets {
		f.step(a)
		out = append(out, a.quote(now))
	}
	return out, nil
}

func (f *SimulatedFeed) step(a *simAsset) {
	next := a.price * (1 + f.rng.NormFloat64()*f.cfg.Volatility)
	if next <= 0 || math.IsNaN(next) {
		next = a.price * 0.99
	}
	a.price = next
	a.history = append(a.history, next)
	if over := len(a.history) - f.cfg.HistoryLen; over > 0 {
		a.open = a.history[over-1]
		a.rolled = true
		a.history = append([]float64(nil), a.history[over:]...)
	}
}

func (a *simAsset) quote(now time.Time) Quote {
	high, low := a.seed.High24h, a.seed.Low24h
	if a.rolled || high <= 0 || low <= 0 {
		high, low = a.price, a.price
	}
	for _, p := range a.history {
		high = math.Max(high, p)
		low = math.Min(low, p)
	}
	change := 0.0
	if a.open > 0 {
		change = (a.price - a.open) / a.open * 100
	}
	ratio := a.price / a.seed.Price
	return Quote{
		AssetID:      a.seed.AssetID,
		Symbol:       a.seed.Symbol,
		Name:         a.seed.Name,
		Price:        a.price,
		High24h:      high,
		Low24h:       low,
		Change24hPct: change,
		MarketCap:    a.seed.MarketCap * ratio,
		Volume:       a.seed.Volume,
		Sparkline:    append([]float64(nil), a.history...),
		UpdatedAt:    now,
	}
}
