package oracle

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"cryptomind/internal/market"
	"cryptomind/internal/wallet"
)

// RuleConfig 是 RuleOracle 的阈值。
type RuleConfig struct {
	StopLossPct   float64 // 亏损达到该百分比卖出
	TakeProfitPct float64 // 盈利达到该百分比卖出
	RangeBand     float64 // 24h 区间上下沿的比例
	MomentumPct   float64 // 24h 涨幅超过该值视为动量
	RSIPeriod     int
	Overbought    float64
	MinConfidence int
	MinSizePct    float64
	MaxSizePct    float64
	MinTradeUSD   float64
}

func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		StopLossPct:   5,
		TakeProfitPct: 10,
		RangeBand:     0.15,
		MomentumPct:   2,
		RSIPeriod:     14,
		Overbought:    70,
		MinConfidence: 60,
		MinSizePct:    1,
		MaxSizePct:    15,
		MinTradeUSD:   1,
	}
}

// RuleOracle 是本地确定性的决策器。
type RuleOracle struct {
	cfg RuleConfig
}

func NewRuleOracle(cfg RuleConfig) *RuleOracle {
	def := DefaultRuleConfig()
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.MaxSizePct <= 0 {
		cfg.MinSizePct, cfg.MaxSizePct = def.MinSizePct, def.MaxSizePct
	}
	if cfg.RangeBand <= 0 {
		cfg.RangeBand = def.RangeBand
	}
	if cfg.Overbought <= 0 {
		cfg.Overbought = def.Overbought
	}
	return &RuleOracle{cfg: cfg}
}

func (o *RuleOracle) Decide(ctx context.Context, quote market.Quote, cash float64, holding *wallet.Holding) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, failure("%v", err)
	}
	if !quote.Valid() {
		return Decision{}, failure("invalid quote for %q", quote.AssetID)
	}
	in := Input{Quote: quote, Cash: cash, Holding: holding}
	d := o.signal(in)
	if d.Action == ActionHold {
		return d, nil
	}
	if d.Confidence < o.cfg.MinConfidence {
		return Decision{Action: ActionHold, Reason: fmt.Sprintf("Low confidence: %s", d.Reason), Confidence: d.Confidence}, nil
	}
	d.AmountUSD = o.size(in, d)
	if d.AmountUSD < o.cfg.MinTradeUSD {
		return Decision{Action: ActionHold, Reason: "Position too small to trade", Confidence: d.Confidence}, nil
	}
	return d, nil
}

// signal 按优先级依次检查止损、止盈、区间位置和动量。
func (o *RuleOracle) signal(in Input) Decision {
	q := in.Quote
	held := in.Holding != nil && in.Holding.Quantity > 0
	if pnl, ok := in.PnLPct(); ok && held {
		if o.cfg.StopLossPct > 0 && pnl <= -o.cfg.StopLossPct {
			return Decision{Action: ActionSell, Confidence: clampConf(80 + int(-pnl-o.cfg.StopLossPct)*2),
				Reason: fmt.Sprintf("Hit %.0f%% Stop-Loss (PnL %.2f%%)", o.cfg.StopLossPct, pnl)}
		}
		if o.cfg.TakeProfitPct > 0 && pnl >= o.cfg.TakeProfitPct {
			return Decision{Action: ActionSell, Confidence: clampConf(75 + int(pnl-o.cfg.TakeProfitPct)*2),
				Reason: fmt.Sprintf("Take-Profit at +%.2f%%", pnl)}
		}
	}
	pos := q.RangePosition()
	band := o.cfg.RangeBand
	if pos <= band && in.Cash > 0 {
		return Decision{Action: ActionBuy, Confidence: clampConf(60 + int((band-pos)/band*30)),
			Reason: "Near 24h low, accumulating"}
	}
	if pos >= 1-band && held {
		return Decision{Action: ActionSell, Confidence: clampConf(60 + int((pos-(1-band))/band*30)),
			Reason: "Near 24h high, taking profit"}
	}
	if o.cfg.MomentumPct > 0 && q.Change24hPct > o.cfg.MomentumPct && in.Cash > 0 {
		rsi, ok := o.rsi(q.Sparkline)
		if ok && rsi >= o.cfg.Overbought {
			return Hold(fmt.Sprintf("Momentum but overbought (RSI %.0f)", rsi))
		}
		conf := 60 + int(math.Min(q.Change24hPct-o.cfg.MomentumPct, 10)*2)
		reason := fmt.Sprintf("Momentum +%.2f%% 24h", q.Change24hPct)
		if ok {
			reason = fmt.Sprintf("%s, RSI %.0f", reason, rsi)
		}
		return Decision{Action: ActionBuy, Confidence: clampConf(conf), Reason: reason}
	}
	return Hold("No clear signal")
}

// size 在 [MinSizePct, MaxSizePct] 之间按置信度线性取仓位比例。
func (o *RuleOracle) size(in Input, d Decision) float64 {
	span := float64(100 - o.cfg.MinConfidence)
	ratio := 1.0
	if span > 0 {
		ratio = float64(d.Confidence-o.cfg.MinConfidence) / span
	}
	ratio = math.Max(0, math.Min(1, ratio))
	pct := o.cfg.MinSizePct + (o.cfg.MaxSizePct-o.cfg.MinSizePct)*ratio

	base := in.Cash
	if d.Action == ActionSell {
		base = 0
		if in.Holding != nil {
			base = in.Holding.Quantity * in.Quote.Price
		}
	}
	return math.Floor(base*pct) / 100
}

func (o *RuleOracle) rsi(series []float64) (float64, bool) {
	if len(series) <= o.cfg.RSIPeriod {
		return 0, false
	}
	out := talib.Rsi(series, o.cfg.RSIPeriod)
	if len(out) == 0 {
		return 0, false
	}
	v := out[len(out)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func clampConf(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
