package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptomind/internal/market"
	"cryptomind/internal/trader"
	"cryptomind/internal/wallet"
)

// Action 是决策动作。
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RateLimitReason 是限流时返回的 HOLD 理由。
const RateLimitReason = "Rate Limit Cooldown"

// Decision 是一次决策结果。
type Decision struct {
	Action     Action  `json:"decision"`
	AmountUSD  float64 `json:"amountUSD"`
	Reason     string  `json:"reason"`
	Confidence int     `json:"confidence"`
}

// Hold builds a HOLD decision with the given reason.
func Hold(reason string) Decision {
	return Decision{Action: ActionHold, Reason: reason}
}

// Actionable 为 true 时决策应提交给执行器。
func (d Decision) Actionable() bool {
	return (d.Action == ActionBuy || d.Action == ActionSell) && d.AmountUSD > 0
}

func (d Decision) String() string {
	if d.Action == ActionHold {
		return fmt.Sprintf("HOLD (%s)", d.Reason)
	}
	return fmt.Sprintf("%s $%.2f conf=%d (%s)", d.Action, d.AmountUSD, d.Confidence, d.Reason)
}

// Input 是一次决策的全部上下文。
type Input struct {
	Quote   market.Quote
	Cash    float64
	Holding *wallet.Holding
}

// PnLPct 返回持仓相对成本的盈亏百分比；未持仓时 ok 为 false。
func (in Input) PnLPct() (float64, bool) {
	if in.Holding == nil || in.Holding.AvgCost <= 0 {
		return 0, false
	}
	return (in.Quote.Price - in.Holding.AvgCost) / in.Holding.AvgCost * 100, true
}

// Oracle 给出买卖建议。实现可能很慢，也可能失败；失败时返回的错误包装 ErrOracleFailure。
type Oracle interface {
	Decide(ctx context.Context, quote market.Quote, cash float64, holding *wallet.Holding) (Decision, error)
}

var (
	ErrOracleFailure = trader.ErrOracleFailure
	// ErrRateLimited 由 Completer 返回，表示上游限流。
	ErrRateLimited = errors.New("rate limited")
)

func failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOracleFailure, fmt.Sprintf(format, args...))
}

// ParseAction 大小写不敏感地解析动作。
func ParseAction(raw string) (Action, bool) {
	switch Action(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionHold:
		return ActionHold, true
	}
	return "", false
}
