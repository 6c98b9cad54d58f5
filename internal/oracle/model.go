package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cryptomind/internal/logger"
	"cryptomind/internal/market"
	"cryptomind/internal/pkg/jsonutil"
	"cryptomind/internal/wallet"
)

// Prompt 是发送给文本模型的请求。Input 保留结构化上下文，供本地实现使用。
type Prompt struct {
	System string
	User   string
	Input  Input
}

// Completer 是不透明的文本补全协作方。
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

const systemPrompt = "Identity: Autonomous Trading Subroutine. Task: analyze market data and decide one trade. Reply with a single JSON object."

// ModelOracle 通过 Completer 取得决策文本并解析。
type ModelOracle struct {
	name      string
	completer Completer
	parser    *DecisionParser
}

func NewModelOracle(name string, completer Completer) (*ModelOracle, error) {
	if completer == nil {
		return nil, fmt.Errorf("model oracle requires a completer")
	}
	parser, err := NewDecisionParser()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = "model"
	}
	return &ModelOracle{name: name, completer: completer, parser: parser}, nil
}

func (o *ModelOracle) Decide(ctx context.Context, quote market.Quote, cash float64, holding *wallet.Holding) (Decision, error) {
	in := Input{Quote: quote, Cash: cash, Holding: holding}
	prompt := Prompt{System: systemPrompt, User: RenderPrompt(in), Input: in}

	raw, err := o.completer.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			logger.Warnf("oracle %s rate limited on %s", o.name, quote.AssetID)
			return Hold(RateLimitReason), nil
		}
		return Decision{}, failure("%s: %v", o.name, err)
	}
	logged := raw
	if obj, ok := jsonutil.ExtractObject(raw); ok {
		logged = jsonutil.Pretty(obj)
	}
	logger.LogOracleExchange(o.name, quote.AssetID, prompt.System+"\n\n"+prompt.User, logged)

	d, err := o.parser.Parse(raw)
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

// RenderPrompt 生成决策提示词。
func RenderPrompt(in Input) string {
	q := in.Quote
	var b strings.Builder
	fmt.Fprintf(&b, "Asset: %s (%s)\n", q.Name, strings.ToUpper(q.Symbol))
	fmt.Fprintf(&b, "Current Price: $%g\n", q.Price)
	fmt.Fprintf(&b, "24h Change: %.2f%%\n", q.Change24hPct)
	fmt.Fprintf(&b, "24h Range: High $%g / Low $%g\n", q.High24h, q.Low24h)
	fmt.Fprintf(&b, "Market Cap: $%.0f\n\n", q.MarketCap)
	b.WriteString("Wallet State:\n")
	fmt.Fprintf(&b, "USD Available: $%.2f\n", in.Cash)
	if in.Holding != nil {
		fmt.Fprintf(&b, "Holdings: %g units\n", in.Holding.Quantity)
		pnl, _ := in.PnLPct()
		fmt.Fprintf(&b, "Avg Buy Price: $%.2f (Current PnL: %.2f%%)\n", in.Holding.AvgCost, pnl)
	} else {
		b.WriteString("Holdings: 0 units\nNot currently held.\n")
	}
	b.WriteString(`
Decision Logic:
1. Volatility: near 24h Low consider BUY, near 24h High consider SELL.
2. Stop-Loss: if held and PnL < -5%, heavily consider SELL.
3. Take-Profit: if held and PnL > 10%, heavily consider SELL.
4. Momentum: if 24h change > 2% and rising, consider BUY.

Constraints:
- Trade Amount: 1% - 15% of available balance (BUY) or holdings value (SELL).
- If confidence < 60, HOLD.

Return JSON: {"decision": "BUY|SELL|HOLD", "amountUSD": number, "reason": string, "confidence": 0-100}
`)
	return b.String()
}

// RuleCompleter answers prompts locally with a RuleOracle, formatted the way a
// chat model would reply. It lets the model pipeline run without a network
// provider.
type RuleCompleter struct {
	Rule *RuleOracle
}

func (c RuleCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	rule := c.Rule
	if rule == nil {
		rule = NewRuleOracle(DefaultRuleConfig())
	}
	d, err := rule.Decide(ctx, prompt.Input.Quote, prompt.Input.Cash, prompt.Input.Holding)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(body) + "\n```", nil
}
