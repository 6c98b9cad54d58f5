package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cryptomind/internal/market"
	"cryptomind/internal/trader"
	"cryptomind/internal/wallet"
)

func quote(price, low, high, change float64) market.Quote {
	return market.Quote{AssetID: "bitcoin", Symbol: "btc", Name: "Bitcoin", Price: price, Low24h: low, High24h: high, Change24hPct: change}
}

func TestRuleOracle_StopLossAndTakeProfit(t *testing.T) {
	o := NewRuleOracle(DefaultRuleConfig())
	ctx := context.Background()

	h := &wallet.Holding{AssetID: "bitcoin", Quantity: 10, AvgCost: 100}
	d, err := o.Decide(ctx, quote(90, 80, 120, 0), 1000, h)
	require.NoError(t, err)
	assert.Equal(t, ActionSell, d.Action)
	assert.Contains(t, d.Reason, "Stop-Loss")
	assert.Greater(t, d.AmountUSD, 0.0)
	assert.LessOrEqual(t, d.AmountUSD, 10*90*0.15)

	d, err = o.Decide(ctx, quote(115, 80, 130, 0), 1000, h)
	require.NoError(t, err)
	assert.Equal(t, ActionSell, d.Action)
	assert.Contains(t, d.Reason, "Take-Profit")
}

func TestRuleOracle_RangeAndMomentum(t *testing.T) {
	o := NewRuleOracle(DefaultRuleConfig())
	ctx := context.Background()

	d, err := o.Decide(ctx, quote(101, 100, 200, 0), 10000, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, d.Action)
	assert.GreaterOrEqual(t, d.AmountUSD, 10000*0.01)
	assert.LessOrEqual(t, d.AmountUSD, 10000*0.15)

	// near the high but nothing to sell
	d, err = o.Decide(ctx, quote(199, 100, 200, 0), 10000, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)

	d, err = o.Decide(ctx, quote(150, 100, 200, 6), 10000, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, d.Action)
	assert.Contains(t, d.Reason, "Momentum")
}

func TestRuleOracle_MomentumBlockedWhenOverbought(t *testing.T) {
	o := NewRuleOracle(DefaultRuleConfig())
	q := quote(150, 100, 200, 6)
	for i := 0; i < 30; i++ {
		q.Sparkline = append(q.Sparkline, 100+float64(i)*2)
	}
	d, err := o.Decide(context.Background(), q, 10000, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
	assert.Contains(t, d.Reason, "overbought")
}

func TestRuleOracle_LowConfidenceHolds(t *testing.T) {
	cfg := DefaultRuleConfig()
	cfg.MinConfidence = 95
	o := NewRuleOracle(cfg)
	d, err := o.Decide(context.Background(), quote(101, 100, 200, 0), 10000, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
	assert.False(t, d.Actionable())
}

func TestRuleOracle_InvalidQuote(t *testing.T) {
	_, err := NewRuleOracle(DefaultRuleConfig()).Decide(context.Background(), market.Quote{AssetID: "x"}, 1, nil)
	assert.ErrorIs(t, err, ErrOracleFailure)
	assert.ErrorIs(t, err, trader.ErrOracleFailure)
}

func TestDecisionParser(t *testing.T) {
	p, err := NewDecisionParser()
	require.NoError(t, err)

	d, err := p.Parse("```json\n{\"decision\":\"buy\",\"amountUSD\":250.5,\"reason\":\"Breakout confirmed\",\"confidence\":77.6}\n```")
	require.NoError(t, err)
	assert.Equal(t, Decision{Action: ActionBuy, AmountUSD: 250.5, Reason: "Breakout confirmed", Confidence: 78}, d)

	d, err = p.Parse(`Analysis done. {"decision":"HOLD","amountUSD":12,"reason":"flat","confidence":40}`)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
	assert.Zero(t, d.AmountUSD)

	bad := []string{
		"no json here",
		`{"decision":"MOON","amountUSD":1,"reason":"x","confidence":50}`,
		`{"decision":"BUY","amountUSD":-1,"reason":"x","confidence":50}`,
		`{"decision":"BUY","amountUSD":1,"reason":"x","confidence":150}`,
		`{"decision":"BUY","reason":"x","confidence":50}`,
		`{"decision":"BUY","amountUSD":"lots","reason":"x","confidence":50}`,
	}
	for _, raw := range bad {
		_, err := p.Parse(raw)
		assert.ErrorIs(t, err, ErrOracleFailure, raw)
	}
}

type mockCompleter struct{ mock.Mock }

func (m *mockCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestModelOracle(t *testing.T) {
	c := &mockCompleter{}
	o, err := NewModelOracle("test-model", c)
	require.NoError(t, err)
	q := quote(100, 90, 110, 1)
	h := &wallet.Holding{AssetID: "bitcoin", Quantity: 2, AvgCost: 80}

	c.On("Complete", mock.Anything, mock.MatchedBy(func(p Prompt) bool {
		return p.Input.Holding == h && len(p.User) > 0
	})).Return(`{"decision":"SELL","amountUSD":20,"reason":"Take profit","confidence":81}`, nil).Once()

	d, err := o.Decide(context.Background(), q, 500, h)
	require.NoError(t, err)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, 20.0, d.AmountUSD)

	c.On("Complete", mock.Anything, mock.Anything).Return("", fmt.Errorf("429: %w", ErrRateLimited)).Once()
	d, err = o.Decide(context.Background(), q, 500, nil)
	require.NoError(t, err)
	assert.Equal(t, Hold(RateLimitReason), d)

	c.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("network unreachable")).Once()
	_, err = o.Decide(context.Background(), q, 500, nil)
	assert.ErrorIs(t, err, ErrOracleFailure)

	c.On("Complete", mock.Anything, mock.Anything).Return("I think you should buy!", nil).Once()
	_, err = o.Decide(context.Background(), q, 500, nil)
	assert.ErrorIs(t, err, ErrOracleFailure)

	c.AssertExpectations(t)
}

func TestRenderPrompt(t *testing.T) {
	p := RenderPrompt(Input{Quote: quote(100, 90, 110, 1.5), Cash: 1234.5})
	assert.Contains(t, p, "Asset: Bitcoin (BTC)")
	assert.Contains(t, p, "USD Available: $1234.50")
	assert.Contains(t, p, "Not currently held.")
}

func TestRuleCompleter_RoundTripsThroughModelOracle(t *testing.T) {
	o, err := NewModelOracle("local", RuleCompleter{})
	require.NoError(t, err)
	d, err := o.Decide(context.Background(), quote(101, 100, 200, 0), 10000, nil)
	require.NoError(t, err)

	want, err := NewRuleOracle(DefaultRuleConfig()).Decide(context.Background(), quote(101, 100, 200, 0), 10000, nil)
	require.NoError(t, err)
	assert.Equal(t, want, d)
}

type flakyOracle struct{ calls int }

func (f *flakyOracle) Decide(context.Context, market.Quote, float64, *wallet.Holding) (Decision, error) {
	f.calls++
	return Decision{}, failure("upstream failed")
}

func TestGuardedOracle_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyOracle{}
	var transitions []gobreaker.State
	g := NewGuardedOracle(inner, BreakerSettings{
		ConsecutiveFailures: 2,
		Timeout:             time.Hour,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})
	ctx := context.Background()
	q := quote(100, 90, 110, 0)

	for i := 0; i < 2; i++ {
		_, err := g.Decide(ctx, q, 0, nil)
		assert.ErrorIs(t, err, ErrOracleFailure)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Decide(ctx, q, 0, nil)
	assert.ErrorIs(t, err, ErrOracleFailure)
	assert.Equal(t, 2, inner.calls, "open breaker must short-circuit")
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}
