package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"cryptomind/internal/logger"
	"cryptomind/internal/market"
	"cryptomind/internal/wallet"
)

// BreakerSettings 配置 GuardedOracle 的熔断参数。
type BreakerSettings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	OnStateChange       func(name string, from, to gobreaker.State)
}

// GuardedOracle 在连续失败后熔断，熔断期间直接返回 ErrOracleFailure。
type GuardedOracle struct {
	inner Oracle
	cb    *gobreaker.CircuitBreaker
}

func NewGuardedOracle(inner Oracle, s BreakerSettings) *GuardedOracle {
	if s.Name == "" {
		s.Name = "oracle"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 3
	}
	threshold := s.ConsecutiveFailures
	onChange := s.OnStateChange
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("oracle breaker %s: %s -> %s", name, from, to)
			if onChange != nil {
				onChange(name, from, to)
			}
		},
	})
	return &GuardedOracle{inner: inner, cb: cb}
}

func (g *GuardedOracle) Decide(ctx context.Context, quote market.Quote, cash float64, holding *wallet.Holding) (Decision, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.Decide(ctx, quote, cash, holding)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Decision{}, failure("circuit %s", g.cb.State())
		}
		return Decision{}, err
	}
	return res.(Decision), nil
}

// State reports the breaker state, e.g. for the status endpoint.
func (g *GuardedOracle) State() gobreaker.State {
	return g.cb.State()
}
