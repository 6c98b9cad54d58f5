package app

import (
	"fmt"
	"time"

	"cryptomind/internal/config"
	"cryptomind/internal/logger"
	"cryptomind/internal/metrics"
	"cryptomind/internal/oracle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// buildOracle 按 kind 构建决策来源，按需套上熔断。
func buildOracle(cfg config.OracleConfig, m *metrics.Metrics) (oracle.Oracle, error) {
	rule := oracle.NewRuleOracle(oracle.DefaultRuleConfig())

	var inner oracle.Oracle
	switch cfg.NormalizedKind() {
	case config.OracleKindRule:
		inner = rule
	case config.OracleKindModel:
		name := cfg.Model
		if name == "" {
			name = "local-rule-model"
		}
		mo, err := oracle.NewModelOracle(name, oracle.RuleCompleter{Rule: rule})
		if err != nil {
			return nil, err
		}
		inner = mo
	default:
		return nil, fmt.Errorf("unknown oracle kind %q", cfg.Kind)
	}
	logger.Infof("✓ Oracle: %s (breaker=%v)", cfg.NormalizedKind(), cfg.Breaker.Enabled)

	if !cfg.Breaker.Enabled {
		return inner, nil
	}
	var onChange func(string, gobreaker.State, gobreaker.State)
	if m != nil {
		trips := m.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cryptomind",
			Subsystem: "oracle",
			Name:      "breaker_transitions_total",
			Help:      "Oracle circuit breaker state transitions",
		}, []string{"to"})
		onChange = func(_ string, _ gobreaker.State, to gobreaker.State) {
			trips.WithLabelValues(to.String()).Inc()
		}
	}
	b := cfg.Breaker
	return oracle.NewGuardedOracle(inner, oracle.BreakerSettings{
		Name:                "oracle-" + cfg.NormalizedKind(),
		MaxRequests:         b.MaxRequests,
		Interval:            time.Duration(b.IntervalSeconds) * time.Second,
		Timeout:             time.Duration(b.TimeoutSeconds) * time.Second,
		ConsecutiveFailures: b.ConsecutiveFailures,
		OnStateChange:       onChange,
	}), nil
}
