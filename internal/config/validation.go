package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if c.Wallet.SeedBalance <= 0 {
		return fmt.Errorf("wallet.seed_balance must be > 0")
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.AutoTrade.Validate(); err != nil {
		return err
	}
	if err := c.Oracle.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.HTTP.TradeBurst < 1 {
		return fmt.Errorf("http.trade_burst must be >= 1")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if m.RefreshSeconds <= 0 {
		return fmt.Errorf("market.refresh_seconds must be > 0")
	}
	if m.Volatility <= 0 || m.Volatility >= 1 {
		return fmt.Errorf("market.volatility must be in (0, 1)")
	}
	if m.HistoryLen < 2 {
		return fmt.Errorf("market.history_len must be >= 2")
	}
	return nil
}

// Validate 校验自动交易参数，热更新时同样调用。
func (a AutoTradeConfig) Validate() error {
	if a.PeriodSeconds <= 0 {
		return fmt.Errorf("autotrade.period_seconds must be > 0")
	}
	if a.SampleSize <= 0 {
		return fmt.Errorf("autotrade.sample_size must be > 0")
	}
	if a.MinConfidence < 0 || a.MinConfidence > 100 {
		return fmt.Errorf("autotrade.min_confidence must be within [0, 100]")
	}
	return nil
}

func (o *OracleConfig) validate() error {
	switch o.NormalizedKind() {
	case OracleKindRule, OracleKindModel:
	default:
		return fmt.Errorf("oracle.kind must be %q or %q, got %q", OracleKindRule, OracleKindModel, o.Kind)
	}
	if o.Breaker.Enabled && o.Breaker.TimeoutSeconds <= 0 {
		return fmt.Errorf("oracle.breaker.timeout_seconds must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}
