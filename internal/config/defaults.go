package config

import "strings"

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogMaxSizeMB  = 50
	defaultAppLogMaxBackups = 5
	defaultSeedBalance      = 50000
	defaultMarketRefresh    = 60
	defaultMarketVolatility = 0.004
	defaultMarketHistoryLen = 48
	defaultAutoTradePeriod  = 20
	defaultAutoTradeSample  = 20
	defaultOracleKind       = OracleKindRule
	defaultBreakerTimeout   = 60
	defaultBreakerInterval  = 120
	defaultBreakerFailures  = 3
	defaultHTTPAddr         = ":9992"
	defaultTradeRate        = 5
	defaultTradeBurst       = 10
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Wallet.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.AutoTrade.applyDefaults(keys)
	c.Oracle.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		intFieldDefault("app.log_max_size_mb", &a.LogMaxSizeMB, defaultAppLogMaxSizeMB),
		intFieldDefault("app.log_max_backups", &a.LogMaxBackups, defaultAppLogMaxBackups),
	)
}

func (w *WalletConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys, fieldDefault{
		key:   "wallet.seed_balance",
		need:  func() bool { return w.SeedBalance <= 0 },
		apply: func() { w.SeedBalance = defaultSeedBalance },
	})
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("market.refresh_seconds", &m.RefreshSeconds, defaultMarketRefresh),
		intFieldDefault("market.history_len", &m.HistoryLen, defaultMarketHistoryLen),
		fieldDefault{
			key:   "market.volatility",
			need:  func() bool { return m.Volatility <= 0 },
			apply: func() { m.Volatility = defaultMarketVolatility },
		},
	)
}

func (a *AutoTradeConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("autotrade.period_seconds", &a.PeriodSeconds, defaultAutoTradePeriod),
		intFieldDefault("autotrade.sample_size", &a.SampleSize, defaultAutoTradeSample),
	)
}

func (o *OracleConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("oracle.kind", &o.Kind, defaultOracleKind),
		intFieldDefault("oracle.breaker.timeout_seconds", &o.Breaker.TimeoutSeconds, defaultBreakerTimeout),
		intFieldDefault("oracle.breaker.interval_seconds", &o.Breaker.IntervalSeconds, defaultBreakerInterval),
		fieldDefault{
			key:   "oracle.breaker.consecutive_failures",
			need:  func() bool { return o.Breaker.ConsecutiveFailures == 0 },
			apply: func() { o.Breaker.ConsecutiveFailures = defaultBreakerFailures },
		},
	)
	o.Kind = o.NormalizedKind()
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
		intFieldDefault("http.trade_burst", &h.TradeBurst, defaultTradeBurst),
		fieldDefault{
			key:   "http.trade_rate_per_second",
			need:  func() bool { return h.TradeRatePerSecond <= 0 },
			apply: func() { h.TradeRatePerSecond = defaultTradeRate },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}
