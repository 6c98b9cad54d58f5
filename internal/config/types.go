package config

import "strings"

// Config 是 CryptoMind 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Wallet    WalletConfig    `toml:"wallet"`
	Market    MarketConfig    `toml:"market"`
	AutoTrade AutoTradeConfig `toml:"autotrade"`
	Oracle    OracleConfig    `toml:"oracle"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
	HTTP      HTTPConfig      `toml:"http"`

	// path of the root file, kept for hot reload.
	source string
}

// Source returns the root config file this Config was loaded from.
func (c *Config) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

type AppConfig struct {
	Env           string `toml:"env"`
	LogLevel      string `toml:"log_level"`
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	OracleLog     string `toml:"oracle_log_path"`
	OracleDump    bool   `toml:"oracle_dump_payload"`
}

// WalletConfig 控制模拟钱包的初始资金。
type WalletConfig struct {
	SeedBalance float64 `toml:"seed_balance"`
}

// MarketConfig 描述行情刷新节奏与模拟行情参数。
type MarketConfig struct {
	RefreshSeconds int     `toml:"refresh_seconds"`
	Volatility     float64 `toml:"volatility"`
	HistoryLen     int     `toml:"history_len"`
	SeedPath       string  `toml:"seed_path"` // 可选：yaml 币种列表，留空使用内置列表
}

// AutoTradeConfig 控制自动交易调度。可热更新。
type AutoTradeConfig struct {
	EnabledOnStart bool `toml:"enabled_on_start"`
	PeriodSeconds  int  `toml:"period_seconds"`
	SampleSize     int  `toml:"sample_size"`
	MinConfidence  int  `toml:"min_confidence"`
}

// OracleConfig 选择决策来源。
type OracleConfig struct {
	Kind    string        `toml:"kind"` // "rule" | "model"
	Model   string        `toml:"model"`
	Breaker BreakerConfig `toml:"breaker"`
}

type BreakerConfig struct {
	Enabled             bool   `toml:"enabled"`
	MaxRequests         uint32 `toml:"max_requests"`
	IntervalSeconds     int    `toml:"interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	ConsecutiveFailures uint32 `toml:"consecutive_failures"`
}

// StoreConfig 交易流水持久化，path 为空时不落盘。
type StoreConfig struct {
	Path            string `toml:"path"`
	DecisionLogPath string `toml:"decision_log_path"` // 自动交易决策记录，留空关闭
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type HTTPConfig struct {
	Addr               string  `toml:"addr"`
	TradeRatePerSecond float64 `toml:"trade_rate_per_second"`
	TradeBurst         int     `toml:"trade_burst"`
}

const (
	OracleKindRule  = "rule"
	OracleKindModel = "model"
)

// NormalizedKind 返回小写的 oracle 类型。
func (o OracleConfig) NormalizedKind() string {
	return strings.ToLower(strings.TrimSpace(o.Kind))
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
