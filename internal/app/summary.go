package app

import (
	"fmt"
	"strings"

	"cryptomind/internal/config"
)

type StartupSummary struct {
	Env           string
	SeedBalance   float64
	Assets        int
	Restored      int
	JournalStore  bool
	DecisionLog   bool
	Oracle        string
	Breaker       bool
	AutoTrade     config.AutoTradeConfig
	HTTPAddr      string
	TelegramReady bool
}

func buildSummary(cfg *config.Config, a *App, restored int, journal, decisions bool) *StartupSummary {
	s := &StartupSummary{
		Env:           cfg.App.Env,
		SeedBalance:   cfg.Wallet.SeedBalance,
		Restored:      restored,
		JournalStore:  journal,
		DecisionLog:   decisions,
		Oracle:        cfg.Oracle.NormalizedKind(),
		Breaker:       cfg.Oracle.Breaker.Enabled,
		AutoTrade:     cfg.AutoTrade,
		TelegramReady: cfg.Notify.Telegram.Enabled,
	}
	if a.book != nil {
		s.Assets = a.book.Len()
	}
	if a.http != nil {
		s.HTTPAddr = a.http.Addr()
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[钱包 (WALLET)]")
	fmt.Printf("  环境: %s\n", s.Env)
	fmt.Printf("  初始资金: $%.2f\n", s.SeedBalance)
	fmt.Printf("  恢复成交: %d 笔 (持久化: %s)\n", s.Restored, onOff(s.JournalStore))
	fmt.Println()

	fmt.Println("[行情 (MARKET)]")
	fmt.Printf("  币种数量: %d\n", s.Assets)
	fmt.Println()

	fmt.Println("[自动交易 (AUTO TRADE)]")
	fmt.Printf("  启动即运行: %s\n", onOff(s.AutoTrade.EnabledOnStart))
	fmt.Printf("  周期: %ds  候选数: %d  最低置信度: %d\n", s.AutoTrade.PeriodSeconds, s.AutoTrade.SampleSize, s.AutoTrade.MinConfidence)
	fmt.Printf("  Oracle: %s  熔断: %s  决策记录: %s\n", s.Oracle, onOff(s.Breaker), onOff(s.DecisionLog))
	fmt.Println()

	fmt.Println("[接口 (INTERFACES)]")
	addr := s.HTTPAddr
	if addr == "" {
		addr = "-"
	}
	fmt.Printf("  HTTP: %s\n", addr)
	fmt.Printf("  Telegram: %s\n", onOff(s.TelegramReady))
	fmt.Println(strings.Repeat("=", 80))
}

func onOff(v bool) string {
	if v {
		return "开启"
	}
	return "关闭"
}
