package app

import (
	"strings"

	"cryptomind/internal/config"
	"cryptomind/internal/logger"
	"cryptomind/internal/notify"
	"cryptomind/internal/store/decisionlog"
	"cryptomind/internal/store/sqlite"
)

// openJournal 打开成交流水库；path 为空返回 nil。
func openJournal(cfg config.StoreConfig) (*sqlite.SqliteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		logger.Infof("journal store disabled, trades are kept in memory only")
		return nil, nil
	}
	st, err := sqlite.NewSqliteStore(path)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ journal store: %s", path)
	return st, nil
}

// openDecisionLog 打开自动交易决策记录库；path 为空返回 nil。
func openDecisionLog(cfg config.StoreConfig) (*decisionlog.Store, error) {
	path := strings.TrimSpace(cfg.DecisionLogPath)
	if path == "" {
		return nil, nil
	}
	st, err := decisionlog.Open(path)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ decision log: %s", path)
	return st, nil
}

func buildSinks(cfg config.NotifyConfig) []notify.Sink {
	tg := cfg.Telegram
	if !tg.Enabled {
		return nil
	}
	logger.Infof("✓ Telegram notifications enabled chat=%s", tg.ChatID)
	return []notify.Sink{notify.NewTextSink("telegram", notify.NewTelegram(tg.BotToken, tg.ChatID))}
}
