package app

import (
	"fmt"
	"strings"

	"cryptomind/internal/config"
	"cryptomind/internal/logger"
	"cryptomind/internal/market"
)

// buildFeed 构建模拟行情；seed_path 为空时使用内置币种列表。
func buildFeed(cfg config.MarketConfig) (market.Feed, error) {
	seeds := market.DefaultSeeds()
	if path := strings.TrimSpace(cfg.SeedPath); path != "" {
		loaded, err := market.LoadSeeds(path)
		if err != nil {
			return nil, fmt.Errorf("load market seeds: %w", err)
		}
		seeds = loaded
	}
	logger.Infof("✓ 已加载 %d 个模拟币种 volatility=%.4f history=%d", len(seeds), cfg.Volatility, cfg.HistoryLen)
	return market.NewSimulatedFeed(seeds, market.SimulatedConfig{
		Volatility: cfg.Volatility,
		HistoryLen: cfg.HistoryLen,
	}), nil
}
