package market

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed 是模拟行情的起始状态。
type Seed struct {
	AssetID      string  `yaml:"id"`
	Symbol       string  `yaml:"symbol"`
	Name         string  `yaml:"name"`
	Price        float64 `yaml:"price"`
	Change24hPct float64 `yaml:"change_24h_pct"`
	MarketCap    float64 `yaml:"market_cap"`
	Volume       float64 `yaml:"volume"`
	High24h      float64 `yaml:"high_24h"`
	Low24h       float64 `yaml:"low_24h"`
}

type seedFile struct {
	Coins []Seed `yaml:"coins"`
}

// DefaultSeeds returns the built-in top coin list.
func DefaultSeeds() []Seed {
	return []Seed{
		{AssetID: "bitcoin", Symbol: "btc", Name: "Bitcoin", Price: 64230.50, Change24hPct: 2.45, MarketCap: 1.2e12, Volume: 3.5e10, High24h: 65000, Low24h: 63000},
		{AssetID: "ethereum", Symbol: "eth", Name: "Ethereum", Price: 3450.12, Change24hPct: 1.15, MarketCap: 4e11, Volume: 1.5e9, High24h: 3550, Low24h: 3400},
		{AssetID: "binancecoin", Symbol: "bnb", Name: "BNB", Price: 590.50, Change24hPct: 0.5, MarketCap: 8.7e10, Volume: 1.2e9, High24h: 595, Low24h: 585},
		{AssetID: "solana", Symbol: "sol", Name: "Solana", Price: 145.20, Change24hPct: -5.4, MarketCap: 6.5e10, Volume: 4e9, High24h: 155, Low24h: 142},
		{AssetID: "ripple", Symbol: "xrp", Name: "XRP", Price: 0.62, Change24hPct: -0.8, MarketCap: 3.4e10, Volume: 1.1e9, High24h: 0.63, Low24h: 0.61},
		{AssetID: "dogecoin", Symbol: "doge", Name: "Dogecoin", Price: 0.12, Change24hPct: 8.5, MarketCap: 1.7e10, Volume: 2e9, High24h: 0.13, Low24h: 0.11},
		{AssetID: "cardano", Symbol: "ada", Name: "Cardano", Price: 0.45, Change24hPct: 1.2, MarketCap: 1.6e10, Volume: 4e8, High24h: 0.46, Low24h: 0.44},
		{AssetID: "polkadot", Symbol: "dot", Name: "Polkadot", Price: 7.20, Change24hPct: -2.1, MarketCap: 1e10, Volume: 2e8, High24h: 7.4, Low24h: 7.0},
	}
}

// LoadSeeds 读取 yaml 币种列表；path 为空时返回内置列表。
func LoadSeeds(path string) ([]Seed, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSeeds(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(file.Coins) == 0 {
		return nil, fmt.Errorf("seed file %s has no coins", path)
	}
	seen := make(map[string]bool, len(file.Coins))
	for i, s := range file.Coins {
		id := strings.TrimSpace(s.AssetID)
		if id == "" {
			return nil, fmt.Errorf("seed coin #%d: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("seed coin %s: duplicate id", id)
		}
		if s.Price <= 0 {
			return nil, fmt.Errorf("seed coin %s: price must be > 0", id)
		}
		seen[id] = true
	}
	return file.Coins, nil
}
