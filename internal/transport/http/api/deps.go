package apihttp

import (
	"context"
	"time"

	"cryptomind/internal/alert"
	"cryptomind/internal/autotrade"
	"cryptomind/internal/journal"
	"cryptomind/internal/market"
	"cryptomind/internal/notify"
	"cryptomind/internal/store/decisionlog"
	"cryptomind/internal/trader"
	"cryptomind/internal/wallet"
)

// Trader 是手动交易与账本查询入口。
type Trader interface {
	Execute(ctx context.Context, req trader.TradeRequest) (journal.Transaction, error)
	Wallet() wallet.Snapshot
	Transactions(limit int) []journal.Transaction
}

// Quotes 提供最新行情快照。
type Quotes interface {
	All() []market.Quote
	Quote(assetID string) (market.Quote, bool)
	ByID() map[string]market.Quote
	UpdatedAt() time.Time
}

// AutoTrader 控制自动交易调度。
type AutoTrader interface {
	Status() autotrade.Status
	Enable() autotrade.Status
	Disable() autotrade.Status
}

// Alerts 管理价格提醒。
type Alerts interface {
	Add(assetID, symbol string, target float64, cond alert.Condition) (alert.PriceAlert, error)
	Remove(id string) bool
	List() []alert.PriceAlert
}

// Notifications 提供最近的通知和实时订阅。
type Notifications interface {
	Recent(n int) []notify.Notification
	Subscribe(buffer int) (<-chan notify.Notification, func())
}

// FailureReporter 把手动交易失败转成用户通知。
type FailureReporter interface {
	TradeFailed(assetID string, err error)
}

// Decisions 查询自动交易决策记录。
type Decisions interface {
	List(ctx context.Context, q decisionlog.Query) ([]decisionlog.Record, error)
}
