package trader

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"cryptomind/internal/journal"
	"cryptomind/internal/wallet"
)

// TradeRequest 描述一次待执行的交易。
type TradeRequest struct {
	AssetID    string         `json:"asset_id"`
	Side       journal.Side   `json:"side"`
	AmountUSD  float64        `json:"amount_usd"`
	Origin     journal.Origin `json:"origin"`
	Rationale  string         `json:"rationale,omitempty"`
	Confidence *int           `json:"confidence,omitempty"`
}

// RestorePayload carries persisted transactions to replay.
type RestorePayload struct {
	Transactions []journal.Transaction `json:"transactions"`
}

// EventType 定义事件类型
type EventType string

const (
	// EvtTradeRequested 手动或自动交易请求
	EvtTradeRequested EventType = "TRADE_REQUESTED"
	// EvtRestore 从持久化记录重放账本
	EvtRestore EventType = "RESTORE"
)

// EventEnvelope 是 Actor 接收的标准消息信封
type EventEnvelope struct {
	ID        string
	Type      EventType
	Payload   json.RawMessage
	CreatedAt time.Time

	// ReplyCh 用于同步等待处理结果 (可选)
	ReplyCh chan Reply `json:"-"`
	// Ctx 是调用方上下文，结束后 actor 不再提交该事件的修改 (可选)
	Ctx context.Context `json:"-"`

	claim *atomic.Int32
}

// 同步事件的归属：actor 接手或调用方放弃，二者只有一个成功。
const (
	envPending int32 = iota
	envClaimed
	envAbandoned
)

// Reply 是一次事件处理的结果。
type Reply struct {
	Transactions []journal.Transaction
	Err          error
}

// State 是对外发布的只读快照。
type State struct {
	Wallet       wallet.Snapshot
	Transactions []journal.Transaction // 最新在前
	Version      uint64
}

func emptyState(seed float64) *State {
	return &State{Wallet: wallet.NewLedger(seed).Snapshot()}
}
