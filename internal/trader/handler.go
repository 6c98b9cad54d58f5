package trader

import (
	"context"

	"cryptomind/internal/journal"
	"cryptomind/internal/wallet"
)

// EventHandler handles one event type inside the actor loop.
type EventHandler interface {
	Type() EventType
	Handle(ctx *HandlerContext, payload []byte, traceID string) error
}

// HandlerContext gives handlers access to executor state. It is only valid
// for the duration of one Handle call.
type HandlerContext struct {
	exec     *Executor
	reqCtx   context.Context
	executed []journal.Transaction
}

func NewHandlerContext(ctx context.Context, e *Executor) *HandlerContext {
	return &HandlerContext{exec: e, reqCtx: ctx}
}

// Err 返回调用方上下文的错误。非 nil 时 Commit/Reset 不会修改状态。
func (c *HandlerContext) Err() error {
	if c.reqCtx == nil {
		return nil
	}
	return c.reqCtx.Err()
}

// Ledger returns the live ledger. Handlers that mutate should work on a clone
// and Commit it.
func (c *HandlerContext) Ledger() *wallet.Ledger {
	return c.exec.ledger
}

// Commit 原子地替换账本并追加成交记录，随后发布新快照。
// 调用方上下文已结束时返回其错误，状态保持不变。
func (c *HandlerContext) Commit(next *wallet.Ledger, txs ...journal.Transaction) error {
	if err := c.Err(); err != nil {
		return err
	}
	for _, tx := range txs {
		c.exec.log.Append(tx)
	}
	c.exec.ledger = next
	c.executed = append(c.executed, txs...)
	c.exec.refreshSnapshot()
	return nil
}

// Reset replaces ledger and log wholesale, used by replay.
func (c *HandlerContext) Reset(next *wallet.Ledger, log *journal.Log) error {
	if err := c.Err(); err != nil {
		return err
	}
	c.exec.ledger = next
	c.exec.log = log
	c.exec.refreshSnapshot()
	return nil
}
