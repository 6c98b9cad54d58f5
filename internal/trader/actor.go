package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cryptomind/internal/journal"
	"cryptomind/internal/logger"
	"cryptomind/internal/market"
	"cryptomind/internal/wallet"
)

// QuoteSource 提供按资产 id 查询的最新报价。
type QuoteSource interface {
	Quote(assetID string) (market.Quote, bool)
}

// Executor is the single writer of the Ledger and TransactionLog.
//
// All mutations run on one goroutine (runLoop) that drains msgCh. Readers use
// the immutable State published after every mutation and never block the loop.
type Executor struct {
	quotes   QuoteSource
	seed     float64
	registry *HandlerRegistry

	msgCh     chan EventEnvelope
	stopCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	ledger  *wallet.Ledger
	log     *journal.Log
	version uint64

	snapshot atomic.Value // *State

	obsMu     sync.RWMutex
	observers []Observer
	obsCh     chan journal.Transaction

	now   func() time.Time
	newID func() string
}

// Option customises an Executor.
type Option func(*Executor)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func NewExecutor(quotes QuoteSource, seedBalance float64, opts ...Option) *Executor {
	reg := NewHandlerRegistry()
	reg.RegisterDefaultHandlers()

	ex := &Executor{
		quotes:   quotes,
		seed:     seedBalance,
		registry: reg,
		msgCh:    make(chan EventEnvelope, 64),
		stopCh:   make(chan struct{}),
		ledger:   wallet.NewLedger(seedBalance),
		log:      journal.NewLog(),
		obsCh:    make(chan journal.Transaction, 256),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(ex)
	}
	ex.snapshot.Store(emptyState(seedBalance))
	return ex
}

// Start 启动 actor 循环，重复调用无效。
func (e *Executor) Start() {
	e.startOnce.Do(func() {
		e.wg.Add(2)
		go e.runLoop()
		go e.observerLoop()
	})
}

func (e *Executor) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// Execute 校验并执行一笔交易，返回成交记录或带类别的错误。
func (e *Executor) Execute(ctx context.Context, req TradeRequest) (journal.Transaction, error) {
	if err := validateRequest(&req); err != nil {
		return journal.Transaction{}, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return journal.Transaction{}, fmt.Errorf("encode trade request: %w", err)
	}
	reply, err := e.SendSync(ctx, EventEnvelope{
		ID:      e.newID(),
		Type:    EvtTradeRequested,
		Payload: payload,
	})
	if err != nil {
		return journal.Transaction{}, err
	}
	if reply.Err != nil {
		return journal.Transaction{}, reply.Err
	}
	if len(reply.Transactions) != 1 {
		return journal.Transaction{}, fmt.Errorf("trade produced %d transactions", len(reply.Transactions))
	}
	return reply.Transactions[0], nil
}

// Restore 以种子余额为起点，按创建顺序重放已持久化的成交，替换当前账本。
func (e *Executor) Restore(ctx context.Context, txs []journal.Transaction) error {
	payload, err := json.Marshal(RestorePayload{Transactions: txs})
	if err != nil {
		return fmt.Errorf("encode restore payload: %w", err)
	}
	reply, err := e.SendSync(ctx, EventEnvelope{
		ID:      e.newID(),
		Type:    EvtRestore,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return reply.Err
}

// Send 投递事件，队列已满时阻塞直到 ctx 结束。
func (e *Executor) Send(ctx context.Context, evt EventEnvelope) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = e.now()
	}
	if evt.Ctx == nil {
		evt.Ctx = ctx
	}
	select {
	case e.msgCh <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopCh:
		return fmt.Errorf("executor is stopped")
	}
}

// SendSync 投递事件并等待结果。ctx 结束时，若 actor 尚未接手则放弃该事件；
// 已接手则等待真实结果，保证返回值与账本一致。
func (e *Executor) SendSync(ctx context.Context, evt EventEnvelope) (Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if evt.ReplyCh == nil {
		evt.ReplyCh = make(chan Reply, 1)
	}
	evt.Ctx = ctx
	evt.claim = new(atomic.Int32)
	if err := e.Send(ctx, evt); err != nil {
		return Reply{}, err
	}
	select {
	case r := <-evt.ReplyCh:
		return r, nil
	case <-ctx.Done():
		if evt.claim.CompareAndSwap(envPending, envAbandoned) {
			return Reply{}, ctx.Err()
		}
	case <-e.stopCh:
		if evt.claim.CompareAndSwap(envPending, envAbandoned) {
			return Reply{}, fmt.Errorf("executor stopped during sync call")
		}
	}
	return <-evt.ReplyCh, nil
}

// Snapshot 返回最近发布状态的副本，调用方可以随意修改。
func (e *Executor) Snapshot() State {
	st := e.load()
	out := State{
		Wallet:       st.Wallet,
		Transactions: append([]journal.Transaction(nil), st.Transactions...),
		Version:      st.Version,
	}
	out.Wallet.Holdings = make(map[string]wallet.Holding, len(st.Wallet.Holdings))
	for id, h := range st.Wallet.Holdings {
		out.Wallet.Holdings[id] = h
	}
	return out
}

// Wallet returns a copy of the published ledger snapshot.
func (e *Executor) Wallet() wallet.Snapshot {
	st := e.load()
	out := st.Wallet
	out.Holdings = make(map[string]wallet.Holding, len(st.Wallet.Holdings))
	for id, h := range st.Wallet.Holdings {
		out.Holdings[id] = h
	}
	return out
}

// Transactions 返回最新在前的成交记录，limit <= 0 表示全部。
func (e *Executor) Transactions(limit int) []journal.Transaction {
	txs := e.load().Transactions
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return append([]journal.Transaction(nil), txs...)
}

func (e *Executor) load() *State {
	return e.snapshot.Load().(*State)
}

func (e *Executor) refreshSnapshot() {
	e.version++
	e.snapshot.Store(&State{
		Wallet:       e.ledger.Snapshot(),
		Transactions: e.log.All(),
		Version:      e.version,
	})
}

func (e *Executor) runLoop() {
	defer e.wg.Done()
	logger.Infof("Executor actor started")
	for {
		select {
		case evt := <-e.msgCh:
			e.handleEvent(evt)
		case <-e.stopCh:
			logger.Infof("Executor actor stopping")
			return
		}
	}
}

// handleEvent runs one handler. Panics are recovered and reported as errors;
// the handler's working state is discarded in that case.
func (e *Executor) handleEvent(evt EventEnvelope) {
	if evt.claim != nil && !evt.claim.CompareAndSwap(envPending, envClaimed) {
		logger.Debugf("Executor: drop abandoned event %s (%s)", evt.Type, evt.ID)
		return
	}
	var (
		err  error
		hctx = NewHandlerContext(evt.Ctx, e)
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Executor panic handling event %s: %v", evt.Type, r)
			debug.PrintStack()
			err = fmt.Errorf("panic: %v", r)
			hctx.executed = nil
		}
		if evt.ReplyCh != nil {
			evt.ReplyCh <- Reply{Transactions: hctx.executed, Err: err}
			close(evt.ReplyCh)
		}
		if err == nil {
			e.publish(evt.Type, hctx.executed)
		}
		if dur := time.Since(start); dur > 100*time.Millisecond {
			logger.Warnf("Slow event %s took %v", evt.Type, dur)
		}
	}()

	if err = hctx.Err(); err != nil {
		return
	}
	handler, ok := e.registry.Get(evt.Type)
	if !ok {
		err = fmt.Errorf("no handler registered for event type %s", evt.Type)
		logger.Warnf("%v", err)
		return
	}
	err = handler.Handle(hctx, evt.Payload, evt.ID)
	if err != nil {
		logger.Debugf("Executor rejected %s (%s): %v", evt.Type, evt.ID, err)
	}
}
