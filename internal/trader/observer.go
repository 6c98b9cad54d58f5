package trader

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"cryptomind/internal/journal"
	"cryptomind/internal/logger"
)

// Observer 在成交提交后收到通知，运行在 actor 之外，无法影响交易结果。
type Observer interface {
	OnTransaction(ctx context.Context, tx journal.Transaction)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, tx journal.Transaction)

func (f ObserverFunc) OnTransaction(ctx context.Context, tx journal.Transaction) { f(ctx, tx) }

// TransactionSource 提供重放用的已持久化成交，按创建顺序返回。
type TransactionSource interface {
	LoadAll(ctx context.Context) ([]journal.Transaction, error)
}

func (e *Executor) AddObserver(o Observer) {
	if o == nil {
		return
	}
	e.obsMu.Lock()
	e.observers = append(e.observers, o)
	e.obsMu.Unlock()
}

// Recover loads persisted transactions from src and replays them.
func (e *Executor) Recover(ctx context.Context, src TransactionSource) error {
	if src == nil {
		return nil
	}
	txs, err := src.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load persisted transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil
	}
	return e.Restore(ctx, txs)
}

func (e *Executor) publish(evt EventType, txs []journal.Transaction) {
	if evt != EvtTradeRequested {
		return
	}
	for _, tx := range txs {
		select {
		case e.obsCh <- tx:
		case <-e.stopCh:
			return
		}
	}
}

func (e *Executor) observerLoop() {
	defer e.wg.Done()
	for {
		select {
		case tx := <-e.obsCh:
			e.notifyObservers(tx)
		case <-e.stopCh:
			// flush what was already committed
			for {
				select {
				case tx := <-e.obsCh:
					e.notifyObservers(tx)
				default:
					return
				}
			}
		}
	}
}

func (e *Executor) notifyObservers(tx journal.Transaction) {
	e.obsMu.RLock()
	observers := append([]Observer(nil), e.observers...)
	e.obsMu.RUnlock()
	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Executor observer panic on %s: %v\n%s", tx.ID, r, debug.Stack())
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			o.OnTransaction(ctx, tx)
		}()
	}
}
