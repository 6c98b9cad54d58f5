package trader

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptomind/internal/journal"
	"cryptomind/internal/market"
)

func newTestExecutor(t *testing.T, seed float64, quotes ...market.Quote) (*Executor, *market.QuoteBook) {
	t.Helper()
	book := market.NewQuoteBook()
	book.Update(quotes)
	ex := NewExecutor(book, seed)
	ex.Start()
	t.Cleanup(ex.Stop)
	return ex, book
}

func btc(price float64) market.Quote {
	return market.Quote{AssetID: "bitcoin", Symbol: "btc", Name: "Bitcoin", Price: price, MarketCap: 1}
}

func buy(amount float64) TradeRequest {
	return TradeRequest{AssetID: "bitcoin", Side: journal.SideBuy, AmountUSD: amount, Origin: journal.OriginManual}
}

func sell(amount float64) TradeRequest {
	return TradeRequest{AssetID: "bitcoin", Side: journal.SideSell, AmountUSD: amount, Origin: journal.OriginManual}
}

func TestExecute_BuyThenSellScenario(t *testing.T) {
	ex, book := newTestExecutor(t, 50000, btc(100))
	ctx := context.Background()

	tx, err := ex.Execute(ctx, buy(10000))
	require.NoError(t, err)
	assert.Equal(t, 100.0, tx.Quantity)
	assert.Equal(t, 100.0, tx.Price)
	assert.Equal(t, "BTC", tx.Symbol)
	assert.NotEmpty(t, tx.ID)

	w := ex.Wallet()
	assert.Equal(t, 40000.0, w.Cash)
	assert.Equal(t, 100.0, w.Holdings["bitcoin"].Quantity)
	assert.Equal(t, 100.0, w.Holdings["bitcoin"].AvgCost)

	book.Update([]market.Quote{btc(120)})
	tx, err = ex.Execute(ctx, sell(6000))
	require.NoError(t, err)
	assert.Equal(t, 50.0, tx.Quantity)

	w = ex.Wallet()
	assert.Equal(t, 46000.0, w.Cash)
	assert.Equal(t, 50.0, w.Holdings["bitcoin"].Quantity)
	assert.Equal(t, 100.0, w.Holdings["bitcoin"].AvgCost)

	txs := ex.Transactions(0)
	require.Len(t, txs, 2)
	assert.Equal(t, journal.SideSell, txs[0].Side, "newest first")
}

func TestExecute_InsufficientFunds(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))

	_, err := ex.Execute(context.Background(), buy(60000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, "Insufficient USD Balance", err.Error())

	assert.Equal(t, 50000.0, ex.Wallet().Cash)
	assert.Empty(t, ex.Wallet().Holdings)
	assert.Empty(t, ex.Transactions(0))
}

func TestExecute_InsufficientHoldings(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))
	ctx := context.Background()

	_, err := ex.Execute(ctx, sell(100))
	require.ErrorIs(t, err, ErrInsufficientHoldings)
	assert.Equal(t, "Insufficient BTC Balance", err.Error())

	_, err = ex.Execute(ctx, buy(1000))
	require.NoError(t, err)
	_, err = ex.Execute(ctx, sell(2000))
	require.ErrorIs(t, err, ErrInsufficientHoldings)
	assert.Equal(t, 49000.0, ex.Wallet().Cash)
	assert.Len(t, ex.Transactions(0), 1)
}

func TestExecute_QuoteUnavailable(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))

	_, err := ex.Execute(context.Background(), TradeRequest{AssetID: "ethereum", Side: journal.SideBuy, AmountUSD: 10})
	require.ErrorIs(t, err, ErrQuoteUnavailable)
	assert.Equal(t, KindQuoteUnavailable, KindOf(err))
	assert.Equal(t, 50000.0, ex.Wallet().Cash)
}

func TestExecute_InvalidAmount(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))
	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := ex.Execute(context.Background(), buy(amount))
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount=%v", amount)
	}
	_, err := ex.Execute(context.Background(), TradeRequest{AssetID: "bitcoin", Side: "HOLD", AmountUSD: 1})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ex.Execute(context.Background(), TradeRequest{Side: journal.SideBuy, AmountUSD: 1})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Empty(t, ex.Transactions(0))
}

func TestExecute_SellEntireHoldingRemovesIt(t *testing.T) {
	ex, _ := newTestExecutor(t, 1000, market.Quote{AssetID: "ripple", Symbol: "xrp", Price: 0.62})
	ctx := context.Background()

	tx, err := ex.Execute(ctx, TradeRequest{AssetID: "ripple", Side: journal.SideBuy, AmountUSD: 333.33})
	require.NoError(t, err)

	_, err = ex.Execute(ctx, TradeRequest{AssetID: "ripple", Side: journal.SideSell, AmountUSD: tx.Quantity * 0.62})
	require.NoError(t, err)
	_, held := ex.Wallet().Holding("ripple")
	assert.False(t, held)
	assert.InDelta(t, 1000, ex.Wallet().Cash, 1e-6)
}

func TestExecute_CarriesOriginAndConfidence(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))
	conf := 82
	tx, err := ex.Execute(context.Background(), TradeRequest{
		AssetID: "bitcoin", Side: journal.SideBuy, AmountUSD: 500,
		Origin: journal.OriginAuto, Rationale: "near 24h low", Confidence: &conf,
	})
	require.NoError(t, err)
	assert.True(t, tx.IsAuto())
	assert.Equal(t, "near 24h low", tx.Rationale)
	require.NotNil(t, tx.Confidence)
	assert.Equal(t, 82, *tx.Confidence)

	tx, err = ex.Execute(context.Background(), buy(1))
	require.NoError(t, err)
	assert.Equal(t, journal.OriginManual, tx.Origin)
	assert.Nil(t, tx.Confidence)
}

func TestExecute_ConcurrentBuysNeverOverdraw(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))

	var wg sync.WaitGroup
	var ok, rejected int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ex.Execute(context.Background(), buy(1000))
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrInsufficientFunds):
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), ok)
	assert.Equal(t, int32(50), rejected)
	assert.Equal(t, 0.0, ex.Wallet().Cash)
	assert.Len(t, ex.Transactions(0), 50)
	assert.InDelta(t, 500, ex.Wallet().Holdings["bitcoin"].Quantity, 1e-9)
}

func TestExecute_ContextCancelled(t *testing.T) {
	book := market.NewQuoteBook()
	book.Update([]market.Quote{btc(100)})
	ex := NewExecutor(book, 50000) // not started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ex.Execute(ctx, buy(10))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// slowQuotes 模拟在 actor 内部耗时的报价查询。
type slowQuotes struct {
	book  *market.QuoteBook
	delay time.Duration
}

func (s slowQuotes) Quote(assetID string) (market.Quote, bool) {
	time.Sleep(s.delay)
	return s.book.Quote(assetID)
}

func TestExecute_DeadlineDuringHandlingLeavesLedgerUntouched(t *testing.T) {
	book := market.NewQuoteBook()
	book.Update([]market.Quote{btc(100)})
	ex := NewExecutor(slowQuotes{book: book, delay: 200 * time.Millisecond}, 50000)
	ex.Start()
	t.Cleanup(ex.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ex.Execute(ctx, buy(10000))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Execute 返回时 actor 已处理完该请求
	assert.Equal(t, 50000.0, ex.Wallet().Cash)
	assert.Empty(t, ex.Transactions(0))
	assert.Empty(t, ex.Wallet().Holdings)
}

func TestExecute_AbandonedRequestIsNeverApplied(t *testing.T) {
	book := market.NewQuoteBook()
	book.Update([]market.Quote{btc(100)})
	ex := NewExecutor(book, 50000)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ex.Execute(ctx, buy(10000))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ex.Start()
	t.Cleanup(ex.Stop)
	tx, err := ex.Execute(context.Background(), buy(10))
	require.NoError(t, err)

	txs := ex.Transactions(0)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)
	assert.Equal(t, 49990.0, ex.Wallet().Cash)
}

func TestSend_HonoursContextWhenQueueFull(t *testing.T) {
	ex := NewExecutor(market.NewQuoteBook(), 50000) // not started
	for i := 0; i < cap(ex.msgCh); i++ {
		require.NoError(t, ex.Send(context.Background(), EventEnvelope{Type: EvtTradeRequested}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ex.Send(ctx, EventEnvelope{Type: EvtTradeRequested})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_SellClampedToHoldingCreditsActualProceeds(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))
	ctx := context.Background()

	_, err := ex.Execute(ctx, buy(10000))
	require.NoError(t, err)

	// 多出的数量在容差之内，按全部持仓成交
	tx, err := ex.Execute(ctx, sell(10000.000002))
	require.NoError(t, err)
	assert.Equal(t, 100.0, tx.Quantity)
	assert.InDelta(t, tx.Quantity*tx.Price, tx.AmountUSD, 1e-9)
	assert.InDelta(t, 50000, ex.Wallet().Cash, 1e-9)
	_, held := ex.Wallet().Holding("bitcoin")
	assert.False(t, held)
}

func TestExecutor_ObserversSeeCommittedTransactions(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))

	var mu sync.Mutex
	var seen []journal.Transaction
	ex.AddObserver(ObserverFunc(func(_ context.Context, tx journal.Transaction) {
		mu.Lock()
		seen = append(seen, tx)
		mu.Unlock()
	}))
	ex.AddObserver(ObserverFunc(func(context.Context, journal.Transaction) {
		panic("observer failure must not leak")
	}))

	tx, err := ex.Execute(context.Background(), buy(100))
	require.NoError(t, err)
	_, err = ex.Execute(context.Background(), buy(1e9))
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0].ID == tx.ID
	}, time.Second, 5*time.Millisecond)
}

type sliceSource []journal.Transaction

func (s sliceSource) LoadAll(context.Context) ([]journal.Transaction, error) { return s, nil }

func TestExecutor_RecoverReplaysTransactions(t *testing.T) {
	src, book := newTestExecutor(t, 50000, btc(100))
	ctx := context.Background()
	_, err := src.Execute(ctx, buy(10000))
	require.NoError(t, err)
	book.Update([]market.Quote{btc(120)})
	_, err = src.Execute(ctx, sell(6000))
	require.NoError(t, err)

	replayed, _ := newTestExecutor(t, 50000, btc(120))
	require.NoError(t, replayed.Recover(ctx, sliceSource(src.Transactions(0)).reversed()))

	assert.Equal(t, src.Wallet(), replayed.Wallet())
	want, got := src.Transactions(0), replayed.Transactions(0)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
	}
}

func TestExecutor_RestoreRejectsImpossibleHistory(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))
	err := ex.Restore(context.Background(), []journal.Transaction{
		{ID: "x", Side: journal.SideSell, AssetID: "bitcoin", Quantity: 1, AmountUSD: 100},
	})
	require.Error(t, err)
	assert.Equal(t, 50000.0, ex.Wallet().Cash)
}

func TestSnapshot_IsImmutable(t *testing.T) {
	ex, _ := newTestExecutor(t, 50000, btc(100))
	_, err := ex.Execute(context.Background(), buy(100))
	require.NoError(t, err)

	snap := ex.Snapshot()
	snap.Wallet.Cash = 0
	snap.Transactions[0].AmountUSD = 0

	assert.Equal(t, 49900.0, ex.Wallet().Cash)
	assert.Equal(t, 100.0, ex.Transactions(0)[0].AmountUSD)
}

func (s sliceSource) reversed() sliceSource {
	out := make(sliceSource, len(s))
	for i, tx := range s {
		out[len(s)-1-i] = tx
	}
	return out
}
