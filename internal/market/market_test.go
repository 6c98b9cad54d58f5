package market

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteBook_UpdateSortsAndFilters(t *testing.T) {
	book := NewQuoteBook()
	assert.True(t, book.UpdatedAt().IsZero())

	book.Update([]Quote{
		{AssetID: "eth", Price: 3000, MarketCap: 400},
		{AssetID: "btc", Price: 60000, MarketCap: 1200},
		{AssetID: "bad", Price: 0, MarketCap: 9999},
		{AssetID: "", Price: 1, MarketCap: 1},
	})

	all := book.All()
	require.Len(t, all, 2)
	assert.Equal(t, "btc", all[0].AssetID)
	assert.Equal(t, "eth", all[1].AssetID)
	assert.False(t, book.UpdatedAt().IsZero())

	_, ok := book.Quote("bad")
	assert.False(t, ok)
	q, ok := book.Quote("eth")
	require.True(t, ok)
	assert.Equal(t, 3000.0, q.Price)
	assert.Len(t, book.Top(1), 1)
	assert.Len(t, book.ByID(), 2)
}

func TestQuoteBook_ReturnsCopies(t *testing.T) {
	book := NewQuoteBook()
	book.Update([]Quote{{AssetID: "btc", Price: 1, Sparkline: []float64{1, 2}}})

	q, _ := book.Quote("btc")
	q.Sparkline[0] = 99
	again, _ := book.Quote("btc")
	assert.Equal(t, 1.0, again.Sparkline[0])
}

func TestQuoteBook_NotifiesListeners(t *testing.T) {
	book := NewQuoteBook()
	var got []Quote
	book.OnUpdate(func(q []Quote) { got = q })
	book.Update([]Quote{{AssetID: "btc", Price: 1}})
	require.Len(t, got, 1)
	assert.Equal(t, "btc", got[0].AssetID)
}

func TestQuote_RangePosition(t *testing.T) {
	assert.Equal(t, 0.5, Quote{Price: 10}.RangePosition())
	assert.InDelta(t, 0.25, Quote{Price: 125, Low24h: 100, High24h: 200}.RangePosition(), 1e-9)
	assert.Equal(t, 1.0, Quote{Price: 300, Low24h: 100, High24h: 200}.RangePosition())
}

func TestRefresher_KeepsSnapshotOnError(t *testing.T) {
	book := NewQuoteBook()
	calls := 0
	feed := FeedFunc(func(ctx context.Context) ([]Quote, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("upstream down")
		}
		return []Quote{{AssetID: "btc", Price: 100}}, nil
	})
	r := NewRefresher(feed, book, 0)

	require.NoError(t, r.RunOnce(context.Background()))
	require.Error(t, r.RunOnce(context.Background()))
	q, ok := book.Quote("btc")
	require.True(t, ok)
	assert.Equal(t, 100.0, q.Price)
}

func TestSimulatedFeed_RandomWalk(t *testing.T) {
	feed := NewSimulatedFeed(DefaultSeeds(), SimulatedConfig{
		Volatility: 0.01,
		HistoryLen: 5,
		Rand:       rand.New(rand.NewSource(7)),
	})
	var last []Quote
	for i := 0; i < 10; i++ {
		quotes, err := feed.Quotes(context.Background())
		require.NoError(t, err)
		last = quotes
	}
	require.Len(t, last, len(DefaultSeeds()))
	for _, q := range last {
		assert.True(t, q.Valid(), q.AssetID)
		assert.LessOrEqual(t, len(q.Sparkline), 5)
		assert.GreaterOrEqual(t, q.High24h, q.Price)
		assert.LessOrEqual(t, q.Low24h, q.Price)
	}
}

func TestSimulatedFeed_HonoursContext(t *testing.T) {
	feed := NewSimulatedFeed(DefaultSeeds(), SimulatedConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := feed.Quotes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSeeds(t *testing.T) {
	seeds, err := LoadSeeds("")
	require.NoError(t, err)
	assert.NotEmpty(t, seeds)

	dir := t.TempDir()
	good := filepath.Join(dir, "coins.yaml")
	require.NoError(t, os.WriteFile(good, []byte("coins:\n  - id: foo\n    symbol: foo\n    name: Foo\n    price: 2.5\n"), 0o644))
	seeds, err = LoadSeeds(good)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, 2.5, seeds[0].Price)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("coins:\n  - id: foo\n    price: 0\n"), 0o644))
	_, err = LoadSeeds(bad)
	assert.Error(t, err)
}
