package decisionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertAndList(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	at := time.UnixMilli(1700000000000)
	_, err = s.Insert(ctx, Record{CycleID: "c1", AssetID: "bitcoin", Symbol: "BTC", Action: "HOLD", Outcome: "HOLD", Reason: "No clear signal", DecidedAt: at})
	require.NoError(t, err)
	id, err := s.Insert(ctx, Record{CycleID: "c2", AssetID: "ethereum", Action: "BUY", AmountUSD: 120, Confidence: 75, Outcome: "EXECUTED", TxID: "tx-1"})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c2", all[0].CycleID)
	assert.Equal(t, "tx-1", all[0].TxID)
	assert.True(t, all[1].DecidedAt.Equal(at))

	held, err := s.List(ctx, Query{Outcome: "hold"})
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "bitcoin", held[0].AssetID)

	eth, err := s.List(ctx, Query{AssetID: "ethereum", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, eth, 1)

	require.NoError(t, s.Close())
	_, err = s.Insert(ctx, Record{})
	assert.Error(t, err)
}
