package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLog_OrderAndCopies(t *testing.T) {
	log := NewLog()
	assert.Empty(t, log.All())

	log.Append(Transaction{ID: "1"})
	log.Append(Transaction{ID: "2"})
	log.Append(Transaction{ID: "3"})

	assert.Equal(t, 3, log.Len())
	newest := log.All()
	assert.Equal(t, []string{"3", "2", "1"}, ids(newest))
	assert.Equal(t, []string{"1", "2", "3"}, ids(log.Chronological()))

	newest[0].ID = "mutated"
	assert.Equal(t, "3", log.All()[0].ID)
	// re-iterable
	assert.Equal(t, ids(log.All()), ids(log.All()))
}

func TestLog_Truncate(t *testing.T) {
	log := NewLog()
	log.Append(Transaction{ID: "1"})
	log.Append(Transaction{ID: "2"})
	log.Truncate(1)
	assert.Equal(t, []string{"1"}, ids(log.All()))
	log.Truncate(5)
	assert.Equal(t, 1, log.Len())
}

func TestParseSide(t *testing.T) {
	s, ok := ParseSide(" buy ")
	assert.True(t, ok)
	assert.Equal(t, SideBuy, s)
	_, ok = ParseSide("hold")
	assert.False(t, ok)
}

func ids(txs []Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}
