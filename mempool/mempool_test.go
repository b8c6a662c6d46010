package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ground-x/ledger/types"
)

func tx(id string, fee uint64) *types.Transaction {
	return &types.Transaction{TxID: id, SenderPubKey: "s", ReceiverPubKey: "r", Amount: 1, Fee: fee}
}

func TestAddIsSetSemantic(t *testing.T) {
	m := New()
	assert.True(t, m.Add(tx("a", 0)))
	assert.False(t, m.Add(tx("a", 5)), "same tx_id must not be inserted twice")
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Contains("a"))
	assert.False(t, m.Contains("b"))
}

func TestRemovePreservesOrder(t *testing.T) {
	m := New()
	m.Add(tx("a", 0))
	m.Add(tx("b", 0))
	m.Add(tx("c", 0))
	m.Remove("b")
	m.Remove("nonexistent")

	snap := m.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].TxID)
	assert.Equal(t, "c", snap[1].TxID)

	m.RemoveAll([]string{"a", "c"})
	assert.Equal(t, 0, m.Len())
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	m := New()
	m.Add(tx("a", 0))
	snap := m.Snapshot()
	snap[0].Fee = 999
	assert.Equal(t, uint64(0), m.Snapshot()[0].Fee)
}

func TestTopByFeeOrdersAndTruncates(t *testing.T) {
	m := New()
	m.Add(tx("low", 1))
	m.Add(tx("high", 9))
	m.Add(tx("mid-first", 5))
	m.Add(tx("mid-second", 5))

	top := m.TopByFee(3)
	assert.Len(t, top, 3)
	assert.Equal(t, "high", top[0].TxID)
	// Fee ties break by insertion order.
	assert.Equal(t, "mid-first", top[1].TxID)
	assert.Equal(t, "mid-second", top[2].TxID)

	all := m.TopByFee(10)
	assert.Len(t, all, 4)
	assert.Equal(t, "low", all[3].TxID)
}
