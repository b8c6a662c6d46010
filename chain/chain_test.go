package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ground-x/ledger/keys"
	"github.com/ground-x/ledger/mempool"
	"github.com/ground-x/ledger/types"
)

func mustKeypair(t *testing.T) (*keys.Keypair, string) {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	pub, err := kp.PublicPEM()
	require.NoError(t, err)
	return kp, pub
}

func signedTx(t *testing.T, from *keys.Keypair, to string, amount, fee uint64) *types.Transaction {
	t.Helper()
	tx, err := types.Sign(from, to, amount, fee, 1000)
	require.NoError(t, err)
	return tx
}

// sealNext mines a valid successor of prev carrying the given
// transactions.
func sealNext(t *testing.T, prev *types.Block, txs ...*types.Transaction) *types.Block {
	t.Helper()
	entries := make([]*types.BlockEntry, len(txs))
	for i, tx := range txs {
		entries[i] = &types.BlockEntry{Tx: tx}
	}
	b := &types.Block{
		Index:        prev.Index + 1,
		Timestamp:    float64(prev.Index) + 1,
		Transactions: entries,
		PrevHash:     prev.Hash,
	}
	_, err := ProofOfWork(b)
	require.NoError(t, err)
	return b
}

func TestAddBlockAcceptsValidSuccessor(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	b := sealNext(t, c.LastBlock())
	assert.True(t, c.AddBlock(b))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, b.Hash, c.LastBlock().Hash)
}

func TestAddBlockRejectsBadLinkAndTamper(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	b := sealNext(t, c.LastBlock())
	b.PrevHash = "deadbeef"
	assert.False(t, c.AddBlock(b), "wrong prev_hash must be rejected")

	b2 := sealNext(t, c.LastBlock())
	b2.Nonce++ // invalidates the sealed hash
	assert.False(t, c.AddBlock(b2), "tampered contents must be rejected")

	b3 := sealNext(t, c.LastBlock())
	assert.True(t, c.AddBlock(b3))
	assert.False(t, c.AddBlock(b3), "duplicate append must be rejected")
	assert.Equal(t, 2, c.Len())
}

func TestProofOfWorkDeterministic(t *testing.T) {
	g, err := types.NewGenesisBlock()
	require.NoError(t, err)

	a := sealNext(t, g)
	b := sealNext(t, g)
	assert.Equal(t, a.Nonce, b.Nonce, "identical contents must yield identical nonces")
	assert.Equal(t, a.Hash, b.Hash)
	assert.True(t, types.HasDifficulty(a.Hash, Difficulty))
}

func TestIsValidChainRejectsForgedGenesis(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.True(t, IsValidChain(c.Blocks()))

	forged := c.Blocks()
	forged[0].Timestamp = 42
	assert.False(t, IsValidChain(forged))
	assert.False(t, IsValidChain(nil))
}

func TestReplaceChainStrictlyLongerWins(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	b1 := sealNext(t, c.LastBlock())
	require.True(t, c.AddBlock(b1))

	// Equal length: tie favors the incumbent. The rival block gets a
	// different timestamp so the two forks genuinely diverge.
	g, err := types.NewGenesisBlock()
	require.NoError(t, err)
	rival1 := &types.Block{Index: 1, Timestamp: 99, PrevHash: g.Hash}
	_, err = ProofOfWork(rival1)
	require.NoError(t, err)
	assert.False(t, c.ReplaceChain([]*types.Block{g, rival1}))
	assert.Equal(t, b1.Hash, c.LastBlock().Hash)

	// Strictly longer and valid: adopted.
	rival2 := sealNext(t, rival1)
	longer := []*types.Block{g, rival1, rival2}
	assert.True(t, c.ReplaceChain(longer))
	assert.Equal(t, rival2.Hash, c.LastBlock().Hash)

	// Replace idempotence: the same chain a second time is a no-op.
	assert.False(t, c.ReplaceChain(longer))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, rival2.Hash, c.LastBlock().Hash)
}

func TestBalancesReplay(t *testing.T) {
	sender, senderPub := mustKeypair(t)
	_, minerPub := mustKeypair(t)

	c, err := New()
	require.NoError(t, err)

	// Scenario: sender pays 10 with fee 1 to the miner; the miner's
	// coinbase collects the reward plus the fee.
	tx := signedTx(t, sender, minerPub, 10, 1)
	coinbase := types.NewCoinbase(minerPub, MiningReward+1, 1000)
	b := sealNext(t, c.LastBlock(), coinbase, tx)
	require.True(t, c.AddBlock(b))

	assert.Equal(t, int64(89), c.GetBalance(senderPub))
	assert.Equal(t, int64(121), c.GetBalance(minerPub))
	assert.Equal(t, int64(StartingBalance), c.GetBalance("never-seen-key"))
}

func TestGetBalanceWithMempoolDebitsPending(t *testing.T) {
	sender, senderPub := mustKeypair(t)
	_, otherPub := mustKeypair(t)

	c, err := New()
	require.NoError(t, err)
	mp := mempool.New()
	mp.Add(signedTx(t, sender, otherPub, 30, 2))

	assert.Equal(t, int64(StartingBalance), c.GetBalance(senderPub))
	assert.Equal(t, int64(StartingBalance-32), c.GetBalanceWithMempool(senderPub, mp))
	// Pending inflows do not credit.
	assert.Equal(t, int64(StartingBalance), c.GetBalanceWithMempool(otherPub, mp))
}

func TestContainsTx(t *testing.T) {
	sender, _ := mustKeypair(t)
	_, receiverPub := mustKeypair(t)

	c, err := New()
	require.NoError(t, err)
	tx := signedTx(t, sender, receiverPub, 5, 0)
	assert.False(t, c.ContainsTx(tx.TxID))

	b := sealNext(t, c.LastBlock(), tx)
	require.True(t, c.AddBlock(b))
	assert.True(t, c.ContainsTx(tx.TxID))
	assert.False(t, c.ContainsTx("unknown"))
}
