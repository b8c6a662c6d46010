package node

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ground-x/ledger/chain"
	"github.com/ground-x/ledger/keys"
	"github.com/ground-x/ledger/miner"
	"github.com/ground-x/ledger/types"
)

func newTestNode(t *testing.T, peerPorts ...int) *Node {
	t.Helper()
	n, err := New(Config{Name: "test", Port: 0, Dir: t.TempDir(), PeerPorts: peerPorts})
	require.NoError(t, err)
	return n
}

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
	_, err := chain.ProofOfWork(b)
	require.NoError(t, err)
	return b
}

func TestAcceptTransactionRules(t *testing.T) {
	n := newTestNode(t)
	sender, _ := mustKeypair(t)

	// Insufficient funds: the starting balance is 100.
	over := signedTx(t, sender, n.PublicPEM(), 200, 1)
	assert.False(t, n.AcceptTransaction(over))
	assert.Equal(t, 0, n.MempoolLen())

	// A funded, well-signed transaction is admitted once.
	tx := signedTx(t, sender, n.PublicPEM(), 10, 1)
	assert.True(t, n.AcceptTransaction(tx))
	assert.False(t, n.AcceptTransaction(tx), "duplicate gossip must be suppressed")
	assert.Equal(t, 1, n.MempoolLen())

	// Tampered payload invalidates the signature.
	bad := signedTx(t, sender, n.PublicPEM(), 5, 0)
	bad.Amount = 50
	assert.False(t, n.AcceptTransaction(bad))

	// Coinbase is never ingested via the transaction path.
	cb := types.NewCoinbase(n.PublicPEM(), chain.MiningReward, 1000)
	assert.False(t, n.AcceptTransaction(cb))
	assert.Equal(t, 1, n.MempoolLen())
}

func TestPendingSpendLimitsBalance(t *testing.T) {
	n := newTestNode(t)
	sender, _ := mustKeypair(t)

	assert.True(t, n.AcceptTransaction(signedTx(t, sender, n.PublicPEM(), 60, 0)))
	// 60 is already committed to the mempool; another 60 overdraws.
	assert.False(t, n.AcceptTransaction(signedTx(t, sender, n.PublicPEM(), 60, 0)))
	assert.True(t, n.AcceptTransaction(signedTx(t, sender, n.PublicPEM(), 40, 0)))
}

// Scenario: one miner, one transaction. N pays M 10 with fee 1; M
// mines; balances settle at 89 and 121 and the chain reaches length 2.
func TestMineSingleTransaction(t *testing.T) {
	m := newTestNode(t)
	nKey, nPub := mustKeypair(t)

	tx := signedTx(t, nKey, m.PublicPEM(), 10, 1)
	require.True(t, m.AcceptTransaction(tx))

	require.True(t, miner.New(m).MineOnce())
	assert.Equal(t, 2, m.Chain().Len())
	assert.Equal(t, 0, m.MempoolLen())
	assert.True(t, m.Chain().ContainsTx(tx.TxID))
	assert.Equal(t, int64(89), m.Chain().GetBalance(nPub))
	assert.Equal(t, int64(121), m.Chain().GetBalance(m.PublicPEM()))

	// Re-gossip of a mined transaction is rejected as already-in-chain.
	assert.False(t, m.AcceptTransaction(tx))
}

func TestHandleBlockIngestAndDuplicate(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	sender, _ := mustKeypair(t)

	tx := signedTx(t, sender, a.PublicPEM(), 10, 1)
	require.True(t, a.AcceptTransaction(tx))
	require.True(t, b.AcceptTransaction(tx))
	require.True(t, miner.New(a).MineOnce())

	mined := a.Chain().Blocks()[1]
	assert.True(t, b.HandleBlock(mined))
	assert.Equal(t, 2, b.Chain().Len())
	assert.False(t, b.MempoolContains(tx.TxID), "confirmed transactions leave the mempool")

	// The same block again fails add_block and is dropped.
	assert.False(t, b.HandleBlock(mined))
	assert.Equal(t, 2, b.Chain().Len())
}

// Scenario: two-miner race. Both miners hold T; both mine locally;
// the longer chain wins on sync and T ends up in exactly one block,
// with the losing coinbase discarded rather than reinjected.
func TestTwoMinerRaceConverges(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	xKey, _ := mustKeypair(t)
	yKey, _ := mustKeypair(t)

	shared := signedTx(t, xKey, b.PublicPEM(), 10, 1)
	require.True(t, a.AcceptTransaction(shared))
	require.True(t, b.AcceptTransaction(shared))
	require.True(t, miner.New(a).MineOnce())
	require.True(t, miner.New(b).MineOnce())

	// Equal length: neither side budges.
	a.HandleChainResponse(b.Chain().Blocks())
	assert.Equal(t, 2, a.Chain().Len())

	// B extends by one and A converges on the next pull.
	require.True(t, b.AcceptTransaction(signedTx(t, yKey, b.PublicPEM(), 5, 0)))
	require.True(t, miner.New(b).MineOnce())
	a.HandleChainResponse(b.Chain().Blocks())

	assert.Equal(t, 3, a.Chain().Len())
	assert.Equal(t, b.Chain().LastBlock().Hash, a.Chain().LastBlock().Hash)
	assert.True(t, a.Chain().ContainsTx(shared.TxID))
	assert.Equal(t, 0, a.MempoolLen(), "the orphaned coinbase is not reinjected")
}

// Scenario: orphan reinjection. A holds [G, B1(txX), B2(txY)]; B holds
// [G, B1'(txZ), B2'(txX), B3'()]. After pulling from B, A must hold
// B's chain with txY (and only txY) back in its mempool.
func TestHandleChainResponseOrphanReinjection(t *testing.T) {
	a := newTestNode(t)
	xKey, _ := mustKeypair(t)
	yKey, _ := mustKeypair(t)
	zKey, _ := mustKeypair(t)
	_, receiver := mustKeypair(t)

	txX := signedTx(t, xKey, receiver, 10, 1)
	txY := signedTx(t, yKey, receiver, 10, 1)
	txZ := signedTx(t, zKey, receiver, 10, 1)

	g, err := types.NewGenesisBlock()
	require.NoError(t, err)

	b1 := sealNext(t, g, txX)
	b2 := sealNext(t, b1, txY)
	chainA := []*types.Block{g, b1, b2}

	b1p := sealNext(t, g, txZ)
	b2p := sealNext(t, b1p, txX)
	b3p := sealNext(t, b2p)
	chainB := []*types.Block{g, b1p, b2p, b3p}

	a.HandleChainResponse(chainA)
	require.Equal(t, 3, a.Chain().Len())

	a.HandleChainResponse(chainB)
	assert.Equal(t, 4, a.Chain().Len())
	assert.Equal(t, b3p.Hash, a.Chain().LastBlock().Hash)
	assert.True(t, a.MempoolContains(txY.TxID), "orphaned txY must be reinjected")
	assert.False(t, a.MempoolContains(txX.TxID), "txX is confirmed in the adopted chain")
	assert.False(t, a.MempoolContains(txZ.TxID), "txZ is confirmed in the adopted chain")

	// Pulling the now-shorter chain again changes nothing.
	a.HandleChainResponse(chainA)
	assert.Equal(t, 4, a.Chain().Len())
	assert.True(t, a.MempoolContains(txY.TxID))
}

// Scenario: cold restart. The chain and keypair survive on disk; the
// mempool does not.
func TestColdRestart(t *testing.T) {
	dir := t.TempDir()
	n1, err := New(Config{Name: "restart", Port: 0, Dir: dir})
	require.NoError(t, err)

	sender, _ := mustKeypair(t)
	require.True(t, n1.AcceptTransaction(signedTx(t, sender, n1.PublicPEM(), 10, 1)))
	require.True(t, miner.New(n1).MineOnce())
	require.Equal(t, 2, n1.Chain().Len())

	n2, err := New(Config{Name: "restart", Port: 0, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, n1.PublicPEM(), n2.PublicPEM(), "the same keypair must load back")
	assert.Equal(t, 2, n2.Chain().Len())
	assert.Equal(t, n1.Chain().LastBlock().Hash, n2.Chain().LastBlock().Hash)
	assert.Equal(t, 0, n2.MempoolLen(), "mempool contents are not persisted")
}

func TestHandleMessageDispatch(t *testing.T) {
	n := newTestNode(t)

	_, err := n.HandleMessage([]byte("{not json"))
	assert.Error(t, err)
	_, err = n.HandleMessage([]byte(`{"type":"warp"}`))
	assert.Error(t, err)

	reply, err := n.HandleMessage([]byte(`{"type":"get_chain"}`))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Contains(t, string(reply), `"type":"chain"`)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// Live two-node exchange over real sockets: transaction gossip, then
// block gossip after mining.
func TestGossipBetweenTwoNodes(t *testing.T) {
	p1 := freePort(t)
	p2 := freePort(t)
	a, err := New(Config{Name: "a", Port: p1, Dir: t.TempDir(), PeerPorts: []int{p2}})
	require.NoError(t, err)
	b, err := New(Config{Name: "b", Port: p2, Dir: t.TempDir(), PeerPorts: []int{p1}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)
	go b.Run(ctx)
	for _, port := range []int{p1, p2} {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		require.Eventually(t, func() bool {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return false
			}
			conn.Close()
			return true
		}, 5*time.Second, 20*time.Millisecond, "listener never came up")
	}

	tx, err := a.CreateTransaction(b.PublicPEM(), 10, 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.MempoolContains(tx.TxID) },
		5*time.Second, 20*time.Millisecond, "transaction gossip never arrived")

	require.True(t, miner.New(a).MineOnce())
	require.Eventually(t, func() bool { return b.Chain().Len() == 2 },
		5*time.Second, 20*time.Millisecond, "block gossip never arrived")
	assert.False(t, b.MempoolContains(tx.TxID))
	assert.Equal(t, int64(110), b.Chain().GetBalance(b.PublicPEM()))
	assert.Equal(t, int64(100), b.Chain().GetBalance(a.PublicPEM()), "spend and coinbase cancel out")
}
