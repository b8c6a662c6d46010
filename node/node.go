// Copyright 2024 The ledger Authors
// This file is part of the ledger library.
//
// The ledger library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ledger library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ledger library. If not, see <http://www.gnu.org/licenses/>.

// Package node wires the chain, mempool, keypair, transport, miner,
// and syncer into one running Node, and owns the coarse lock that
// serializes mempool and cross-cutting chain+mempool mutations.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ground-x/ledger/chain"
	"github.com/ground-x/ledger/errs"
	"github.com/ground-x/ledger/keys"
	ledgerlog "github.com/ground-x/ledger/log"
	"github.com/ground-x/ledger/mempool"
	"github.com/ground-x/ledger/metrics"
	"github.com/ground-x/ledger/miner"
	"github.com/ground-x/ledger/p2p"
	"github.com/ground-x/ledger/store"
	ledgersync "github.com/ground-x/ledger/sync"
	"github.com/ground-x/ledger/types"
)

var logger = ledgerlog.NewModuleLogger(ledgerlog.Node)

// Config carries everything the external launcher decides: identity,
// listen port, data directory, whether to mine, and the static peer
// list (ports on localhost).
type Config struct {
	Name      string
	Port      int
	Dir       string
	Miner     bool
	PeerPorts []int
}

// Node owns one chain, one mempool, one keypair, one listener, and
// the static peer list. All chain+mempool read-then-write sequences
// run under mu, the coarse lock.
type Node struct {
	cfg    Config
	mu     sync.Mutex
	chain  *chain.Chain
	pool   *mempool.Mempool
	key    *keys.Keypair
	pubPEM string
	peers  []string
	server *p2p.Server
	syncer *ledgersync.Syncer
}

// New constructs a node: creates the data directory, loads or
// generates the keypair, and adopts a valid on-disk chain snapshot if
// one exists. Keypair and directory failures are fatal; a corrupt
// chain snapshot is logged and ignored.
func New(cfg Config) (*Node, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create node dir %s: %w", cfg.Dir, err)
	}
	kp, err := store.LoadOrCreateKeypair(cfg.Dir)
	if err != nil {
		return nil, err
	}
	pubPEM, err := kp.PublicPEM()
	if err != nil {
		return nil, err
	}
	c, err := chain.New()
	if err != nil {
		return nil, err
	}
	if blocks, err := store.LoadChain(cfg.Dir); err != nil {
		logger.Warn("ignoring corrupt chain snapshot", "dir", cfg.Dir, "err", err)
	} else if blocks != nil {
		if chain.IsValidChain(blocks) && c.ReplaceChain(blocks) {
			logger.Info("adopted chain from disk", "length", len(blocks))
		} else if len(blocks) > 1 {
			logger.Warn("ignoring invalid chain snapshot", "dir", cfg.Dir, "length", len(blocks))
		}
	}
	n := &Node{
		cfg:    cfg,
		chain:  c,
		pool:   mempool.New(),
		key:    kp,
		pubPEM: pubPEM,
	}
	for _, port := range cfg.PeerPorts {
		n.peers = append(n.peers, fmt.Sprintf("127.0.0.1:%d", port))
	}
	n.syncer = ledgersync.New(n.peers, n)
	metrics.ChainLength.Update(int64(c.Len()))
	return n, nil
}

// Run binds the listener, starts the syncer (and miner, if enabled),
// and blocks until ctx is cancelled, snapshotting the chain on the
// way out. A bind failure is the one fatal runtime error.
func (n *Node) Run(ctx context.Context) error {
	server, err := p2p.Listen(fmt.Sprintf("127.0.0.1:%d", n.cfg.Port), n)
	if err != nil {
		return fmt.Errorf("bind port %d: %w", n.cfg.Port, err)
	}
	n.server = server
	go server.Serve()
	go n.syncer.Run(ctx)
	if n.cfg.Miner {
		go miner.New(n).Run(ctx)
	}
	logger.Info("node running", "name", n.cfg.Name, "addr", server.Addr().String(), "miner", n.cfg.Miner, "peers", len(n.peers))

	<-ctx.Done()
	n.saveChain()
	server.Close()
	logger.Info("node stopped", "name", n.cfg.Name)
	return nil
}

// PublicPEM returns this node's public key text.
func (n *Node) PublicPEM() string {
	return n.pubPEM
}

// Chain exposes the chain engine for balance queries.
func (n *Node) Chain() *chain.Chain {
	return n.chain
}

// MempoolLen returns the number of pending transactions.
func (n *Node) MempoolLen() int {
	return n.pool.Len()
}

// MempoolContains reports whether txID is currently pending.
func (n *Node) MempoolContains(txID string) bool {
	return n.pool.Contains(txID)
}

// CreateTransaction signs a transfer from this node's keypair and
// ingests it like any other transaction, gossiping on acceptance.
func (n *Node) CreateTransaction(receiverPubKey string, amount, fee uint64) (*types.Transaction, error) {
	tx, err := types.Sign(n.key, receiverPubKey, amount, fee, float64(time.Now().UnixNano())/1e9)
	if err != nil {
		return nil, err
	}
	if !n.AcceptTransaction(tx) {
		return nil, fmt.Errorf("transaction %s rejected locally", tx.TxID)
	}
	return tx, nil
}

// AcceptTransaction admits a transaction into the mempool under the
// coarse lock and gossips it to all peers when accepted. Rejections
// are logged and dropped, never propagated.
func (n *Node) AcceptTransaction(tx *types.Transaction) bool {
	n.mu.Lock()
	ok := n.admitLocked(tx)
	n.mu.Unlock()
	if !ok {
		return false
	}
	msg, err := p2p.EncodeTransaction(tx)
	if err != nil {
		logger.Error("encode transaction", "txID", tx.TxID, "err", err)
		return true
	}
	n.gossip(msg)
	metrics.TxGossiped.Inc(1)
	return true
}

func (n *Node) admitLocked(tx *types.Transaction) bool {
	if tx.IsCoinbase() {
		// Coinbase transactions are only ever delivered inside a
		// block; the gossip path never ingests one.
		logger.Warn("rejected coinbase via transaction path", "txID", tx.TxID)
		return false
	}
	if n.chain.ContainsTx(tx.TxID) {
		logger.Debug("rejected transaction already in chain", "txID", tx.TxID)
		return false
	}
	if n.pool.Contains(tx.TxID) {
		logger.Debug("rejected duplicate pending transaction", "txID", tx.TxID)
		return false
	}
	if !tx.VerifySignature() {
		logger.Warn("rejected transaction with bad signature", "txID", tx.TxID)
		return false
	}
	needed := int64(tx.Amount + tx.Fee)
	if n.chain.GetBalanceWithMempool(tx.SenderPubKey, n.pool) < needed {
		logger.Warn("rejected transaction: insufficient balance", "txID", tx.TxID, "needed", needed)
		return false
	}
	n.pool.Add(tx)
	metrics.MempoolSize.Update(int64(n.pool.Len()))
	logger.Info("accepted transaction", "txID", tx.TxID, "amount", tx.Amount, "fee", tx.Fee)
	return true
}

// HandleBlock ingests a block received from a peer: append on
// success, otherwise discard and immediately trigger a pull-sync in
// case we are on a shorter fork.
func (n *Node) HandleBlock(b *types.Block) bool {
	n.mu.Lock()
	if !n.chain.AddBlock(b) {
		n.mu.Unlock()
		metrics.BlocksOrphan.Inc(1)
		if n.syncer != nil {
			n.syncer.SyncNow()
		}
		return false
	}
	for _, tx := range b.NonCoinbaseTransactions() {
		n.pool.Remove(tx.TxID)
	}
	metrics.MempoolSize.Update(int64(n.pool.Len()))
	n.mu.Unlock()

	metrics.ChainLength.Update(int64(n.chain.Len()))
	n.saveChain()
	n.gossipBlock(b)
	return true
}

// Miner backend implementation.

// Tip returns a snapshot of the current chain tip.
func (n *Node) Tip() *types.Block {
	return n.chain.LastBlock()
}

// PendingCount returns the mempool size.
func (n *Node) PendingCount() int {
	return n.pool.Len()
}

// PickTransactions returns up to max pending transactions by
// descending fee.
func (n *Node) PickTransactions(max int) []*types.Transaction {
	return n.pool.TopByFee(max)
}

// SelfPubKey returns the coinbase payout key.
func (n *Node) SelfPubKey() string {
	return n.pubPEM
}

// CommitMinedBlock appends a locally mined block. The append and the
// mempool removal happen under the coarse lock so a concurrent ingest
// cannot observe the picked transactions as both mined and pending.
func (n *Node) CommitMinedBlock(b *types.Block, picked []*types.Transaction) bool {
	n.mu.Lock()
	ok := n.chain.AddBlock(b)
	if ok {
		ids := make([]string, len(picked))
		for i, tx := range picked {
			ids[i] = tx.TxID
		}
		n.pool.RemoveAll(ids)
		metrics.MempoolSize.Update(int64(n.pool.Len()))
	}
	n.mu.Unlock()
	if !ok {
		return false
	}
	metrics.BlocksMined.Inc(1)
	metrics.ChainLength.Update(int64(n.chain.Len()))
	n.saveChain()
	n.gossipBlock(b)
	return true
}

// HandleChainResponse applies fork resolution to a peer's full chain:
// replace-if-longer, purge newly confirmed transactions, reinject
// still-valid orphans.
func (n *Node) HandleChainResponse(newChain []*types.Block) {
	if len(newChain) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	oldTxMap := make(map[string]*types.Transaction)
	for _, b := range n.chain.Blocks()[1:] {
		for _, e := range b.Transactions {
			if e.Tx != nil {
				oldTxMap[e.Tx.TxID] = e.Tx
			}
		}
	}
	newTxIDs := make(map[string]struct{})
	for _, b := range newChain[1:] {
		for _, e := range b.Transactions {
			if e.Tx != nil {
				newTxIDs[e.Tx.TxID] = struct{}{}
			}
		}
	}

	if !n.chain.ReplaceChain(newChain) {
		return
	}

	for id := range newTxIDs {
		n.pool.Remove(id)
	}
	// Orphans: in the old chain, absent from the adopted one.
	// admitLocked re-validates under the new chain's balances and
	// rejects orphaned coinbases by construction.
	reinjected := 0
	for id, tx := range oldTxMap {
		if _, confirmed := newTxIDs[id]; confirmed {
			continue
		}
		if n.admitLocked(tx) {
			reinjected++
		}
	}
	metrics.MempoolSize.Update(int64(n.pool.Len()))
	metrics.ChainLength.Update(int64(n.chain.Len()))
	n.saveChain()
	logger.Info("adopted longer chain", "length", n.chain.Len(), "orphansReinjected", reinjected)
}

// HandleMessage dispatches one inbound wire message (p2p.Handler).
// Only get_chain produces a reply; every other type is ingest-only.
func (n *Node) HandleMessage(raw []byte) ([]byte, error) {
	env, err := p2p.DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case p2p.MsgTransaction:
		var tx types.Transaction
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			return nil, errs.Wrap(errs.ErrInvalidMessage, "decode transaction payload: %v", err)
		}
		n.AcceptTransaction(&tx)
		return nil, nil
	case p2p.MsgBlock:
		var b types.Block
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, errs.Wrap(errs.ErrInvalidMessage, "decode block payload: %v", err)
		}
		n.HandleBlock(&b)
		return nil, nil
	case p2p.MsgCreateTransaction:
		req, err := p2p.DecodeCreateTransaction(raw)
		if err != nil {
			return nil, err
		}
		if _, err := n.CreateTransaction(req.ReceiverPubKey, req.Amount, req.Fee); err != nil {
			logger.Warn("create_transaction rejected", "err", err)
		}
		return nil, nil
	case p2p.MsgGetChain:
		return p2p.EncodeChain(n.chain.Blocks())
	case p2p.MsgChain:
		blocks, err := p2p.DecodeChain(env.Data)
		if err != nil {
			return nil, err
		}
		n.HandleChainResponse(blocks)
		return nil, nil
	default:
		return nil, errs.Wrap(errs.ErrInvalidMessage, "unknown message type %q", env.Type)
	}
}

// gossip fires msg at every peer concurrently, one connection per
// peer. Failures are logged at debug and otherwise ignored; the
// syncer recovers anything lost.
func (n *Node) gossip(msg []byte) {
	for _, peer := range n.peers {
		go func(addr string) {
			if err := p2p.Gossip(addr, msg); err != nil {
				logger.Debug("gossip failed", "peer", addr, "err", err)
			}
		}(peer)
	}
}

func (n *Node) gossipBlock(b *types.Block) {
	msg, err := p2p.EncodeBlock(b)
	if err != nil {
		logger.Error("encode block", "index", b.Index, "err", err)
		return
	}
	n.gossip(msg)
}

// saveChain is safe to call with or without mu held: it only reads a
// deep-copied chain snapshot.
func (n *Node) saveChain() {
	if err := store.SaveChain(n.cfg.Dir, n.chain.Blocks()); err != nil {
		logger.Warn("chain snapshot failed", "dir", n.cfg.Dir, "err", err)
	}
}
