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

// Package chain implements the blockchain engine: append, validate,
// fork-replace, proof-of-work sealing, and balance accounting.
package chain

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	ledgerlog "github.com/ground-x/ledger/log"
	"github.com/ground-x/ledger/mempool"
	"github.com/ground-x/ledger/types"
)

// Protocol constants that must match bit-for-bit across every node in
// the network.
const (
	Difficulty      = 4
	BlockSizeLimit  = 3
	MiningReward    = 10
	StartingBalance = 100

	presenceCacheSize = 4096
)

var logger = ledgerlog.NewModuleLogger(ledgerlog.Chain)

// Chain is the append-only, ordered sequence of blocks from genesis
// to tip. It owns its own lock, separate from the node's coarse
// mempool lock.
type Chain struct {
	mu     sync.RWMutex
	blocks []*types.Block

	// seen is a read-path accelerant only: a hit short-circuits a
	// linear scan, a miss always falls through to one, so an eviction
	// can never produce a wrong answer.
	seen *lru.Cache
}

// New constructs a chain seeded with the canonical genesis block.
func New() (*Chain, error) {
	genesis, err := types.NewGenesisBlock()
	if err != nil {
		return nil, err
	}
	cache, err := lru.New(presenceCacheSize)
	if err != nil {
		return nil, err
	}
	return &Chain{blocks: []*types.Block{genesis}, seen: cache}, nil
}

// LastBlock returns a snapshot of the tip.
func (c *Chain) LastBlock() *types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyBlock(c.blocks[len(c.blocks)-1])
}

// Blocks returns a deep-copied snapshot of the full chain, safe for
// the caller to retain without aliasing internal state.
func (c *Chain) Blocks() []*types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Block, len(c.blocks))
	for i, b := range c.blocks {
		out[i] = copyBlock(b)
	}
	return out
}

// Len returns the current chain length.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// ContainsTx reports whether txID appears in any block of the chain
// (excluding the genesis marker, which is never a Transaction).
func (c *Chain) ContainsTx(txID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.containsTxLocked(txID)
}

func (c *Chain) containsTxLocked(txID string) bool {
	key := "tx:" + txID
	if hit, ok := c.seen.Get(key); ok {
		return hit.(bool)
	}
	found := false
	for _, b := range c.blocks {
		for _, e := range b.Transactions {
			if e.Tx != nil && e.Tx.TxID == txID {
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	c.seen.Add(key, found)
	return found
}

func (c *Chain) hasHashLocked(hash string) bool {
	key := "blk:" + hash
	if hit, ok := c.seen.Get(key); ok {
		return hit.(bool)
	}
	found := false
	for _, b := range c.blocks {
		if b.Hash == hash {
			found = true
			break
		}
	}
	c.seen.Add(key, found)
	return found
}

// AddBlock appends b iff it links to the current tip, its hash
// matches its contents, and it meets the difficulty target. It never
// panics or returns an error — only success/failure.
func (c *Chain) AddBlock(b *types.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	tip := c.blocks[len(c.blocks)-1]
	if !isValidSuccessor(tip, b) {
		logger.Warn("rejected block", "index", b.Index, "prevHash", b.PrevHash, "tipHash", tip.Hash)
		return false
	}
	if c.hasHashLocked(b.Hash) {
		logger.Warn("rejected duplicate block hash", "hash", b.Hash)
		return false
	}
	c.blocks = append(c.blocks, copyBlock(b))
	c.seen.Add("blk:"+b.Hash, true)
	for _, e := range b.Transactions {
		if e.Tx != nil {
			c.seen.Add("tx:"+e.Tx.TxID, true)
		}
	}
	logger.Info("appended block", "index", b.Index, "hash", b.Hash, "txs", len(b.Transactions))
	return true
}

// isValidSuccessor checks b against its claimed predecessor: correct
// link, correct self-hash, difficulty met, and within the block size
// limit. IsValidChain applies it pairwise along a whole candidate.
func isValidSuccessor(prev, b *types.Block) bool {
	if b.PrevHash != prev.Hash {
		return false
	}
	if len(b.Transactions) > BlockSizeLimit {
		return false
	}
	computed, err := b.ComputeHash()
	if err != nil || computed != b.Hash {
		return false
	}
	return types.HasDifficulty(b.Hash, Difficulty)
}

// IsValidChain reports whether candidate is a well-formed chain: its
// first block is exactly the canonical genesis, and every subsequent
// block is valid in isolation and links to its predecessor.
func IsValidChain(candidate []*types.Block) bool {
	if len(candidate) == 0 || !candidate[0].IsCanonicalGenesis() {
		return false
	}
	for i := 1; i < len(candidate); i++ {
		if !isValidSuccessor(candidate[i-1], candidate[i]) {
			return false
		}
	}
	return true
}

// ReplaceChain atomically swaps the local chain for candidate iff
// candidate is strictly longer and fully valid. Ties favor the
// incumbent.
func (c *Chain) ReplaceChain(candidate []*types.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(candidate) <= len(c.blocks) {
		return false
	}
	if !IsValidChain(candidate) {
		return false
	}
	c.blocks = make([]*types.Block, len(candidate))
	for i, b := range candidate {
		c.blocks[i] = copyBlock(b)
	}
	c.seen.Purge()
	logger.Info("replaced chain", "newLength", len(candidate))
	return true
}

// GetBalance computes pubkey's balance by replaying the chain from
// the implicit starting balance. COINBASE has no account and is
// never debited.
func (c *Chain) GetBalance(pubkey string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balanceLocked(pubkey)
}

func (c *Chain) balanceLocked(pubkey string) int64 {
	balance := int64(StartingBalance)
	for _, b := range c.blocks[1:] {
		for _, e := range b.Transactions {
			tx := e.Tx
			if tx == nil {
				continue
			}
			if tx.ReceiverPubKey == pubkey {
				balance += int64(tx.Amount)
			}
			if !tx.IsCoinbase() && tx.SenderPubKey == pubkey {
				balance -= int64(tx.Amount + tx.Fee)
			}
		}
	}
	return balance
}

// GetBalanceWithMempool is GetBalance additionally debiting pubkey's
// pending outgoing transactions, used to admit new transactions
// without overspending an unconfirmed balance.
func (c *Chain) GetBalanceWithMempool(pubkey string, mp *mempool.Mempool) int64 {
	c.mu.RLock()
	balance := c.balanceLocked(pubkey)
	c.mu.RUnlock()

	for _, tx := range mp.Snapshot() {
		if !tx.IsCoinbase() && tx.SenderPubKey == pubkey {
			balance -= int64(tx.Amount + tx.Fee)
		}
	}
	return balance
}

func copyBlock(b *types.Block) *types.Block {
	cp := *b
	cp.Transactions = make([]*types.BlockEntry, len(b.Transactions))
	for i, e := range b.Transactions {
		entryCopy := *e
		if e.Tx != nil {
			txCopy := *e.Tx
			entryCopy.Tx = &txCopy
		}
		cp.Transactions[i] = &entryCopy
	}
	return &cp
}
