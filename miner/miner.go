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

// Package miner implements the mining loop: pick the highest-fee
// pending transactions, prepend a coinbase, seal with proof-of-work,
// and hand the block back to the node for the commit.
package miner

import (
	"context"
	"time"

	"github.com/ground-x/ledger/chain"
	ledgerlog "github.com/ground-x/ledger/log"
	"github.com/ground-x/ledger/types"
)

// attemptInterval is the sleep between mining attempts. The loop is
// tight; the small sleep keeps an empty-mempool miner from spinning.
const attemptInterval = 200 * time.Millisecond

var logger = ledgerlog.NewModuleLogger(ledgerlog.Miner)

// Backend is what the miner needs from the node. PoW itself runs
// lock-free on a block object the miner owns; only Tip, PendingCount,
// PickTransactions, and CommitMinedBlock touch shared state, and the
// node guards those internally.
type Backend interface {
	// Tip returns a snapshot of the current chain tip.
	Tip() *types.Block
	// PendingCount returns the mempool size.
	PendingCount() int
	// PickTransactions returns up to max pending transactions sorted
	// by descending fee, ties by insertion order.
	PickTransactions(max int) []*types.Transaction
	// SelfPubKey is the PEM public key the coinbase pays out to.
	SelfPubKey() string
	// CommitMinedBlock appends b if it still links to the tip,
	// removing picked from the mempool on success. A false return
	// means another block won the race; the mined block is discarded
	// and picked stays pending.
	CommitMinedBlock(b *types.Block, picked []*types.Transaction) bool
}

// Miner drives the proof-of-work loop on miner nodes.
type Miner struct {
	backend Backend
}

// New builds a miner over the given backend.
func New(backend Backend) *Miner {
	return &Miner{backend: backend}
}

// Run loops until ctx is cancelled, attempting one block per pass
// whenever the mempool is non-empty.
func (m *Miner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(attemptInterval):
		}
		if m.backend.PendingCount() == 0 {
			continue
		}
		m.MineOnce()
	}
}

// MineOnce builds, seals, and commits a single block from the current
// mempool. Returns whether a block was appended to the local chain.
func (m *Miner) MineOnce() bool {
	picked := m.backend.PickTransactions(chain.BlockSizeLimit - 1)
	if len(picked) == 0 {
		return false
	}
	var feeSum uint64
	for _, tx := range picked {
		feeSum += tx.Fee
	}
	now := float64(time.Now().UnixNano()) / 1e9
	coinbase := types.NewCoinbase(m.backend.SelfPubKey(), chain.MiningReward+feeSum, now)

	// The tip is snapshotted here; a block arriving between this read
	// and the commit makes CommitMinedBlock fail and the work is
	// discarded. prev_hash is never patched after PoW.
	tip := m.backend.Tip()
	entries := make([]*types.BlockEntry, 0, len(picked)+1)
	entries = append(entries, &types.BlockEntry{Tx: coinbase})
	for _, tx := range picked {
		entries = append(entries, &types.BlockEntry{Tx: tx})
	}
	b := &types.Block{
		Index:        tip.Index + 1,
		Timestamp:    now,
		Transactions: entries,
		PrevHash:     tip.Hash,
	}
	if _, err := chain.ProofOfWork(b); err != nil {
		logger.Error("proof of work failed", "err", err)
		return false
	}
	if !m.backend.CommitMinedBlock(b, picked) {
		logger.Info("discarding stale mined block", "index", b.Index, "prevHash", b.PrevHash)
		return false
	}
	logger.Info("mined block", "index", b.Index, "hash", b.Hash, "txs", len(picked), "reward", coinbase.Amount)
	return true
}
