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

// Package mempool holds transactions pending inclusion in a block:
// set semantics by tx_id, insertion order preserved.
package mempool

import (
	"sort"
	"sync"

	"github.com/ground-x/ledger/types"
)

// Mempool is a set-semantics, insertion-ordered container of pending
// transactions. At most one live copy of any tx_id may be present.
// The node's coarse lock is the primary guard around mempool
// mutation; the internal mutex here is a second layer so the type is
// safe to use on its own.
type Mempool struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*types.Transaction
}

// New returns an empty mempool.
func New() *Mempool {
	return &Mempool{byID: make(map[string]*types.Transaction)}
}

// Contains reports whether txID is currently pending.
func (m *Mempool) Contains(txID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[txID]
	return ok
}

// Add inserts tx if its tx_id is not already present. Returns false
// if it was already pending.
func (m *Mempool) Add(tx *types.Transaction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[tx.TxID]; ok {
		return false
	}
	m.byID[tx.TxID] = tx
	m.order = append(m.order, tx.TxID)
	return true
}

// Remove drops txID from the pool if present.
func (m *Mempool) Remove(txID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(txID)
}

func (m *Mempool) removeLocked(txID string) {
	if _, ok := m.byID[txID]; !ok {
		return
	}
	delete(m.byID, txID)
	for i, id := range m.order {
		if id == txID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// RemoveAll drops every transaction whose tx_id is in ids.
func (m *Mempool) RemoveAll(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.removeLocked(id)
	}
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Snapshot returns a copy of the pending transactions in insertion
// order, safe for the caller to retain without aliasing internal
// state.
func (m *Mempool) Snapshot() []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Transaction, len(m.order))
	for i, id := range m.order {
		tx := *m.byID[id]
		out[i] = &tx
	}
	return out
}

// TopByFee returns up to n pending transactions sorted by descending
// fee, ties broken by insertion order.
func (m *Mempool) TopByFee(n int) []*types.Transaction {
	snap := m.Snapshot()
	sort.SliceStable(snap, func(i, j int) bool {
		return snap[i].Fee > snap[j].Fee
	})
	if len(snap) > n {
		snap = snap[:n]
	}
	return snap
}
