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

package types

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// GenesisPrevHash is the literal sentinel prev_hash of block 0.
const GenesisPrevHash = "0"

// BlockEntry is one slot in a Block's transaction list, a variant of
// Genesis | Coinbase | Signed: Tx is set for Coinbase/Signed
// transactions, and IsGenesisMarker is set for the plain
// {"type": "genesis", ...} descriptor that only ever appears as the
// sole entry of block 0.
type BlockEntry struct {
	Tx              *Transaction
	IsGenesisMarker bool
}

// CanonicalValue returns the shape hashed/serialized for this entry.
func (e *BlockEntry) CanonicalValue() interface{} {
	if e.IsGenesisMarker {
		return map[string]interface{}{
			"type":    "genesis",
			"message": "Genesis Block",
		}
	}
	return e.Tx.ToDict()
}

func (e *BlockEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.CanonicalValue())
}

func (e *BlockEntry) UnmarshalJSON(data []byte) error {
	var probe map[string]interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if t, ok := probe["type"].(string); ok && t == "genesis" {
		e.IsGenesisMarker = true
		return nil
	}
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return errors.Wrap(err, "unmarshal block entry as transaction")
	}
	e.Tx = &tx
	return nil
}

// Block is an immutable, sealed link in the chain. Once constructed
// by a miner and sealed by proof-of-work it is never mutated.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []*BlockEntry `json:"transactions"`
	PrevHash     string        `json:"prev_hash"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// HashInput returns the canonical object hashed to derive a block's
// hash: {index, timestamp, transactions, prev_hash, nonce}. The hash
// field itself is excluded.
func (b *Block) HashInput() map[string]interface{} {
	txs := make([]interface{}, len(b.Transactions))
	for i, e := range b.Transactions {
		txs[i] = e.CanonicalValue()
	}
	return map[string]interface{}{
		"index":        b.Index,
		"timestamp":    b.Timestamp,
		"transactions": txs,
		"prev_hash":    b.PrevHash,
		"nonce":        b.Nonce,
	}
}

// ComputeHash returns H(block minus hash field).
func (b *Block) ComputeHash() (string, error) {
	return hashCanonical(b.HashInput())
}

// HasDifficulty reports whether hash has the required number of
// leading hex zero nibbles.
func HasDifficulty(hash string, difficulty int) bool {
	if len(hash) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// NonCoinbaseTransactions returns every user (non-coinbase, non-genesis)
// transaction in the block, in order.
func (b *Block) NonCoinbaseTransactions() []*Transaction {
	var out []*Transaction
	for i, e := range b.Transactions {
		if e.IsGenesisMarker || e.Tx == nil {
			continue
		}
		if i == 0 && e.Tx.IsCoinbase() {
			continue
		}
		out = append(out, e.Tx)
	}
	return out
}

// Coinbase returns the block's coinbase transaction, if present (it
// is always entry 0 for any non-genesis block that has one).
func (b *Block) Coinbase() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	e := b.Transactions[0]
	if e.Tx != nil && e.Tx.IsCoinbase() {
		return e.Tx
	}
	return nil
}

// NewGenesisBlock constructs the fixed canonical genesis block:
// index 0, timestamp 0, nonce 0, prev_hash "0", a single genesis
// marker entry, with its hash computed the same way any other block's
// is.
func NewGenesisBlock() (*Block, error) {
	b := &Block{
		Index:        0,
		Timestamp:    0,
		Transactions: []*BlockEntry{{IsGenesisMarker: true}},
		PrevHash:     GenesisPrevHash,
		Nonce:        0,
	}
	hash, err := b.ComputeHash()
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	return b, nil
}

// IsCanonicalGenesis reports whether b is exactly the fixed genesis
// block every node must start from.
func (b *Block) IsCanonicalGenesis() bool {
	g, err := NewGenesisBlock()
	if err != nil {
		return false
	}
	computed, err := b.ComputeHash()
	if err != nil {
		return false
	}
	return b.Index == 0 && b.PrevHash == GenesisPrevHash && b.Hash == g.Hash && computed == g.Hash
}
