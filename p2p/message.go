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

// Package p2p implements the one-shot gossip transport: every message
// travels on its own TCP connection, framed by connection lifetime —
// the sender writes, half-closes, and the receiver reads until EOF.
// There is no length prefix and no multiplexing.
package p2p

import (
	"encoding/json"

	"github.com/ground-x/ledger/errs"
	"github.com/ground-x/ledger/types"
)

// Wire message types.
const (
	MsgTransaction       = "transaction"
	MsgBlock             = "block"
	MsgCreateTransaction = "create_transaction"
	MsgGetChain          = "get_chain"
	MsgChain             = "chain"
)

// Envelope is the outer wire shape: {"type": ..., "data": ...}. The
// create_transaction request is the one exception — its fields sit at
// the top level beside "type" rather than under "data" — so handlers
// re-decode the raw bytes via DecodeCreateTransaction for that type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CreateTransactionRequest is the local-injection request asking the
// node to sign and ingest a transaction from its own keypair.
type CreateTransactionRequest struct {
	ReceiverPubKey string `json:"receiver_pubkey"`
	Amount         uint64 `json:"amount"`
	Fee            uint64 `json:"fee"`
}

// DecodeEnvelope parses the outer envelope of an inbound message.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidMessage, "decode envelope: %v", err)
	}
	if env.Type == "" {
		return nil, errs.Wrap(errs.ErrInvalidMessage, "missing message type")
	}
	return &env, nil
}

// DecodeCreateTransaction parses a create_transaction request from the
// full raw message (its fields are top-level, not under data).
func DecodeCreateTransaction(raw []byte) (*CreateTransactionRequest, error) {
	var req CreateTransactionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidMessage, "decode create_transaction: %v", err)
	}
	if req.ReceiverPubKey == "" {
		return nil, errs.Wrap(errs.ErrInvalidMessage, "create_transaction missing receiver_pubkey")
	}
	return &req, nil
}

// EncodeTransaction renders a transaction gossip message.
func EncodeTransaction(tx *types.Transaction) ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Envelope{Type: MsgTransaction, Data: data})
}

// EncodeBlock renders a block gossip message.
func EncodeBlock(b *types.Block) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Envelope{Type: MsgBlock, Data: data})
}

// EncodeGetChain renders a full-chain pull request.
func EncodeGetChain() []byte {
	// Static shape, cannot fail.
	raw, _ := json.Marshal(&Envelope{Type: MsgGetChain})
	return raw
}

// EncodeChain renders the reply to a get_chain request.
func EncodeChain(blocks []*types.Block) ([]byte, error) {
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Envelope{Type: MsgChain, Data: data})
}

// DecodeChain parses the block list out of a chain message's data.
func DecodeChain(data json.RawMessage) ([]*types.Block, error) {
	var blocks []*types.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidMessage, "decode chain payload: %v", err)
	}
	return blocks, nil
}
