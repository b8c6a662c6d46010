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
	"github.com/ground-x/ledger/keys"
	satoriuuid "github.com/satori/go.uuid"
)

// CoinbaseSender is the sentinel sender_pubkey identifying a coinbase
// (block reward) transaction.
const CoinbaseSender = "COINBASE"

// CoinbaseSignature is the sentinel signature value a coinbase
// transaction carries instead of an ECDSA signature.
const CoinbaseSignature = "COINBASE"

// Transaction is a value transfer between two public keys, or a
// coinbase mint when SenderPubKey == CoinbaseSender. Coinbase and
// Signed share one struct because their wire shape is identical;
// IsCoinbase is the discriminator, so callers can still branch as if
// this were a tagged variant.
type Transaction struct {
	TxID           string  `json:"tx_id"`
	SenderPubKey   string  `json:"sender_pubkey"`
	ReceiverPubKey string  `json:"receiver_pubkey"`
	Amount         uint64  `json:"amount"`
	Fee            uint64  `json:"fee"`
	Timestamp      float64 `json:"timestamp"`
	Signature      string  `json:"signature"`
}

// IsCoinbase reports whether this is a block-reward pseudo-transaction.
func (t *Transaction) IsCoinbase() bool {
	return t.SenderPubKey == CoinbaseSender
}

// NewTxID returns a fresh 128-bit random identifier rendered as text.
func NewTxID() string {
	return satoriuuid.NewV4().String()
}

// SigningPayload builds the canonical object signed over and verified
// against: {tx_id, sender_pubkey, receiver_pubkey, amount, fee,
// timestamp}. The signature field itself is excluded.
func (t *Transaction) SigningPayload() ([]byte, error) {
	return canonicalBytes(map[string]interface{}{
		"tx_id":           t.TxID,
		"sender_pubkey":   t.SenderPubKey,
		"receiver_pubkey": t.ReceiverPubKey,
		"amount":          t.Amount,
		"fee":             t.Fee,
		"timestamp":       t.Timestamp,
	})
}

// Sign fills in TxID, Timestamp, and Signature for a new outgoing
// transaction from priv to receiverPubKey.
func Sign(priv *keys.Keypair, receiverPubKey string, amount, fee uint64, now float64) (*Transaction, error) {
	senderPEM, err := priv.PublicPEM()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		TxID:           NewTxID(),
		SenderPubKey:   senderPEM,
		ReceiverPubKey: receiverPubKey,
		Amount:         amount,
		Fee:            fee,
		Timestamp:      now,
	}
	payload, err := tx.SigningPayload()
	if err != nil {
		return nil, err
	}
	sig, err := keys.Sign(priv.Private, payload)
	if err != nil {
		return nil, err
	}
	tx.Signature = sig
	return tx, nil
}

// NewCoinbase builds the miner's reward pseudo-transaction for a
// newly sealed block.
func NewCoinbase(receiverPubKey string, amount uint64, now float64) *Transaction {
	return &Transaction{
		TxID:           NewTxID(),
		SenderPubKey:   CoinbaseSender,
		ReceiverPubKey: receiverPubKey,
		Amount:         amount,
		Fee:            0,
		Timestamp:      now,
		Signature:      CoinbaseSignature,
	}
}

// VerifySignature checks the ECDSA signature against the sender's
// public key. Coinbase transactions are never verified this way —
// callers must gate on IsCoinbase first, since a coinbase carries the
// CoinbaseSignature sentinel instead of a real signature.
func (t *Transaction) VerifySignature() bool {
	pub, err := keys.PublicKeyFromPEM(t.SenderPubKey)
	if err != nil {
		return false
	}
	payload, err := t.SigningPayload()
	if err != nil {
		return false
	}
	return keys.Verify(pub, payload, t.Signature)
}

// ToDict renders the transaction in its wire dict form.
func (t *Transaction) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"tx_id":           t.TxID,
		"sender_pubkey":   t.SenderPubKey,
		"receiver_pubkey": t.ReceiverPubKey,
		"amount":          t.Amount,
		"fee":             t.Fee,
		"timestamp":       t.Timestamp,
		"signature":       t.Signature,
	}
}
