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

// Package errs collects the sentinel error taxonomy shared by every
// node subsystem, so handlers can classify a failure with errors.Is
// instead of string matching.
package errs

import "github.com/pkg/errors"

var (
	// ErrInvalidMessage marks malformed JSON or an unrecognized wire
	// message type. The connection is closed without a reply.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidTransaction marks a transaction that failed signature
	// verification, duplicate detection, or balance checking.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidBlock marks a block that failed hash, link, or
	// difficulty validation.
	ErrInvalidBlock = errors.New("invalid block")

	// ErrPeerUnreachable marks a connect/read/write failure against a
	// configured peer.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrChainLoadFailure marks a corrupt or unparsable on-disk chain
	// snapshot.
	ErrChainLoadFailure = errors.New("chain load failure")

	// ErrKeypairLoadFailure marks a missing or corrupt keypair file.
	// Unlike the others, this is fatal at startup.
	ErrKeypairLoadFailure = errors.New("keypair load failure")
)

// Wrap attaches additional context to a sentinel error while keeping
// it matchable by errors.Is/errors.Cause.
func Wrap(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, format, args...)
}
