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

package chain

import "github.com/ground-x/ledger/types"

// ProofOfWork seals b in place: it resets b.Nonce to 0, then
// increments it until H(b) meets the difficulty target, setting
// b.Hash to that value and returning it. It runs lock-free against a
// caller-owned block object — the miner holds no chain lock while
// this runs, so ingest is never starved by sealing.
func ProofOfWork(b *types.Block) (string, error) {
	b.Nonce = 0
	for {
		hash, err := b.ComputeHash()
		if err != nil {
			return "", err
		}
		if types.HasDifficulty(hash, Difficulty) {
			b.Hash = hash
			return hash, nil
		}
		b.Nonce++
	}
}
