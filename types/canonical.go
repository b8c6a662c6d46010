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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalBytes renders v (expected to be a map[string]interface{}
// or a slice of such maps) as compact JSON. encoding/json already
// sorts map[string]interface{} keys lexicographically when marshaling
// and emits no inter-token whitespace by default, which gives the
// byte-stable encoding block hashes and signatures depend on: one
// code path, one pinned set of serializer rules.
func canonicalBytes(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// hashCanonical returns the hex-encoded SHA-256 digest of v's
// canonical encoding.
func hashCanonical(v interface{}) (string, error) {
	b, err := canonicalBytes(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
