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

// Package store persists the node's two on-disk artifacts: the chain
// snapshot (blockchain.json, a pretty-printed JSON block array) and
// the keypair (.env, PEM blocks framed by marker lines).
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ground-x/ledger/errs"
	"github.com/ground-x/ledger/keys"
	ledgerlog "github.com/ground-x/ledger/log"
	"github.com/ground-x/ledger/types"
)

const (
	// ChainFileName is the chain snapshot file inside the node dir.
	ChainFileName = "blockchain.json"
	// EnvFileName is the keypair file inside the node dir.
	EnvFileName = ".env"

	privateKeyStart = "PRIVATE_KEY_START"
	privateKeyEnd   = "PRIVATE_KEY_END"
	publicKeyStart  = "PUBLIC_KEY_START"
	publicKeyEnd    = "PUBLIC_KEY_END"
)

var logger = ledgerlog.NewModuleLogger(ledgerlog.Store)

// SaveChain writes blocks to <dir>/blockchain.json, pretty-printed.
// The hash path never reads this file back through canonical encoding,
// so indentation here cannot perturb block hashes.
func SaveChain(dir string, blocks []*types.Block) error {
	data, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ChainFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadChain reads <dir>/blockchain.json. A missing file returns
// (nil, nil) — the node then starts from genesis. A present but
// unparsable file returns ErrChainLoadFailure; callers log and
// continue with genesis.
func LoadChain(dir string) ([]*types.Block, error) {
	data, err := os.ReadFile(filepath.Join(dir, ChainFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrChainLoadFailure, "read chain snapshot: %v", err)
	}
	var blocks []*types.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, errs.Wrap(errs.ErrChainLoadFailure, "parse chain snapshot: %v", err)
	}
	return blocks, nil
}

// SaveKeypair writes the keypair to <dir>/.env, each PEM block framed
// by its marker lines.
func SaveKeypair(dir string, kp *keys.Keypair) error {
	privPEM, err := kp.PrivatePEM()
	if err != nil {
		return err
	}
	pubPEM, err := kp.PublicPEM()
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(privateKeyStart + "\n")
	sb.WriteString(privPEM)
	sb.WriteString(privateKeyEnd + "\n")
	sb.WriteString(publicKeyStart + "\n")
	sb.WriteString(pubPEM)
	sb.WriteString(publicKeyEnd + "\n")
	return os.WriteFile(filepath.Join(dir, EnvFileName), []byte(sb.String()), 0o600)
}

// LoadKeypair reads <dir>/.env. A missing or malformed file yields
// ErrKeypairLoadFailure; unlike chain loads this is fatal at startup
// when the caller expected a key to exist.
func LoadKeypair(dir string) (*keys.Keypair, error) {
	data, err := os.ReadFile(filepath.Join(dir, EnvFileName))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKeypairLoadFailure, "read %s: %v", EnvFileName, err)
	}
	text := string(data)
	privPEM, err := between(text, privateKeyStart, privateKeyEnd)
	if err != nil {
		return nil, err
	}
	pubPEM, err := between(text, publicKeyStart, publicKeyEnd)
	if err != nil {
		return nil, err
	}
	priv, err := keys.PrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKeypairLoadFailure, "parse private key: %v", err)
	}
	pub, err := keys.PublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKeypairLoadFailure, "parse public key: %v", err)
	}
	return &keys.Keypair{Private: priv, Public: pub}, nil
}

// LoadOrCreateKeypair loads the node's keypair from <dir>/.env, or
// generates and persists a fresh one if the file does not exist yet.
func LoadOrCreateKeypair(dir string) (*keys.Keypair, error) {
	if _, err := os.Stat(filepath.Join(dir, EnvFileName)); err == nil {
		return LoadKeypair(dir)
	}
	kp, err := keys.Generate()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKeypairLoadFailure, "generate keypair: %v", err)
	}
	if err := SaveKeypair(dir, kp); err != nil {
		return nil, errs.Wrap(errs.ErrKeypairLoadFailure, "persist keypair: %v", err)
	}
	logger.Info("generated fresh keypair", "dir", dir)
	return kp, nil
}

func between(text, start, end string) (string, error) {
	i := strings.Index(text, start)
	j := strings.Index(text, end)
	if i < 0 || j < 0 || j < i {
		return "", errs.Wrap(errs.ErrKeypairLoadFailure, "marker %s/%s not found", start, end)
	}
	return strings.TrimLeft(text[i+len(start):j], "\n"), nil
}
