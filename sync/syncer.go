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

// Package sync implements the periodic pull syncer: each round it asks
// every configured peer for its full chain and feeds the replies into
// fork resolution. It is the backstop that recovers anything the
// fire-and-forget gossip path lost.
package sync

import (
	"context"
	"math/rand"
	"time"

	ledgerlog "github.com/ground-x/ledger/log"
	"github.com/ground-x/ledger/metrics"
	"github.com/ground-x/ledger/p2p"
	"github.com/ground-x/ledger/types"
)

// Inter-round sleep is baseInterval + U[0, jitterInterval): the jitter
// decorrelates peers so a cluster started in lockstep does not pull in
// lockstep forever.
const (
	baseInterval   = 3 * time.Second
	jitterInterval = 2 * time.Second
)

var logger = ledgerlog.NewModuleLogger(ledgerlog.Sync)

// ChainHandler receives a peer's full chain and applies the
// longest-valid-chain rule plus orphan reinjection. The node is the
// only implementation; the interface keeps this package free of a
// dependency on it.
type ChainHandler interface {
	HandleChainResponse(blocks []*types.Block)
}

// Syncer periodically pulls every configured peer's chain.
type Syncer struct {
	peers   []string
	handler ChainHandler
	kick    chan struct{}
}

// New builds a syncer over the given peer addresses.
func New(peers []string, handler ChainHandler) *Syncer {
	return &Syncer{
		peers:   peers,
		handler: handler,
		kick:    make(chan struct{}, 1),
	}
}

// Run loops until ctx is cancelled: sleep a jittered interval (or
// until SyncNow kicks), then pull every peer once.
func (s *Syncer) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(baseInterval + time.Duration(rand.Int63n(int64(jitterInterval))))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.kick:
			timer.Stop()
		}
		s.PullOnce()
	}
}

// SyncNow schedules an immediate round without waiting out the
// current sleep. Used by block ingestion when a block fails to link —
// we may be on a shorter fork. Non-blocking; a round already pending
// absorbs the kick.
func (s *Syncer) SyncNow() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// PullOnce performs one sync round: for each peer, request its full
// chain and hand the reply to the chain handler. Unreachable peers are
// skipped silently; the next round is the retry.
func (s *Syncer) PullOnce() {
	metrics.SyncRounds.Inc(1)
	for _, peer := range s.peers {
		raw, err := p2p.Pull(peer, p2p.EncodeGetChain())
		if err != nil {
			logger.Debug("peer unreachable", "peer", peer, "err", err)
			continue
		}
		env, err := p2p.DecodeEnvelope(raw)
		if err != nil || env.Type != p2p.MsgChain {
			logger.Warn("bad chain reply", "peer", peer, "err", err)
			continue
		}
		blocks, err := p2p.DecodeChain(env.Data)
		if err != nil {
			logger.Warn("bad chain payload", "peer", peer, "err", err)
			continue
		}
		s.handler.HandleChainResponse(blocks)
	}
}
