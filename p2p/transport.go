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

package p2p

import (
	"io"
	"net"
	"time"

	"github.com/ground-x/ledger/errs"
	ledgerlog "github.com/ground-x/ledger/log"
)

// Gossip sends get a short timeout; chain pulls are allowed longer
// because the reply carries the peer's full chain.
const (
	GossipTimeout = 2 * time.Second
	PullTimeout   = 10 * time.Second
)

var logger = ledgerlog.NewModuleLogger(ledgerlog.P2P)

// Handler processes one fully read inbound message and optionally
// returns a reply to write back on the same connection (only get_chain
// produces one).
type Handler interface {
	HandleMessage(raw []byte) (reply []byte, err error)
}

// Server accepts one-shot connections and dispatches each to the
// handler on its own goroutine.
type Server struct {
	ln      net.Listener
	handler Handler
}

// Listen binds addr and returns a Server ready to Serve.
func Listen(addr string, h Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, handler: h}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until the listener is closed. Each
// connection carries exactly one message and gets its own goroutine.
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			logger.Debug("listener closed", "err", err)
			return
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener. In-flight handlers finish on their
// own; they are daemon-style and never joined.
func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	// The peer half-closes its write side after one message, so a
	// drain-to-EOF read is the whole framing protocol.
	conn.SetReadDeadline(time.Now().Add(PullTimeout))
	raw, err := io.ReadAll(conn)
	if err != nil {
		logger.Debug("inbound read failed", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	reply, err := s.handler.HandleMessage(raw)
	if err != nil {
		// No error propagates out of a handler task; the connection
		// just closes.
		logger.Warn("dropped inbound message", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	if reply == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(PullTimeout))
	if _, err := conn.Write(reply); err != nil {
		logger.Debug("reply write failed", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	halfClose(conn)
}

// Gossip delivers one fire-and-forget message to addr: connect, write,
// half-close, close. Failures are returned for logging but never
// retried — the periodic syncer is the backstop for lost messages.
func Gossip(addr string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, GossipTimeout)
	if err != nil {
		return errs.Wrap(errs.ErrPeerUnreachable, "dial %s: %v", addr, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(GossipTimeout))
	if _, err := conn.Write(msg); err != nil {
		return errs.Wrap(errs.ErrPeerUnreachable, "write to %s: %v", addr, err)
	}
	halfClose(conn)
	return nil
}

// Pull performs one request/response exchange: write msg, half-close
// the write side, then drain the peer's reply until EOF.
func Pull(addr string, msg []byte) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", addr, PullTimeout)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPeerUnreachable, "dial %s: %v", addr, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(PullTimeout))
	if _, err := conn.Write(msg); err != nil {
		return nil, errs.Wrap(errs.ErrPeerUnreachable, "write to %s: %v", addr, err)
	}
	halfClose(conn)
	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPeerUnreachable, "read from %s: %v", addr, err)
	}
	return reply, nil
}

func halfClose(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}
}
