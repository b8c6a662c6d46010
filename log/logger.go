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

// Package log provides the structured, per-module logger every other
// package in this repository logs through.
package log

import (
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module names, one constant per logging module.
const (
	Chain    = "chain"
	Mempool  = "mempool"
	Miner    = "miner"
	P2P      = "p2p"
	Sync     = "sync"
	Node     = "node"
	Store    = "store"
	Keys     = "keys"
	CmdNode  = "cmd"
	Metrics  = "metrics"
)

var (
	mu       sync.Mutex
	base     *zap.Logger
	levelVar = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() {
	base = buildBase()
}

func buildBase() *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(colorable.NewColorable(os.Stderr)),
		levelVar,
	)
	return zap.New(core)
}

// SetVerbosity adjusts the process-wide minimum log level. Valid values
// follow zap's level names: "debug", "info", "warn", "error".
func SetVerbosity(level string) error {
	mu.Lock()
	defer mu.Unlock()
	var l zapcore.Level
	if err := l.Set(level); err != nil {
		return err
	}
	levelVar.SetLevel(l)
	return nil
}

// Logger is the structured logger handed out to every module. Every
// call takes a message plus alternating key/value pairs.
type Logger struct {
	s *zap.SugaredLogger
}

// NewModuleLogger returns a Logger tagged with the given module name.
func NewModuleLogger(module string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	return &Logger{s: base.Sugar().With("module", module)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
