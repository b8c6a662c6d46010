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

// ledgernode runs one ledger node: listener, syncer, and optionally a
// miner. It is a thin wiring shim over the node package — flag
// parsing, signal handling, and the metrics endpoint live here and
// nothing else.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	ledgerlog "github.com/ground-x/ledger/log"
	"github.com/ground-x/ledger/metrics"
	"github.com/ground-x/ledger/node"
)

var logger = ledgerlog.NewModuleLogger(ledgerlog.CmdNode)

var (
	nameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "human-readable node name used in logs",
		Value: "node",
	}
	portFlag = cli.IntFlag{
		Name:  "port",
		Usage: "TCP port to listen on (localhost)",
		Value: 9000,
	}
	dirFlag = cli.StringFlag{
		Name:  "dir",
		Usage: "data directory holding blockchain.json and .env",
		Value: "./nodedata",
	}
	minerFlag = cli.BoolFlag{
		Name:  "miner",
		Usage: "run the mining loop on this node",
	}
	peersFlag = cli.IntSliceFlag{
		Name:  "peers",
		Usage: "peer ports on localhost (repeatable)",
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "log level: debug, info, warn, error",
		Value: "info",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "if set, serve prometheus metrics on this address (e.g. 127.0.0.1:6060)",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "ledgernode"
	app.Usage = "a single node of the replicated proof-of-work ledger"
	app.Flags = []cli.Flag{
		nameFlag, portFlag, dirFlag, minerFlag, peersFlag, verbosityFlag, metricsAddrFlag,
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := ledgerlog.SetVerbosity(c.String(verbosityFlag.Name)); err != nil {
		return err
	}
	cfg := node.Config{
		Name:      c.String(nameFlag.Name),
		Port:      c.Int(portFlag.Name),
		Dir:       c.String(dirFlag.Name),
		Miner:     c.Bool(minerFlag.Name),
		PeerPorts: c.IntSlice(peersFlag.Name),
	}
	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	logger.Info("starting node", "name", cfg.Name, "port", cfg.Port, "dir", cfg.Dir, "miner", cfg.Miner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if addr := c.String(metricsAddrFlag.Name); addr != "" {
		metrics.StartPrometheusBridge("ledger", 5*time.Second, ctx.Done())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("metrics endpoint stopped", "addr", addr, "err", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		logger.Info("shutting down", "signal", s.String())
		cancel()
	}()

	return n.Run(ctx)
}
