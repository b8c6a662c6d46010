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

// ledgertx asks a running node to sign and inject one transaction
// from its own keypair, via the create_transaction wire message. The
// receiver key is read from another node's data directory.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/ground-x/ledger/p2p"
	"github.com/ground-x/ledger/store"
)

var (
	portFlag = cli.IntFlag{
		Name:  "port",
		Usage: "port of the node that will sign and send (localhost)",
		Value: 9000,
	}
	toDirFlag = cli.StringFlag{
		Name:  "to-dir",
		Usage: "data directory of the receiving node (its .env supplies the receiver key)",
	}
	amountFlag = cli.Uint64Flag{
		Name:  "amount",
		Usage: "amount to transfer",
		Value: 1,
	}
	feeFlag = cli.Uint64Flag{
		Name:  "fee",
		Usage: "fee offered to the miner",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "ledgertx"
	app.Usage = "inject a signed transaction into a running ledger node"
	app.Flags = []cli.Flag{portFlag, toDirFlag, amountFlag, feeFlag}
	app.Action = send
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func send(c *cli.Context) error {
	toDir := c.String(toDirFlag.Name)
	if toDir == "" {
		return fmt.Errorf("--to-dir is required")
	}
	kp, err := store.LoadKeypair(toDir)
	if err != nil {
		return err
	}
	receiverPEM, err := kp.PublicPEM()
	if err != nil {
		return err
	}
	msg, err := json.Marshal(map[string]interface{}{
		"type":            p2p.MsgCreateTransaction,
		"receiver_pubkey": receiverPEM,
		"amount":          c.Uint64(amountFlag.Name),
		"fee":             c.Uint64(feeFlag.Name),
	})
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("127.0.0.1:%d", c.Int(portFlag.Name))
	if err := p2p.Gossip(addr, msg); err != nil {
		return err
	}
	fmt.Printf("create_transaction sent to %s\n", addr)
	return nil
}
