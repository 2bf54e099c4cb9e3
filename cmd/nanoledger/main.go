// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Command nanoledger is a smoke-test entrypoint: it opens a store (on-disk
// MDBX if -datadir is given, otherwise an in-memory store), runs the
// schema upgrade, seeds genesis, and processes a handful of blocks to
// exercise the full Process/commit path end to end. Not a node — there is
// no networking, CLI flag surface, or RPC here, only enough wiring to
// prove the store and ledger packages function together.
package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"os"

	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/kv/mdbx"
	"github.com/erigontech/nanoledger/internal/kv/memdb"
	"github.com/erigontech/nanoledger/internal/ledger"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
	"github.com/erigontech/nanoledger/internal/schema"
)

func main() {
	datadir := flag.String("datadir", "", "path to an MDBX data file; empty uses an in-memory store")
	flag.Parse()

	if err := run(*datadir); err != nil {
		fmt.Fprintln(os.Stderr, "nanoledger:", err)
		os.Exit(1)
	}
}

func run(datadir string) error {
	ctx := context.Background()
	logger := log.Root()

	var db kv.RwDB
	if datadir == "" {
		db = memdb.New(kv.LedgerTables)
	} else {
		d, err := mdbx.Open(datadir, mdbx.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer d.Close()
		db = d
	}

	_, genesisPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return err
	}
	var genesisAccount ledgertypes.Hash256
	copy(genesisAccount[:], genesisPriv.Public().(ed25519.PublicKey))

	genesis := ledgertypes.NewOpenBlockBuilder().
		Source(genesisAccount).
		Representative(genesisAccount).
		Account(genesisAccount).
		Sign(genesisPriv).
		Build()

	if err := schema.Upgrade(ctx, db, genesis.Hash(), logger); err != nil {
		return fmt.Errorf("upgrade schema: %w", err)
	}

	maxSupply := ledgertypes.AmountFromBig([16]byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
	l := ledger.New(ledger.Config{
		Genesis:       genesis,
		GenesisSupply: maxSupply,
	})

	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := l.Initialize(tx); err != nil {
		return fmt.Errorf("initialize genesis: %w", err)
	}

	_, destPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return err
	}
	var dest ledgertypes.Hash256
	copy(dest[:], destPriv.Public().(ed25519.PublicKey))

	half := ledgertypes.AmountFromUint64(1 << 62)
	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesis.Hash()).
		Destination(dest).
		BalanceNew(half).
		Sign(genesisPriv).
		Build()

	result, meta, err := l.Process(tx, send)
	if err != nil {
		return fmt.Errorf("process send: %w", err)
	}
	logger.Info("processed send", "result", result.String(), "account", meta.Account.String())

	open := ledgertypes.NewOpenBlockBuilder().
		Source(send.Hash()).
		Representative(dest).
		Account(dest).
		Sign(destPriv).
		Build()

	result, meta, err = l.Process(tx, open)
	if err != nil {
		return fmt.Errorf("process open: %w", err)
	}
	logger.Info("processed open", "result", result.String(), "account", meta.Account.String(), "amount", meta.Amount.String())

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	rtx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer rtx.Rollback()

	balance, err := l.AccountBalance(rtx, dest)
	if err != nil {
		return err
	}
	logger.Info("final balance", "account", dest.String(), "balance", balance.String())
	return nil
}
