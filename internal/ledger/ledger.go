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

// Package ledger implements the block-validation state machine: Process
// admits or rejects a block against the current store state, Rollback
// undoes a committed block and its descendants, and a set of read queries
// expose derived state (balances, weights, chain positions) to callers.
//
// Block variants are a tagged union (ledgertypes.Block, five concrete
// structs) rather than a class hierarchy with virtual dispatch: Process
// and Rollback switch exhaustively on Type().
package ledger

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// Ledger is a stateless engine over an external kv.RwDB: every exported
// method takes the caller's transaction explicitly rather than holding one
// open across calls.
type Ledger struct {
	cfg Config
}

func New(cfg Config) *Ledger {
	return &Ledger{cfg: cfg}
}

// Initialize seeds the store with the configured genesis block, if it is
// not already present. Safe to call on every open: a no-op once the
// genesis hash exists in the Blocks table.
func (l *Ledger) Initialize(tx kv.RwTx) error {
	hash := l.cfg.Genesis.Hash()
	exists, err := blockExists(tx, hash)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	now := uint64(time.Now().Unix())

	switch gb := l.cfg.Genesis.(type) {
	case *ledgertypes.OpenBlock:
		info := ledgertypes.AccountInfo{
			Head: hash, RepBlock: hash, OpenBlock: hash,
			Representative:     gb.Representative,
			Balance:            l.cfg.GenesisSupply,
			BlockCount:         1,
			ConfirmationHeight: 1,
			Epoch:              ledgertypes.Epoch0,
			ModifiedTime:       now,
		}
		if err := putAccountInfo(tx, gb.Account, info); err != nil {
			return err
		}
		if err := addWeight(tx, gb.Representative, l.cfg.GenesisSupply); err != nil {
			return err
		}
		if err := putFrontier(tx, hash, gb.Account); err != nil {
			return err
		}
		sb := ledgertypes.Sideband{Type: ledgertypes.BlockOpen, Account: gb.Account, Balance: l.cfg.GenesisSupply, Height: 1, Timestamp: now}
		return putBlock(tx, hash, gb, sb)

	case *ledgertypes.StateBlock:
		info := ledgertypes.AccountInfo{
			Head: hash, RepBlock: hash, OpenBlock: hash,
			Representative:     gb.Representative,
			Balance:            l.cfg.GenesisSupply,
			BlockCount:         1,
			ConfirmationHeight: 1,
			Epoch:              ledgertypes.Epoch0,
			ModifiedTime:       now,
		}
		if err := putAccountInfo(tx, gb.Account, info); err != nil {
			return err
		}
		if err := addWeight(tx, gb.Representative, l.cfg.GenesisSupply); err != nil {
			return err
		}
		sb := ledgertypes.Sideband{Type: ledgertypes.BlockState, Account: gb.Account, Balance: l.cfg.GenesisSupply, Height: 1, Timestamp: now}
		return putBlock(tx, hash, gb, sb)

	default:
		return fmt.Errorf("ledger: genesis block must be an open or state block, got %s", l.cfg.Genesis.Type())
	}
}

// Process admits block against the current store state within tx. A
// non-nil error indicates a store failure; the caller must not commit.
// Everything else — including every rejection — is communicated through
// the returned Result.
func (l *Ledger) Process(tx kv.RwTx, block ledgertypes.Block) (Result, ProcessMeta, error) {
	hash := block.Hash()
	exists, err := blockExists(tx, hash)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if exists {
		return ResultOld, ProcessMeta{}, nil
	}
	if !l.cfg.workVerifier().Verify(block.Root(), block.Work()) {
		return ResultInsufficientWork, ProcessMeta{}, nil
	}

	switch b := block.(type) {
	case *ledgertypes.OpenBlock:
		return l.processOpen(tx, b)
	case *ledgertypes.SendBlock:
		return l.processSend(tx, b)
	case *ledgertypes.ReceiveBlock:
		return l.processReceive(tx, b)
	case *ledgertypes.ChangeBlock:
		return l.processChange(tx, b)
	case *ledgertypes.StateBlock:
		return l.processState(tx, b)
	default:
		return 0, ProcessMeta{}, fmt.Errorf("ledger: unknown block variant %T", block)
	}
}

// CouldFit reports whether every block this one depends on is already
// present, without mutating anything. Callers use it to decide whether to
// attempt Process or park the block in the unchecked buffer.
func (l *Ledger) CouldFit(tx kv.Tx, block ledgertypes.Block) (bool, error) {
	switch b := block.(type) {
	case *ledgertypes.OpenBlock:
		return blockExists(tx, b.Source)
	case *ledgertypes.SendBlock:
		return blockExists(tx, b.Previous)
	case *ledgertypes.ReceiveBlock:
		ok, err := blockExists(tx, b.Previous)
		if err != nil || !ok {
			return ok, err
		}
		return blockExists(tx, b.Source)
	case *ledgertypes.ChangeBlock:
		return blockExists(tx, b.Previous)
	case *ledgertypes.StateBlock:
		return l.couldFitState(tx, b)
	default:
		return false, nil
	}
}

func (l *Ledger) couldFitState(tx kv.Tx, b *ledgertypes.StateBlock) (bool, error) {
	if b.Previous.IsZero() {
		if b.Link.IsZero() || b.Link == l.cfg.EpochLink {
			return true, nil
		}
		return blockExists(tx, b.Link) // pending-based open depends on its source block
	}
	ok, err := blockExists(tx, b.Previous)
	if err != nil || !ok {
		return ok, err
	}
	account, _, err := ownerOf(tx, b.Previous)
	if err != nil {
		return false, err
	}
	info, ok, err := getAccountInfo(tx, account)
	if err != nil || !ok {
		return false, err
	}
	if ledgertypes.ClassifyState(b, info.Balance, true, l.cfg.EpochLink) == ledgertypes.StateSubtypeReceive {
		return blockExists(tx, b.Link)
	}
	return true, nil
}

func verifySig(account ledgertypes.Hash256, hash ledgertypes.Hash256, sig ledgertypes.Signature512) bool {
	return ed25519.Verify(ed25519.PublicKey(account[:]), hash[:], sig[:])
}

func verifySigKey(pub ed25519.PublicKey, hash ledgertypes.Hash256, sig ledgertypes.Signature512) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, hash[:], sig[:])
}

// chainHeadIsState reports whether the block at hash (the current chain
// head being extended) is a state block: a legacy block may never follow
// one.
func chainHeadIsState(tx kv.Tx, hash ledgertypes.Hash256) (bool, error) {
	blk, _, ok, err := getBlock(tx, hash)
	if err != nil || !ok {
		return false, err
	}
	return blk.Type() == ledgertypes.BlockState, nil
}

func now() uint64 { return uint64(time.Now().Unix()) }
