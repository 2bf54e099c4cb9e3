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

package ledger

import (
	"errors"
	"fmt"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// ErrConfirmed is returned by Rollback when hash (or an ancestor on its
// chain between hash and the account's confirmed height) has already been
// confirmed: undoing it would contradict a height the external elector has
// voted final.
var ErrConfirmed = errors.New("ledger: cannot roll back a confirmed block")

// ErrPendingConsumed is returned by Rollback when undoing a send block
// whose pending entry has already been received by another account. There
// is no reverse index from a send to the receive that consumed it, so the
// caller must identify and roll back that receive first.
var ErrPendingConsumed = errors.New("ledger: send's pending entry was already received; roll back the receive first")

// Rollback undoes hash and every block after it on its account's chain, in
// reverse order (the current head first). It restores account_info,
// representative weight, the account's frontier, pending entries and the
// predecessor's successor pointer to their state immediately before hash
// was processed.
func (l *Ledger) Rollback(tx kv.RwTx, hash ledgertypes.Hash256) error {
	account, ok, err := ownerOf(tx, hash)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	info, ok, err := getAccountInfo(tx, account)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	_, targetSb, ok, err := getBlock(tx, hash)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if info.ConfirmationHeight >= targetSb.Height {
		return ErrConfirmed
	}

	for info.Head != hash {
		if err := l.rollbackHead(tx, account, info); err != nil {
			return err
		}
		info, ok, err = getAccountInfo(tx, account)
		if err != nil {
			return err
		}
		if !ok {
			return nil // account was fully unwound by undoing its open block
		}
	}
	return l.rollbackHead(tx, account, info)
}

// rollbackHead undoes info.Head, the account's current chain tip.
func (l *Ledger) rollbackHead(tx kv.RwTx, account ledgertypes.Hash256, info ledgertypes.AccountInfo) error {
	hash := info.Head
	blk, _, ok, err := getBlock(tx, hash)
	if err != nil || !ok {
		return err
	}

	prev, hasPrev := previousOf(blk)
	var prevBalance ledgertypes.Amount128
	var prevHeight uint64
	var prevRep, prevRepBlock ledgertypes.Hash256
	if hasPrev {
		_, prevSb, ok, err := getBlock(tx, prev)
		if err != nil || !ok {
			return err
		}
		prevBalance, prevHeight = prevSb.Balance, prevSb.Height
		prevRep, prevRepBlock, err = representativeAsOf(tx, prev)
		if err != nil {
			return err
		}
	}

	switch b := blk.(type) {
	case *ledgertypes.OpenBlock:
		return l.undoOpenBlock(tx, account, hash, b.Source, b.Representative, info.Balance, info.Epoch)

	case *ledgertypes.SendBlock:
		if err := deleteOrFailPending(tx, b.Destination, hash); err != nil {
			return err
		}
		return l.rewindAccount(tx, account, hash, prev, info, prevBalance, prevHeight, prevRep, prevRepBlock)

	case *ledgertypes.ReceiveBlock:
		amount := info.Balance.Sub(prevBalance)
		if err := restorePendingFromSource(tx, account, b.Source, amount, info.Epoch); err != nil {
			return err
		}
		return l.rewindAccount(tx, account, hash, prev, info, prevBalance, prevHeight, prevRep, prevRepBlock)

	case *ledgertypes.ChangeBlock:
		return l.rewindAccount(tx, account, hash, prev, info, prevBalance, prevHeight, prevRep, prevRepBlock)

	case *ledgertypes.StateBlock:
		if !hasPrev {
			source := b.Link
			if !source.IsZero() && source != l.cfg.EpochLink {
				if err := restorePendingFromSource(tx, account, source, info.Balance, info.Epoch); err != nil {
					return err
				}
			}
			return l.undoOpenBlock(tx, account, hash, ledgertypes.Hash256{}, b.Representative, info.Balance, info.Epoch)
		}
		if b.Balance.Lt(prevBalance) {
			// a state-send: remove the pending entry it created.
			if err := deleteOrFailPending(tx, b.Link, hash); err != nil {
				return err
			}
		} else if b.Balance.Gt(prevBalance) {
			// a state-receive: recreate the pending entry it consumed.
			amount := b.Balance.Sub(prevBalance)
			if err := restorePendingFromSource(tx, account, b.Link, amount, info.Epoch); err != nil {
				return err
			}
		}
		return l.rewindAccount(tx, account, hash, prev, info, prevBalance, prevHeight, prevRep, prevRepBlock)

	default:
		return nil
	}
}

// undoOpenBlock removes an account entirely: used for both legacy opens
// and state-opens, which have no predecessor to rewind to.
func (l *Ledger) undoOpenBlock(tx kv.RwTx, account, hash, source, rep ledgertypes.Hash256, balance ledgertypes.Amount128, epoch ledgertypes.Epoch) error {
	if !source.IsZero() {
		if err := restorePendingFromSource(tx, account, source, balance, epoch); err != nil {
			return err
		}
	}
	if err := subWeight(tx, rep, balance); err != nil {
		return err
	}
	if err := deleteAccountInfo(tx, account); err != nil {
		return err
	}
	if err := deleteFrontier(tx, hash); err != nil {
		return err
	}
	return deleteBlock(tx, hash)
}

// rewindAccount restores account_info to its state as of prev, moves
// weight back from the current representative to prev's, restores the
// frontier, clears prev's successor, and deletes hash.
func (l *Ledger) rewindAccount(tx kv.RwTx, account, hash, prev ledgertypes.Hash256, info ledgertypes.AccountInfo, prevBalance ledgertypes.Amount128, prevHeight uint64, prevRep, prevRepBlock ledgertypes.Hash256) error {
	if err := subWeight(tx, info.Representative, info.Balance); err != nil {
		return err
	}
	if err := addWeight(tx, prevRep, prevBalance); err != nil {
		return err
	}
	newInfo := info
	newInfo.Head = prev
	newInfo.Balance = prevBalance
	newInfo.BlockCount = prevHeight
	newInfo.Representative = prevRep
	newInfo.RepBlock = prevRepBlock
	newInfo.ModifiedTime = now()
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return err
	}
	if err := deleteFrontier(tx, hash); err != nil {
		return err
	}
	if isLegacyFrontier, err := isLegacyBlock(tx, prev); err != nil {
		return err
	} else if isLegacyFrontier {
		if err := putFrontier(tx, prev, account); err != nil {
			return err
		}
	}
	if err := clearSuccessor(tx, prev); err != nil {
		return err
	}
	return deleteBlock(tx, hash)
}

func isLegacyBlock(tx kv.Tx, hash ledgertypes.Hash256) (bool, error) {
	blk, _, ok, err := getBlock(tx, hash)
	if err != nil || !ok {
		return false, err
	}
	return blk.Type() != ledgertypes.BlockState, nil
}

func clearSuccessor(tx kv.RwTx, prev ledgertypes.Hash256) error {
	blk, sb, ok, err := getBlock(tx, prev)
	if err != nil || !ok {
		return err
	}
	sb.Successor = ledgertypes.Hash256{}
	return putBlock(tx, prev, blk, sb)
}

// deleteOrFailPending removes the pending entry a send created, failing
// with ErrPendingConsumed if it is already absent (meaning a receive
// already consumed it, and that receive must be rolled back first).
func deleteOrFailPending(tx kv.RwTx, destination, source ledgertypes.Hash256) error {
	if _, ok, err := getPending(tx, destination, source); err != nil {
		return err
	} else if !ok {
		return ErrPendingConsumed
	}
	return deletePending(tx, destination, source)
}

// restorePendingFromSource recreates the pending entry an open or receive
// consumed: destination is the account that consumed it, source is the
// hash of the block (send or state-send) that created it, and amount/epoch
// are the values the consuming block recorded. The entry's Source field is
// resolved to the account that actually sent the funds, via the source
// block's own sideband, never the consuming account's representative.
func restorePendingFromSource(tx kv.RwTx, destination, source ledgertypes.Hash256, amount ledgertypes.Amount128, epoch ledgertypes.Epoch) error {
	sender, ok, err := ownerOf(tx, source)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ledger: rollback: source block %s has no owner", source)
	}
	return putPending(tx, destination, source, ledgertypes.PendingEntry{Source: sender, Amount: amount, Epoch: epoch})
}

// previousOf returns the chain predecessor of blk, or false if blk is the
// first block of its chain (an open, or a state block with zero Previous).
func previousOf(blk ledgertypes.Block) (ledgertypes.Hash256, bool) {
	switch b := blk.(type) {
	case *ledgertypes.OpenBlock:
		return ledgertypes.Hash256{}, false
	case *ledgertypes.SendBlock:
		return b.Previous, true
	case *ledgertypes.ReceiveBlock:
		return b.Previous, true
	case *ledgertypes.ChangeBlock:
		return b.Previous, true
	case *ledgertypes.StateBlock:
		if b.Previous.IsZero() {
			return ledgertypes.Hash256{}, false
		}
		return b.Previous, true
	default:
		return ledgertypes.Hash256{}, false
	}
}

// representativeAsOf returns the representative in effect immediately
// after hash was processed, and the hash of the block that set it. Legacy
// send/receive blocks don't carry a representative field and leave it
// unchanged, so this walks backward through them to the nearest
// open/change/state block, which always carries one explicitly.
func representativeAsOf(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Hash256, ledgertypes.Hash256, error) {
	for {
		blk, _, ok, err := getBlock(tx, hash)
		if err != nil || !ok {
			return ledgertypes.Hash256{}, ledgertypes.Hash256{}, err
		}
		switch b := blk.(type) {
		case *ledgertypes.OpenBlock:
			return b.Representative, hash, nil
		case *ledgertypes.ChangeBlock:
			return b.Representative, hash, nil
		case *ledgertypes.StateBlock:
			return b.Representative, hash, nil
		case *ledgertypes.SendBlock:
			hash = b.Previous
		case *ledgertypes.ReceiveBlock:
			hash = b.Previous
		default:
			return ledgertypes.Hash256{}, ledgertypes.Hash256{}, nil
		}
	}
}
