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
	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// AccountInfo returns the stored record for account, and false if the
// account has never been opened.
func (l *Ledger) AccountInfo(tx kv.Tx, account ledgertypes.Hash256) (ledgertypes.AccountInfo, bool, error) {
	return getAccountInfo(tx, account)
}

// AccountBalance returns account's current balance, zero if unopened.
func (l *Ledger) AccountBalance(tx kv.Tx, account ledgertypes.Hash256) (ledgertypes.Amount128, error) {
	info, ok, err := getAccountInfo(tx, account)
	if err != nil || !ok {
		return ledgertypes.Amount128{}, err
	}
	return info.Balance, nil
}

// Weight returns rep's tallied voting weight. If BootstrapWeightsMaxBlocks
// is configured and the Blocks table has not yet reached that size, the
// out-of-band bootstrap weight (if any was seeded) is returned instead of
// the derived Representation-table value.
func (l *Ledger) Weight(tx kv.Tx, rep ledgertypes.Hash256) (ledgertypes.Amount128, error) {
	if l.cfg.BootstrapWeightsMaxBlocks > 0 {
		count, err := tx.Count(kv.Blocks)
		if err != nil {
			return ledgertypes.Amount128{}, err
		}
		if count < l.cfg.BootstrapWeightsMaxBlocks {
			if w, ok, err := l.bootstrapWeight(tx, rep); err != nil {
				return ledgertypes.Amount128{}, err
			} else if ok {
				return w, nil
			}
		}
	}
	return getWeight(tx, rep)
}

// bootstrapWeight reads a weight seeded out-of-band via SeedBootstrapWeight,
// stored in the same Representation table under a distinguishing prefix so
// it never collides with a derived weight keyed by the bare representative.
func (l *Ledger) bootstrapWeight(tx kv.Tx, rep ledgertypes.Hash256) (ledgertypes.Amount128, bool, error) {
	v, err := tx.GetOne(kv.Representation, bootstrapWeightKey(rep))
	if err != nil || v == nil {
		return ledgertypes.Amount128{}, false, err
	}
	var b [16]byte
	copy(b[:], v)
	return ledgertypes.AmountFromBig(b), true, nil
}

// SeedBootstrapWeight records an externally-sourced weight for rep, used by
// Weight only while the ledger is still below BootstrapWeightsMaxBlocks.
func (l *Ledger) SeedBootstrapWeight(tx kv.RwTx, rep ledgertypes.Hash256, weight ledgertypes.Amount128) error {
	w := weight.Bytes16()
	return tx.Put(kv.Representation, bootstrapWeightKey(rep), w[:])
}

func bootstrapWeightKey(rep ledgertypes.Hash256) []byte {
	k := make([]byte, 0, 33)
	k = append(k, 0xff) // distinguishes a bootstrap entry from a derived one (bare 32-byte key)
	return append(k, rep[:]...)
}

// Amount returns the value a block moved: the send/receive amount for
// legacy send/receive and value-changing state blocks, zero for
// change/epoch blocks and legacy opens (whose "amount" is really the
// pending entry it consumed, available via BlockSource).
func (l *Ledger) Amount(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Amount128, error) {
	blk, sb, ok, err := getBlock(tx, hash)
	if err != nil || !ok {
		return ledgertypes.Amount128{}, err
	}
	switch b := blk.(type) {
	case *ledgertypes.SendBlock:
		prevSb, ok, err := l.sidebandOf(tx, b.Previous)
		if err != nil || !ok {
			return ledgertypes.Amount128{}, err
		}
		return prevSb.Balance.Sub(b.BalanceNew), nil
	case *ledgertypes.ReceiveBlock:
		prevSb, ok, err := l.sidebandOf(tx, b.Previous)
		if err != nil || !ok {
			return ledgertypes.Amount128{}, err
		}
		return sb.Balance.Sub(prevSb.Balance), nil
	case *ledgertypes.StateBlock:
		if b.Previous.IsZero() {
			return sb.Balance, nil
		}
		prevSb, ok, err := l.sidebandOf(tx, b.Previous)
		if err != nil || !ok {
			return ledgertypes.Amount128{}, err
		}
		if sb.Balance.Gt(prevSb.Balance) {
			return sb.Balance.Sub(prevSb.Balance), nil
		}
		return prevSb.Balance.Sub(sb.Balance), nil
	default:
		return ledgertypes.Amount128{}, nil
	}
}

func (l *Ledger) sidebandOf(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Sideband, bool, error) {
	_, sb, ok, err := getBlock(tx, hash)
	return sb, ok, err
}

// Balance returns the account balance as of hash (the balance recorded in
// its own sideband).
func (l *Ledger) Balance(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Amount128, error) {
	sb, ok, err := l.sidebandOf(tx, hash)
	if err != nil || !ok {
		return ledgertypes.Amount128{}, err
	}
	return sb.Balance, nil
}

// Latest returns account's chain head.
func (l *Ledger) Latest(tx kv.Tx, account ledgertypes.Hash256) (ledgertypes.Hash256, bool, error) {
	info, ok, err := getAccountInfo(tx, account)
	if err != nil || !ok {
		return ledgertypes.Hash256{}, false, err
	}
	return info.Head, true, nil
}

// Successor returns the block that follows root on its chain, if any has
// been processed yet.
func (l *Ledger) Successor(tx kv.Tx, root ledgertypes.Hash256) (ledgertypes.Hash256, bool, error) {
	sb, ok, err := l.sidebandOf(tx, root)
	if err != nil || !ok || sb.Successor.IsZero() {
		return ledgertypes.Hash256{}, false, err
	}
	return sb.Successor, true, nil
}

// BlockSource returns the hash this block received from: the source field
// of a legacy open/receive, or the Link of a state-open/state-receive.
// False for blocks that never source value (send, change, epoch).
func (l *Ledger) BlockSource(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Hash256, bool, error) {
	blk, _, ok, err := getBlock(tx, hash)
	if err != nil || !ok {
		return ledgertypes.Hash256{}, false, err
	}
	switch b := blk.(type) {
	case *ledgertypes.OpenBlock:
		return b.Source, true, nil
	case *ledgertypes.ReceiveBlock:
		return b.Source, true, nil
	case *ledgertypes.StateBlock:
		if b.Link.IsZero() || b.Link == l.cfg.EpochLink {
			return ledgertypes.Hash256{}, false, nil
		}
		if b.Previous.IsZero() {
			return b.Link, true, nil
		}
		prevSb, ok, err := l.sidebandOf(tx, b.Previous)
		if err != nil || !ok {
			return ledgertypes.Hash256{}, false, err
		}
		if b.Balance.Gt(prevSb.Balance) {
			return b.Link, true, nil
		}
		return ledgertypes.Hash256{}, false, nil
	default:
		return ledgertypes.Hash256{}, false, nil
	}
}

// BlockDestination returns the account a send moves value to: the
// Destination field of a legacy send, or the Link of a state-send. False
// for every other variant.
func (l *Ledger) BlockDestination(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Hash256, bool, error) {
	blk, _, ok, err := getBlock(tx, hash)
	if err != nil || !ok {
		return ledgertypes.Hash256{}, false, err
	}
	switch b := blk.(type) {
	case *ledgertypes.SendBlock:
		return b.Destination, true, nil
	case *ledgertypes.StateBlock:
		if b.Previous.IsZero() || b.Link.IsZero() {
			return ledgertypes.Hash256{}, false, nil
		}
		prevSb, ok, err := l.sidebandOf(tx, b.Previous)
		if err != nil || !ok {
			return ledgertypes.Hash256{}, false, err
		}
		if b.Balance.Lt(prevSb.Balance) {
			return b.Link, true, nil
		}
		return ledgertypes.Hash256{}, false, nil
	default:
		return ledgertypes.Hash256{}, false, nil
	}
}

// BlockConfirmed reports whether hash's height is at or below its
// account's confirmed height.
func (l *Ledger) BlockConfirmed(tx kv.Tx, hash ledgertypes.Hash256) (bool, error) {
	account, ok, err := ownerOf(tx, hash)
	if err != nil || !ok {
		return false, err
	}
	info, ok, err := getAccountInfo(tx, account)
	if err != nil || !ok {
		return false, err
	}
	sb, ok, err := l.sidebandOf(tx, hash)
	if err != nil || !ok {
		return false, err
	}
	return sb.Height <= info.ConfirmationHeight, nil
}

// ConfirmationHeightSet raises account's confirmed height. It refuses to
// lower it, since confirmation is monotonic.
func (l *Ledger) ConfirmationHeightSet(tx kv.RwTx, account ledgertypes.Hash256, height uint64) error {
	info, ok, err := getAccountInfo(tx, account)
	if err != nil || !ok {
		return err
	}
	if height <= info.ConfirmationHeight {
		return nil
	}
	info.ConfirmationHeight = height
	return putAccountInfo(tx, account, info)
}
