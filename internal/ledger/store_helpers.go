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

func getAccountInfo(tx kv.Tx, account ledgertypes.Hash256) (ledgertypes.AccountInfo, bool, error) {
	v, err := tx.GetOne(kv.Accounts, ledgertypes.AccountKey(account))
	if err != nil || v == nil {
		return ledgertypes.AccountInfo{}, false, err
	}
	info, err := ledgertypes.UnmarshalAccountInfo(v)
	return info, err == nil, err
}

func putAccountInfo(tx kv.RwTx, account ledgertypes.Hash256, info ledgertypes.AccountInfo) error {
	return tx.Put(kv.Accounts, ledgertypes.AccountKey(account), info.MarshalBinary())
}

func deleteAccountInfo(tx kv.RwTx, account ledgertypes.Hash256) error {
	return tx.Delete(kv.Accounts, ledgertypes.AccountKey(account))
}

func getBlock(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Block, ledgertypes.Sideband, bool, error) {
	v, err := tx.GetOne(kv.Blocks, hash[:])
	if err != nil || v == nil {
		return nil, ledgertypes.Sideband{}, false, err
	}
	blk, sb, err := ledgertypes.SplitStored(v)
	if err != nil {
		return nil, ledgertypes.Sideband{}, false, err
	}
	return blk, sb, true, nil
}

func putBlock(tx kv.RwTx, hash ledgertypes.Hash256, blk ledgertypes.Block, sb ledgertypes.Sideband) error {
	raw, err := ledgertypes.JoinStored(blk, sb)
	if err != nil {
		return err
	}
	return tx.Put(kv.Blocks, hash[:], raw)
}

func deleteBlock(tx kv.RwTx, hash ledgertypes.Hash256) error {
	return tx.Delete(kv.Blocks, hash[:])
}

func blockExists(tx kv.Tx, hash ledgertypes.Hash256) (bool, error) {
	return tx.Has(kv.Blocks, hash[:])
}

// setSuccessor rewrites prev's sideband.Successor, a no-op if prev is zero
// (the block being linked has no predecessor on its chain, e.g. an open).
func setSuccessor(tx kv.RwTx, prev ledgertypes.Hash256, successor ledgertypes.Hash256) error {
	if prev.IsZero() {
		return nil
	}
	blk, sb, ok, err := getBlock(tx, prev)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	sb.Successor = successor
	return putBlock(tx, prev, blk, sb)
}

func getPending(tx kv.Tx, destination, source ledgertypes.Hash256) (ledgertypes.PendingEntry, bool, error) {
	v, err := tx.GetOne(kv.Pending, ledgertypes.PendingKey(destination, source))
	if err != nil || v == nil {
		return ledgertypes.PendingEntry{}, false, err
	}
	entry, err := ledgertypes.UnmarshalPendingEntry(v)
	return entry, err == nil, err
}

func putPending(tx kv.RwTx, destination, source ledgertypes.Hash256, entry ledgertypes.PendingEntry) error {
	return tx.Put(kv.Pending, ledgertypes.PendingKey(destination, source), entry.MarshalBinary())
}

func deletePending(tx kv.RwTx, destination, source ledgertypes.Hash256) error {
	return tx.Delete(kv.Pending, ledgertypes.PendingKey(destination, source))
}

func getWeight(tx kv.Tx, rep ledgertypes.Hash256) (ledgertypes.Amount128, error) {
	v, err := tx.GetOne(kv.Representation, rep[:])
	if err != nil {
		return ledgertypes.Amount128{}, err
	}
	if v == nil {
		return ledgertypes.Amount128{}, nil
	}
	var b [16]byte
	copy(b[:], v)
	return ledgertypes.AmountFromBig(b), nil
}

func putWeight(tx kv.RwTx, rep ledgertypes.Hash256, weight ledgertypes.Amount128) error {
	if weight.IsZero() {
		return tx.Delete(kv.Representation, rep[:])
	}
	w := weight.Bytes16()
	return tx.Put(kv.Representation, rep[:], w[:])
}

func addWeight(tx kv.RwTx, rep ledgertypes.Hash256, delta ledgertypes.Amount128) error {
	if rep.IsZero() || delta.IsZero() {
		return nil
	}
	cur, err := getWeight(tx, rep)
	if err != nil {
		return err
	}
	return putWeight(tx, rep, cur.Add(delta))
}

func subWeight(tx kv.RwTx, rep ledgertypes.Hash256, delta ledgertypes.Amount128) error {
	if rep.IsZero() || delta.IsZero() {
		return nil
	}
	cur, err := getWeight(tx, rep)
	if err != nil {
		return err
	}
	return putWeight(tx, rep, cur.Sub(delta))
}

func getFrontier(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Hash256, bool, error) {
	v, err := tx.GetOne(kv.Frontiers, hash[:])
	if err != nil || v == nil {
		return ledgertypes.Hash256{}, false, err
	}
	var account ledgertypes.Hash256
	copy(account[:], v)
	return account, true, nil
}

func putFrontier(tx kv.RwTx, hash, account ledgertypes.Hash256) error {
	return tx.Put(kv.Frontiers, hash[:], account[:])
}

func deleteFrontier(tx kv.RwTx, hash ledgertypes.Hash256) error {
	return tx.Delete(kv.Frontiers, hash[:])
}

// ownerOf resolves the account that owns the chain containing hash, via
// the sideband of the block itself. Every stored block (legacy or state)
// carries its owning account in the sideband, so this works uniformly
// even though legacy blocks don't carry Account as a hashable field.
func ownerOf(tx kv.Tx, hash ledgertypes.Hash256) (ledgertypes.Hash256, bool, error) {
	_, sb, ok, err := getBlock(tx, hash)
	if err != nil || !ok {
		return ledgertypes.Hash256{}, false, err
	}
	return sb.Account, true, nil
}
