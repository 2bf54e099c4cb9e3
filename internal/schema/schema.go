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

// Package schema reads the meta.version cell and applies the monotonic
// migration sequence v2..SchemaVersion inside a single write transaction.
// Each migration rereads its source table(s) and rewrites the destination,
// so interrupting and re-running Upgrade is safe; the version only
// advances after every migration in the batch succeeds.
package schema

import (
	"context"
	"encoding/binary"
	"fmt"

	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// migration rewrites the store to version `to`. It must be idempotent: safe
// to re-run against a store already partway upgraded to `to`.
type migration struct {
	to   uint64
	name string
	run  func(tx kv.RwTx, genesis ledgertypes.Hash256) error
}

// migrations is ordered ascending by `to`. Gaps in the version sequence are
// intentional: the intervening versions have no table-shape consequence in
// this schema.
var migrations = []migration{
	{3, "derive rep_block per account", migrateDeriveRepBlock},
	{4, "rekey pending to destination+source", migrateRekeyPending},
	{5, "materialize successor pointers", migrateMaterializeSuccessors},
	{6, "populate block_count", migratePopulateBlockCount},
	{7, "drop stale unchecked entries", migrateDropStaleUnchecked},
	{9, "stored votes", migrateNoop},
	{12, "full sideband", migrateFullSideband},
	{14, "confirmation_height", migrateConfirmationHeight},
	{16, "configuration fields (version bump only)", migrateNoop},
	{17, "operational fields (version bump only)", migrateNoop},
}

// Upgrade reads meta.version and, if below kv.SchemaVersion, runs every
// migration whose target version is greater than the on-disk version, in
// ascending order, inside one write transaction.
func Upgrade(ctx context.Context, db kv.RwDB, genesis ledgertypes.Hash256, logger log.Logger) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	onDisk, err := readVersion(tx)
	if err != nil {
		return err
	}
	if onDisk > kv.SchemaVersion {
		return fmt.Errorf("schema: on-disk version %d exceeds supported %d", onDisk, kv.SchemaVersion)
	}
	if onDisk == kv.SchemaVersion {
		return nil
	}

	logger.Info("upgrading ledger schema", "from", onDisk, "to", kv.SchemaVersion)
	for _, m := range migrations {
		if m.to <= onDisk {
			continue
		}
		logger.Debug("running migration", "name", m.name, "to", m.to)
		if err := m.run(tx, genesis); err != nil {
			return fmt.Errorf("schema: migration %q (v%d): %w", m.name, m.to, err)
		}
	}
	if err := writeVersion(tx, kv.SchemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

func readVersion(tx kv.Tx) (uint64, error) {
	v, err := tx.GetOne(kv.Meta, kv.VersionKey)
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("schema: corrupt version cell (%d bytes)", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func writeVersion(tx kv.RwTx, version uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], version)
	return tx.Put(kv.Meta, kv.VersionKey, b[:])
}

func migrateNoop(kv.RwTx, ledgertypes.Hash256) error { return nil }

// accountRow pairs a decoded AccountInfo with the Accounts-table key it was
// read from (the 32-byte account), so rewrites don't need to reverse-engineer
// the account public key from the info payload.
type accountRow struct {
	key     []byte
	account ledgertypes.Hash256
	info    ledgertypes.AccountInfo
}

func allAccounts(tx kv.RwTx) ([]accountRow, error) {
	c, err := tx.Cursor(kv.Accounts)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	var rows []accountRow
	for k, v, err := c.First(); k != nil; k, v, err = c.Next() {
		if err != nil {
			return nil, err
		}
		info, err := ledgertypes.UnmarshalAccountInfo(v)
		if err != nil {
			return nil, err
		}
		var row accountRow
		row.key = append([]byte(nil), k...)
		copy(row.account[:], k[:32])
		row.info = info
		rows = append(rows, row)
	}
	return rows, nil
}

func putAccountInfo(tx kv.RwTx, key []byte, info ledgertypes.AccountInfo) error {
	return tx.Put(kv.Accounts, key, info.MarshalBinary())
}

// chainHashesBackward walks previous-pointers from head to open, returning
// hashes in head-to-open order (index 0 is head).
func chainHashesBackward(tx kv.RwTx, head, open ledgertypes.Hash256) ([]ledgertypes.Hash256, error) {
	var hashes []ledgertypes.Hash256
	h := head
	for {
		hashes = append(hashes, h)
		if h == open {
			break
		}
		raw, err := tx.GetOne(kv.Blocks, h[:])
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, fmt.Errorf("schema: chain broken at %s", h)
		}
		blk, _, _, err := decodeStoredBlock(raw)
		if err != nil {
			return nil, err
		}
		prev, ok := previousOf(blk)
		if !ok {
			break // reached an open block before matching `open` exactly
		}
		h = prev
	}
	return hashes, nil
}

func previousOf(blk ledgertypes.Block) (ledgertypes.Hash256, bool) {
	switch b := blk.(type) {
	case *ledgertypes.SendBlock:
		return b.Previous, true
	case *ledgertypes.ReceiveBlock:
		return b.Previous, true
	case *ledgertypes.ChangeBlock:
		return b.Previous, true
	case *ledgertypes.StateBlock:
		if b.Previous.IsZero() {
			return ledgertypes.ZeroHash, false
		}
		return b.Previous, true
	default: // OpenBlock has no previous
		return ledgertypes.ZeroHash, false
	}
}

func balanceOf(blk ledgertypes.Block) (ledgertypes.Amount128, bool) {
	switch b := blk.(type) {
	case *ledgertypes.SendBlock:
		return b.BalanceNew, true
	case *ledgertypes.StateBlock:
		return b.Balance, true
	default:
		return ledgertypes.Amount128{}, false
	}
}

// migrateDeriveRepBlock backfills AccountInfo.RepBlock for any account row
// where it is unset, by walking the chain back from Head until a block
// that sets a representative (open, change or state; Send and Receive are
// skipped) is found.
func migrateDeriveRepBlock(tx kv.RwTx, _ ledgertypes.Hash256) error {
	rows, err := allAccounts(tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if !row.info.RepBlock.IsZero() {
			continue
		}
		hashes, err := chainHashesBackward(tx, row.info.Head, row.info.OpenBlock)
		if err != nil {
			return err
		}
		for _, h := range hashes {
			raw, err := tx.GetOne(kv.Blocks, h[:])
			if err != nil || raw == nil {
				return err
			}
			blk, _, _, err := decodeStoredBlock(raw)
			if err != nil {
				return err
			}
			if _, isSend := blk.(*ledgertypes.SendBlock); isSend {
				continue
			}
			if _, isReceive := blk.(*ledgertypes.ReceiveBlock); isReceive {
				continue
			}
			row.info.RepBlock = h
			break
		}
		if err := putAccountInfo(tx, row.key, row.info); err != nil {
			return err
		}
	}
	return nil
}

// migrateRekeyPending is a no-op on this schema: the Pending table has
// always been keyed destination||source (internal/kv/tables.go), so there
// is nothing to rekey. Kept as an explicit step so the migration list stays
// a faithful 1:1 record of the upstream schema history even where this
// implementation's fixed modern layout already satisfies it.
func migrateRekeyPending(kv.RwTx, ledgertypes.Hash256) error { return nil }

// migrateMaterializeSuccessors scans every account chain backward from
// head to open, then writes each block's Sideband.Successor in a second,
// forward pass over the recovered hash order.
func migrateMaterializeSuccessors(tx kv.RwTx, _ ledgertypes.Hash256) error {
	rows, err := allAccounts(tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		hashes, err := chainHashesBackward(tx, row.info.Head, row.info.OpenBlock)
		if err != nil {
			return err
		}
		// hashes[0] is head, hashes[len-1] is open; successor of hashes[i]
		// is hashes[i-1].
		for i := len(hashes) - 1; i >= 0; i-- {
			h := hashes[i]
			successor := ledgertypes.ZeroHash
			if i > 0 {
				successor = hashes[i-1]
			}
			raw, err := tx.GetOne(kv.Blocks, h[:])
			if err != nil || raw == nil {
				return err
			}
			blk, sb, stateBlock, err := decodeStoredBlock(raw)
			if err != nil {
				return err
			}
			sb.Successor = successor
			if err := putStoredBlock(tx, h, blk, sb, stateBlock); err != nil {
				return err
			}
		}
	}
	return nil
}

// migratePopulateBlockCount recomputes AccountInfo.BlockCount as the length
// of the chain from open to head.
func migratePopulateBlockCount(tx kv.RwTx, _ ledgertypes.Hash256) error {
	rows, err := allAccounts(tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		hashes, err := chainHashesBackward(tx, row.info.Head, row.info.OpenBlock)
		if err != nil {
			return err
		}
		row.info.BlockCount = uint64(len(hashes))
		if err := putAccountInfo(tx, row.key, row.info); err != nil {
			return err
		}
	}
	return nil
}

// migrateDropStaleUnchecked clears the unchecked table: the on-disk
// duplicate-key semantics changed in the upstream schema at this version,
// invalidating any previously persisted entries.
func migrateDropStaleUnchecked(tx kv.RwTx, _ ledgertypes.Hash256) error {
	c, err := tx.Cursor(kv.Unchecked)
	if err != nil {
		return err
	}
	defer c.Close()
	var keys [][]byte
	for k, _, err := c.First(); k != nil; k, _, err = c.Next() {
		if err != nil {
			return err
		}
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := tx.Delete(kv.Unchecked, k); err != nil {
			return err
		}
	}
	return nil
}

// migrateFullSideband computes and writes {account, balance, height,
// successor, timestamp} for every block by walking each chain forward from
// its open/state-open block. Requires successors
// to already be materialized (migrateMaterializeSuccessors runs first).
func migrateFullSideband(tx kv.RwTx, _ ledgertypes.Hash256) error {
	rows, err := allAccounts(tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		height := uint64(1)
		h := row.info.OpenBlock
		balance := ledgertypes.Amount128{}
		for !h.IsZero() {
			raw, err := tx.GetOne(kv.Blocks, h[:])
			if err != nil || raw == nil {
				return err
			}
			blk, sb, stateBlock, err := decodeStoredBlock(raw)
			if err != nil {
				return err
			}
			sb.Height = height
			sb.Account = row.account
			if bal, ok := balanceOf(blk); ok {
				balance = bal
			}
			sb.Balance = balance
			if err := putStoredBlock(tx, h, blk, sb, stateBlock); err != nil {
				return err
			}
			if h == row.info.Head {
				break
			}
			height++
			h = sb.Successor
		}
	}
	return nil
}

// migrateConfirmationHeight extends AccountInfo with ConfirmationHeight,
// defaulting to 0, except the genesis account which bootstraps at 1.
func migrateConfirmationHeight(tx kv.RwTx, genesis ledgertypes.Hash256) error {
	rows, err := allAccounts(tx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.info.ConfirmationHeight != 0 {
			continue
		}
		if row.info.OpenBlock == genesis {
			row.info.ConfirmationHeight = 1
		}
		if err := putAccountInfo(tx, row.key, row.info); err != nil {
			return err
		}
	}
	return nil
}

// decodeStoredBlock is a thin wrapper returning the stateBlock flag
// alongside ledgertypes.SplitStored's result, since most callers in this
// file branch on it.
func decodeStoredBlock(raw []byte) (ledgertypes.Block, ledgertypes.Sideband, bool, error) {
	blk, sb, err := ledgertypes.SplitStored(raw)
	if err != nil {
		return nil, ledgertypes.Sideband{}, false, err
	}
	return blk, sb, blk.Type() == ledgertypes.BlockState, nil
}

func putStoredBlock(tx kv.RwTx, hash ledgertypes.Hash256, blk ledgertypes.Block, sb ledgertypes.Sideband, _ bool) error {
	out, err := ledgertypes.JoinStored(blk, sb)
	if err != nil {
		return err
	}
	return tx.Put(kv.Blocks, hash[:], out)
}
