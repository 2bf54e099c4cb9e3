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

package unchecked

import (
	"context"
	"crypto/ed25519"
	"testing"

	log "github.com/erigontech/erigon-lib/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/kv/memdb"
	"github.com/erigontech/nanoledger/internal/ledger"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

func newMemTx(t *testing.T) kv.RwTx {
	t.Helper()
	db := memdb.New(kv.LedgerTables)
	tx, err := db.BeginRw(context.Background())
	require.NoError(t, err)
	t.Cleanup(tx.Rollback)
	return tx
}

// legacyGenesisLedger seeds an open-block genesis and returns the ledger,
// its account, the genesis block's own hash (what a SendBlock's Previous
// must reference), and the signing key.
func legacyGenesisLedger(t *testing.T, tx kv.RwTx, supply ledgertypes.Amount128) (*ledger.Ledger, ledgertypes.Hash256, ledgertypes.Hash256, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var account ledgertypes.Hash256
	copy(account[:], pub)

	genesis := ledgertypes.NewOpenBlockBuilder().
		Source(account).
		Representative(account).
		Account(account).
		Sign(priv).
		Build()

	l := ledger.New(ledger.Config{Genesis: genesis, GenesisSupply: supply})
	require.NoError(t, l.Initialize(tx))
	return l, account, genesis.Hash(), priv
}

func TestPutGetDel(t *testing.T) {
	tx := newMemTx(t)
	b := New(log.Root())

	dep := ledgertypes.Hash256{1}
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	blk := ledgertypes.NewChangeBlockBuilder().
		Previous(ledgertypes.Hash256{2}).
		Representative(ledgertypes.Hash256{3}).
		Sign(priv).
		Build()

	require.NoError(t, b.Put(tx, dep, blk, SigUnknown, 100))

	entries, err := b.Get(tx, dep)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, blk.Hash(), entries[0].Block.Hash())
	require.Equal(t, SigUnknown, entries[0].State)
	require.Equal(t, uint64(100), entries[0].Timestamp)

	n, err := b.Count(tx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	require.NoError(t, b.Del(tx, dep, blk.Hash()))
	entries, err = b.Get(tx, dep)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPutDuplicateKeepsOneEntry(t *testing.T) {
	tx := newMemTx(t)
	b := New(log.Root())

	dep := ledgertypes.Hash256{5}
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	blk := ledgertypes.NewChangeBlockBuilder().
		Previous(ledgertypes.Hash256{6}).
		Representative(ledgertypes.Hash256{7}).
		Sign(priv).
		Build()

	require.NoError(t, b.Put(tx, dep, blk, SigUnknown, 1))
	require.NoError(t, b.Put(tx, dep, blk, SigValid, 2))

	entries, err := b.Get(tx, dep)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, SigValid, entries[0].State, "second Put overwrites the same composite key")
}

func TestGetOnlyReturnsEntriesForExactDependency(t *testing.T) {
	tx := newMemTx(t)
	b := New(log.Root())

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mk := func(prev byte) ledgertypes.Block {
		return ledgertypes.NewChangeBlockBuilder().
			Previous(ledgertypes.Hash256{prev}).
			Representative(ledgertypes.Hash256{9}).
			Sign(priv).
			Build()
	}

	depA := ledgertypes.Hash256{0x10}
	depB := ledgertypes.Hash256{0x11}
	require.NoError(t, b.Put(tx, depA, mk(1), SigUnknown, 1))
	require.NoError(t, b.Put(tx, depA, mk(2), SigUnknown, 1))
	require.NoError(t, b.Put(tx, depB, mk(3), SigUnknown, 1))

	entries, err := b.Get(tx, depA)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entries, err = b.Get(tx, depB)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCleanupDropsEntriesOlderThanTTL(t *testing.T) {
	tx := newMemTx(t)
	b := New(log.Root())

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	old := ledgertypes.NewChangeBlockBuilder().Previous(ledgertypes.Hash256{1}).Representative(ledgertypes.Hash256{2}).Sign(priv).Build()
	fresh := ledgertypes.NewChangeBlockBuilder().Previous(ledgertypes.Hash256{3}).Representative(ledgertypes.Hash256{4}).Sign(priv).Build()

	dep := ledgertypes.Hash256{0x20}
	require.NoError(t, b.Put(tx, dep, old, SigUnknown, 10))
	require.NoError(t, b.Put(tx, dep, fresh, SigUnknown, 1000))

	dropped, err := b.Cleanup(tx, 1000, 100)
	require.NoError(t, err)
	require.Equal(t, 1, dropped)

	entries, err := b.Get(tx, dep)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, fresh.Hash(), entries[0].Block.Hash())
}

func TestCleanupSecondTickAtSameCutoffSkipsFreshShards(t *testing.T) {
	tx := newMemTx(t)
	b := New(log.Root())

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	blk := ledgertypes.NewChangeBlockBuilder().Previous(ledgertypes.Hash256{1}).Representative(ledgertypes.Hash256{2}).Sign(priv).Build()
	dep := ledgertypes.Hash256{0x30}
	require.NoError(t, b.Put(tx, dep, blk, SigUnknown, 1000))

	dropped, err := b.Cleanup(tx, 1000, 100)
	require.NoError(t, err)
	require.Equal(t, 0, dropped)

	dropped, err = b.Cleanup(tx, 1000, 100)
	require.NoError(t, err)
	require.Equal(t, 0, dropped)

	entries, err := b.Get(tx, dep)
	require.NoError(t, err)
	require.Len(t, entries, 1, "second tick at an unchanged cutoff must not have dropped the still-fresh entry")
}

func TestFeedForwardResubmitsParkedBlockOnceDependencyCommits(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, genesisAccount, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	_, destPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var destAccount ledgertypes.Hash256
	copy(destAccount[:], destPriv.Public().(ed25519.PublicKey))

	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(destAccount).
		BalanceNew(ledgertypes.AmountFromUint64(900_000)).
		Sign(genesisPriv).
		Build()

	open := ledgertypes.NewOpenBlockBuilder().
		Source(send.Hash()).
		Representative(destAccount).
		Account(destAccount).
		Sign(destPriv).
		Build()

	b := New(log.Root())
	// The open arrives before its source send: park it keyed on the send's
	// hash, the dependency it is waiting on.
	require.NoError(t, b.Put(tx, send.Hash(), open, SigUnknown, 1))

	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ledger.ResultProgress, result)

	require.NoError(t, b.FeedForward(context.Background(), tx, l, send.Hash()))

	entries, err := b.Get(tx, send.Hash())
	require.NoError(t, err)
	require.Empty(t, entries, "resolved entry must be removed from the buffer")

	info, ok, err := l.AccountInfo(tx, destAccount)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, open.Hash(), info.Head)

	_ = genesisAccount
}

func TestFeedForwardLeavesGapResultsParked(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, _, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	_, destPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var destAccount ledgertypes.Hash256
	copy(destAccount[:], destPriv.Public().(ed25519.PublicKey))

	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(destAccount).
		BalanceNew(ledgertypes.AmountFromUint64(900_000)).
		Sign(genesisPriv).
		Build()

	// A receive for an account that was never opened: its previous can
	// never resolve, so it must stay parked rather than being dropped.
	unopenedPrev := ledgertypes.Hash256{0x99}
	receive := ledgertypes.NewReceiveBlockBuilder().
		Previous(unopenedPrev).
		Source(send.Hash()).
		Sign(destPriv).
		Build()

	b := New(log.Root())
	require.NoError(t, b.Put(tx, send.Hash(), receive, SigUnknown, 1))

	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ledger.ResultProgress, result)

	require.NoError(t, b.FeedForward(context.Background(), tx, l, send.Hash()))

	entries, err := b.Get(tx, send.Hash())
	require.NoError(t, err)
	require.Len(t, entries, 1, "a gap result must leave the entry parked, not drop it")
}

func TestFeedForwardDropsTerminalNonProgressResult(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, genesisAccount, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(genesisAccount).
		BalanceNew(ledgertypes.AmountFromUint64(900_000)).
		Sign(genesisPriv).
		Build()

	// Already-processed duplicate: once the real send commits, replaying
	// the identical block again resolves to ResultOld, a terminal result.
	dup := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(genesisAccount).
		BalanceNew(ledgertypes.AmountFromUint64(900_000)).
		Sign(genesisPriv).
		Build()
	require.Equal(t, send.Hash(), dup.Hash())

	b := New(log.Root())
	require.NoError(t, b.Put(tx, genesisHead, dup, SigUnknown, 1))

	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ledger.ResultProgress, result)

	require.NoError(t, b.FeedForward(context.Background(), tx, l, genesisHead))

	entries, err := b.Get(tx, genesisHead)
	require.NoError(t, err)
	require.Empty(t, entries, "a terminal non-progress result must drop the parked entry")
}
