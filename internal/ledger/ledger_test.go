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
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/kv/memdb"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// newAccount generates an ed25519 keypair and returns its public key as a
// Hash256 account identifier alongside the private key used to sign blocks.
func newAccount(t *testing.T) (ledgertypes.Hash256, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var h ledgertypes.Hash256
	copy(h[:], pub)
	return h, priv
}

func newMemTx(t *testing.T) kv.RwTx {
	t.Helper()
	db := memdb.New(kv.LedgerTables)
	tx, err := db.BeginRw(context.Background())
	require.NoError(t, err)
	t.Cleanup(tx.Rollback)
	return tx
}

// legacyGenesisLedger opens a legacy (OpenBlock) genesis and returns the
// ledger, the genesis account's public key, the genesis block's own hash
// (the value a first send's Previous must reference), and the signing key.
func legacyGenesisLedger(t *testing.T, tx kv.RwTx, supply ledgertypes.Amount128) (*Ledger, ledgertypes.Hash256, ledgertypes.Hash256, ed25519.PrivateKey) {
	t.Helper()
	account, priv := newAccount(t)
	genesis := ledgertypes.NewOpenBlockBuilder().
		Source(account).
		Representative(account).
		Account(account).
		Sign(priv).
		Build()
	l := New(Config{Genesis: genesis, GenesisSupply: supply})
	require.NoError(t, l.Initialize(tx))
	return l, account, genesis.Hash(), priv
}

func TestGenesisOpen(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, account, _, _ := legacyGenesisLedger(t, tx, supply)

	info, ok, err := l.AccountInfo(tx, account)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, supply, info.Balance)
	require.Equal(t, uint64(1), info.BlockCount)
	require.Equal(t, ledgertypes.Epoch0, info.Epoch)

	weight, err := l.Weight(tx, account)
	require.NoError(t, err)
	require.Equal(t, supply, weight)
}

func TestLegacySendAndOpen(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, genesisAccount, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	dest, destPriv := newAccount(t)
	sent := ledgertypes.AmountFromUint64(400_000)
	remaining := supply.Sub(sent)

	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(dest).
		BalanceNew(remaining).
		Sign(genesisPriv).
		Build()

	result, meta, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)
	require.True(t, meta.Pending)
	require.Equal(t, sent, meta.Amount)

	genesisBalance, err := l.AccountBalance(tx, genesisAccount)
	require.NoError(t, err)
	require.Equal(t, remaining, genesisBalance)

	open := ledgertypes.NewOpenBlockBuilder().
		Source(send.Hash()).
		Representative(dest).
		Account(dest).
		Sign(destPriv).
		Build()

	result, meta, err = l.Process(tx, open)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)
	require.Equal(t, sent, meta.Amount)

	destBalance, err := l.AccountBalance(tx, dest)
	require.NoError(t, err)
	require.Equal(t, sent, destBalance)

	weight, err := l.Weight(tx, dest)
	require.NoError(t, err)
	require.Equal(t, sent, weight)
}

func TestRollbackSendUndoesPendingAndWeight(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, genesisAccount, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	dest, _ := newAccount(t)
	remaining := supply.Sub(ledgertypes.AmountFromUint64(250_000))
	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(dest).
		BalanceNew(remaining).
		Sign(genesisPriv).
		Build()

	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	_, pendingOk, err := getPending(tx, dest, send.Hash())
	require.NoError(t, err)
	require.True(t, pendingOk, "send must have created a pending entry for dest")

	require.NoError(t, l.Rollback(tx, send.Hash()))

	info, ok, err := l.AccountInfo(tx, genesisAccount)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, supply, info.Balance)
	require.Equal(t, genesisHead, info.Head)
	require.Equal(t, uint64(1), info.BlockCount)

	weight, err := l.Weight(tx, genesisAccount)
	require.NoError(t, err)
	require.Equal(t, supply, weight)

	exists, err := blockExists(tx, send.Hash())
	require.NoError(t, err)
	require.False(t, exists)

	_, pendingOk, err = getPending(tx, dest, send.Hash())
	require.NoError(t, err)
	require.False(t, pendingOk, "rolling back the send must remove the pending entry it created")
}

func TestRollbackSendFailsAfterPendingConsumed(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, _, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	dest, destPriv := newAccount(t)
	remaining := supply.Sub(ledgertypes.AmountFromUint64(250_000))
	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(dest).
		BalanceNew(remaining).
		Sign(genesisPriv).
		Build()
	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	open := ledgertypes.NewOpenBlockBuilder().
		Source(send.Hash()).
		Representative(dest).
		Account(dest).
		Sign(destPriv).
		Build()
	result, _, err = l.Process(tx, open)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	err = l.Rollback(tx, send.Hash())
	require.ErrorIs(t, err, ErrPendingConsumed)
}

// TestRollbackOpenRestoresPendingExactly exercises the scenario where
// rolling back an open block must recreate the pending entry it consumed,
// byte-for-byte: same source account, amount and epoch as before the open
// was processed, with the account itself fully unwound.
func TestRollbackOpenRestoresPendingExactly(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, genesisAccount, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	dest, destPriv := newAccount(t)
	sent := ledgertypes.AmountFromUint64(250_000)
	remaining := supply.Sub(sent)
	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(dest).
		BalanceNew(remaining).
		Sign(genesisPriv).
		Build()
	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	open := ledgertypes.NewOpenBlockBuilder().
		Source(send.Hash()).
		Representative(dest).
		Account(dest).
		Sign(destPriv).
		Build()
	result, _, err = l.Process(tx, open)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	require.NoError(t, l.Rollback(tx, open.Hash()))

	// The account must be fully unwound: no account_info, no frontier, the
	// open block itself gone.
	_, ok, err := l.AccountInfo(tx, dest)
	require.NoError(t, err)
	require.False(t, ok)

	exists, err := blockExists(tx, open.Hash())
	require.NoError(t, err)
	require.False(t, exists)

	weight, err := l.Weight(tx, dest)
	require.NoError(t, err)
	require.True(t, weight.IsZero())

	// The pending entry consumed by the open must be restored exactly:
	// same source account (genesis, not dest's own representative), same
	// amount, same epoch.
	pending, ok, err := getPending(tx, dest, send.Hash())
	require.NoError(t, err)
	require.True(t, ok, "rolling back the open must restore pending(dest, send_hash)")
	require.Equal(t, genesisAccount, pending.Source)
	require.Equal(t, sent, pending.Amount)
	require.Equal(t, ledgertypes.Epoch0, pending.Epoch)
}

// TestRollbackStateOpenRestoresPendingExactly is the state-block analogue
// of TestRollbackOpenRestoresPendingExactly: a state-open's Link is the
// consumed send's hash rather than a dedicated Source field.
func TestRollbackStateOpenRestoresPendingExactly(t *testing.T) {
	tx := newMemTx(t)
	genesisAccount, genesisPriv := newAccount(t)
	supply := ledgertypes.AmountFromUint64(5_000_000)

	genesis := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Representative(genesisAccount).
		Balance(supply).
		Sign(genesisPriv).
		Build()
	l := New(Config{Genesis: genesis, GenesisSupply: supply})
	require.NoError(t, l.Initialize(tx))

	dest, destPriv := newAccount(t)
	sent := ledgertypes.AmountFromUint64(1_200_000)
	remaining := supply.Sub(sent)
	send := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Previous(genesis.Hash()).
		Representative(genesisAccount).
		Balance(remaining).
		Link(dest).
		Sign(genesisPriv).
		Build()
	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	open := ledgertypes.NewStateBlockBuilder().
		Account(dest).
		Representative(dest).
		Balance(sent).
		Link(send.Hash()).
		Sign(destPriv).
		Build()
	result, _, err = l.Process(tx, open)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	require.NoError(t, l.Rollback(tx, open.Hash()))

	_, ok, err := l.AccountInfo(tx, dest)
	require.NoError(t, err)
	require.False(t, ok)

	pending, ok, err := getPending(tx, dest, send.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, genesisAccount, pending.Source)
	require.Equal(t, sent, pending.Amount)
	require.Equal(t, ledgertypes.Epoch0, pending.Epoch)
}

func TestStateSendReceive(t *testing.T) {
	tx := newMemTx(t)
	genesisAccount, genesisPriv := newAccount(t)
	supply := ledgertypes.AmountFromUint64(5_000_000)

	genesis := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Representative(genesisAccount).
		Balance(supply).
		Sign(genesisPriv).
		Build()

	l := New(Config{Genesis: genesis, GenesisSupply: supply})
	require.NoError(t, l.Initialize(tx))

	dest, destPriv := newAccount(t)
	sent := ledgertypes.AmountFromUint64(1_200_000)
	remaining := supply.Sub(sent)

	send := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Previous(genesis.Hash()).
		Representative(genesisAccount).
		Balance(remaining).
		Link(dest).
		Sign(genesisPriv).
		Build()

	result, meta, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)
	require.True(t, meta.StateIsSend)
	require.Equal(t, sent, meta.Amount)

	open := ledgertypes.NewStateBlockBuilder().
		Account(dest).
		Representative(dest).
		Balance(sent).
		Link(send.Hash()).
		Sign(destPriv).
		Build()

	result, meta, err = l.Process(tx, open)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)
	require.Equal(t, sent, meta.Amount)

	destBalance, err := l.AccountBalance(tx, dest)
	require.NoError(t, err)
	require.Equal(t, sent, destBalance)
}

func TestForkDetection(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, _, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	dest1, _ := newAccount(t)
	send1 := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(dest1).
		BalanceNew(supply.Sub(ledgertypes.AmountFromUint64(100))).
		Sign(genesisPriv).
		Build()
	result, _, err := l.Process(tx, send1)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	dest2, _ := newAccount(t)
	send2 := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead). // stale previous: genesis's head has moved to send1
		Destination(dest2).
		BalanceNew(supply.Sub(ledgertypes.AmountFromUint64(200))).
		Sign(genesisPriv).
		Build()
	result, _, err = l.Process(tx, send2)
	require.NoError(t, err)
	require.Equal(t, ResultFork, result)
}

func TestDoubleProcessReturnsOld(t *testing.T) {
	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l, _, genesisHead, genesisPriv := legacyGenesisLedger(t, tx, supply)

	dest, _ := newAccount(t)
	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesisHead).
		Destination(dest).
		BalanceNew(supply.Sub(ledgertypes.AmountFromUint64(1))).
		Sign(genesisPriv).
		Build()

	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	result, _, err = l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultOld, result)
}

type rejectAllWork struct{}

func (rejectAllWork) Verify(ledgertypes.Hash256, ledgertypes.Work64) bool { return false }

func TestInsufficientWorkGatedByConfiguredVerifier(t *testing.T) {
	account, priv := newAccount(t)
	genesis := ledgertypes.NewOpenBlockBuilder().
		Source(account).
		Representative(account).
		Account(account).
		Sign(priv).
		Build()

	tx := newMemTx(t)
	supply := ledgertypes.AmountFromUint64(1_000_000)
	l := New(Config{Genesis: genesis, GenesisSupply: supply, WorkVerifier: rejectAllWork{}})
	require.NoError(t, l.Initialize(tx))

	dest, _ := newAccount(t)
	send := ledgertypes.NewSendBlockBuilder().
		Previous(genesis.Hash()).
		Destination(dest).
		BalanceNew(supply.Sub(ledgertypes.AmountFromUint64(1))).
		Sign(priv).
		Build()

	result, _, err := l.Process(tx, send)
	require.NoError(t, err)
	require.Equal(t, ResultInsufficientWork, result)
}

func TestEpochUpgradeGatesReceive(t *testing.T) {
	tx := newMemTx(t)
	genesisAccount, genesisPriv := newAccount(t)
	supply := ledgertypes.AmountFromUint64(10_000_000)

	genesis := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Representative(genesisAccount).
		Balance(supply).
		Sign(genesisPriv).
		Build()

	epochLink := ledgertypes.Hash256{0xee}
	_, epochSignerPriv := newAccount(t)

	l := New(Config{
		Genesis:       genesis,
		GenesisSupply: supply,
		EpochLink:     epochLink,
		EpochSigner:   epochSignerPriv.Public().(ed25519.PublicKey),
	})
	require.NoError(t, l.Initialize(tx))

	dest, destPriv := newAccount(t)
	firstSent := ledgertypes.AmountFromUint64(1_000)
	afterFirstSend := supply.Sub(firstSent)

	send1 := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Previous(genesis.Hash()).
		Representative(genesisAccount).
		Balance(afterFirstSend).
		Link(dest).
		Sign(genesisPriv).
		Build()
	result, _, err := l.Process(tx, send1)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	open := ledgertypes.NewStateBlockBuilder().
		Account(dest).
		Representative(dest).
		Balance(firstSent).
		Link(send1.Hash()).
		Sign(destPriv).
		Build()
	result, _, err = l.Process(tx, open)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	epochUpgrade := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Previous(send1.Hash()).
		Representative(genesisAccount).
		Balance(afterFirstSend).
		Link(epochLink).
		Sign(epochSignerPriv).
		Build()
	result, _, err = l.Process(tx, epochUpgrade)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	genesisInfo, ok, err := l.AccountInfo(tx, genesisAccount)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ledgertypes.Epoch1, genesisInfo.Epoch)

	secondSent := ledgertypes.AmountFromUint64(2_000)
	send2 := ledgertypes.NewStateBlockBuilder().
		Account(genesisAccount).
		Previous(epochUpgrade.Hash()).
		Representative(genesisAccount).
		Balance(afterFirstSend.Sub(secondSent)).
		Link(dest).
		Sign(genesisPriv).
		Build()
	result, _, err = l.Process(tx, send2)
	require.NoError(t, err)
	require.Equal(t, ResultProgress, result)

	receive := ledgertypes.NewStateBlockBuilder().
		Account(dest).
		Previous(open.Hash()).
		Representative(dest).
		Balance(firstSent.Add(secondSent)).
		Link(send2.Hash()).
		Sign(destPriv).
		Build()
	result, _, err = l.Process(tx, receive)
	require.NoError(t, err)
	require.Equal(t, ResultUnreceivable, result)
}
