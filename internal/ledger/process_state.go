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
	"fmt"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// processState dispatches a state block to its subtype handler. Unlike the
// four legacy variants, a state block's signing key depends on its subtype:
// every subtype but epoch-upgrade is signed by the account itself, so the
// signature check is deferred until after classification.
func (l *Ledger) processState(tx kv.RwTx, b *ledgertypes.StateBlock) (Result, ProcessMeta, error) {
	hash := b.Hash()

	if b.Previous.IsZero() {
		return l.processStateOpen(tx, b, hash)
	}

	account, ok, err := ownerOf(tx, b.Previous)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultGapPrevious, ProcessMeta{}, nil
	}
	if b.Account != account {
		return ResultFork, ProcessMeta{}, nil
	}
	info, ok, err := getAccountInfo(tx, account)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok || info.Head != b.Previous {
		return ResultFork, ProcessMeta{}, nil
	}

	switch ledgertypes.ClassifyState(b, info.Balance, true, l.cfg.EpochLink) {
	case ledgertypes.StateSubtypeSend:
		if !verifySig(account, hash, b.Signature()) {
			return ResultBadSignature, ProcessMeta{}, nil
		}
		return l.processStateSend(tx, b, account, info, hash)
	case ledgertypes.StateSubtypeReceive:
		if !verifySig(account, hash, b.Signature()) {
			return ResultBadSignature, ProcessMeta{}, nil
		}
		return l.processStateReceive(tx, b, account, info, hash)
	case ledgertypes.StateSubtypeChange:
		if !verifySig(account, hash, b.Signature()) {
			return ResultBadSignature, ProcessMeta{}, nil
		}
		return l.processStateChange(tx, b, account, info, hash)
	case ledgertypes.StateSubtypeEpoch:
		if !verifySigKey(l.cfg.EpochSigner, hash, b.Signature()) {
			return ResultBadSignature, ProcessMeta{}, nil
		}
		return l.processStateEpoch(tx, b, account, info, hash)
	default:
		return 0, ProcessMeta{}, fmt.Errorf("ledger: unreachable state subtype for block with existing previous")
	}
}

// processStateOpen handles a state block with a zero Previous: either a
// pending-based open (Link is the source send's hash, signed by the new
// account) or an epoch-open (Link is the configured epoch marker, signed
// by the epoch authority, opening the account directly at a raised epoch
// with zero balance).
func (l *Ledger) processStateOpen(tx kv.RwTx, b *ledgertypes.StateBlock, hash ledgertypes.Hash256) (Result, ProcessMeta, error) {
	if b.Account == l.cfg.BurnAccount {
		return ResultOpenedBurnAccount, ProcessMeta{}, nil
	}
	if _, ok, err := getAccountInfo(tx, b.Account); err != nil {
		return 0, ProcessMeta{}, err
	} else if ok {
		return ResultFork, ProcessMeta{}, nil
	}

	if !b.Link.IsZero() && b.Link == l.cfg.EpochLink {
		return l.processStateEpochOpen(tx, b, hash)
	}
	if b.Link.IsZero() {
		// a state open with no pending source and no epoch marker cannot
		// be admitted: there is nothing to derive its balance from.
		return ResultGapSource, ProcessMeta{}, nil
	}

	if !verifySig(b.Account, hash, b.Signature()) {
		return ResultBadSignature, ProcessMeta{}, nil
	}
	if ok, err := blockExists(tx, b.Link); err != nil {
		return 0, ProcessMeta{}, err
	} else if !ok {
		return ResultGapSource, ProcessMeta{}, nil
	}
	pending, ok, err := getPending(tx, b.Account, b.Link)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultUnreceivable, ProcessMeta{}, nil
	}
	if b.Balance.Cmp(pending.Amount) != 0 {
		return ResultBalanceMismatch, ProcessMeta{}, nil
	}
	if err := deletePending(tx, b.Account, b.Link); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := addWeight(tx, b.Representative, b.Balance); err != nil {
		return 0, ProcessMeta{}, err
	}

	ts := now()
	info := ledgertypes.AccountInfo{
		Head: hash, RepBlock: hash, OpenBlock: hash,
		Representative: b.Representative,
		Balance:        b.Balance,
		BlockCount:     1,
		Epoch:          pending.Epoch,
		ModifiedTime:   ts,
	}
	if err := putAccountInfo(tx, b.Account, info); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockState, Account: b.Account, Balance: b.Balance, Height: 1, Timestamp: ts}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: b.Account, Amount: b.Balance}, nil
}

func (l *Ledger) processStateEpochOpen(tx kv.RwTx, b *ledgertypes.StateBlock, hash ledgertypes.Hash256) (Result, ProcessMeta, error) {
	if !b.Balance.IsZero() {
		return ResultBalanceMismatch, ProcessMeta{}, nil
	}
	if !verifySigKey(l.cfg.EpochSigner, hash, b.Signature()) {
		return ResultBadSignature, ProcessMeta{}, nil
	}
	ts := now()
	info := ledgertypes.AccountInfo{
		Head: hash, RepBlock: hash, OpenBlock: hash,
		Representative: b.Representative,
		Balance:        b.Balance,
		BlockCount:     1,
		Epoch:          ledgertypes.Epoch1,
		ModifiedTime:   ts,
	}
	if err := putAccountInfo(tx, b.Account, info); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockState, Account: b.Account, Balance: b.Balance, Height: 1, Timestamp: ts}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: b.Account}, nil
}

func (l *Ledger) processStateSend(tx kv.RwTx, b *ledgertypes.StateBlock, account ledgertypes.Hash256, info ledgertypes.AccountInfo, hash ledgertypes.Hash256) (Result, ProcessMeta, error) {
	if b.Link.IsZero() {
		return ResultGapSource, ProcessMeta{}, nil
	}
	amount := info.Balance.Sub(b.Balance)
	if err := putPending(tx, b.Link, hash, ledgertypes.PendingEntry{Source: account, Amount: amount, Epoch: info.Epoch}); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := l.applyStateRepresentativeChange(tx, info, b.Representative, b.Balance); err != nil {
		return 0, ProcessMeta{}, err
	}
	newInfo := l.advanceStateInfo(info, hash, b.Representative, b.Balance)
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := setSuccessor(tx, b.Previous, hash); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockState, Account: account, Balance: b.Balance, Height: newInfo.BlockCount, Timestamp: newInfo.ModifiedTime}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: account, Amount: amount, Pending: true, StateIsSend: true}, nil
}

func (l *Ledger) processStateReceive(tx kv.RwTx, b *ledgertypes.StateBlock, account ledgertypes.Hash256, info ledgertypes.AccountInfo, hash ledgertypes.Hash256) (Result, ProcessMeta, error) {
	if b.Link.IsZero() {
		return ResultGapSource, ProcessMeta{}, nil
	}
	if ok, err := blockExists(tx, b.Link); err != nil {
		return 0, ProcessMeta{}, err
	} else if !ok {
		return ResultGapSource, ProcessMeta{}, nil
	}
	pending, ok, err := getPending(tx, account, b.Link)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultUnreceivable, ProcessMeta{}, nil
	}
	if pending.Epoch > info.Epoch {
		return ResultUnreceivable, ProcessMeta{}, nil
	}
	if b.Balance.Cmp(info.Balance.Add(pending.Amount)) != 0 {
		return ResultBalanceMismatch, ProcessMeta{}, nil
	}
	if err := deletePending(tx, account, b.Link); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := l.applyStateRepresentativeChange(tx, info, b.Representative, b.Balance); err != nil {
		return 0, ProcessMeta{}, err
	}
	newInfo := l.advanceStateInfo(info, hash, b.Representative, b.Balance)
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := setSuccessor(tx, b.Previous, hash); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockState, Account: account, Balance: b.Balance, Height: newInfo.BlockCount, Timestamp: newInfo.ModifiedTime}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: account, Amount: pending.Amount}, nil
}

func (l *Ledger) processStateChange(tx kv.RwTx, b *ledgertypes.StateBlock, account ledgertypes.Hash256, info ledgertypes.AccountInfo, hash ledgertypes.Hash256) (Result, ProcessMeta, error) {
	if err := l.applyStateRepresentativeChange(tx, info, b.Representative, info.Balance); err != nil {
		return 0, ProcessMeta{}, err
	}
	newInfo := l.advanceStateInfo(info, hash, b.Representative, info.Balance)
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := setSuccessor(tx, b.Previous, hash); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockState, Account: account, Balance: info.Balance, Height: newInfo.BlockCount, Timestamp: newInfo.ModifiedTime}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: account}, nil
}

// processStateEpoch upgrades the account's epoch without moving value or
// changing its representative: Representative and Balance on the block
// must exactly match the account's current values.
func (l *Ledger) processStateEpoch(tx kv.RwTx, b *ledgertypes.StateBlock, account ledgertypes.Hash256, info ledgertypes.AccountInfo, hash ledgertypes.Hash256) (Result, ProcessMeta, error) {
	if b.Representative != info.Representative {
		return ResultRepresentativeMismatch, ProcessMeta{}, nil
	}
	if b.Balance.Cmp(info.Balance) != 0 {
		return ResultBalanceMismatch, ProcessMeta{}, nil
	}
	newInfo := info
	newInfo.Head = hash
	newInfo.BlockCount++
	newInfo.Epoch = ledgertypes.Epoch1
	newInfo.ModifiedTime = now()
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := setSuccessor(tx, b.Previous, hash); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockState, Account: account, Balance: info.Balance, Height: newInfo.BlockCount, Timestamp: newInfo.ModifiedTime}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: account}, nil
}

// applyStateRepresentativeChange moves weight from the account's old
// representative to its new one at the account's new balance. A state
// block always carries both fields explicitly, so representative and
// balance changes are folded into a single weight transfer rather than
// tracked as separate deltas.
func (l *Ledger) applyStateRepresentativeChange(tx kv.RwTx, info ledgertypes.AccountInfo, newRep ledgertypes.Hash256, newBalance ledgertypes.Amount128) error {
	if err := subWeight(tx, info.Representative, info.Balance); err != nil {
		return err
	}
	return addWeight(tx, newRep, newBalance)
}

func (l *Ledger) advanceStateInfo(info ledgertypes.AccountInfo, head, rep ledgertypes.Hash256, balance ledgertypes.Amount128) ledgertypes.AccountInfo {
	info.Head = head
	if rep != info.Representative {
		info.RepBlock = head
	}
	info.Representative = rep
	info.Balance = balance
	info.BlockCount++
	info.ModifiedTime = now()
	return info
}
