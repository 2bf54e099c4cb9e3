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

func (l *Ledger) processOpen(tx kv.RwTx, b *ledgertypes.OpenBlock) (Result, ProcessMeta, error) {
	hash := b.Hash()
	if b.Account == l.cfg.BurnAccount {
		return ResultOpenedBurnAccount, ProcessMeta{}, nil
	}
	if !verifySig(b.Account, hash, b.Signature()) {
		return ResultBadSignature, ProcessMeta{}, nil
	}
	if _, ok, err := getAccountInfo(tx, b.Account); err != nil {
		return 0, ProcessMeta{}, err
	} else if ok {
		return ResultFork, ProcessMeta{}, nil
	}
	if ok, err := blockExists(tx, b.Source); err != nil {
		return 0, ProcessMeta{}, err
	} else if !ok {
		return ResultGapSource, ProcessMeta{}, nil
	}
	pending, ok, err := getPending(tx, b.Account, b.Source)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultUnreceivable, ProcessMeta{}, nil
	}
	if err := deletePending(tx, b.Account, b.Source); err != nil {
		return 0, ProcessMeta{}, err
	}

	ts := now()
	info := ledgertypes.AccountInfo{
		Head: hash, RepBlock: hash, OpenBlock: hash,
		Representative: b.Representative,
		Balance:        pending.Amount,
		BlockCount:     1,
		Epoch:          pending.Epoch,
		ModifiedTime:   ts,
	}
	if err := putAccountInfo(tx, b.Account, info); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := addWeight(tx, b.Representative, pending.Amount); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := putFrontier(tx, hash, b.Account); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockOpen, Account: b.Account, Balance: pending.Amount, Height: 1, Timestamp: ts}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: b.Account, Amount: pending.Amount}, nil
}

func (l *Ledger) processSend(tx kv.RwTx, b *ledgertypes.SendBlock) (Result, ProcessMeta, error) {
	hash := b.Hash()
	account, ok, err := ownerOf(tx, b.Previous)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultGapPrevious, ProcessMeta{}, nil
	}
	if !verifySig(account, hash, b.Signature()) {
		return ResultBadSignature, ProcessMeta{}, nil
	}
	info, ok, err := getAccountInfo(tx, account)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok || info.Head != b.Previous {
		return ResultFork, ProcessMeta{}, nil
	}
	if stateHead, err := chainHeadIsState(tx, b.Previous); err != nil {
		return 0, ProcessMeta{}, err
	} else if stateHead {
		return ResultBlockPosition, ProcessMeta{}, nil
	}
	if b.BalanceNew.Cmp(info.Balance) >= 0 {
		return ResultNegativeSpend, ProcessMeta{}, nil
	}
	amount := info.Balance.Sub(b.BalanceNew)

	if err := putPending(tx, b.Destination, hash, ledgertypes.PendingEntry{Source: account, Amount: amount, Epoch: info.Epoch}); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := subWeight(tx, info.Representative, amount); err != nil {
		return 0, ProcessMeta{}, err
	}
	newInfo := info
	newInfo.Head = hash
	newInfo.Balance = b.BalanceNew
	newInfo.BlockCount++
	newInfo.ModifiedTime = now()
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := deleteFrontier(tx, b.Previous); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := putFrontier(tx, hash, account); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := setSuccessor(tx, b.Previous, hash); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockSend, Account: account, Balance: b.BalanceNew, Height: newInfo.BlockCount, Timestamp: newInfo.ModifiedTime}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: account, Amount: amount, Pending: true}, nil
}

func (l *Ledger) processReceive(tx kv.RwTx, b *ledgertypes.ReceiveBlock) (Result, ProcessMeta, error) {
	hash := b.Hash()
	account, ok, err := ownerOf(tx, b.Previous)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultGapPrevious, ProcessMeta{}, nil
	}
	if !verifySig(account, hash, b.Signature()) {
		return ResultBadSignature, ProcessMeta{}, nil
	}
	info, ok, err := getAccountInfo(tx, account)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok || info.Head != b.Previous {
		return ResultFork, ProcessMeta{}, nil
	}
	if stateHead, err := chainHeadIsState(tx, b.Previous); err != nil {
		return 0, ProcessMeta{}, err
	} else if stateHead {
		return ResultBlockPosition, ProcessMeta{}, nil
	}
	if ok, err := blockExists(tx, b.Source); err != nil {
		return 0, ProcessMeta{}, err
	} else if !ok {
		return ResultGapSource, ProcessMeta{}, nil
	}
	pending, ok, err := getPending(tx, account, b.Source)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultUnreceivable, ProcessMeta{}, nil
	}
	if pending.Epoch > info.Epoch {
		// the sender transferred at a higher epoch than this account has
		// upgraded to; the account must upgrade before it can receive.
		return ResultUnreceivable, ProcessMeta{}, nil
	}
	if err := deletePending(tx, account, b.Source); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := addWeight(tx, info.Representative, pending.Amount); err != nil {
		return 0, ProcessMeta{}, err
	}
	newInfo := info
	newInfo.Head = hash
	newInfo.Balance = info.Balance.Add(pending.Amount)
	newInfo.BlockCount++
	newInfo.ModifiedTime = now()
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := deleteFrontier(tx, b.Previous); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := putFrontier(tx, hash, account); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := setSuccessor(tx, b.Previous, hash); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockReceive, Account: account, Balance: newInfo.Balance, Height: newInfo.BlockCount, Timestamp: newInfo.ModifiedTime}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: account, Amount: pending.Amount}, nil
}

func (l *Ledger) processChange(tx kv.RwTx, b *ledgertypes.ChangeBlock) (Result, ProcessMeta, error) {
	hash := b.Hash()
	account, ok, err := ownerOf(tx, b.Previous)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok {
		return ResultGapPrevious, ProcessMeta{}, nil
	}
	if !verifySig(account, hash, b.Signature()) {
		return ResultBadSignature, ProcessMeta{}, nil
	}
	info, ok, err := getAccountInfo(tx, account)
	if err != nil {
		return 0, ProcessMeta{}, err
	}
	if !ok || info.Head != b.Previous {
		return ResultFork, ProcessMeta{}, nil
	}
	if stateHead, err := chainHeadIsState(tx, b.Previous); err != nil {
		return 0, ProcessMeta{}, err
	} else if stateHead {
		return ResultBlockPosition, ProcessMeta{}, nil
	}
	if err := subWeight(tx, info.Representative, info.Balance); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := addWeight(tx, b.Representative, info.Balance); err != nil {
		return 0, ProcessMeta{}, err
	}
	newInfo := info
	newInfo.Head = hash
	newInfo.RepBlock = hash
	newInfo.Representative = b.Representative
	newInfo.BlockCount++
	newInfo.ModifiedTime = now()
	if err := putAccountInfo(tx, account, newInfo); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := deleteFrontier(tx, b.Previous); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := putFrontier(tx, hash, account); err != nil {
		return 0, ProcessMeta{}, err
	}
	if err := setSuccessor(tx, b.Previous, hash); err != nil {
		return 0, ProcessMeta{}, err
	}
	sb := ledgertypes.Sideband{Type: ledgertypes.BlockChange, Account: account, Balance: info.Balance, Height: newInfo.BlockCount, Timestamp: newInfo.ModifiedTime}
	if err := putBlock(tx, hash, b, sb); err != nil {
		return 0, ProcessMeta{}, err
	}
	return ResultProgress, ProcessMeta{Account: account}, nil
}
