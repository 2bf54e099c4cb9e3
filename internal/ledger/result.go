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

import "github.com/erigontech/nanoledger/internal/ledgertypes"

// Result is the closed set of outcomes Process can return. It is never
// used to signal a store I/O failure — those come back as a Go error
// alongside ResultProgress's zero value, and the caller must not commit.
type Result uint8

const (
	ResultProgress Result = iota
	ResultBadSignature
	ResultOld
	ResultNegativeSpend
	ResultFork
	ResultUnreceivable
	ResultGapPrevious
	ResultGapSource
	ResultBalanceMismatch
	ResultRepresentativeMismatch
	ResultBlockPosition
	ResultInsufficientWork
	ResultOpenedBurnAccount
)

func (r Result) String() string {
	switch r {
	case ResultProgress:
		return "progress"
	case ResultBadSignature:
		return "bad_signature"
	case ResultOld:
		return "old"
	case ResultNegativeSpend:
		return "negative_spend"
	case ResultFork:
		return "fork"
	case ResultUnreceivable:
		return "unreceivable"
	case ResultGapPrevious:
		return "gap_previous"
	case ResultGapSource:
		return "gap_source"
	case ResultBalanceMismatch:
		return "balance_mismatch"
	case ResultRepresentativeMismatch:
		return "representative_mismatch"
	case ResultBlockPosition:
		return "block_position"
	case ResultInsufficientWork:
		return "insufficient_work"
	case ResultOpenedBurnAccount:
		return "opened_burn_account"
	default:
		return "unknown_result"
	}
}

// ProcessMeta accompanies a ResultProgress return: the account the block
// belongs to, the value moved (zero for change/epoch blocks), whether a
// pending entry was created (true for a send) or consumed (false, for a
// receive/open — still "pending" in the sense the amount came from one),
// and whether this was a state-send specifically (StateIsSend), since
// state-receive also reports a nonzero Amount.
type ProcessMeta struct {
	Account     ledgertypes.Hash256
	Amount      ledgertypes.Amount128
	Pending     bool
	StateIsSend bool
}
