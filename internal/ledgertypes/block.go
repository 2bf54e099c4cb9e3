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

package ledgertypes

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// BlockType tags the five block variants. Expressed as a
// tagged union rather than a class hierarchy with virtual dispatch: the
// Block interface below is implemented by exactly these five concrete
// types, and the ledger's process/rollback switch exhaustively on Type().
type BlockType uint8

const (
	BlockInvalid BlockType = iota
	BlockOpen
	BlockSend
	BlockReceive
	BlockChange
	BlockState
)

func (t BlockType) String() string {
	switch t {
	case BlockOpen:
		return "open"
	case BlockSend:
		return "send"
	case BlockReceive:
		return "receive"
	case BlockChange:
		return "change"
	case BlockState:
		return "state"
	default:
		return "invalid"
	}
}

// Block is implemented by every block variant. Root returns the
// fork-detection key: Previous for non-open blocks, Account for open
// blocks.
type Block interface {
	Type() BlockType
	Root() Hash256
	Hash() Hash256
	Signature() Signature512
	SetSignature(Signature512)
	Work() Work64
	SetWork(Work64)
	MarshalBinary() ([]byte, error)
}

// hashHashable blake2b-256's the concatenation of a block's hashable fields
// (signature and work excluded).
func hashHashable(parts ...[]byte) Hash256 {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // nil key is always accepted by blake2b.New256
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash256
	copy(out[:], h.Sum(nil))
	return out
}

func be64(x uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], x)
	return b[:]
}

// OpenBlock is the first block of a legacy (non-state) account chain.
// Hashable fields: source, representative, account.
type OpenBlock struct {
	Source         Hash256
	Representative Hash256
	Account        Hash256
	sig            Signature512
	work           Work64
}

func (b *OpenBlock) Type() BlockType { return BlockOpen }
func (b *OpenBlock) Root() Hash256   { return b.Account }
func (b *OpenBlock) Hash() Hash256 {
	return hashHashable(b.Source[:], b.Representative[:], b.Account[:])
}
func (b *OpenBlock) Signature() Signature512     { return b.sig }
func (b *OpenBlock) SetSignature(s Signature512) { b.sig = s }
func (b *OpenBlock) Work() Work64                { return b.work }
func (b *OpenBlock) SetWork(w Work64)            { b.work = w }

// SendBlock is a legacy value transfer. Hashable fields: previous,
// destination, balance-after.
type SendBlock struct {
	Previous    Hash256
	Destination Hash256
	BalanceNew  Amount128
	sig         Signature512
	work        Work64
}

func (b *SendBlock) Type() BlockType { return BlockSend }
func (b *SendBlock) Root() Hash256   { return b.Previous }
func (b *SendBlock) Hash() Hash256 {
	balance := b.BalanceNew.Bytes16()
	return hashHashable(b.Previous[:], b.Destination[:], balance[:])
}
func (b *SendBlock) Signature() Signature512     { return b.sig }
func (b *SendBlock) SetSignature(s Signature512) { b.sig = s }
func (b *SendBlock) Work() Work64                { return b.work }
func (b *SendBlock) SetWork(w Work64)            { b.work = w }

// ReceiveBlock consumes a pending entry created by a SendBlock. Hashable
// fields: previous, source-block-hash.
type ReceiveBlock struct {
	Previous Hash256
	Source   Hash256
	sig      Signature512
	work     Work64
}

func (b *ReceiveBlock) Type() BlockType { return BlockReceive }
func (b *ReceiveBlock) Root() Hash256   { return b.Previous }
func (b *ReceiveBlock) Hash() Hash256 {
	return hashHashable(b.Previous[:], b.Source[:])
}
func (b *ReceiveBlock) Signature() Signature512     { return b.sig }
func (b *ReceiveBlock) SetSignature(s Signature512) { b.sig = s }
func (b *ReceiveBlock) Work() Work64                { return b.work }
func (b *ReceiveBlock) SetWork(w Work64)            { b.work = w }

// ChangeBlock changes an account's representative without moving value.
// Hashable fields: previous, representative.
type ChangeBlock struct {
	Previous       Hash256
	Representative Hash256
	sig            Signature512
	work           Work64
}

func (b *ChangeBlock) Type() BlockType { return BlockChange }
func (b *ChangeBlock) Root() Hash256   { return b.Previous }
func (b *ChangeBlock) Hash() Hash256 {
	return hashHashable(b.Previous[:], b.Representative[:])
}
func (b *ChangeBlock) Signature() Signature512     { return b.sig }
func (b *ChangeBlock) SetSignature(s Signature512) { b.sig = s }
func (b *ChangeBlock) Work() Work64                { return b.work }
func (b *ChangeBlock) SetWork(w Work64)            { b.work = w }

// StateBlock is the unified block variant. Hashable fields: account,
// previous, representative, balance, link. Its subtype (open/send/receive/
// change/epoch-upgrade) is inferred from Previous, the balance delta
// against the previous block, and Link — never stored explicitly.
type StateBlock struct {
	Account        Hash256
	Previous       Hash256 // zero for the first block of a chain
	Representative Hash256
	Balance        Amount128
	Link           Hash256 // destination account (send), source hash (receive), epoch link, or zero (change)
	sig            Signature512
	work           Work64
}

func (b *StateBlock) Type() BlockType { return BlockState }
func (b *StateBlock) Root() Hash256 {
	if b.Previous.IsZero() {
		return b.Account
	}
	return b.Previous
}
func (b *StateBlock) Hash() Hash256 {
	balance := b.Balance.Bytes16()
	// A distinct preamble byte distinguishes a state block's hashable
	// preimage from a legacy block's, so that no legacy/state pair can
	// ever collide on hash.
	preamble := [32]byte{31: byte(BlockState)}
	return hashHashable(preamble[:], b.Account[:], b.Previous[:], b.Representative[:], balance[:], b.Link[:])
}
func (b *StateBlock) Signature() Signature512     { return b.sig }
func (b *StateBlock) SetSignature(s Signature512) { b.sig = s }
func (b *StateBlock) Work() Work64                { return b.work }
func (b *StateBlock) SetWork(w Work64)            { b.work = w }

// StateSubtype classifies a state block against the balance of the
// account's previous head. It does not mutate any store
// state; the ledger uses it purely to select a process() code path.
type StateSubtype uint8

const (
	StateSubtypeInvalid StateSubtype = iota
	StateSubtypeOpen
	StateSubtypeSend
	StateSubtypeReceive
	StateSubtypeChange
	StateSubtypeEpoch
)

// ClassifyState returns the subtype of b given the account's previous
// balance (zero if the account does not yet exist) and the configured
// epoch link marker. previousExists distinguishes "previous balance is
// legitimately zero" (a fresh but already-opened account) from "account
// has no block at all yet".
func ClassifyState(b *StateBlock, previousBalance Amount128, previousExists bool, epochLink Hash256) StateSubtype {
	if b.Previous.IsZero() {
		return StateSubtypeOpen
	}
	if !previousExists {
		return StateSubtypeInvalid
	}
	switch {
	case b.Balance.Lt(previousBalance):
		return StateSubtypeSend
	case b.Balance.Gt(previousBalance):
		return StateSubtypeReceive
	default:
		// balance unchanged: either an epoch upgrade (disambiguated by
		// the configured link marker, never by destination-equals-link
		// coincidence) or a plain representative change.
		if b.Link == epochLink {
			return StateSubtypeEpoch
		}
		return StateSubtypeChange
	}
}

func blockTypeTag(t BlockType) byte { return byte(t) }
