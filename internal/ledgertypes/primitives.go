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

// Package ledgertypes holds the primitive and block-variant types of the
// block-lattice ledger: hashes, amounts, the five block variants, sideband
// metadata and their wire encodings.
package ledgertypes

import (
	"encoding/hex"
	"errors"

	"github.com/holiman/uint256"
)

// Hash256 is a 32-byte opaque identifier: a block hash, an account public
// key, or a root.
type Hash256 [32]byte

var ZeroHash Hash256

func (h Hash256) IsZero() bool { return h == ZeroHash }

func (h Hash256) String() string { return hex.EncodeToString(h[:]) }

func HashFromHex(s string) (Hash256, error) {
	var h Hash256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, errors.New("ledgertypes: wrong hash length")
	}
	copy(h[:], b)
	return h, nil
}

// Signature512 is a 64-byte ed25519 signature over a block's hash.
type Signature512 [64]byte

// Work64 is an 8-byte proof-of-work nonce.
type Work64 uint64

// Amount128 is a 128-bit unsigned integer used for balances and
// representative weights. Backed by holiman/uint256.Int, a 256-bit word
// truncated in practice to the low 128 bits; Amount128 never stores a value
// that would not fit in 128 bits because every operation that could
// overflow (subtracting a send amount from a balance) is pre-checked by the
// caller before the subtraction is performed.
type Amount128 struct {
	v uint256.Int
}

func AmountFromUint64(x uint64) Amount128 {
	return Amount128{v: *uint256.NewInt(x)}
}

func AmountFromBig(b [16]byte) Amount128 {
	var a Amount128
	a.v.SetBytes(b[:])
	return a
}

func (a Amount128) Bytes16() [16]byte {
	var out [16]byte
	b := a.v.Bytes32() // left-padded 32 bytes; take the low 16
	copy(out[:], b[16:])
	return out
}

func (a Amount128) Cmp(b Amount128) int { return a.v.Cmp(&b.v) }
func (a Amount128) IsZero() bool        { return a.v.IsZero() }

func (a Amount128) Add(b Amount128) Amount128 {
	var r Amount128
	r.v.Add(&a.v, &b.v)
	return r
}

func (a Amount128) Sub(b Amount128) Amount128 {
	var r Amount128
	r.v.Sub(&a.v, &b.v)
	return r
}

func (a Amount128) Lt(b Amount128) bool { return a.v.Lt(&b.v) }
func (a Amount128) Gt(b Amount128) bool { return a.v.Gt(&b.v) }

func (a Amount128) String() string { return a.v.Dec() }

// Epoch is the ledger-rule version of an account. Epochs are monotonically
// advanced by an epoch-upgrade state block signed by the configured epoch
// signer.
type Epoch uint8

const (
	EpochInvalid Epoch = iota
	Epoch0
	Epoch1
	Epoch2
)

func (e Epoch) String() string {
	switch e {
	case Epoch0:
		return "epoch_0"
	case Epoch1:
		return "epoch_1"
	case Epoch2:
		return "epoch_2"
	default:
		return "epoch_invalid"
	}
}
