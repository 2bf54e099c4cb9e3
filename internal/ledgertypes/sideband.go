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

// Sideband is the metadata the ledger attaches to every stored block. It is
// never part of the hashed preimage.
type Sideband struct {
	Type      BlockType
	Account   Hash256 // redundant with StateBlock.Account but required for legacy variants
	Balance   Amount128
	Height    uint64
	Successor Hash256 // zero if this block is the chain head
	Timestamp uint64  // unix seconds, set at process() time
}

// MarshalBinary encodes the sideband: legacy variants store account+balance
// inline (the block itself doesn't carry them), state blocks omit them
// (already present in the block).
func (s Sideband) MarshalBinary(stateBlock bool) []byte {
	if stateBlock {
		out := make([]byte, 0, 32+8+8)
		out = append(out, s.Successor[:]...)
		out = append(out, be64(s.Height)...)
		out = append(out, be64(s.Timestamp)...)
		return out
	}
	out := make([]byte, 0, 32+32+16+8+8)
	out = append(out, s.Account[:]...)
	out = append(out, s.Successor[:]...)
	balance := s.Balance.Bytes16()
	out = append(out, balance[:]...)
	out = append(out, be64(s.Height)...)
	out = append(out, be64(s.Timestamp)...)
	return out
}

func UnmarshalSideband(data []byte, typ BlockType, stateBlock bool) (Sideband, error) {
	s := Sideband{Type: typ}
	if stateBlock {
		if len(data) != 32+8+8 {
			return s, ErrShortBuffer
		}
		copy(s.Successor[:], data[:32])
		s.Height = be64dec(data[32:40])
		s.Timestamp = be64dec(data[40:48])
		return s, nil
	}
	if len(data) != 32+32+16+8+8 {
		return s, ErrShortBuffer
	}
	copy(s.Account[:], data[:32])
	copy(s.Successor[:], data[32:64])
	var bal [16]byte
	copy(bal[:], data[64:80])
	s.Balance = AmountFromBig(bal)
	s.Height = be64dec(data[80:88])
	s.Timestamp = be64dec(data[88:96])
	return s, nil
}

func be64dec(b []byte) uint64 {
	var x uint64
	for _, c := range b {
		x = x<<8 | uint64(c)
	}
	return x
}
