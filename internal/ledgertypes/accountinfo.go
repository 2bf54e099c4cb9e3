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

// AccountInfo is the per-account (per-epoch) record. Head and
// OpenBlock identify chain endpoints; RepBlock is the most recent block
// that set the representative; ConfirmationHeight is the height the
// external elector has confirmed (the genesis account starts at 1, every
// other account at 0).
type AccountInfo struct {
	Head               Hash256
	RepBlock           Hash256
	OpenBlock          Hash256
	Representative     Hash256
	Balance            Amount128
	ModifiedTime       uint64
	BlockCount         uint64
	ConfirmationHeight uint64
	Epoch              Epoch
}

// AccountKey is the Accounts table key: the account public key. One row per
// account; Epoch travels inside the value and is overwritten wholesale
// (along with the rest of the row) on an epoch upgrade rather than patched
// in place.
func AccountKey(account Hash256) []byte {
	return append([]byte(nil), account[:]...)
}

func (a AccountInfo) MarshalBinary() []byte {
	out := make([]byte, 0, 32*4+16+8+8+8+1)
	out = append(out, a.Head[:]...)
	out = append(out, a.RepBlock[:]...)
	out = append(out, a.OpenBlock[:]...)
	out = append(out, a.Representative[:]...)
	bal := a.Balance.Bytes16()
	out = append(out, bal[:]...)
	out = append(out, be64(a.ModifiedTime)...)
	out = append(out, be64(a.BlockCount)...)
	out = append(out, be64(a.ConfirmationHeight)...)
	out = append(out, byte(a.Epoch))
	return out
}

func UnmarshalAccountInfo(data []byte) (AccountInfo, error) {
	var a AccountInfo
	const want = 32*4 + 16 + 8 + 8 + 8 + 1
	if len(data) != want {
		return a, ErrShortBuffer
	}
	copy(a.Head[:], data[0:32])
	copy(a.RepBlock[:], data[32:64])
	copy(a.OpenBlock[:], data[64:96])
	copy(a.Representative[:], data[96:128])
	var bal [16]byte
	copy(bal[:], data[128:144])
	a.Balance = AmountFromBig(bal)
	a.ModifiedTime = be64dec(data[144:152])
	a.BlockCount = be64dec(data[152:160])
	a.ConfirmationHeight = be64dec(data[160:168])
	a.Epoch = Epoch(data[168])
	return a, nil
}

// PendingEntry is an outstanding transfer awaiting receipt.
type PendingEntry struct {
	Source Hash256
	Amount Amount128
	Epoch  Epoch
}

// PendingKey is the Pending table key: destination || source_hash.
func PendingKey(destination, source Hash256) []byte {
	k := make([]byte, 0, 64)
	k = append(k, destination[:]...)
	k = append(k, source[:]...)
	return k
}

// PendingDestinationPrefix returns the key prefix that a range scan over
// one destination account's pending entries must start from.
func PendingDestinationPrefix(destination Hash256) []byte {
	return append([]byte(nil), destination[:]...)
}

func (p PendingEntry) MarshalBinary() []byte {
	out := make([]byte, 0, 32+16+1)
	out = append(out, p.Source[:]...)
	bal := p.Amount.Bytes16()
	out = append(out, bal[:]...)
	out = append(out, byte(p.Epoch))
	return out
}

func UnmarshalPendingEntry(data []byte) (PendingEntry, error) {
	var p PendingEntry
	if len(data) != 32+16+1 {
		return p, ErrShortBuffer
	}
	copy(p.Source[:], data[0:32])
	var bal [16]byte
	copy(bal[:], data[32:48])
	p.Amount = AmountFromBig(bal)
	p.Epoch = Epoch(data[48])
	return p, nil
}
