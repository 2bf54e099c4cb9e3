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
	"fmt"
)

// Wire layout: a leading type tag, the hashable fields in declared order,
// a 64-byte signature, an 8-byte work nonce. State blocks additionally
// carry the preamble folded into Hash() above, not a second on-wire byte:
// the leading type tag already disambiguates state from legacy on the
// wire.

func (b *OpenBlock) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 1+32*3+64+8)
	out = append(out, blockTypeTag(BlockOpen))
	out = append(out, b.Source[:]...)
	out = append(out, b.Representative[:]...)
	out = append(out, b.Account[:]...)
	out = append(out, b.sig[:]...)
	out = append(out, be64(uint64(b.work))...)
	return out, nil
}

func (b *SendBlock) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 1+32*2+16+64+8)
	out = append(out, blockTypeTag(BlockSend))
	out = append(out, b.Previous[:]...)
	out = append(out, b.Destination[:]...)
	balance := b.BalanceNew.Bytes16()
	out = append(out, balance[:]...)
	out = append(out, b.sig[:]...)
	out = append(out, be64(uint64(b.work))...)
	return out, nil
}

func (b *ReceiveBlock) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 1+32*2+64+8)
	out = append(out, blockTypeTag(BlockReceive))
	out = append(out, b.Previous[:]...)
	out = append(out, b.Source[:]...)
	out = append(out, b.sig[:]...)
	out = append(out, be64(uint64(b.work))...)
	return out, nil
}

func (b *ChangeBlock) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 1+32*2+64+8)
	out = append(out, blockTypeTag(BlockChange))
	out = append(out, b.Previous[:]...)
	out = append(out, b.Representative[:]...)
	out = append(out, b.sig[:]...)
	out = append(out, be64(uint64(b.work))...)
	return out, nil
}

func (b *StateBlock) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 1+32*4+16+64+8)
	out = append(out, blockTypeTag(BlockState))
	out = append(out, b.Account[:]...)
	out = append(out, b.Previous[:]...)
	out = append(out, b.Representative[:]...)
	balance := b.Balance.Bytes16()
	out = append(out, balance[:]...)
	out = append(out, b.Link[:]...)
	out = append(out, b.sig[:]...)
	out = append(out, be64(uint64(b.work))...)
	return out, nil
}

// DecodeBlock reads the leading type tag and dispatches to the matching
// variant's fixed layout. Returns ErrShortBuffer/ErrUnknownBlockType on a
// malformed buffer.
func DecodeBlock(data []byte) (Block, error) {
	if len(data) < 1 {
		return nil, ErrShortBuffer
	}
	tag := BlockType(data[0])
	body := data[1:]
	switch tag {
	case BlockOpen:
		return decodeOpen(body)
	case BlockSend:
		return decodeSend(body)
	case BlockReceive:
		return decodeReceive(body)
	case BlockChange:
		return decodeChange(body)
	case BlockState:
		return decodeState(body)
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownBlockType, tag)
	}
}

func take(buf []byte, n int, out *[]byte) ([]byte, error) {
	if len(buf) < n {
		return nil, ErrShortBuffer
	}
	*out = buf[:n]
	return buf[n:], nil
}

func readHash(buf []byte) (Hash256, []byte, error) {
	var h Hash256
	var s []byte
	rest, err := take(buf, 32, &s)
	if err != nil {
		return h, nil, err
	}
	copy(h[:], s)
	return h, rest, nil
}

func readSigWork(buf []byte) (Signature512, Work64, error) {
	var sig Signature512
	var s []byte
	rest, err := take(buf, 64, &s)
	if err != nil {
		return sig, 0, err
	}
	copy(sig[:], s)
	var w []byte
	rest, err = take(rest, 8, &w)
	if err != nil {
		return sig, 0, err
	}
	var work uint64
	for _, c := range w {
		work = work<<8 | uint64(c)
	}
	if len(rest) != 0 {
		return sig, 0, fmt.Errorf("%w: trailing bytes", ErrShortBuffer)
	}
	return sig, Work64(work), nil
}

func decodeOpen(buf []byte) (Block, error) {
	b := &OpenBlock{}
	var err error
	if b.Source, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.Representative, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.Account, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.sig, b.work, err = readSigWork(buf); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeSend(buf []byte) (Block, error) {
	b := &SendBlock{}
	var err error
	if b.Previous, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.Destination, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	var bal []byte
	if buf, err = take(buf, 16, &bal); err != nil {
		return nil, err
	}
	var b16 [16]byte
	copy(b16[:], bal)
	b.BalanceNew = AmountFromBig(b16)
	if b.sig, b.work, err = readSigWork(buf); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeReceive(buf []byte) (Block, error) {
	b := &ReceiveBlock{}
	var err error
	if b.Previous, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.Source, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.sig, b.work, err = readSigWork(buf); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeChange(buf []byte) (Block, error) {
	b := &ChangeBlock{}
	var err error
	if b.Previous, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.Representative, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.sig, b.work, err = readSigWork(buf); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeState(buf []byte) (Block, error) {
	b := &StateBlock{}
	var err error
	if b.Account, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.Previous, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.Representative, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	var bal []byte
	if buf, err = take(buf, 16, &bal); err != nil {
		return nil, err
	}
	var b16 [16]byte
	copy(b16[:], bal)
	b.Balance = AmountFromBig(b16)
	if b.Link, buf, err = readHash(buf); err != nil {
		return nil, err
	}
	if b.sig, b.work, err = readSigWork(buf); err != nil {
		return nil, err
	}
	return b, nil
}

// WireLen returns the fixed encoded length (including the leading type
// tag) of a block of type t, or -1 for an unrecognized tag.
func WireLen(t BlockType) int {
	const hashLen, sigWork = 32, 64+8
	switch t {
	case BlockOpen:
		return 1 + 3*hashLen + sigWork
	case BlockSend:
		return 1 + 2*hashLen + 16 + sigWork
	case BlockReceive:
		return 1 + 2*hashLen + sigWork
	case BlockChange:
		return 1 + 2*hashLen + sigWork
	case BlockState:
		return 1 + 4*hashLen + 16 + sigWork
	default:
		return -1
	}
}

// SplitStored splits a Blocks-table value into its block and sideband: the
// sideband is appended after the block's fixed-length wire encoding.
func SplitStored(raw []byte) (Block, Sideband, error) {
	if len(raw) < 1 {
		return nil, Sideband{}, ErrShortBuffer
	}
	typ := BlockType(raw[0])
	stateBlock := typ == BlockState
	blockLen := WireLen(typ)
	if blockLen < 0 || len(raw) < blockLen {
		return nil, Sideband{}, ErrShortBuffer
	}
	blk, err := DecodeBlock(raw[:blockLen])
	if err != nil {
		return nil, Sideband{}, err
	}
	sb, err := UnmarshalSideband(raw[blockLen:], typ, stateBlock)
	if err != nil {
		return nil, Sideband{}, err
	}
	if sblk, ok := blk.(*StateBlock); ok {
		sb.Account = sblk.Account
		sb.Balance = sblk.Balance
	}
	return blk, sb, nil
}

// JoinStored concatenates a block's wire encoding with its sideband,
// producing the exact bytes stored in the Blocks table value.
func JoinStored(blk Block, sb Sideband) ([]byte, error) {
	wire, err := blk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(wire, sb.MarshalBinary(blk.Type() == BlockState)...), nil
}
