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
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBlockWireRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	cases := []Block{
		NewOpenBlockBuilder().Source(Hash256{1}).Representative(Hash256{2}).Sign(priv).Build(),
		NewSendBlockBuilder().Previous(Hash256{3}).Destination(Hash256{4}).BalanceNew(AmountFromUint64(7)).Sign(priv).Build(),
		NewReceiveBlockBuilder().Previous(Hash256{5}).Source(Hash256{6}).Sign(priv).Build(),
		NewChangeBlockBuilder().Previous(Hash256{7}).Representative(Hash256{8}).Sign(priv).Build(),
		NewStateBlockBuilder().Previous(Hash256{9}).Representative(Hash256{10}).Balance(AmountFromUint64(42)).Link(Hash256{11}).Sign(priv).Build(),
	}

	for _, blk := range cases {
		wire, err := blk.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, WireLen(blk.Type()), len(wire))

		got, err := DecodeBlock(wire)
		require.NoError(t, err)
		require.Equal(t, blk.Hash(), got.Hash())
		require.Equal(t, blk.Signature(), got.Signature())
	}
}

func TestSplitJoinStoredRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	blk := NewStateBlockBuilder().
		Account(Hash256{1}).
		Previous(Hash256{2}).
		Representative(Hash256{3}).
		Balance(AmountFromUint64(99)).
		Link(Hash256{4}).
		Sign(priv).
		Build()
	sb := Sideband{Type: BlockState, Account: Hash256{1}, Balance: AmountFromUint64(99), Height: 5, Successor: Hash256{5}, Timestamp: 123}

	raw, err := JoinStored(blk, sb)
	require.NoError(t, err)

	gotBlk, gotSb, err := SplitStored(raw)
	require.NoError(t, err)
	require.Equal(t, blk.Hash(), gotBlk.Hash())
	require.Equal(t, sb, gotSb)
}

func TestDecodeBlockRejectsShortBuffer(t *testing.T) {
	_, err := DecodeBlock([]byte{byte(BlockSend), 1, 2, 3})
	require.Error(t, err)
}

func TestAmount128RoundTripsThroughBytes16(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hi := rapid.Uint64().Draw(t, "hi")
		lo := rapid.Uint64().Draw(t, "lo")
		var b [16]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(hi >> (8 * (7 - i)))
			b[8+i] = byte(lo >> (8 * (7 - i)))
		}
		a := AmountFromBig(b)
		require.Equal(t, b, a.Bytes16())
	})
}

func TestClassifyState(t *testing.T) {
	epochLink := Hash256{0xee}
	zeroBalance := AmountFromUint64(0)
	hundred := AmountFromUint64(100)
	fifty := AmountFromUint64(50)

	open := &StateBlock{Previous: Hash256{}}
	require.Equal(t, StateSubtypeOpen, ClassifyState(open, zeroBalance, false, epochLink))

	send := &StateBlock{Previous: Hash256{1}, Balance: fifty}
	require.Equal(t, StateSubtypeSend, ClassifyState(send, hundred, true, epochLink))

	recv := &StateBlock{Previous: Hash256{1}, Balance: hundred}
	require.Equal(t, StateSubtypeReceive, ClassifyState(recv, fifty, true, epochLink))

	epoch := &StateBlock{Previous: Hash256{1}, Balance: hundred, Link: epochLink}
	require.Equal(t, StateSubtypeEpoch, ClassifyState(epoch, hundred, true, epochLink))

	change := &StateBlock{Previous: Hash256{1}, Balance: hundred, Link: Hash256{99}}
	require.Equal(t, StateSubtypeChange, ClassifyState(change, hundred, true, epochLink))

	missing := &StateBlock{Previous: Hash256{1}, Balance: hundred}
	require.Equal(t, StateSubtypeInvalid, ClassifyState(missing, zeroBalance, false, epochLink))
}
