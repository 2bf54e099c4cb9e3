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
)

// Block builders give tests a fluent way to assemble and sign blocks
// without hand-laying-out byte fields: chained setter methods returning a
// final Build().

// StateBlockBuilder builds a StateBlock.
type StateBlockBuilder struct {
	b StateBlock
}

func NewStateBlockBuilder() *StateBlockBuilder { return &StateBlockBuilder{} }

func (bb *StateBlockBuilder) Account(a Hash256) *StateBlockBuilder        { bb.b.Account = a; return bb }
func (bb *StateBlockBuilder) Previous(p Hash256) *StateBlockBuilder       { bb.b.Previous = p; return bb }
func (bb *StateBlockBuilder) Representative(r Hash256) *StateBlockBuilder { bb.b.Representative = r; return bb }
func (bb *StateBlockBuilder) Balance(a Amount128) *StateBlockBuilder      { bb.b.Balance = a; return bb }
func (bb *StateBlockBuilder) Link(l Hash256) *StateBlockBuilder          { bb.b.Link = l; return bb }
func (bb *StateBlockBuilder) Work(w Work64) *StateBlockBuilder           { bb.b.work = w; return bb }

// Sign computes the block hash and signs it with priv, deriving Account
// from priv's public key only if Account was left zero.
func (bb *StateBlockBuilder) Sign(priv ed25519.PrivateKey) *StateBlockBuilder {
	if bb.b.Account.IsZero() {
		copy(bb.b.Account[:], priv.Public().(ed25519.PublicKey))
	}
	hash := bb.b.Hash()
	sig := ed25519.Sign(priv, hash[:])
	var s Signature512
	copy(s[:], sig)
	bb.b.sig = s
	return bb
}

func (bb *StateBlockBuilder) Build() *StateBlock {
	blk := bb.b
	return &blk
}

// OpenBlockBuilder builds an OpenBlock.
type OpenBlockBuilder struct{ b OpenBlock }

func NewOpenBlockBuilder() *OpenBlockBuilder { return &OpenBlockBuilder{} }

func (bb *OpenBlockBuilder) Source(s Hash256) *OpenBlockBuilder         { bb.b.Source = s; return bb }
func (bb *OpenBlockBuilder) Representative(r Hash256) *OpenBlockBuilder { bb.b.Representative = r; return bb }
func (bb *OpenBlockBuilder) Account(a Hash256) *OpenBlockBuilder        { bb.b.Account = a; return bb }
func (bb *OpenBlockBuilder) Work(w Work64) *OpenBlockBuilder            { bb.b.work = w; return bb }

func (bb *OpenBlockBuilder) Sign(priv ed25519.PrivateKey) *OpenBlockBuilder {
	if bb.b.Account.IsZero() {
		copy(bb.b.Account[:], priv.Public().(ed25519.PublicKey))
	}
	hash := bb.b.Hash()
	sig := ed25519.Sign(priv, hash[:])
	copy(bb.b.sig[:], sig)
	return bb
}

func (bb *OpenBlockBuilder) Build() *OpenBlock {
	blk := bb.b
	return &blk
}

// SendBlockBuilder builds a SendBlock.
type SendBlockBuilder struct{ b SendBlock }

func NewSendBlockBuilder() *SendBlockBuilder { return &SendBlockBuilder{} }

func (bb *SendBlockBuilder) Previous(p Hash256) *SendBlockBuilder       { bb.b.Previous = p; return bb }
func (bb *SendBlockBuilder) Destination(d Hash256) *SendBlockBuilder    { bb.b.Destination = d; return bb }
func (bb *SendBlockBuilder) BalanceNew(a Amount128) *SendBlockBuilder   { bb.b.BalanceNew = a; return bb }
func (bb *SendBlockBuilder) Work(w Work64) *SendBlockBuilder            { bb.b.work = w; return bb }

func (bb *SendBlockBuilder) Sign(priv ed25519.PrivateKey) *SendBlockBuilder {
	hash := bb.b.Hash()
	sig := ed25519.Sign(priv, hash[:])
	copy(bb.b.sig[:], sig)
	return bb
}

func (bb *SendBlockBuilder) Build() *SendBlock {
	blk := bb.b
	return &blk
}

// ReceiveBlockBuilder builds a ReceiveBlock.
type ReceiveBlockBuilder struct{ b ReceiveBlock }

func NewReceiveBlockBuilder() *ReceiveBlockBuilder { return &ReceiveBlockBuilder{} }

func (bb *ReceiveBlockBuilder) Previous(p Hash256) *ReceiveBlockBuilder { bb.b.Previous = p; return bb }
func (bb *ReceiveBlockBuilder) Source(s Hash256) *ReceiveBlockBuilder   { bb.b.Source = s; return bb }
func (bb *ReceiveBlockBuilder) Work(w Work64) *ReceiveBlockBuilder      { bb.b.work = w; return bb }

func (bb *ReceiveBlockBuilder) Sign(priv ed25519.PrivateKey) *ReceiveBlockBuilder {
	hash := bb.b.Hash()
	sig := ed25519.Sign(priv, hash[:])
	copy(bb.b.sig[:], sig)
	return bb
}

func (bb *ReceiveBlockBuilder) Build() *ReceiveBlock {
	blk := bb.b
	return &blk
}

// ChangeBlockBuilder builds a ChangeBlock.
type ChangeBlockBuilder struct{ b ChangeBlock }

func NewChangeBlockBuilder() *ChangeBlockBuilder { return &ChangeBlockBuilder{} }

func (bb *ChangeBlockBuilder) Previous(p Hash256) *ChangeBlockBuilder       { bb.b.Previous = p; return bb }
func (bb *ChangeBlockBuilder) Representative(r Hash256) *ChangeBlockBuilder { bb.b.Representative = r; return bb }
func (bb *ChangeBlockBuilder) Work(w Work64) *ChangeBlockBuilder            { bb.b.work = w; return bb }

func (bb *ChangeBlockBuilder) Sign(priv ed25519.PrivateKey) *ChangeBlockBuilder {
	hash := bb.b.Hash()
	sig := ed25519.Sign(priv, hash[:])
	copy(bb.b.sig[:], sig)
	return bb
}

func (bb *ChangeBlockBuilder) Build() *ChangeBlock {
	blk := bb.b
	return &blk
}
