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
	"crypto/ed25519"

	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// WorkVerifier validates a block's proof-of-work nonce against its root.
// Generating work is out of scope; verifying it against a live difficulty
// threshold is an external concern this type lets the caller plug in.
type WorkVerifier interface {
	Verify(root ledgertypes.Hash256, work ledgertypes.Work64) bool
}

// AcceptAllWork is the default WorkVerifier: every nonce passes. Suitable
// for tests and for callers that verify work upstream of Process.
type AcceptAllWork struct{}

func (AcceptAllWork) Verify(ledgertypes.Hash256, ledgertypes.Work64) bool { return true }

// Config parameterizes a Ledger at construction. It is immutable for the
// Ledger's lifetime.
type Config struct {
	// Genesis is the account-opening block that seeds the ledger:
	// scenario 1 of the acceptance tests ("genesis open"). Either an
	// OpenBlock or a StateBlock with Previous == zero.
	Genesis ledgertypes.Block
	// GenesisSupply is the total balance the genesis account starts
	// with (Q in the acceptance tests).
	GenesisSupply ledgertypes.Amount128

	// EpochSigner is the account (ed25519 public key) authorized to sign
	// epoch-upgrade state blocks. A zero-length key means epoch upgrades
	// are never accepted (every attempt returns ResultBadSignature).
	EpochSigner ed25519.PublicKey
	// EpochLink is the 32-byte marker a state block's Link field must
	// equal, combined with an unchanged balance, to be classified as an
	// epoch upgrade rather than a representative change.
	EpochLink ledgertypes.Hash256

	// BurnAccount can never be legacy-opened (ResultOpenedBurnAccount).
	BurnAccount ledgertypes.Hash256

	// WorkVerifier checks proof-of-work against a block's root. Defaults
	// to AcceptAllWork if left nil.
	WorkVerifier WorkVerifier

	// BootstrapWeightsMaxBlocks, when nonzero, lets representative
	// weights configured out-of-band (via SeedBootstrapWeight) count
	// toward Weight() reads until the ledger's Blocks table holds at
	// least this many entries — an optimization for a cold-started node
	// tallying votes before it has replayed enough of the chain to trust
	// its own derived Representation table. Zero disables the override
	// entirely; ordinary derived weights are used from the start.
	BootstrapWeightsMaxBlocks uint64
}

func (c Config) workVerifier() WorkVerifier {
	if c.WorkVerifier == nil {
		return AcceptAllWork{}
	}
	return c.WorkVerifier
}
