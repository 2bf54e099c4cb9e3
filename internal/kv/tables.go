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

package kv

import "sort"

// SchemaVersion is the current on-disk layout version. Open
// fails if the on-disk meta.version exceeds this — forward compatibility is
// not supported.
const SchemaVersion = 17

const (
	// Accounts: key = account(32), value = encoded AccountInfo. One row per
	// account; an epoch upgrade rewrites the row wholesale rather than
	// mutating a single field in place.
	Accounts = "Accounts"

	// Blocks: key = hash(32), value = type tag + wire block + sideband.
	Blocks = "Blocks"

	// Pending: key = destination(32) + source_hash(32), value =
	// source(32) + amount(16) + epoch(1). Range-scannable by destination
	// prefix.
	Pending = "Pending"

	// Representation: key = representative account(32), value = weight(16).
	Representation = "Representation"

	// Frontiers: key = legacy head block hash(32), value = account(32).
	Frontiers = "Frontiers"

	// Unchecked: key = dependency hash(32) + block hash(32), value =
	// verification_state(1) + arrival_time(8) + wire block.
	Unchecked = "Unchecked"

	// Votes: stored votes. The table is created but nothing in this module
	// reads or writes it; there is no in-memory vote cache or mutex in
	// front of it.
	Votes = "Votes"

	// OnlineWeight: key = sample timestamp(8), value = weight(16).
	OnlineWeight = "OnlineWeight"

	// Peers: key = 16-byte IPv6 + 2-byte port, network order.
	Peers = "Peers"

	// Meta: small key/value cell table. meta["version"] holds SchemaVersion
	// as a big-endian uint64.
	Meta = "Meta"
)

// VersionKey is the meta cell holding the schema version.
var VersionKey = []byte("version")

// GenesisKey is the meta cell holding the configured genesis block hash.
var GenesisKey = []byte("genesis")

type TableFlags uint8

const (
	Default TableFlags = 0x00
	DupSort TableFlags = 0x04
)

type TableCfgItem struct {
	Flags TableFlags
}

type TableCfg map[string]TableCfgItem

// LedgerTables lists every table the store must create. Sorted in init so
// table-creation order is stable across runs and doesn't depend on map
// iteration order.
var LedgerTables = []string{
	Accounts,
	Blocks,
	Pending,
	Representation,
	Frontiers,
	Unchecked,
	Votes,
	OnlineWeight,
	Peers,
	Meta,
}

// LedgerTablesCfg declares per-table flags. Unchecked is dup-sorted: many
// blocks may wait on the same dependency hash.
var LedgerTablesCfg = TableCfg{
	Unchecked: {Flags: DupSort},
}

func init() {
	sort.Strings(LedgerTables)
	for _, name := range LedgerTables {
		if _, ok := LedgerTablesCfg[name]; !ok {
			LedgerTablesCfg[name] = TableCfgItem{}
		}
	}
}
