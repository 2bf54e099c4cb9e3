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

// Package kv declares the transactional, ordered key-value store interface
// the ledger core is built on, shaped after
// github.com/erigontech/erigon-lib/kv: typed tables, snapshot-isolated read
// transactions with reset/renew, single-writer write transactions, and
// range cursors in key order.
package kv

import "context"

// Getter is the read-only half of a table accessor.
type Getter interface {
	GetOne(table string, key []byte) (value []byte, err error)
	Has(table string, key []byte) (bool, error)
	Count(table string) (uint64, error)
	Cursor(table string) (Cursor, error)
}

// Putter is the write half of a table accessor.
type Putter interface {
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
	RwCursor(table string) (RwCursor, error)
}

// Cursor iterates a table in key order.
type Cursor interface {
	First() (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Seek(seek []byte) (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Close()
}

// RwCursor additionally allows in-place mutation during iteration.
type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Delete(k []byte) error
}

// Tx is a read transaction: a consistent snapshot taken at tx_begin_read.
// Reset/Renew let a long-lived reader yield its snapshot to waiting
// writers without destroying the handle.
type Tx interface {
	Getter
	Reset() error
	Renew() error
	Rollback()
}

// RwTx is the single, exclusive write transaction. Operations within one
// RwTx are applied in program order and observers see either the full
// pre-image or post-image.
type RwTx interface {
	Tx
	Putter
	Commit() error
}

// RoDB opens read transactions.
type RoDB interface {
	BeginRo(ctx context.Context) (Tx, error)
}

// RwDB additionally opens the single write transaction and exposes flush
// for write-behind sub-tables (e.g. the vote cache).
type RwDB interface {
	RoDB
	BeginRw(ctx context.Context) (RwTx, error)
	Flush(ctx context.Context) error
	Close() error
}
