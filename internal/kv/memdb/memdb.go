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

// Package memdb is an in-memory kv.RwDB used by tests and by cmd/nanoledger
// when no -datadir is given. Each table is a google/btree.BTreeG
// ordered by key bytes; BTreeG.Clone is copy-on-write, which is what gives
// read transactions a cheap, consistent snapshot without copying the whole
// table.
package memdb

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/erigontech/nanoledger/internal/kv"
)

type item struct{ key, value []byte }

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

const degree = 32

// DB is an in-memory implementation of kv.RwDB.
type DB struct {
	mu     sync.RWMutex // guards tables map
	writer sync.Mutex   // enforces single-writer
	tables map[string]*btree.BTreeG[item]
}

func New(tableNames []string) *DB {
	db := &DB{tables: make(map[string]*btree.BTreeG[item], len(tableNames))}
	for _, t := range tableNames {
		db.tables[t] = btree.NewG(degree, less)
	}
	return db
}

func (db *DB) BeginRo(_ context.Context) (kv.Tx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	snapshot := make(map[string]*btree.BTreeG[item], len(db.tables))
	for name, t := range db.tables {
		snapshot[name] = t.Clone()
	}
	return &tx{db: db, tables: snapshot}, nil
}

func (db *DB) BeginRw(_ context.Context) (kv.RwTx, error) {
	db.writer.Lock() // released on Commit/Rollback
	db.mu.Lock()
	snapshot := make(map[string]*btree.BTreeG[item], len(db.tables))
	for name, t := range db.tables {
		snapshot[name] = t.Clone()
	}
	db.mu.Unlock()
	return &rwTx{tx: tx{db: db, tables: snapshot}}, nil
}

func (db *DB) Flush(_ context.Context) error { return nil }
func (db *DB) Close() error                  { return nil }

type tx struct {
	db     *DB
	tables map[string]*btree.BTreeG[item]
	done   bool
}

func (t *tx) table(name string) *btree.BTreeG[item] {
	bt, ok := t.tables[name]
	if !ok {
		bt = btree.NewG(degree, less)
		t.tables[name] = bt
	}
	return bt
}

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	it, ok := t.table(table).Get(item{key: key})
	if !ok {
		return nil, nil
	}
	return it.value, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	_, ok := t.table(table).Get(item{key: key})
	return ok, nil
}

func (t *tx) Count(table string) (uint64, error) {
	return uint64(t.table(table).Len()), nil
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	return &cursor{bt: t.table(table)}, nil
}

func (t *tx) Reset() error {
	t.tables = nil
	return nil
}

func (t *tx) Renew() error {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	snapshot := make(map[string]*btree.BTreeG[item], len(t.db.tables))
	for name, bt := range t.db.tables {
		snapshot[name] = bt.Clone()
	}
	t.tables = snapshot
	return nil
}

func (t *tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
}

type rwTx struct {
	tx
}

func (t *rwTx) Put(table string, key, value []byte) error {
	cp := append([]byte(nil), value...)
	t.table(table).ReplaceOrInsert(item{key: key, value: cp})
	return nil
}

func (t *rwTx) Delete(table string, key []byte) error {
	t.table(table).Delete(item{key: key})
	return nil
}

func (t *rwTx) RwCursor(table string) (kv.RwCursor, error) {
	return &cursor{bt: t.table(table), rw: &t.tx}, nil
}

func (t *rwTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.db.mu.Lock()
	t.db.tables = t.tables
	t.db.mu.Unlock()
	t.db.writer.Unlock()
	return nil
}

func (t *rwTx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	t.db.writer.Unlock()
}

// cursor walks a cloned btree snapshot in key order. Because the snapshot
// is copy-on-write, writes issued through rw during iteration are visible
// to later Next() calls (the btree is mutated, not replaced) but never
// invalidate the cursor's position, matching MDBX cursor semantics closely
// enough for the ledger's own use (it never mutates a table while holding
// an open cursor into a different key range of the same table).
type cursor struct {
	bt   *btree.BTreeG[item]
	rw   *tx
	curr item
	ok   bool
}

func (c *cursor) First() ([]byte, []byte, error) {
	var found item
	has := false
	c.bt.Ascend(func(it item) bool {
		found = it
		has = true
		return false
	})
	if !has {
		c.ok = false
		return nil, nil, nil
	}
	c.curr, c.ok = found, true
	return c.curr.key, c.curr.value, nil
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	var found item
	has := false
	c.bt.AscendGreaterOrEqual(item{key: seek}, func(it item) bool {
		found = it
		has = true
		return false
	})
	if !has {
		c.ok = false
		return nil, nil, nil
	}
	c.curr, c.ok = found, true
	return c.curr.key, c.curr.value, nil
}

func (c *cursor) Next() ([]byte, []byte, error) {
	if !c.ok {
		return nil, nil, nil
	}
	var found item
	has := false
	c.bt.AscendGreaterOrEqual(c.curr, func(it item) bool {
		if bytes.Equal(it.key, c.curr.key) {
			return true // skip current; absent if it was deleted meanwhile
		}
		found = it
		has = true
		return false
	})
	if !has {
		c.ok = false
		return nil, nil, nil
	}
	c.curr, c.ok = found, true
	return c.curr.key, c.curr.value, nil
}

func (c *cursor) Last() ([]byte, []byte, error) {
	var found item
	has := false
	c.bt.Descend(func(it item) bool {
		found = it
		has = true
		return false
	})
	if !has {
		c.ok = false
		return nil, nil, nil
	}
	c.curr, c.ok = found, true
	return c.curr.key, c.curr.value, nil
}

func (c *cursor) Close() {}

func (c *cursor) Put(k, v []byte) error {
	cp := append([]byte(nil), v...)
	c.bt.ReplaceOrInsert(item{key: k, value: cp})
	return nil
}

func (c *cursor) Delete(k []byte) error {
	c.bt.Delete(item{key: k})
	return nil
}
