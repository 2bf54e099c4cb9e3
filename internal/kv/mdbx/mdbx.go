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

// Package mdbx is the durable kv.RwDB backend, built on
// github.com/erigontech/mdbx-go. One Env, one DBI per ledger table,
// single-writer-at-a-time enforced by MDBX itself (a write Txn blocks until
// any other write Txn on the Env commits or aborts).
package mdbx

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"
	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/nanoledger/internal/kv"
)

// ErrIncompatibleVersion is returned by Open when the on-disk schema
// version exceeds kv.SchemaVersion.
var ErrIncompatibleVersion = errors.New("mdbx: on-disk schema version is newer than this binary supports")

// Option configures Open.
type Option func(*options)

type options struct {
	mapSize datasize.ByteSize
	log     log.Logger
}

func WithMapSize(size datasize.ByteSize) Option { return func(o *options) { o.mapSize = size } }
func WithLogger(l log.Logger) Option            { return func(o *options) { o.log = l } }

// DB wraps an mdbx.Env and the DBI handles for every ledger table.
type DB struct {
	env  *mdbx.Env
	dbis map[string]mdbx.DBI
	log  log.Logger
}

// Open creates or opens an MDBX environment at path with one DBI per table
// in kv.LedgerTables. A corrupt file, a bad path or an on-disk schema version
// newer than kv.SchemaVersion (ErrIncompatibleVersion) fails construction;
// callers must not proceed on error.
func Open(path string, opts ...Option) (*DB, error) {
	o := options{mapSize: 16 * datasize.GB, log: log.Root()}
	for _, fn := range opts {
		fn(&o)
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: new env")
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(kv.LedgerTables)+8)); err != nil {
		return nil, errors.Wrap(err, "mdbx: set max dbs")
	}
	if err := env.SetGeometry(-1, -1, int(o.mapSize), -1, -1, -1); err != nil {
		return nil, errors.Wrap(err, "mdbx: set geometry")
	}
	if err := env.Open(path, mdbx.NoSubdir|mdbx.Coalesce|mdbx.LifoReclaim, 0664); err != nil {
		return nil, errors.Wrapf(err, "mdbx: open %s", path)
	}

	db := &DB{env: env, dbis: make(map[string]mdbx.DBI, len(kv.LedgerTables)), log: o.log}
	if err := db.createTables(); err != nil {
		env.Close()
		return nil, err
	}
	if err := env.View(func(txn *mdbx.Txn) error {
		v, err := txn.Get(db.dbis[kv.Meta], kv.VersionKey)
		if mdbx.IsNotFound(err) {
			return nil
		}
		if err != nil || len(v) != 8 {
			return err // a cell of the wrong length is reported by schema.Upgrade
		}
		return CheckVersion(binary.BigEndian.Uint64(v))
	}); err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) createTables() error {
	return db.env.Update(func(txn *mdbx.Txn) error {
		for _, name := range kv.LedgerTables {
			flags := uint(mdbx.Create)
			if kv.LedgerTablesCfg[name].Flags&kv.DupSort != 0 {
				flags |= mdbx.DupSort
			}
			dbi, err := txn.OpenDBISimple(name, flags)
			if err != nil {
				return errors.Wrapf(err, "mdbx: open table %s", name)
			}
			db.dbis[name] = dbi
		}
		return nil
	})
}

func (db *DB) Close() error {
	db.env.Close()
	return nil
}

// Flush forces MDBX to sync the environment to stable storage, covering
// every table. There is no in-memory write-behind buffer to drain.
func (db *DB) Flush(_ context.Context) error {
	return db.env.Sync(true, false)
}

func (db *DB) BeginRo(_ context.Context) (kv.Tx, error) {
	txn, err := db.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: begin ro txn")
	}
	return &tx{db: db, txn: txn}, nil
}

func (db *DB) BeginRw(_ context.Context) (kv.RwTx, error) {
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: begin rw txn")
	}
	return &rwTx{tx: tx{db: db, txn: txn}}, nil
}

type tx struct {
	db  *DB
	txn *mdbx.Txn
}

func (t *tx) dbi(table string) mdbx.DBI { return t.db.dbis[table] }

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	v, err := t.txn.Get(t.dbi(table), key)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *tx) Count(table string) (uint64, error) {
	stat, err := t.txn.StatDBI(t.dbi(table))
	if err != nil {
		return 0, err
	}
	return stat.Entries, nil
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	c, err := t.txn.OpenCursor(t.dbi(table))
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

// Reset releases the MDBX snapshot without destroying the handle, letting
// a long-lived reader yield to waiting writers.
func (t *tx) Reset() error {
	t.txn.Reset()
	return nil
}

func (t *tx) Renew() error { return t.txn.Renew() }

func (t *tx) Rollback() { t.txn.Abort() }

type rwTx struct{ tx }

func (t *rwTx) Put(table string, key, value []byte) error {
	return t.txn.Put(t.dbi(table), key, value, 0)
}

func (t *rwTx) Delete(table string, key []byte) error {
	err := t.txn.Del(t.dbi(table), key, nil)
	if mdbx.IsNotFound(err) {
		return nil
	}
	return err
}

func (t *rwTx) RwCursor(table string) (kv.RwCursor, error) {
	c, err := t.txn.OpenCursor(t.dbi(table))
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

func (t *rwTx) Commit() error {
	_, err := t.txn.Commit()
	return err
}

type cursor struct{ c *mdbx.Cursor }

func (c *cursor) First() ([]byte, []byte, error)        { return c.get(mdbx.First) }
func (c *cursor) Next() ([]byte, []byte, error)         { return c.get(mdbx.Next) }
func (c *cursor) Last() ([]byte, []byte, error)         { return c.get(mdbx.Last) }
func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(seek, nil, mdbx.SetRange)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *cursor) get(op mdbx.CursorOp) ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, op)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *cursor) Close() { c.c.Close() }

func (c *cursor) Put(k, v []byte) error { return c.c.Put(k, v, 0) }

func (c *cursor) Delete(k []byte) error {
	if _, _, err := c.c.Get(k, nil, mdbx.Set); err != nil {
		if mdbx.IsNotFound(err) {
			return nil
		}
		return err
	}
	return c.c.Del(0)
}

// CheckVersion validates the on-disk schema cell against kv.SchemaVersion
// before the schema package is allowed to run migrations.
func CheckVersion(onDisk uint64) error {
	if onDisk > kv.SchemaVersion {
		return fmt.Errorf("%w: on-disk=%d supported=%d", ErrIncompatibleVersion, onDisk, kv.SchemaVersion)
	}
	return nil
}
