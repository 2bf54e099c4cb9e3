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

package memdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const table = "t"

func TestPutGetDelete(t *testing.T) {
	db := New([]string{table})
	ctx := context.Background()

	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(table, []byte("a"), []byte("1")))
	v, err := tx.GetOne(table, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	require.NoError(t, tx.Commit())

	rtx, err := db.BeginRo(ctx)
	require.NoError(t, err)
	v, err = rtx.GetOne(table, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	has, err := rtx.Has(table, []byte("missing"))
	require.NoError(t, err)
	require.False(t, has)
	rtx.Rollback()

	wtx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, wtx.Delete(table, []byte("a")))
	require.NoError(t, wtx.Commit())

	rtx2, err := db.BeginRo(ctx)
	require.NoError(t, err)
	has, err = rtx2.Has(table, []byte("a"))
	require.NoError(t, err)
	require.False(t, has)
	rtx2.Rollback()
}

func TestReadSnapshotIsolatedFromLaterWrite(t *testing.T) {
	db := New([]string{table})
	ctx := context.Background()

	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(table, []byte("k"), []byte("before")))
	require.NoError(t, tx.Commit())

	rtx, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer rtx.Rollback()

	wtx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, wtx.Put(table, []byte("k"), []byte("after")))
	require.NoError(t, wtx.Commit())

	v, err := rtx.GetOne(table, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("before"), v)
}

func TestCursorIteratesInKeyOrder(t *testing.T) {
	db := New([]string{table})
	ctx := context.Background()

	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, tx.Put(table, []byte(k), []byte(k)))
	}
	require.NoError(t, tx.Commit())

	rtx, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer rtx.Rollback()

	c, err := rtx.Cursor(table)
	require.NoError(t, err)
	defer c.Close()

	var got []string
	for k, _, err := c.First(); k != nil; k, _, err = c.Next() {
		require.NoError(t, err)
		got = append(got, string(k))
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCursorSeekFindsFirstKeyGreaterOrEqual(t *testing.T) {
	db := New([]string{table})
	ctx := context.Background()

	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	for _, k := range []string{"a", "c", "e"} {
		require.NoError(t, tx.Put(table, []byte(k), []byte(k)))
	}
	require.NoError(t, tx.Commit())

	rtx, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer rtx.Rollback()

	c, err := rtx.Cursor(table)
	require.NoError(t, err)
	defer c.Close()

	k, _, err := c.Seek([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("c"), k)
}
