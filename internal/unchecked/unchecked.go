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

// Package unchecked holds blocks whose prerequisites have not yet arrived:
// a multimap from the dependency hash (a previous/source/link a pending
// block needs) to the blocks waiting on it, plus the cleanup and
// feed-forward protocol that drains it as prerequisites are satisfied.
package unchecked

import (
	"bytes"
	"context"
	"fmt"

	"github.com/erigontech/erigon-lib/log/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/erigontech/nanoledger/internal/kv"
	"github.com/erigontech/nanoledger/internal/ledger"
	"github.com/erigontech/nanoledger/internal/ledgertypes"
)

// SigState records how far an unchecked entry's signature has been
// verified. Some block types can't be checked until their signer's
// account is known.
type SigState uint8

const (
	SigUnknown SigState = iota
	SigValid
	SigInvalid
	SigValidEpoch
)

// Buffer is the unchecked-block store. It holds no state of its own beyond
// a dedup cache for concurrent Get calls and a cleanup-shard bitmap; every
// operation takes the caller's transaction explicitly, matching Ledger.
type Buffer struct {
	logger   log.Logger
	sf       singleflight.Group
	visited  *roaringShardCache
	maxFetch int
}

func New(logger log.Logger) *Buffer {
	return &Buffer{logger: logger, visited: newRoaringShardCache(), maxFetch: 4096}
}

// entryKey is dep_hash(32) || block_hash(32): the Unchecked table's true
// multimap semantics (many blocks per dependency) are expressed as a
// composite key scanned by prefix, since kv.Cursor here exposes plain
// ordered iteration rather than MDBX's native dup-sort cursor operations.
func entryKey(dep, blockHash ledgertypes.Hash256) []byte {
	k := make([]byte, 0, 64)
	k = append(k, dep[:]...)
	return append(k, blockHash[:]...)
}

func entryValue(state SigState, timestamp uint64, blk ledgertypes.Block) ([]byte, error) {
	wire, err := blk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+8+len(wire))
	out = append(out, byte(state))
	out = append(out, be64(timestamp)...)
	return append(out, wire...), nil
}

func decodeEntryValue(v []byte) (SigState, uint64, ledgertypes.Block, error) {
	if len(v) < 9 {
		return 0, 0, nil, ledgertypes.ErrShortBuffer
	}
	state := SigState(v[0])
	ts := be64dec(v[1:9])
	blk, err := ledgertypes.DecodeBlock(v[9:])
	return state, ts, blk, err
}

func be64(v uint64) []byte {
	return []byte{byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32), byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func be64dec(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Entry is a block parked in the buffer, with its signature-verification
// state and the hash it depends on.
type Entry struct {
	Dependency ledgertypes.Hash256
	Block      ledgertypes.Block
	State      SigState
	Timestamp  uint64
}

// Put inserts block, keyed by the hash it depends on. An exact duplicate
// (same dependency, same block hash) keeps a single entry; the later Put's
// state and timestamp replace the earlier ones.
func (b *Buffer) Put(tx kv.RwTx, dep ledgertypes.Hash256, blk ledgertypes.Block, state SigState, timestamp uint64) error {
	key := entryKey(dep, blk.Hash())
	v, err := entryValue(state, timestamp, blk)
	if err != nil {
		return err
	}
	return tx.Put(kv.Unchecked, key, v)
}

// Get returns every entry waiting on dep. Concurrent callers asking for the
// same dep within the same process collapse onto one scan via singleflight.
func (b *Buffer) Get(tx kv.Tx, dep ledgertypes.Hash256) ([]Entry, error) {
	v, err, _ := b.sf.Do(string(dep[:]), func() (interface{}, error) {
		return b.scan(tx, dep)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

func (b *Buffer) scan(tx kv.Tx, dep ledgertypes.Hash256) ([]Entry, error) {
	c, err := tx.Cursor(kv.Unchecked)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var entries []Entry
	for k, v, err := c.Seek(dep[:]); k != nil; k, v, err = c.Next() {
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(k, dep[:]) {
			break
		}
		state, ts, blk, err := decodeEntryValue(v)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Dependency: dep, Block: blk, State: state, Timestamp: ts})
		if len(entries) >= b.maxFetch {
			break
		}
	}
	return entries, nil
}

// Del removes a specific entry.
func (b *Buffer) Del(tx kv.RwTx, dep, blockHash ledgertypes.Hash256) error {
	return tx.Delete(kv.Unchecked, entryKey(dep, blockHash))
}

// Count returns the total number of parked entries across every
// dependency.
func (b *Buffer) Count(tx kv.Tx) (uint64, error) {
	return tx.Count(kv.Unchecked)
}

// Cleanup drops every entry older than ttl seconds (measuring age against
// now), scanning shard-by-shard (bucketed on the dependency hash's first
// byte) and caching shards confirmed fully fresh so a later tick with the
// same now/ttl doesn't rescan them.
func (b *Buffer) Cleanup(tx kv.RwTx, now, ttlSeconds uint64) (int, error) {
	c, err := tx.RwCursor(kv.Unchecked)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	cutoff := uint64(0)
	if now > ttlSeconds {
		cutoff = now - ttlSeconds
	}

	dropped := 0
	shard := -1
	shardStale := false
	for k, v, err := c.First(); k != nil; k, v, err = c.Next() {
		if err != nil {
			return dropped, err
		}
		curShard := int(k[0])
		if curShard != shard {
			if shard >= 0 && !shardStale {
				b.visited.markFresh(shard, now, ttlSeconds)
			}
			shard = curShard
			shardStale = false
		}
		if b.visited.freshAsOf(shard, now, ttlSeconds) {
			continue
		}
		_, ts, _, err := decodeEntryValue(v)
		if err != nil {
			return dropped, err
		}
		if ts < cutoff {
			if err := c.Delete(k); err != nil {
				return dropped, err
			}
			dropped++
			shardStale = true
		}
	}
	if !shardStale && shard >= 0 {
		b.visited.markFresh(shard, now, ttlSeconds)
	}
	if dropped > 0 {
		b.logger.Debug("unchecked cleanup", "dropped", dropped, "cutoff", cutoff)
	}
	return dropped, nil
}

// FeedForward re-submits every entry waiting on hash through l, following
// each progress recursively to whatever newly-committed hash it frees up.
// gap_* results leave the entry parked; every other non-progress result is
// terminal and the entry is removed.
func (b *Buffer) FeedForward(ctx context.Context, tx kv.RwTx, l *ledger.Ledger, hash ledgertypes.Hash256) error {
	entries, err := b.Get(tx, hash)
	if err != nil || len(entries) == 0 {
		return err
	}

	freed, err := b.resolveEntries(tx, l, hash, entries)
	if err != nil {
		return err
	}
	if len(freed) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([][]Entry, len(freed))
	for i, h := range freed {
		i, h := i, h
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			es, err := b.Get(tx, h)
			results[i] = es
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, h := range freed {
		if len(results[i]) == 0 {
			continue
		}
		if err := b.FeedForward(ctx, tx, l, h); err != nil {
			return fmt.Errorf("unchecked: feed-forward on %s: %w", h, err)
		}
	}
	return nil
}

// resolveEntries submits each parked entry through l, removing terminal
// ones and returning the hashes newly committed so the caller can look
// those up in turn.
func (b *Buffer) resolveEntries(tx kv.RwTx, l *ledger.Ledger, dep ledgertypes.Hash256, entries []Entry) ([]ledgertypes.Hash256, error) {
	var freed []ledgertypes.Hash256
	for _, e := range entries {
		result, _, err := l.Process(tx, e.Block)
		if err != nil {
			return nil, err
		}
		switch result {
		case ledger.ResultGapPrevious, ledger.ResultGapSource:
			continue // stays parked
		case ledger.ResultProgress:
			if err := b.Del(tx, dep, e.Block.Hash()); err != nil {
				return nil, err
			}
			freed = append(freed, e.Block.Hash())
		default:
			if err := b.Del(tx, dep, e.Block.Hash()); err != nil {
				return nil, err
			}
			b.logger.Debug("unchecked: dropping parked block", "result", result.String())
		}
	}
	return freed, nil
}
