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

package unchecked

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// roaringShardCache remembers which of the 256 dependency-hash shards
// (bucketed on the key's leading byte) were confirmed to hold no stale
// entries as of the last cleanup tick's cutoff, so a following tick with
// an unchanged cutoff can skip rescanning them. Any cutoff advance
// invalidates the whole cache: a shard fresh at one cutoff may not be at a
// later one.
type roaringShardCache struct {
	mu         sync.Mutex
	fresh      *roaring.Bitmap
	lastCutoff uint64
	lastTTL    uint64
	primed     bool
}

func newRoaringShardCache() *roaringShardCache {
	return &roaringShardCache{fresh: roaring.New()}
}

func (c *roaringShardCache) freshAsOf(shard int, now, ttlSeconds uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed || ttlSeconds != c.lastTTL || cutoffOf(now, ttlSeconds) != c.lastCutoff {
		c.fresh.Clear()
		c.lastCutoff = cutoffOf(now, ttlSeconds)
		c.lastTTL = ttlSeconds
		c.primed = true
		return false
	}
	return c.fresh.Contains(uint32(shard))
}

func (c *roaringShardCache) markFresh(shard int, now, ttlSeconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fresh.Add(uint32(shard))
}

func cutoffOf(now, ttlSeconds uint64) uint64 {
	if now > ttlSeconds {
		return now - ttlSeconds
	}
	return 0
}
