// Copyright 2026 espdiag project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolizer

import "sync"

// Cache caches symbolization results in a thread-safe way.
// The same crash address tends to repeat many times in a long monitor log,
// and each miss costs a subprocess invocation.
type Cache struct {
	mu    sync.RWMutex
	cache map[cacheKey]cacheVal
}

type cacheKey struct {
	bin string
	pc  uint64
}

type cacheVal struct {
	frame Frame
	err   error
}

// Symbolize resolves a single pc via inner, memoizing the result.
// Failures are cached too: a broken tool/binary pair won't get better
// within one process lifetime.
func (c *Cache) Symbolize(inner func(string, uint64) (Frame, error), bin string, pc uint64) (Frame, error) {
	key := cacheKey{bin, pc}
	c.mu.RLock()
	val, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return val.frame, val.err
	}
	frame, err := inner(bin, pc)
	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[cacheKey]cacheVal)
	}
	c.cache[key] = cacheVal{frame, err}
	c.mu.Unlock()
	return frame, err
}
