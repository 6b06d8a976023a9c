// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package lrucache

import "sync"

// ComputeValue is the closure passed to Get to compute a value on a cache
// miss. It returns the value and a size estimate counted against the cache
// memory budget.
type ComputeValue[V any] func() (value V, size int)

type cacheEntry[V any] struct {
	key   string
	value V
	size  int

	waitingForComputation int
	computing             bool

	next, prev *cacheEntry[V]
}

// Cache is a size-bounded LRU cache with synchronous compute-on-miss. If a
// second goroutine asks for a key that is currently being computed, it waits
// for the first computation instead of recomputing.
type Cache[V any] struct {
	mutex                 sync.Mutex
	cond                  *sync.Cond
	maxmemory, usedmemory int
	entries               map[string]*cacheEntry[V]
	head, tail            *cacheEntry[V]
}

// New returns a cache holding at most maxmemory size units, as estimated by
// the ComputeValue closures.
func New[V any](maxmemory int) *Cache[V] {
	cache := &Cache[V]{
		maxmemory: maxmemory,
		entries:   map[string]*cacheEntry[V]{},
	}
	cache.cond = sync.NewCond(&cache.mutex)
	return cache
}

// Get returns the cached value for key or calls computeValue and stores its
// result. The closure runs synchronously and must not call back into the
// same cache or a deadlock can occur.
func (c *Cache[V]) Get(key string, computeValue ComputeValue[V]) V {
	c.mutex.Lock()
	for {
		entry, ok := c.entries[key]
		if !ok {
			break
		}
		if entry.waitingForComputation > 0 {
			// Another goroutine is computing this entry right now.
			entry.waitingForComputation += 1
			for entry.computing {
				c.cond.Wait()
			}
			entry.waitingForComputation -= 1
			// The computing goroutine may have failed and dropped the entry.
			if e, ok := c.entries[key]; ok && e == entry {
				c.touch(entry)
				value := entry.value
				c.mutex.Unlock()
				return value
			}
			continue
		}

		c.touch(entry)
		value := entry.value
		c.mutex.Unlock()
		return value
	}

	entry := &cacheEntry[V]{key: key, waitingForComputation: 1, computing: true}
	c.entries[key] = entry
	c.mutex.Unlock()

	value, size := computeValue()

	c.mutex.Lock()
	entry.value = value
	entry.size = size
	entry.waitingForComputation -= 1
	entry.computing = false
	c.cond.Broadcast()

	c.usedmemory += size
	c.insertFront(entry)
	c.evict()
	c.mutex.Unlock()
	return value
}

// Del removes the entry for key, if present.
func (c *Cache[V]) Del(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if entry, ok := c.entries[key]; ok && entry.waitingForComputation == 0 {
		c.unlink(entry)
		c.usedmemory -= entry.size
		delete(c.entries, key)
	}
}

// Keys returns the cached keys, most recently used first.
func (c *Cache[V]) Keys() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	keys := make([]string, 0, len(c.entries))
	for e := c.head; e != nil; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

func (c *Cache[V]) insertFront(entry *cacheEntry[V]) {
	entry.prev = nil
	entry.next = c.head
	if c.head != nil {
		c.head.prev = entry
	}
	c.head = entry
	if c.tail == nil {
		c.tail = entry
	}
}

func (c *Cache[V]) unlink(entry *cacheEntry[V]) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else if c.head == entry {
		c.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else if c.tail == entry {
		c.tail = entry.prev
	}
	entry.prev, entry.next = nil, nil
}

func (c *Cache[V]) touch(entry *cacheEntry[V]) {
	if c.head == entry {
		return
	}
	c.unlink(entry)
	c.insertFront(entry)
}

func (c *Cache[V]) evict() {
	for c.usedmemory > c.maxmemory && c.tail != nil {
		victim := c.tail
		if victim.waitingForComputation > 0 {
			break
		}
		c.unlink(victim)
		c.usedmemory -= victim.size
		delete(c.entries, victim.key)
	}
}
