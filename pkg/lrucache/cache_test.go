// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package lrucache

import (
	"sync"
	"testing"
)

func TestBasics(t *testing.T) {
	cache := New[string](123)

	value1 := cache.Get("foo", func() (string, int) {
		return "bar", 0
	})
	if value1 != "bar" {
		t.Error("cache returned wrong value")
	}

	value2 := cache.Get("foo", func() (string, int) {
		t.Error("value should be cached")
		return "", 0
	})
	if value2 != "bar" {
		t.Error("cache returned wrong value")
	}

	cache.Del("foo")
	value3 := cache.Get("foo", func() (string, int) {
		return "baz", 0
	})
	if value3 != "baz" {
		t.Error("cache returned wrong value")
	}
}

func TestEviction(t *testing.T) {
	cache := New[int](10)

	for i := 0; i < 5; i++ {
		cache.Get(string(rune('a'+i)), func() (int, int) {
			return i, 4
		})
	}

	// Budget of 10 with size-4 entries keeps at most two resident.
	if n := len(cache.Keys()); n > 2 {
		t.Errorf("expected at most 2 entries, got %d", n)
	}

	// Most recently inserted key must survive.
	found := false
	for _, k := range cache.Keys() {
		if k == "e" {
			found = true
		}
	}
	if !found {
		t.Error("most recent entry was evicted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	cache := New[int](1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + j%16))
				v := cache.Get(key, func() (int, int) {
					return j % 16, 1
				})
				if v != j%16 {
					t.Errorf("got %d for key %q", v, key)
				}
			}
		}()
	}
	wg.Wait()
}
