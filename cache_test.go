/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import (
	"bytes"
	"reflect"
	"testing"
)

func TestMemoryCache_InsertAndSlice(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{10, 15}, []byte("hello"))

	if got := c.Slice(Span{10, 15}); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q want %q", got, "hello")
	}
	if got := c.Slice(Span{11, 14}); !bytes.Equal(got, []byte("ell")) {
		t.Fatalf("got %q want %q", got, "ell")
	}
	if got := c.Slice(Span{5, 12}); got != nil {
		t.Fatalf("uncovered slice should be nil, got %q", got)
	}
}

func TestMemoryCache_MergeAdjacent(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{0, 5}, []byte("abcde"))
	c.Insert(Span{5, 10}, []byte("fghij"))

	if len(c.extents) != 1 {
		t.Fatalf("expected 1 extent after adjacent insert, got %d", len(c.extents))
	}
	if got := c.Slice(Span{0, 10}); !bytes.Equal(got, []byte("abcdefghij")) {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryCache_MergeOverlapping(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{0, 6}, []byte("abcdef"))
	c.Insert(Span{4, 10}, []byte("efghij"))

	if len(c.extents) != 1 {
		t.Fatalf("expected 1 extent, got %d", len(c.extents))
	}
	if got := c.Slice(Span{0, 10}); !bytes.Equal(got, []byte("abcdefghij")) {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryCache_MergeBridgesMany(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{0, 2}, []byte("ab"))
	c.Insert(Span{4, 6}, []byte("ef"))
	c.Insert(Span{8, 10}, []byte("ij"))
	c.Insert(Span{1, 9}, []byte("bcdefghi"))

	if len(c.extents) != 1 {
		t.Fatalf("expected 1 extent, got %d", len(c.extents))
	}
	if got := c.Slice(Span{0, 10}); !bytes.Equal(got, []byte("abcdefghij")) {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryCache_CoveredInsertIsNoop(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{0, 10}, []byte("abcdefghij"))
	before := c.extents[0].data

	c.Insert(Span{3, 7}, []byte("XXXX"))

	if len(c.extents) != 1 {
		t.Fatalf("expected 1 extent, got %d", len(c.extents))
	}
	if &c.extents[0].data[0] != &before[0] {
		t.Fatal("covered insert should not reallocate")
	}
	if got := c.Slice(Span{0, 10}); !bytes.Equal(got, []byte("abcdefghij")) {
		t.Fatalf("covered insert must not change data, got %q", got)
	}
}

func TestMemoryCache_LengthMismatchIgnored(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{0, 10}, []byte("short"))
	if c.Cached() != 0 {
		t.Fatalf("mismatched insert should be ignored, cached %d", c.Cached())
	}
}

func TestMemoryCache_Gaps(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{10, 20}, bytes.Repeat([]byte("x"), 10))

	got := c.Gaps(Span{0, 30})
	want := []Span{{0, 10}, {20, 30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := c.Gaps(Span{12, 18}); got != nil {
		t.Fatalf("expected no gaps, got %v", got)
	}
}

func TestMemoryCache_CachedAndClear(t *testing.T) {
	c := NewMemoryCache()
	c.Insert(Span{0, 5}, []byte("abcde"))
	c.Insert(Span{10, 12}, []byte("kl"))

	if got := c.Cached(); got != 7 {
		t.Fatalf("cached = %d, want 7", got)
	}
	c.Clear()
	if got := c.Cached(); got != 0 {
		t.Fatalf("cached after clear = %d, want 0", got)
	}
}

func TestMemoryCache_EmptySlice(t *testing.T) {
	c := NewMemoryCache()
	if got := c.Slice(Span{5, 5}); got == nil || len(got) != 0 {
		t.Fatalf("empty span should slice to empty, got %v", got)
	}
}
