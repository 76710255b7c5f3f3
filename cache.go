/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import "sync"

// Cache stores fetched byte spans and computes the gaps still missing
// from a requested span. Implementations must be safe for concurrent
// use. There is no eviction: a cache grows for the lifetime of its
// stream, which suits the bounded metadata-extraction access patterns
// this package is built for.
type Cache interface {
	// Gaps returns the maximal uncovered sub-spans of s in ascending order.
	Gaps(s Span) []Span
	// Insert merges s and its data into the cache. Inserting an
	// already-covered span is a no-op.
	Insert(s Span, data []byte)
	// Slice returns the bytes of s. The span must be fully covered;
	// Slice returns nil otherwise. The returned slice must not be
	// modified by the caller.
	Slice(s Span) []byte
	// Cached returns the total number of bytes currently held.
	Cached() int64
	Clear()
	Close() error
}

// extent is a cached span together with its owned backing bytes.
// len(data) always equals span.Len().
type extent struct {
	span Span
	data []byte
}

// MemoryCache is the default heap-backed Cache. Extents are kept
// sorted, disjoint and non-adjacent; overlapping or touching inserts
// are coalesced into a single extent with a concatenated buffer.
type MemoryCache struct {
	mu      sync.Mutex
	extents []extent
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Gaps(s Span) []Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spans().gaps(s)
}

func (c *MemoryCache) Insert(s Span, data []byte) {
	if s.Empty() || int64(len(data)) != s.Len() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i := 0
	for i < len(c.extents) && c.extents[i].span.End < s.Start {
		i++
	}
	j := i
	for j < len(c.extents) && c.extents[j].span.Start <= s.End {
		j++
	}

	if j == i {
		// No neighbors to merge with.
		c.extents = append(c.extents[:i], append([]extent{{s, data}}, c.extents[i:]...)...)
		return
	}
	if j == i+1 {
		e := c.extents[i]
		if e.span.Start <= s.Start && s.End <= e.span.End {
			// Fully covered already.
			return
		}
	}

	merged := Span{
		Start: min(s.Start, c.extents[i].span.Start),
		End:   max(s.End, c.extents[j-1].span.End),
	}
	buf := make([]byte, merged.Len())
	copy(buf[s.Start-merged.Start:], data)
	// Existing extents win over the new data where they overlap, so a
	// refetched overlap can never replace previously validated bytes.
	for _, e := range c.extents[i:j] {
		copy(buf[e.span.Start-merged.Start:], e.data)
	}

	c.extents = append(c.extents[:i], append([]extent{{merged, buf}}, c.extents[j:]...)...)
}

func (c *MemoryCache) Slice(s Span) []byte {
	if s.Empty() {
		return []byte{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.extents {
		if e.span.Start <= s.Start && s.End <= e.span.End {
			off := s.Start - e.span.Start
			return e.data[off : off+s.Len() : off+s.Len()]
		}
		if e.span.Start > s.Start {
			break
		}
	}
	return nil
}

func (c *MemoryCache) Cached() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spans().size()
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extents = nil
}

func (c *MemoryCache) Close() error {
	c.Clear()
	return nil
}

// spans returns the extent spans as an intervalSet. Caller holds mu.
func (c *MemoryCache) spans() intervalSet {
	set := make(intervalSet, len(c.extents))
	for i, e := range c.extents {
		set[i] = e.span
	}
	return set
}
