/* SPDX-License-Identifier: BSD-2-Clause */

//go:build unix

package remoteio

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapCache is a Cache backed by a single anonymous memory mapping the
// size of the whole resource. Pages are only committed by the kernel
// when written, so memory cost stays proportional to the bytes actually
// cached. The interval set tracks which spans of the mapping are valid.
type MmapCache struct {
	mu   sync.Mutex
	data []byte
	set  intervalSet
}

// NewMmapCache creates an mmap-backed cache for a resource of the
// given total size.
func NewMmapCache(size int64) (*MmapCache, error) {
	if size < 0 {
		return nil, fmt.Errorf("remoteio: invalid mmap cache size %d", size)
	}
	c := &MmapCache{}
	if size > 0 {
		data, err := unix.Mmap(
			-1, 0,
			int(size),
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_ANON|unix.MAP_PRIVATE,
		)
		if err != nil {
			return nil, os.NewSyscallError("mmap", err)
		}
		c.data = data
	}
	return c, nil
}

func (c *MmapCache) Gaps(s Span) []Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set.gaps(s)
}

func (c *MmapCache) Insert(s Span, data []byte) {
	if s.Empty() || int64(len(data)) != s.Len() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil || s.End > int64(len(c.data)) {
		return
	}
	// Write only bytes not already valid. Slice hands out live views of
	// the mapping, so rewriting valid pages would race with readers.
	for _, g := range c.set.gaps(s) {
		copy(c.data[g.Start:g.End], data[g.Start-s.Start:g.End-s.Start])
	}
	c.set.insert(s)
}

func (c *MmapCache) Slice(s Span) []byte {
	if s.Empty() {
		return []byte{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set.covered(s) {
		return nil
	}
	return c.data[s.Start:s.End:s.End]
}

func (c *MmapCache) Cached() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set.size()
}

// Clear invalidates all cached spans but keeps the mapping.
func (c *MmapCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = nil
}

// Close unmaps the backing memory.
func (c *MmapCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = nil
	if c.data == nil {
		return nil
	}
	err := unix.Munmap(c.data)
	c.data = nil
	if err != nil {
		return os.NewSyscallError("munmap", err)
	}
	return nil
}

func newMmapCache(size int64) (Cache, error) {
	return NewMmapCache(size)
}

var _ Cache = (*MmapCache)(nil)
