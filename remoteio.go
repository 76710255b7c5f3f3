/* SPDX-License-Identifier: BSD-2-Clause */

// Package remoteio presents a range-request-capable HTTP resource as a
// seekable, randomly readable byte stream. Reads are translated into a
// minimal set of HTTP range requests through a coalescing interval
// cache: bytes fetched once are never fetched again, no matter how the
// consumer seeks. This lets archive readers and media-metadata parsers
// operate on multi-gigabyte remote files while transferring only the
// bytes they actually touch.
package remoteio

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// File is a read-only, seekable view of a remote HTTP resource.
// It implements io.Reader, io.Seeker, io.ReaderAt and io.Closer.
//
// Read and Seek share a cursor and serialize against each other.
// ReadAt is independent of the cursor and safe for concurrent use;
// concurrent ReadAt calls for the same span collapse into one request,
// while overlapping-but-unequal spans may fetch their overlap twice
// (the byte counter reports such duplication honestly).
type File struct {
	fetcher *fetcher
	cache   Cache
	size    int64
	chunk   int64

	mu     sync.Mutex
	pos    int64
	closed bool
}

// Read reads from the current cursor position, advancing it by the
// number of bytes returned. At end of resource it returns (0, io.EOF).
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}

	n, err := f.readAt(context.Background(), p, f.pos)
	f.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Seek implements io.Seeker. Seeking beyond the end of the resource is
// permitted; a subsequent Read there returns io.EOF.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = f.size + offset
	default:
		return 0, fmt.Errorf("%w: whence %d", ErrInvalidSeek, whence)
	}

	if newPos < 0 {
		return 0, fmt.Errorf("%w: position %d", ErrInvalidSeek, newPos)
	}
	f.pos = newPos
	return f.pos, nil
}

// Tell returns the current cursor position.
func (f *File) Tell() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// ReadAt implements io.ReaderAt. It does not use or move the cursor.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext is ReadAt with a context governing the range fetches.
func (f *File) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return f.readAt(ctx, p, off)
}

// readAt fills p from offset off: uncovered gaps are rounded to chunk
// boundaries, fetched, and absorbed into the cache, then the exact
// span is sliced back out.
func (f *File) readAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrInvalidSeek, off)
	}
	if off >= f.size {
		return 0, io.EOF
	}
	want := Span{Start: off, End: min(off+int64(len(p)), f.size)}
	if want.Empty() {
		return 0, nil
	}

	for _, gap := range f.cache.Gaps(want) {
		aligned := f.align(gap)
		// Realign may reach into cached territory; fetch only what is
		// still missing so cached bytes are never transferred twice.
		for _, g := range f.cache.Gaps(aligned) {
			data, err := f.fetcher.fetch(ctx, g)
			if err != nil {
				return 0, err
			}
			f.cache.Insert(g, data)
		}
	}

	b := f.cache.Slice(want)
	if b == nil {
		return 0, fmt.Errorf("remoteio: cache does not cover [%d,%d) after fetch", want.Start, want.End)
	}
	n := copy(p, b)
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// align rounds a gap outward to chunk boundaries, clamped to the
// resource, trading bounded extra transfer for fewer round trips on
// many small adjacent reads.
func (f *File) align(s Span) Span {
	if f.chunk <= 1 {
		return s
	}
	s.Start -= s.Start % f.chunk
	if rem := s.End % f.chunk; rem != 0 {
		s.End += f.chunk - rem
	}
	s.End = min(s.End, f.size)
	return s
}

// Write always fails: remote resources are read-only.
func (f *File) Write(p []byte) (int, error) {
	return 0, ErrNotWritable
}

// Readable reports that the stream supports reading.
func (f *File) Readable() bool { return true }

// Seekable reports that the stream supports seeking.
func (f *File) Seekable() bool { return true }

// Size returns the total size of the remote resource in bytes.
func (f *File) Size() int64 { return f.size }

// BytesFetched returns the number of bytes transferred from the server
// so far, including chunk-rounding overhead. Together with Size it
// reports how much of the resource was actually downloaded.
func (f *File) BytesFetched() int64 {
	return f.fetcher.metrics.bytesFetched()
}

// CachedBytes returns the number of bytes currently held in the cache.
func (f *File) CachedBytes() int64 {
	return f.cache.Cached()
}

// Close releases the cache. Further reads and seeks fail with
// ErrClosed; error-free accessors such as Tell, Readable and Seekable
// keep returning their last values. Close is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.cache.Close()
}
