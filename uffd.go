// SPDX-License-Identifier: BSD-2-Clause

//go:build linux

package remoteio

import (
	"errors"
	"fmt"
	"io"
	"unsafe"

	uffd "github.com/ricardobranco777/go-userfaultfd"
	"golang.org/x/sys/unix"
)

// LazyMap maps a remote resource into memory and resolves page faults
// through a File. Every fault reads its page via the coalescing cache,
// so pages touched more than once cost a single HTTP transfer.
type LazyMap struct {
	File     *File
	Uffd     *uffd.Uffd
	Addr     []byte // mmap'd region
	PageSize int
	done     chan struct{}
}

var _ io.Closer = (*LazyMap)(nil)

// NewLazyMap maps the resource behind f using userfaultfd.
func NewLazyMap(f *File) (*LazyMap, error) {
	pageSize := unix.Getpagesize()

	n := int(f.Size())
	if n <= 0 {
		return nil, fmt.Errorf("remoteio: cannot map resource of size %d", n)
	}

	length := (n + pageSize - 1) &^ (pageSize - 1)

	// Anonymous region; every first touch of a page faults.
	addr, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	u, err := uffd.New(uffd.UFFD_USER_MODE_ONLY, 0)
	if err != nil {
		unix.Munmap(addr)
		return nil, fmt.Errorf("userfaultfd: %w", err)
	}

	m := &LazyMap{
		File:     f,
		Uffd:     u,
		Addr:     addr,
		PageSize: pageSize,
		done:     make(chan struct{}),
	}

	_, err = u.Register(
		uintptr(unsafe.Pointer(&addr[0])),
		length,
		uffd.UFFDIO_REGISTER_MODE_MISSING,
	)
	if err != nil {
		u.Close()
		unix.Munmap(addr)
		return nil, fmt.Errorf("userfaultfd register: %w", err)
	}

	go m.faultLoop()

	return m, nil
}

// faultLoop runs in a goroutine and resolves page faults by reading
// the faulting page from the stream. A failed read fills the page with
// zeroes rather than wedging the faulting thread.
func (m *LazyMap) faultLoop() {
	base := uintptr(unsafe.Pointer(&m.Addr[0]))

	for {
		msg, err := m.Uffd.ReadMsg()
		if err != nil {
			select {
			case <-m.done:
				return
			default:
				if logger != nil {
					logger.Error("uffd read event failed", err)
				}
				continue
			}
		}

		switch msg.Event {
		case uffd.UFFD_EVENT_PAGEFAULT:
			fault := (*uffd.UffdMsgPagefault)(unsafe.Pointer(&msg.Data))
			addr := uintptr(fault.Address)
			offset := int64(addr-base) &^ int64(m.PageSize-1)

			buf := make([]byte, m.PageSize)
			if _, err := m.File.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
				if logger != nil {
					logger.Error("page read failed", offset, err)
				}
				clear(buf)
			}

			pageAddr := addr &^ uintptr(m.PageSize-1)
			if _, err := m.Uffd.Copy(pageAddr, uintptr(unsafe.Pointer(&buf[0])), m.PageSize, 0); err != nil {
				if logger != nil {
					logger.Error("uffd copy failed", err)
				}
			}

		default:
			if logger != nil {
				logger.Error("uffd: unexpected event", msg.Event)
			}
		}
	}
}

// Close unregisters the fault handler and unmaps the region.
func (m *LazyMap) Close() error {
	close(m.done)
	m.Uffd.Close()
	return unix.Munmap(m.Addr)
}

// Bytes returns the mapped region. Accessing it triggers HTTP traffic
// lazily through the stream's cache.
func (m *LazyMap) Bytes() []byte {
	return m.Addr
}
