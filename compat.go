/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import "io"

// Compile-time interface satisfaction checks.
var (
	_ io.Reader         = (*File)(nil)
	_ io.Seeker         = (*File)(nil)
	_ io.ReadSeeker     = (*File)(nil)
	_ io.ReadSeekCloser = (*File)(nil)
	_ io.ReaderAt       = (*File)(nil)
	_ io.Writer         = (*File)(nil)
	_ io.Closer         = (*File)(nil)

	_ Cache = (*MemoryCache)(nil)
)
