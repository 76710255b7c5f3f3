/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import "errors"

// Errors returned by this package. Construction errors
// (ErrRangesUnsupported, ErrSizeUnknown) mean no usable File is returned.
// Protocol violations (ErrRangeIgnored, ErrShortRead) are never retried
// and leave the cache untouched. ErrFetchFailed wraps a transport
// failure that survived the configured retries; the stream itself stays
// usable and a later read may try again.
var (
	ErrRangesUnsupported = errors.New("remoteio: server does not accept byte range requests")
	ErrSizeUnknown       = errors.New("remoteio: resource size unknown")
	ErrRangeIgnored      = errors.New("remoteio: server ignored range request")
	ErrShortRead         = errors.New("remoteio: partial content length mismatch")
	ErrFetchFailed       = errors.New("remoteio: range fetch failed")
	ErrResourceChanged   = errors.New("remoteio: resource changed on server")
	ErrInvalidSeek       = errors.New("remoteio: invalid seek")
	ErrNotWritable       = errors.New("remoteio: stream is not writable")
	ErrClosed            = errors.New("remoteio: stream is closed")
)
