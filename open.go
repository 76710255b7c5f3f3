/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import (
	"context"
	"net/http"
	"time"
)

// DefaultChunkSize is the default granularity gap fetches are rounded
// to. Small enough that a cold read stays cheap, large enough that a
// run of tiny adjacent reads costs one round trip instead of dozens.
const DefaultChunkSize = 32 << 10

// Options configures a File. The zero value of any field selects its
// default.
type Options struct {
	// Client performs all requests. Nil means http.DefaultClient.
	// Timeouts, TLS and redirects are the client's business.
	Client *http.Client

	// Headers are added to every outgoing request.
	Headers http.Header

	// ChunkSize is the alignment granularity for gap fetches.
	// Values <= 1 disable rounding; 0 means DefaultChunkSize.
	ChunkSize int64

	// RetryAttempts is the number of retries after a transient
	// transport failure. Default: 3.
	RetryAttempts int

	// RetryBackoff is the initial retry backoff. Default: 500ms.
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the exponential backoff. Default: 10s.
	RetryMaxBackoff time.Duration

	// Mmap backs the cache with an anonymous memory mapping of the
	// whole resource instead of heap buffers (unix only).
	Mmap bool
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:       DefaultChunkSize,
		RetryAttempts:   3,
		RetryBackoff:    500 * time.Millisecond,
		RetryMaxBackoff: 10 * time.Second,
	}
}

// Open opens a remote HTTP resource as a seekable, read-only file with
// default options. It mirrors os.Open in spirit: the resource must be
// closed when no longer needed.
func Open(url string) (*File, error) {
	return OpenRequest(context.Background(), http.MethodGet, url, DefaultOptions())
}

// OpenOptions opens a remote HTTP resource with explicit options.
func OpenOptions(url string, opts Options) (*File, error) {
	return OpenRequest(context.Background(), http.MethodGet, url, opts)
}

// OpenRequest opens a remote resource reached with an arbitrary HTTP
// method (e.g. a pre-signed POST). The capability probe runs
// synchronously: if the server does not honor byte ranges or the total
// size cannot be determined, no File is returned.
func OpenRequest(ctx context.Context, method, url string, opts Options) (*File, error) {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if method == "" {
		method = http.MethodGet
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = 10 * time.Second
	}

	f := &fetcher{
		client:          opts.Client,
		method:          method,
		url:             url,
		headers:         opts.Headers,
		retryAttempts:   opts.RetryAttempts,
		retryBackoff:    opts.RetryBackoff,
		retryMaxBackoff: opts.RetryMaxBackoff,
	}

	size, err := f.probe(ctx)
	if err != nil {
		return nil, err
	}

	var cache Cache
	if opts.Mmap {
		cache, err = newMmapCache(size)
		if err != nil {
			return nil, err
		}
	} else {
		cache = NewMemoryCache()
	}

	return &File{
		fetcher: f,
		cache:   cache,
		size:    size,
		chunk:   opts.ChunkSize,
	}, nil
}
