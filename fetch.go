/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// errTransient marks failures worth retrying: transport errors and
// server-side 5xx responses. Protocol violations never carry it.
var errTransient = errors.New("remoteio: transient fetch error")

// fetcher issues single-span range requests against one resource and
// validates that the server honored them. Concurrent fetches for the
// same span are collapsed into one request via singleflight.
type fetcher struct {
	client  *http.Client
	method  string
	url     string
	headers http.Header

	retryAttempts   int
	retryBackoff    time.Duration
	retryMaxBackoff time.Duration

	metrics metrics
	group   singleflight.Group

	metaMu sync.Mutex
	meta   Metadata
}

// fetch retrieves exactly the bytes of s. On success the metrics
// counter grows by s.Len(). The returned buffer is shared between
// deduplicated callers and must be treated as read-only.
func (f *fetcher) fetch(ctx context.Context, s Span) ([]byte, error) {
	if s.Empty() {
		return []byte{}, nil
	}

	key := strconv.FormatInt(s.Start, 10) + "-" + strconv.FormatInt(s.End, 10)
	v, err, _ := f.group.Do(key, func() (any, error) {
		data, err := f.fetchRetrying(ctx, s)
		if err != nil {
			return nil, err
		}
		f.metrics.add(s.Len())
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// fetchRetrying retries transient failures with exponential backoff;
// exhausting the budget surfaces ErrFetchFailed.
func (f *fetcher) fetchRetrying(ctx context.Context, s Span) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retryAttempts; attempt++ {
		if attempt > 0 {
			if err := f.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		data, err := f.doRange(ctx, s)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, errTransient) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetchFailed, f.retryAttempts+1, lastErr)
}

// doRange performs one request for s and validates the response.
func (f *fetcher) doRange(ctx context.Context, s Span) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, f.method, f.url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range f.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", s.Start, s.End-1))

	f.metaMu.Lock()
	meta := f.meta
	f.metaMu.Unlock()
	meta.ApplyValidators(req.Header)

	logRequest(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTransient, err)
	}
	defer resp.Body.Close()

	logResponse(resp)

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		// validated below
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// A success without partial content means the server ignored
		// the Range header and is sending the whole resource.
		return nil, fmt.Errorf("%w: got %s for bytes=%d-%d", ErrRangeIgnored, resp.Status, s.Start, s.End-1)
	case resp.StatusCode == http.StatusPreconditionFailed:
		return nil, fmt.Errorf("%w: precondition failed (HTTP 412)", ErrResourceChanged)
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return nil, fmt.Errorf("%w: range bytes=%d-%d not satisfiable", ErrRangeIgnored, s.Start, s.End-1)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %s", errTransient, resp.Status)
	default:
		return nil, fmt.Errorf("remoteio: unexpected HTTP status %s", resp.Status)
	}

	served, _, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRangeIgnored, err)
	}
	if served != s {
		return nil, fmt.Errorf("%w: requested [%d,%d) but server served [%d,%d)",
			ErrRangeIgnored, s.Start, s.End, served.Start, served.End)
	}

	if err := f.checkMetadata(resp.Header); err != nil {
		return nil, err
	}

	buf := make([]byte, s.Len())
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, fmt.Errorf("%w: body shorter than requested span [%d,%d)",
				ErrShortRead, s.Start, s.End)
		}
		return nil, fmt.Errorf("%w: %w", errTransient, err)
	}
	var extra [1]byte
	if n, _ := resp.Body.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: body longer than requested span [%d,%d)",
			ErrShortRead, s.Start, s.End)
	}

	return buf, nil
}

// checkMetadata compares response validators against the remembered
// ones and fails if the resource changed under the stream.
func (f *fetcher) checkMetadata(h http.Header) error {
	newMeta := metadataFromHeaders(h)

	f.metaMu.Lock()
	defer f.metaMu.Unlock()
	if !f.meta.Equal(newMeta) {
		return fmt.Errorf("%w: validators differ between responses", ErrResourceChanged)
	}
	// Adopt validators the probe response did not carry.
	if f.meta.ETag == "" {
		f.meta.ETag = newMeta.ETag
	}
	if f.meta.LastModified == "" {
		f.meta.LastModified = newMeta.LastModified
	}
	return nil
}

// backoff waits for an exponentially increasing duration with jitter.
func (f *fetcher) backoff(ctx context.Context, attempt int) error {
	backoff := f.retryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > f.retryMaxBackoff {
		backoff = f.retryMaxBackoff
	}

	// Jitter: 0.5 to 1.5 of the nominal backoff.
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}
