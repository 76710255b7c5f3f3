/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// probe discovers the total resource size and verifies that the server
// honors byte range requests. It runs exactly once, at stream
// construction; its result holds for the lifetime of the stream.
//
// A HEAD request is tried first (cheap, no body). Servers that reject
// HEAD or answer it without the needed headers get a minimal ranged
// request instead, whose 206 response both proves range support and
// carries the total size in Content-Range.
func (f *fetcher) probe(ctx context.Context) (int64, error) {
	if f.method == http.MethodGet {
		size, err := f.probeHead(ctx)
		if err == nil || !errors.Is(err, errProbeFallback) {
			return size, err
		}
	}
	return f.probeRanged(ctx)
}

// errProbeFallback signals that HEAD was inconclusive and the ranged
// probe should decide.
var errProbeFallback = errors.New("remoteio: HEAD probe inconclusive")

func (f *fetcher) probeHead(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, f.url, nil)
	if err != nil {
		return 0, err
	}
	for k, vs := range f.headers {
		req.Header[k] = vs
	}

	logRequest(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, errProbeFallback
	}
	resp.Body.Close()

	logResponse(resp)

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed,
		resp.StatusCode == http.StatusNotImplemented,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode >= 500:
		// Some servers only accept the configured method; others are
		// flaky. Either way the ranged probe decides.
		return 0, errProbeFallback
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("remoteio: HEAD %s returned %s", f.url, resp.Status)
	}

	if !strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes") {
		return 0, fmt.Errorf("%w: no Accept-Ranges on HEAD response", ErrRangesUnsupported)
	}

	meta := metadataFromHeaders(resp.Header)
	if meta.Length < 0 {
		// No Content-Length (e.g. chunked HEAD); let the ranged probe
		// extract the total from Content-Range.
		return 0, errProbeFallback
	}

	f.metaMu.Lock()
	f.meta = meta
	f.metaMu.Unlock()
	return meta.Length, nil
}

// probeRanged requests the first byte of the resource. Transient
// transport failures retry with the configured backoff.
func (f *fetcher) probeRanged(ctx context.Context) (int64, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retryAttempts; attempt++ {
		if attempt > 0 {
			if err := f.backoff(ctx, attempt); err != nil {
				return 0, err
			}
		}

		size, err := f.probeRangedOnce(ctx)
		if err == nil {
			return size, nil
		}
		if !errors.Is(err, errTransient) {
			return 0, err
		}
		lastErr = err
	}

	return 0, fmt.Errorf("%w after %d attempts: %w", ErrFetchFailed, f.retryAttempts+1, lastErr)
}

func (f *fetcher) probeRangedOnce(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, f.method, f.url, nil)
	if err != nil {
		return 0, err
	}
	for k, vs := range f.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Range", "bytes=0-0")

	logRequest(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errTransient, err)
	}
	defer resp.Body.Close()

	logResponse(resp)

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return 0, fmt.Errorf("%w: got %s for bytes=0-0", ErrRangesUnsupported, resp.Status)
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// Empty resources cannot satisfy bytes=0-0; the total still
		// arrives as "bytes */0".
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: HTTP %s", errTransient, resp.Status)
	default:
		return 0, fmt.Errorf("remoteio: probe %s %s returned %s", f.method, f.url, resp.Status)
	}

	meta := metadataFromHeaders(resp.Header)
	if meta.Length < 0 {
		return 0, fmt.Errorf("%w: no total in Content-Range", ErrSizeUnknown)
	}

	f.metaMu.Lock()
	f.meta = meta
	f.metaMu.Unlock()
	return meta.Length, nil
}
