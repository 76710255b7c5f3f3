/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Metadata captures ETag and Last-Modified headers so that later range
// fetches can be made conditional: if the resource changes on the
// server mid-stream, mixing old and new bytes in the cache would be
// silent corruption.
type Metadata struct {
	ETag         string
	LastModified string
	Length       int64
}

// metadataFromHeaders extracts validators and the total length from
// response headers. Length comes from Content-Range on 206 responses,
// falling back to Content-Length on HEAD or full responses.
func metadataFromHeaders(h http.Header) Metadata {
	m := Metadata{
		ETag:         h.Get("ETag"),
		LastModified: h.Get("Last-Modified"),
		Length:       -1,
	}

	if cr := h.Get("Content-Range"); cr != "" {
		if _, total, err := parseContentRange(cr); err == nil {
			m.Length = total
		}
	} else if cl := h.Get("Content-Length"); cl != "" {
		if length, err := strconv.ParseInt(cl, 10, 64); err == nil {
			m.Length = length
		}
	}

	return m
}

// Equal reports whether two metadata values can belong to the same
// resource version. Absent validators compare equal.
func (m Metadata) Equal(other Metadata) bool {
	if m.ETag != "" && other.ETag != "" && m.ETag != other.ETag {
		return false
	}
	if m.LastModified != "" && other.LastModified != "" && m.LastModified != other.LastModified {
		return false
	}
	if m.Length >= 0 && other.Length >= 0 && m.Length != other.Length {
		return false
	}
	return true
}

// ApplyValidators adds conditional headers to an outgoing request.
func (m Metadata) ApplyValidators(h http.Header) {
	if m.ETag != "" {
		h.Set("If-Match", m.ETag)
	}
	if m.LastModified != "" {
		h.Set("If-Unmodified-Since", m.LastModified)
	}
}

// parseContentRange parses a Content-Range header value of the form
// "bytes start-end/total", "bytes start-end/*" or "bytes */total".
// The returned span is half-open; total is -1 when unknown.
func parseContentRange(v string) (Span, int64, error) {
	rest, ok := strings.CutPrefix(v, "bytes ")
	if !ok {
		return Span{}, -1, fmt.Errorf("invalid Content-Range %q", v)
	}
	rangePart, totalPart, ok := strings.Cut(rest, "/")
	if !ok {
		return Span{}, -1, fmt.Errorf("invalid Content-Range %q", v)
	}

	total := int64(-1)
	if totalPart != "*" {
		t, err := strconv.ParseInt(totalPart, 10, 64)
		if err != nil {
			return Span{}, -1, fmt.Errorf("invalid Content-Range total %q", v)
		}
		total = t
	}

	if rangePart == "*" {
		return Span{}, total, nil
	}
	startPart, endPart, ok := strings.Cut(rangePart, "-")
	if !ok {
		return Span{}, -1, fmt.Errorf("invalid Content-Range %q", v)
	}
	start, err := strconv.ParseInt(startPart, 10, 64)
	if err != nil {
		return Span{}, -1, fmt.Errorf("invalid Content-Range start %q", v)
	}
	end, err := strconv.ParseInt(endPart, 10, 64)
	if err != nil || end < start {
		return Span{}, -1, fmt.Errorf("invalid Content-Range end %q", v)
	}
	return Span{Start: start, End: end + 1}, total, nil
}
