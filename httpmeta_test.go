/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import (
	"net/http"
	"testing"
)

// helper to build headers
func hdr(kv ...string) http.Header {
	h := make(http.Header)
	for i := 0; i < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestMetadataFromHeaders_Validators(t *testing.T) {
	h := hdr(
		"ETag", `"abc123"`,
		"Last-Modified", "Tue, 06 Nov 2025 19:00:00 GMT",
	)

	m := metadataFromHeaders(h)

	if m.ETag != `"abc123"` {
		t.Errorf("expected ETag %q, got %q", `"abc123"`, m.ETag)
	}
	if m.LastModified != "Tue, 06 Nov 2025 19:00:00 GMT" {
		t.Errorf("expected Last-Modified, got %q", m.LastModified)
	}
	if m.Length != -1 {
		t.Errorf("expected unknown length, got %d", m.Length)
	}
}

func TestMetadataFromHeaders_ContentRangeTakesPrecedence(t *testing.T) {
	h := hdr(
		"Content-Range", "bytes 0-511/4096",
		"Content-Length", "512",
	)
	m := metadataFromHeaders(h)
	if m.Length != 4096 {
		t.Errorf("expected Length=4096 from Content-Range, got %d", m.Length)
	}
}

func TestMetadataFromHeaders_ContentLengthFallback(t *testing.T) {
	m := metadataFromHeaders(hdr("Content-Length", "99999"))
	if m.Length != 99999 {
		t.Errorf("expected Length=99999, got %d", m.Length)
	}
}

func TestMetadataEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Metadata
		want bool
	}{
		{"both empty", Metadata{Length: -1}, Metadata{Length: -1}, true},
		{"same etag", Metadata{ETag: "x", Length: -1}, Metadata{ETag: "x", Length: -1}, true},
		{"different etag", Metadata{ETag: "x", Length: -1}, Metadata{ETag: "y", Length: -1}, false},
		{"etag absent on one side", Metadata{ETag: "x", Length: -1}, Metadata{Length: -1}, true},
		{"different length", Metadata{Length: 10}, Metadata{Length: 20}, false},
		{"length unknown on one side", Metadata{Length: 10}, Metadata{Length: -1}, true},
		{"different last-modified", Metadata{LastModified: "a", Length: -1}, Metadata{LastModified: "b", Length: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetadataApplyValidators(t *testing.T) {
	m := Metadata{ETag: `"v1"`, LastModified: "Tue, 06 Nov 2025 19:00:00 GMT"}
	h := make(http.Header)
	m.ApplyValidators(h)

	if got := h.Get("If-Match"); got != `"v1"` {
		t.Errorf("If-Match = %q", got)
	}
	if got := h.Get("If-Unmodified-Since"); got != m.LastModified {
		t.Errorf("If-Unmodified-Since = %q", got)
	}

	h = make(http.Header)
	Metadata{}.ApplyValidators(h)
	if len(h) != 0 {
		t.Errorf("empty metadata should add no headers, got %v", h)
	}
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		in        string
		wantSpan  Span
		wantTotal int64
		wantErr   bool
	}{
		{"bytes 0-99/1000", Span{0, 100}, 1000, false},
		{"bytes 900-999/1000", Span{900, 1000}, 1000, false},
		{"bytes 0-0/*", Span{0, 1}, -1, false},
		{"bytes */0", Span{}, 0, false},
		{"bytes */1234", Span{}, 1234, false},
		{"0-99/1000", Span{}, 0, true},
		{"bytes 99-0/1000", Span{}, 0, true},
		{"bytes 0-99", Span{}, 0, true},
		{"bytes a-b/c", Span{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			span, total, err := parseContentRange(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if span != tt.wantSpan || total != tt.wantTotal {
				t.Fatalf("got span=%v total=%d, want span=%v total=%d",
					span, total, tt.wantSpan, tt.wantTotal)
			}
		})
	}
}
