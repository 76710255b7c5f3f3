/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

// Span is a half-open byte interval [Start, End) within the resource.
type Span struct {
	Start, End int64
}

// Len returns the number of bytes in the span.
func (s Span) Len() int64 { return s.End - s.Start }

// Empty reports whether the span contains no bytes.
func (s Span) Empty() bool { return s.End <= s.Start }

// mergeable reports whether s and o overlap or touch.
func (s Span) mergeable(o Span) bool {
	return s.Start <= o.End && o.Start <= s.End
}

// intervalSet is an ordered list of disjoint, non-adjacent spans sorted
// by Start. Invariant: no two spans overlap or touch; insert
// re-establishes it by coalescing.
type intervalSet []Span

// insert adds s to the set, merging it with any overlapping or
// adjacent spans.
func (set *intervalSet) insert(s Span) {
	if s.Empty() {
		return
	}
	spans := *set

	i := 0
	for i < len(spans) && spans[i].End < s.Start {
		i++
	}
	j := i
	for j < len(spans) && spans[j].Start <= s.End {
		s.Start = min(s.Start, spans[j].Start)
		s.End = max(s.End, spans[j].End)
		j++
	}

	merged := make(intervalSet, 0, len(spans)-(j-i)+1)
	merged = append(merged, spans[:i]...)
	merged = append(merged, s)
	merged = append(merged, spans[j:]...)
	*set = merged
}

// gaps returns the maximal sub-spans of s not covered by the set,
// in ascending order.
func (set intervalSet) gaps(s Span) []Span {
	var out []Span
	cur := s.Start
	for _, e := range set {
		if e.End <= cur {
			continue
		}
		if e.Start >= s.End {
			break
		}
		if e.Start > cur {
			out = append(out, Span{cur, min(e.Start, s.End)})
		}
		cur = e.End
		if cur >= s.End {
			return out
		}
	}
	if cur < s.End {
		out = append(out, Span{cur, s.End})
	}
	return out
}

// covered reports whether s lies entirely within a single cached span.
// Because the set is coalesced, any fully cached span is contiguous.
func (set intervalSet) covered(s Span) bool {
	if s.Empty() {
		return true
	}
	for _, e := range set {
		if e.Start <= s.Start && s.End <= e.End {
			return true
		}
		if e.Start > s.Start {
			break
		}
	}
	return false
}

// size returns the total number of bytes covered by the set.
func (set intervalSet) size() int64 {
	var n int64
	for _, e := range set {
		n += e.Len()
	}
	return n
}
