/* SPDX-License-Identifier: BSD-2-Clause */

package remoteio

import "sync/atomic"

// metrics counts the bytes that crossed the network boundary. The
// counter is pre-deduplication: a fetch whose span partially overlaps
// already-cached bytes still counts its full length. Never reset.
type metrics struct {
	fetched atomic.Int64
}

func (m *metrics) add(n int64) {
	m.fetched.Add(n)
}

func (m *metrics) bytesFetched() int64 {
	return m.fetched.Load()
}
