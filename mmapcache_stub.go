/* SPDX-License-Identifier: BSD-2-Clause */

//go:build !unix

package remoteio

import "errors"

func newMmapCache(size int64) (Cache, error) {
	return nil, errors.New("remoteio: mmap cache requires a unix system")
}
