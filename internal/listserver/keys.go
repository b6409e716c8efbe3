// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package listserver

import "fmt"

const keyPrefix = "maroon"

// entryKey returns the Redis key holding one announced session.
func entryKey(id string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// indexKey returns the sorted set of announced session ids, scored by
// announcement time.
func indexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}
