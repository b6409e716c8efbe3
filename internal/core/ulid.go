// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idGenerator hands out strictly increasing ULIDs. Connection, player and
// event identities share one generator so they sort in creation order.
type idGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var ids = &idGenerator{
	entropy: ulid.Monotonic(rand.Reader, 0),
	now:     time.Now,
}

func (g *idGenerator) next() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// NewULID returns the next session-wide identity.
func NewULID() ulid.ULID {
	return ids.next()
}
