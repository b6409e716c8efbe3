// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package spawn

import (
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/core"
)

// Roster tracks the players currently alive in a hosted session.
type Roster struct {
	mu      sync.RWMutex
	players map[ulid.ULID]core.Player
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{players: make(map[ulid.ULID]core.Player)}
}

func (r *Roster) add(p core.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.ID] = p
}

func (r *Roster) remove(id ulid.ULID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// Get returns the player with the given id.
func (r *Roster) Get(id ulid.ULID) (core.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return core.Player{}, oops.Code("PLAYER_NOT_FOUND").
			With("player_id", id.String()).
			Errorf("player %s not found", id.String())
	}
	return p, nil
}

// List returns the live players ordered by spawn (their ids are monotonic).
func (r *Roster) List() []core.Player {
	r.mu.RLock()
	out := make([]core.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}

// Len returns how many players are alive.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
