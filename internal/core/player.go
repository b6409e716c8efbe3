// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/maroonlab/maroon/internal/wire"
)

// Pose is a position plus orientation.
type Pose struct {
	Position wire.Vector3
	Rotation wire.Quaternion
}

// PoseFromSpawn extracts the pose carried by a spawn message, verbatim.
func PoseFromSpawn(m wire.CharacterSpawn) Pose {
	return Pose{Position: m.Position, Rotation: m.Rotation}
}

// SpawnMessage builds the spawn message announcing this pose.
func (p Pose) SpawnMessage() wire.CharacterSpawn {
	return wire.CharacterSpawn{Position: p.Position, Rotation: p.Rotation}
}

// Player is the simulation entity controlled by exactly one connection.
type Player struct {
	ID           ulid.ULID
	ConnectionID ulid.ULID
	Template     string
	Pose         Pose
	SpawnedAt    time.Time
}
