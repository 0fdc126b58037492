// pkg/engine/snapshot.go
package engine

import (
	"math"

	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// Snapshot represents the world state at one instant. It shares no memory
// with the World and encodes to JSON.
type Snapshot struct {
	Time          float64       `json:"time"`
	Planets       []PlanetState `json:"planets"`
	Entities      []EntityState `json:"entities"`
	Ships         []ShipState   `json:"ships"`
	KineticEnergy float64       `json:"kineticEnergy"`
	// PotentialEnergy is nil when an entity sits on a planet and the sum
	// is not finite.
	PotentialEnergy *float64 `json:"potentialEnergy,omitempty"`
	Divergences     int64    `json:"divergences"`
}

// PlanetState represents a snapshot of a planet's cached state
type PlanetState struct {
	Index    int              `json:"index"`
	Mass     float64          `json:"mass"`
	Position physics.Vector2D `json:"pos"`
	Velocity physics.Vector2D `json:"vel"`
	// Parent is the list index of the parent, or -1 when the planet is a
	// root or its parent is not in the list.
	Parent int `json:"parent"`
}

// EntityState represents a snapshot of a free body
type EntityState struct {
	Index    int              `json:"index"`
	Mass     float64          `json:"mass"`
	Position physics.Vector2D `json:"pos"`
	Velocity physics.Vector2D `json:"vel"`
}

// ShipState represents a snapshot of a ship controller
type ShipState struct {
	Index   int              `json:"index"`
	Entity  int              `json:"entity"`
	Docked  bool             `json:"docked"`
	Heading physics.Vector2D `json:"heading"`

	// HeadingAngle is Heading in radians from +x.
	HeadingAngle float64 `json:"headingAngle"`
}

// Snapshot captures the current state.
func (w *World) Snapshot() *Snapshot {
	planetIndex := make(map[*entity.Planet]int, len(w.planets))
	for i, p := range w.planets {
		planetIndex[p] = i
	}
	entityIndex := make(map[*entity.Entity]int, len(w.entities))
	for i, e := range w.entities {
		entityIndex[e] = i
	}

	s := &Snapshot{
		Time:          w.time,
		Planets:       make([]PlanetState, len(w.planets)),
		Entities:      make([]EntityState, len(w.entities)),
		Ships:         make([]ShipState, len(w.ships)),
		KineticEnergy: w.KineticEnergy(),
		Divergences:   w.Divergences(),
	}

	for i, p := range w.planets {
		parent := -1
		if j, ok := planetIndex[p.Parent()]; ok {
			parent = j
		}
		s.Planets[i] = PlanetState{
			Index:    i,
			Mass:     p.Mass,
			Position: p.GetPosition(),
			Velocity: p.GetVelocity(),
			Parent:   parent,
		}
	}
	for i, e := range w.entities {
		s.Entities[i] = EntityState{
			Index:    i,
			Mass:     e.Mass,
			Position: e.Position,
			Velocity: e.Velocity,
		}
	}
	for i, sh := range w.ships {
		s.Ships[i] = ShipState{
			Index:        i,
			Entity:       entityIndex[sh.Entity],
			Docked:       sh.Docked(),
			Heading:      sh.Heading(),
			HeadingAngle: sh.Heading().Angle(),
		}
	}

	if pe := w.PotentialEnergy(); !math.IsInf(pe, 0) && !math.IsNaN(pe) {
		s.PotentialEnergy = &pe
	}
	return s
}
