// pkg/engine/bodies.go
package engine

import (
	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/event"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// AddEntity appends a free body and returns its index.
func (w *World) AddEntity(pos, vel physics.Vector2D, mass float64) int {
	return w.addEntity(entity.NewEntity(pos, vel, mass))
}

func (w *World) addEntity(e *entity.Entity) int {
	w.entities = append(w.entities, e)
	i := len(w.entities) - 1
	w.recordCounts()
	w.EventBus.Publish(event.NewBodyEvent(event.EntityAdded, w, i, len(w.entities)))
	return i
}

// GetEntity returns the entity at index i. The pointer stays valid after
// removals shift the index.
func (w *World) GetEntity(i int) (*entity.Entity, error) {
	if i < 0 || i >= len(w.entities) {
		return nil, indexError("entity", i, len(w.entities))
	}
	return w.entities[i], nil
}

// RmEntity removes the entity at index i; later entities shift down by one.
// A ship driving the entity is removed with it.
func (w *World) RmEntity(i int) error {
	if i < 0 || i >= len(w.entities) {
		return indexError("entity", i, len(w.entities))
	}
	removed := w.entities[i]
	w.entities = append(w.entities[:i], w.entities[i+1:]...)

	for j, s := range w.ships {
		if s.Entity == removed {
			w.ships = append(w.ships[:j], w.ships[j+1:]...)
			break
		}
	}

	w.recordCounts()
	w.EventBus.Publish(event.NewBodyEvent(event.EntityRemoved, w, i, len(w.entities)))
	return nil
}

// EntityCount returns the number of entities.
func (w *World) EntityCount() int {
	return len(w.entities)
}

// NewPlanet builds a planet evaluated by the world's solver without adding
// it, so parent chains can be assembled before AddPlanetExisting.
func (w *World) NewPlanet(mass float64, orbit physics.Orbit, anchor physics.Vector2D) *entity.Planet {
	p := entity.NewPlanet(w.solver, mass, orbit, anchor)
	p.SetTime(w.time)
	return p
}

// AddPlanet validates the elements, appends a parentless planet and
// returns its index.
func (w *World) AddPlanet(mass float64, orbit physics.Orbit, anchor physics.Vector2D) (int, error) {
	p := w.NewPlanet(mass, orbit, anchor)
	if err := p.Validate(); err != nil {
		return -1, err
	}
	return w.AddPlanetExisting(p), nil
}

// AddPlanetExisting appends a planet that may already be shared as the
// parent of other planets. The planet is rebound to the world's solver and
// its cache is refreshed for the current time.
func (w *World) AddPlanetExisting(p *entity.Planet) int {
	p.SetSolver(w.solver)
	p.SetTime(w.time)
	w.planets = append(w.planets, p)
	i := len(w.planets) - 1
	w.recordCounts()
	w.EventBus.Publish(event.NewBodyEvent(event.PlanetAdded, w, i, len(w.planets)))
	return i
}

// GetPlanet returns the planet at index i.
func (w *World) GetPlanet(i int) (*entity.Planet, error) {
	if i < 0 || i >= len(w.planets) {
		return nil, indexError("planet", i, len(w.planets))
	}
	return w.planets[i], nil
}

// RmPlanet removes the planet at index i; later planets shift down by one.
// Children still referencing it as parent keep it alive and keep orbiting
// it, but it no longer attracts entities.
func (w *World) RmPlanet(i int) error {
	if i < 0 || i >= len(w.planets) {
		return indexError("planet", i, len(w.planets))
	}
	w.planets = append(w.planets[:i], w.planets[i+1:]...)
	w.recordCounts()
	w.EventBus.Publish(event.NewBodyEvent(event.PlanetRemoved, w, i, len(w.planets)))
	return nil
}

// PlanetCount returns the number of planets.
func (w *World) PlanetCount() int {
	return len(w.planets)
}
