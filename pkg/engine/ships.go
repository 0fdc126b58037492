// pkg/engine/ships.go
package engine

import (
	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/event"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// AddShip creates an entity of the given mass docked on planet i and
// returns the ship's index. The entity is also appended to the entity list.
func (w *World) AddShip(planet int, mass float64) (int, error) {
	p, err := w.GetPlanet(planet)
	if err != nil {
		return -1, err
	}
	return w.AddShipOn(p, mass), nil
}

// AddShipOn is AddShip for a planet that need not be in the planet list.
func (w *World) AddShipOn(p *entity.Planet, mass float64) int {
	e := entity.NewEntity(physics.Vector2D{}, physics.Vector2D{}, mass)
	s := entity.NewShip(e, p)
	s.Follow(w.time)

	w.ships = append(w.ships, s)
	w.addEntity(e)
	return len(w.ships) - 1
}

// GetShip returns the ship at index i.
func (w *World) GetShip(i int) (*entity.Ship, error) {
	if i < 0 || i >= len(w.ships) {
		return nil, indexError("ship", i, len(w.ships))
	}
	return w.ships[i], nil
}

// ShipCount returns the number of ships, docked or launched.
func (w *World) ShipCount() int {
	return len(w.ships)
}

// PointShip aims docked ship i at target and moves it to its new docking
// spot.
func (w *World) PointShip(i int, target physics.Vector2D) error {
	s, err := w.GetShip(i)
	if err != nil {
		return err
	}
	if err := s.PointAt(target); err != nil {
		return err
	}
	s.Follow(w.time)
	return nil
}

// LaunchShip releases docked ship i. From the next Step on it moves freely.
func (w *World) LaunchShip(i int) error {
	s, err := w.GetShip(i)
	if err != nil {
		return err
	}
	if err := s.Launch(); err != nil {
		return err
	}
	w.EventBus.Publish(event.NewBodyEvent(event.ShipLaunched, w, i, len(w.ships)))
	return nil
}

// ShipLaunchPredictions forecasts n positions of ship i, spread over
// (n-1)*dt from now. A docked ship is forecast as if launched now.
func (w *World) ShipLaunchPredictions(i, n int, dt float64) ([]physics.Vector2D, error) {
	s, err := w.GetShip(i)
	if err != nil {
		return nil, err
	}
	e := *s.Entity
	e.Velocity = s.LaunchVelocity()
	return w.Predict(e, w.time, w.time+float64(n-1)*dt, n), nil
}
