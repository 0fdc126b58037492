// pkg/engine/world_test.go
package engine

import (
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/event"
	"github.com/opd-ai/go-swingbye/pkg/logging"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

func newTestWorld(t testing.TB) *World {
	t.Helper()
	return NewWorld(physics.DefaultParams(), WithLogger(logging.Discard()))
}

func vecNear(a, b physics.Vector2D, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

// addCircularPair adds a unit-mass root at the origin and a unit-mass child
// on a circular orbit of radius 1 around it.
func addCircularPair(t testing.TB, w *World) (*entity.Planet, *entity.Planet) {
	t.Helper()
	root := w.NewPlanet(1, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{})
	child := w.NewPlanet(1, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{})
	if err := child.SetParent(root); err != nil {
		t.Fatalf("SetParent() error = %v", err)
	}
	w.AddPlanetExisting(root)
	w.AddPlanetExisting(child)
	return root, child
}

func TestNewWorld(t *testing.T) {
	w := newTestWorld(t)

	if w.Time() != 0 {
		t.Errorf("Time() = %v, want 0", w.Time())
	}
	if w.EntityCount() != 0 || w.PlanetCount() != 0 || w.ShipCount() != 0 {
		t.Errorf("new world should be empty, got %d entities, %d planets, %d ships",
			w.EntityCount(), w.PlanetCount(), w.ShipCount())
	}
	if w.Params() != physics.DefaultParams() {
		t.Errorf("Params() = %+v, want defaults", w.Params())
	}
	if w.EventBus == nil || w.Metrics == nil || w.Solver() == nil {
		t.Error("NewWorld should create an event bus, metrics and a solver")
	}
}

func TestWorld_ForcesOn_NoPlanets(t *testing.T) {
	w := newTestWorld(t)
	bodies := []*entity.Entity{
		entity.NewEntity(physics.Vector2D{}, physics.Vector2D{}, 1),
		entity.NewEntity(physics.Vector2D{X: -30, Y: 12}, physics.Vector2D{X: 1}, 50),
	}

	for _, b := range bodies {
		for _, tm := range []float64{0, 3.5, -100} {
			if f := w.ForcesOn(b, tm); f != (physics.Vector2D{}) {
				t.Errorf("ForcesOn(%v, %v) = %v, want zero", b, tm, f)
			}
		}
	}
}

func TestWorld_ForcesOn_SoftenedCombinedMass(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.AddPlanet(2, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{X: 3, Y: 4}); err != nil {
		t.Fatal(err)
	}
	body := entity.NewEntity(physics.Vector2D{}, physics.Vector2D{}, 1)

	// d = 5, softened to 6; G*(1+2)/36 along (0.6, 0.8)
	want := physics.Vector2D{X: 0.6 * 3 / 36, Y: 0.8 * 3 / 36}
	if got := w.ForcesOn(body, 0); !vecNear(got, want, 1e-15) {
		t.Errorf("ForcesOn() = %v, want %v", got, want)
	}
}

func TestWorld_ForcesOn_SumsPlanets(t *testing.T) {
	w := newTestWorld(t)
	for _, anchor := range []physics.Vector2D{{X: 10}, {X: -10}} {
		if _, err := w.AddPlanet(5, physics.Orbit{SemiMajorAxis: 1}, anchor); err != nil {
			t.Fatal(err)
		}
	}
	body := entity.NewEntity(physics.Vector2D{}, physics.Vector2D{}, 1)

	if got := w.ForcesOn(body, 0); !vecNear(got, physics.Vector2D{}, 1e-15) {
		t.Errorf("symmetric planets should cancel, got %v", got)
	}
}

func TestWorld_ForcesOn_EvaluatesAtGivenTime(t *testing.T) {
	w := newTestWorld(t)
	_, child := addCircularPair(t, w)
	body := entity.NewEntity(physics.Vector2D{X: 0, Y: -5}, physics.Vector2D{}, 1)

	period := 2 * math.Pi * math.Sqrt(1.0/2.0)
	a := w.ForcesOn(body, 0)
	b := w.ForcesOn(body, period/4)

	if vecNear(a, b, 1e-9) {
		t.Errorf("forces at different times should differ, both %v", a)
	}
	if child.Time() != 0 {
		t.Errorf("ForcesOn changed the planet cache time to %v", child.Time())
	}
}

func TestWorld_ForcesOn_CoincidentIsFinite(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.AddPlanet(3, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{X: 2, Y: 2}); err != nil {
		t.Fatal(err)
	}
	w.AddEntity(physics.Vector2D{X: 2, Y: 2}, physics.Vector2D{}, 1)
	e, _ := w.GetEntity(0)

	f := w.ForcesOn(e, 0)
	if math.IsNaN(f.X) || math.IsNaN(f.Y) || math.IsInf(f.X, 0) || math.IsInf(f.Y, 0) {
		t.Errorf("ForcesOn() = %v, want finite", f)
	}
	if pe := w.PotentialEnergy(); !math.IsInf(pe, -1) {
		t.Errorf("PotentialEnergy() = %v, want -Inf for a coincident pair", pe)
	}
}

func TestWorld_CircularOrbit(t *testing.T) {
	w := newTestWorld(t)
	_, child := addCircularPair(t, w)

	if got := child.RelPosAt(0); !vecNear(got, physics.Vector2D{X: 1, Y: 0}, 1e-12) {
		t.Errorf("RelPosAt(0) = %v, want (1, 0)", got)
	}
	if got := child.GetPosition(); !vecNear(got, physics.Vector2D{X: 1, Y: 0}, 1e-12) {
		t.Errorf("cached position = %v, want (1, 0)", got)
	}
}

func TestWorld_Energies(t *testing.T) {
	w := newTestWorld(t)
	w.AddEntity(physics.Vector2D{X: 1, Y: 1}, physics.Vector2D{X: 3, Y: -4}, 2)

	if got := w.KineticEnergy(); got != 0.5*2*25 {
		t.Errorf("KineticEnergy() = %v, want 25", got)
	}
	if got := w.PotentialEnergy(); got != 0 {
		t.Errorf("PotentialEnergy() = %v, want 0", got)
	}

	if _, err := w.AddPlanet(4, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{X: 1, Y: 3}); err != nil {
		t.Fatal(err)
	}
	// unsoftened: -G*4*2/2
	if got := w.PotentialEnergy(); got != -4 {
		t.Errorf("PotentialEnergy() = %v, want -4", got)
	}
}

func TestWorld_SetTimeIdempotent(t *testing.T) {
	w := newTestWorld(t)
	_, child := addCircularPair(t, w)

	w.SetTime(2.5)
	pos, vel := child.GetPosition(), child.GetVelocity()
	w.SetTime(2.5)

	if child.GetPosition() != pos || child.GetVelocity() != vel {
		t.Errorf("second SetTime changed cache: (%v, %v) -> (%v, %v)",
			pos, vel, child.GetPosition(), child.GetVelocity())
	}
	if w.Time() != 2.5 {
		t.Errorf("Time() = %v, want 2.5", w.Time())
	}
}

func TestWorld_SetTimePublishes(t *testing.T) {
	w := newTestWorld(t)
	var got *event.TimeEvent
	w.EventBus.Subscribe(event.TimeChanged, func(e event.Event) {
		got = e.(*event.TimeEvent)
	})

	w.SetTime(4)

	if got == nil || got.Previous != 0 || got.Time != 4 {
		t.Errorf("TimeChanged event = %+v", got)
	}
}

func TestWorld_StepFreeFlight(t *testing.T) {
	w := newTestWorld(t)
	w.AddEntity(physics.Vector2D{}, physics.Vector2D{X: 1, Y: 2}, 1)

	w.Step(0.5)
	w.Step(0.5)

	e, _ := w.GetEntity(0)
	if !vecNear(e.Position, physics.Vector2D{X: 1, Y: 2}, 1e-15) {
		t.Errorf("Position = %v, want (1, 2)", e.Position)
	}
	if e.Velocity != (physics.Vector2D{X: 1, Y: 2}) {
		t.Errorf("Velocity = %v, want unchanged", e.Velocity)
	}
	if w.Time() != 1 {
		t.Errorf("Time() = %v, want 1", w.Time())
	}
}

func TestWorld_StepMatchesRK4AndRefreshesPlanets(t *testing.T) {
	w := newTestWorld(t)
	_, child := addCircularPair(t, w)
	w.AddEntity(physics.Vector2D{X: 0, Y: 4}, physics.Vector2D{X: 0.3, Y: 0}, 1)

	e, _ := w.GetEntity(0)
	want := *e
	physics.RK4(&want, w.ForcesOn, 0, 0.1)

	w.Step(0.1)

	if e.Position != want.Position || e.Velocity != want.Velocity {
		t.Errorf("Step state (%v, %v), want RK4 (%v, %v)", e.Position, e.Velocity, want.Position, want.Velocity)
	}
	if child.Time() != 0.1 || child.GetPosition() != child.PosAt(0.1) {
		t.Errorf("planet cache not refreshed: time %v", child.Time())
	}
}

func TestWorld_PredictPurity(t *testing.T) {
	w := newTestWorld(t)
	addCircularPair(t, w)
	w.AddEntity(physics.Vector2D{X: 0, Y: 3}, physics.Vector2D{X: 0.5, Y: 0}, 1)
	e, _ := w.GetEntity(0)
	before := *e

	first := w.Predict(*e, 0, 10, 40)
	second := w.Predict(*e, 0, 10, 40)

	if len(first) != 40 {
		t.Fatalf("len(Predict()) = %d, want 40", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("prediction %d differs between calls: %v vs %v", i, first[i], second[i])
		}
	}
	if *e != before {
		t.Errorf("Predict mutated the entity: %v -> %v", before, *e)
	}
	if w.Time() != 0 || w.EntityCount() != 1 {
		t.Errorf("Predict mutated the world: time %v, %d entities", w.Time(), w.EntityCount())
	}
}

func TestWorld_PredictMatchesStepping(t *testing.T) {
	w := newTestWorld(t)
	addCircularPair(t, w)
	w.AddEntity(physics.Vector2D{X: 0, Y: 3}, physics.Vector2D{X: 0.5, Y: 0}, 1)
	e, _ := w.GetEntity(0)

	preds := w.Predict(*e, 0, 1, 4)
	for i := 0; i < 4; i++ {
		w.Step(0.25)
		if e.Position != preds[i] {
			t.Errorf("step %d: position %v, predicted %v", i, e.Position, preds[i])
		}
	}
}

func TestWorld_PredictNonPositiveCount(t *testing.T) {
	w := newTestWorld(t)
	e := entity.NewEntity(physics.Vector2D{}, physics.Vector2D{X: 1}, 1)

	for _, n := range []int{0, -3} {
		got := w.Predict(*e, 0, 1, n)
		if got == nil || len(got) != 0 {
			t.Errorf("Predict(n=%d) = %v, want empty slice", n, got)
		}
	}
}

func TestWorld_RmEntityShiftsIndices(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 4; i++ {
		w.AddEntity(physics.Vector2D{X: float64(i)}, physics.Vector2D{}, 1)
	}
	e0, _ := w.GetEntity(0)
	e2, _ := w.GetEntity(2)

	if err := w.RmEntity(1); err != nil {
		t.Fatalf("RmEntity() error = %v", err)
	}

	if got, _ := w.GetEntity(1); got != e2 {
		t.Errorf("GetEntity(1) = %v, want former index 2 %v", got, e2)
	}
	if got, _ := w.GetEntity(0); got != e0 {
		t.Errorf("GetEntity(0) changed to %v", got)
	}
	if w.EntityCount() != 3 {
		t.Errorf("EntityCount() = %d, want 3", w.EntityCount())
	}
}

func TestWorld_RmPlanetShiftsIndices(t *testing.T) {
	w := newTestWorld(t)
	root, child := addCircularPair(t, w)

	if err := w.RmPlanet(0); err != nil {
		t.Fatalf("RmPlanet() error = %v", err)
	}

	if got, _ := w.GetPlanet(0); got != child {
		t.Errorf("GetPlanet(0) = %v, want the child", got)
	}
	// the removed root still anchors its child
	if child.Parent() != root {
		t.Error("child lost its parent")
	}
	w.SetTime(1)
	if got := child.GetPosition(); !vecNear(got, child.RelPosAt(1), 1e-12) {
		t.Errorf("child position %v, want orbit around removed root", got)
	}
}

func TestWorld_IndexOutOfRange(t *testing.T) {
	w := newTestWorld(t)
	w.AddEntity(physics.Vector2D{}, physics.Vector2D{}, 1)
	if _, err := w.AddPlanet(1, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"GetEntity negative", func() error { _, err := w.GetEntity(-1); return err }},
		{"GetEntity past end", func() error { _, err := w.GetEntity(1); return err }},
		{"RmEntity past end", func() error { return w.RmEntity(5) }},
		{"GetPlanet past end", func() error { _, err := w.GetPlanet(1); return err }},
		{"RmPlanet negative", func() error { return w.RmPlanet(-1) }},
		{"GetShip", func() error { _, err := w.GetShip(0); return err }},
		{"PlanetPath", func() error { _, err := w.PlanetPath(3, 0, 1, 2); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("error = %v, want ErrIndexOutOfRange", err)
			}
		})
	}
	if w.EntityCount() != 1 || w.PlanetCount() != 1 {
		t.Error("failed removals changed the lists")
	}
}

func TestWorld_AddPlanetRejectsInvalid(t *testing.T) {
	w := newTestWorld(t)

	tests := []struct {
		name    string
		mass    float64
		orbit   physics.Orbit
		wantErr error
	}{
		{"zero mass", 0, physics.Orbit{SemiMajorAxis: 1}, physics.ErrNonPositiveMass},
		{"parabolic", 1, physics.Orbit{SemiMajorAxis: 1, Eccentricity: 1}, physics.ErrParabolicOrbit},
		{"negative ecc", 1, physics.Orbit{SemiMajorAxis: 1, Eccentricity: -0.1}, physics.ErrNegativeEccentricity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := w.AddPlanet(tt.mass, tt.orbit, physics.Vector2D{})
			if !errors.Is(err, tt.wantErr) || i != -1 {
				t.Errorf("AddPlanet() = %d, %v, want -1, %v", i, err, tt.wantErr)
			}
		})
	}
	if w.PlanetCount() != 0 {
		t.Errorf("PlanetCount() = %d, want 0", w.PlanetCount())
	}
}

func TestWorld_PlanetPath(t *testing.T) {
	w := newTestWorld(t)
	addCircularPair(t, w)
	period := 2 * math.Pi * math.Sqrt(1.0/2.0)

	path, err := w.PlanetPath(1, 0, period, 5)
	if err != nil {
		t.Fatalf("PlanetPath() error = %v", err)
	}
	want := []physics.Vector2D{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}, {X: 1}}
	if len(path) != len(want) {
		t.Fatalf("len(path) = %d, want %d", len(path), len(want))
	}
	for i := range want {
		if !vecNear(path[i], want[i], 1e-9) {
			t.Errorf("path[%d] = %v, want %v", i, path[i], want[i])
		}
	}

	single, _ := w.PlanetPath(1, 0, period, 1)
	if len(single) != 1 || !vecNear(single[0], want[0], 1e-12) {
		t.Errorf("PlanetPath(n=1) = %v", single)
	}
	empty, _ := w.PlanetPath(1, 0, period, 0)
	if len(empty) != 0 {
		t.Errorf("PlanetPath(n=0) = %v, want empty", empty)
	}
}

func TestWorld_SolverDivergence(t *testing.T) {
	w := NewWorld(physics.Params{MaxIterations: 1}, WithLogger(logging.Discard()))
	var events int
	w.EventBus.Subscribe(event.SolverDiverged, func(e event.Event) {
		if _, ok := e.(*event.SolverEvent); ok {
			events++
		}
	})

	addCircularPair(t, w)

	if w.Divergences() == 0 {
		t.Error("Divergences() = 0, want solves capped at one iteration to count")
	}
	if int64(events) != w.Divergences() {
		t.Errorf("published %d events for %d divergences", events, w.Divergences())
	}
}

func TestWorld_NoDivergenceInNormalRange(t *testing.T) {
	w := newTestWorld(t)
	root := w.NewPlanet(10, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{})
	w.AddPlanetExisting(root)
	for _, ecc := range []float64{0, 0.3, 0.6, 0.9} {
		p := w.NewPlanet(1, physics.Orbit{SemiMajorAxis: 5, Eccentricity: ecc}, physics.Vector2D{})
		if err := p.SetParent(root); err != nil {
			t.Fatal(err)
		}
		w.AddPlanetExisting(p)
	}

	for i := 0; i < 100; i++ {
		w.SetTime(float64(i) * 0.37)
	}
	if w.Divergences() != 0 {
		t.Errorf("Divergences() = %d, want 0", w.Divergences())
	}
}

func TestWorld_HyperbolicOverflowCountsAsDivergence(t *testing.T) {
	w := newTestWorld(t)
	root := w.NewPlanet(1, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{})
	flyby := w.NewPlanet(1, physics.Orbit{SemiMajorAxis: -1, Eccentricity: 2}, physics.Vector2D{})
	if err := flyby.SetParent(root); err != nil {
		t.Fatal(err)
	}
	w.AddPlanetExisting(root)
	w.AddPlanetExisting(flyby)

	w.SetTime(10)
	if w.Divergences() != 0 {
		t.Fatalf("Divergences() = %d near periapsis, want 0", w.Divergences())
	}

	w.SetTime(1000)
	if w.Divergences() == 0 {
		t.Error("Divergences() = 0, want the overflowing solve to count")
	}
}

func TestWorld_AddPlanetExistingAdoptsWorldSolver(t *testing.T) {
	w := NewWorld(physics.Params{MaxIterations: 1}, WithLogger(logging.Discard()))
	root := entity.NewPlanet(nil, 1, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{})
	child := entity.NewPlanet(nil, 1, physics.Orbit{SemiMajorAxis: 1, Eccentricity: 0.5}, physics.Vector2D{})
	if err := child.SetParent(root); err != nil {
		t.Fatal(err)
	}

	w.AddPlanetExisting(root)
	w.AddPlanetExisting(child)

	if root.Solver() != w.Solver() || child.Solver() != w.Solver() {
		t.Fatal("AddPlanetExisting() kept the planet's own solver")
	}
	if w.Divergences() == 0 {
		t.Error("Divergences() = 0, want solves through the world's capped solver to count")
	}
}

func TestWorld_BodyEvents(t *testing.T) {
	w := newTestWorld(t)
	var got []*event.BodyEvent
	record := func(e event.Event) { got = append(got, e.(*event.BodyEvent)) }
	for _, typ := range []event.Type{event.EntityAdded, event.EntityRemoved, event.PlanetAdded, event.PlanetRemoved} {
		w.EventBus.Subscribe(typ, record)
	}

	w.AddEntity(physics.Vector2D{}, physics.Vector2D{}, 1)
	w.AddEntity(physics.Vector2D{}, physics.Vector2D{}, 1)
	if _, err := w.AddPlanet(1, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{}); err != nil {
		t.Fatal(err)
	}
	if err := w.RmEntity(0); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		typ          event.Type
		index, count int
	}{
		{event.EntityAdded, 0, 1},
		{event.EntityAdded, 1, 2},
		{event.PlanetAdded, 0, 1},
		{event.EntityRemoved, 0, 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].GetType() != want[i].typ || got[i].Index != want[i].index || got[i].Count != want[i].count {
			t.Errorf("event %d = %v %d/%d, want %v %d/%d", i,
				got[i].GetType(), got[i].Index, got[i].Count, want[i].typ, want[i].index, want[i].count)
		}
	}
}

func TestWorld_Metrics(t *testing.T) {
	w := newTestWorld(t)
	w.AddEntity(physics.Vector2D{X: 5}, physics.Vector2D{Y: 1}, 1)
	addCircularPair(t, w)
	w.Step(0.1)

	rec := httptest.NewRecorder()
	w.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`swingbye_bodies{kind="entity"} 1`,
		`swingbye_bodies{kind="planet"} 2`,
		`swingbye_steps_total 1`,
		`swingbye_kepler_solves_total{kind="elliptic",outcome="converged"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestWorld_String(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.AddPlanet(1, physics.Orbit{SemiMajorAxis: 1}, physics.Vector2D{}); err != nil {
		t.Fatal(err)
	}
	w.AddEntity(physics.Vector2D{X: 1}, physics.Vector2D{}, 1)

	want := "Planets:\n" +
		"\tPlanet(mass=1.000000, maxis=1.000000, ecc=0.000000, time0=0.000000, incl=0.000000, parg=0.000000, anchor=(0.000000, 0.000000))\n" +
		"Entities:\n" +
		"\tEntity(pos=(1.000000, 0.000000), vel=(0.000000, 0.000000), mass=1.000000)\n"
	if got := w.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func BenchmarkWorld_Step(b *testing.B) {
	w := newTestWorld(b)
	addCircularPair(b, w)
	for i := 0; i < 10; i++ {
		w.AddEntity(physics.Vector2D{X: float64(i) + 3}, physics.Vector2D{Y: 0.5}, 1)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step(0.01)
	}
}
