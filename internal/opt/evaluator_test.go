package opt

import (
	"math"
	"testing"

	"lpgroute/internal/grid"
	"lpgroute/internal/model"
	"lpgroute/internal/state"
)

func newWorld(t *testing.T, fleet ...state.FleetSpec) *state.World {
	t.Helper()
	l := state.DefaultLayout()
	if len(fleet) > 0 {
		l.Fleet = fleet
	}
	w, err := state.New(l)
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	return w
}

func part(id, x, y int, demand float64, deadline int) *model.CustomerPart {
	return &model.CustomerPart{PartID: id, OrderID: id, Pos: grid.Point{X: x, Y: y}, DemandM3: demand, DeadlineMinute: deadline}
}

func routeFor(w *state.World, truckID string, parts ...*model.CustomerPart) *model.PlannedRoute {
	var tr *model.Truck
	for _, t := range w.Fleet {
		if t.ID == truckID {
			tr = t
		}
	}
	r := model.NewPlannedRoute(tr)
	r.Sequence = append(r.Sequence, parts...)
	return r
}

func gp(x, y int) grid.Point { return grid.Point{X: x, Y: y} }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluateSingleTinyOrder(t *testing.T) {
	w := newWorld(t, state.FleetSpec{Type: "TD", Count: 1})
	ev := NewEvaluator(w)
	res := ev.EvaluateRoute(routeFor(w, "TD01", part(0, 15, 10, 5, 240)), 0)
	if !res.Feasible {
		t.Fatal("tiny order should be feasible")
	}
	if !near(res.FuelGal, 0.125) || !near(res.Cost, 0.125) {
		t.Fatalf("fuel %v cost %v, want 0.125", res.FuelGal, res.Cost)
	}
	if res.EndMinute != 42 {
		t.Fatalf("end minute %d, want 42", res.EndMinute)
	}
}

func TestEvaluateDeadlineBoundary(t *testing.T) {
	w := newWorld(t, state.FleetSpec{Type: "TD", Count: 1})
	ev := NewEvaluator(w)
	// pre-trip 15 + 6 minutes of travel
	if !ev.EvaluateRoute(routeFor(w, "TD01", part(0, 15, 10, 5, 21)), 0).Feasible {
		t.Fatal("arrival on the deadline minute must be feasible")
	}
	if ev.EvaluateRoute(routeFor(w, "TD01", part(0, 15, 10, 5, 20)), 0).Feasible {
		t.Fatal("arrival one minute late must be infeasible")
	}
}

func TestEvaluateDeadlineMiss(t *testing.T) {
	w := newWorld(t, state.FleetSpec{Type: "TD", Count: 1})
	res := NewEvaluator(w).EvaluateRoute(routeFor(w, "TD01", part(0, 60, 45, 2, 60)), 0)
	if res.Feasible || !math.IsInf(res.Cost, 1) || !math.IsInf(res.FuelGal, 1) {
		t.Fatalf("want infeasible +Inf, got %+v", res)
	}
}

func TestEvaluateBlockageDetour(t *testing.T) {
	w := newWorld(t, state.FleetSpec{Type: "TD", Count: 1})
	r := routeFor(w, "TD01", part(0, 40, 15, 5, 1440))
	base := NewEvaluator(w).EvaluateRoute(r, 0)
	for y := 0; y <= 20; y++ {
		w.Grid.SetBlocked(grid.Point{X: 30, Y: y}, true)
	}
	walled := NewEvaluator(w).EvaluateRoute(r, 0)
	if !base.Feasible || !walled.Feasible {
		t.Fatalf("both routes should be feasible: %+v %+v", base, walled)
	}
	if !(walled.FuelGal > base.FuelGal) || !(walled.EndMinute > base.EndMinute) {
		t.Fatalf("detour should cost more: base %+v walled %+v", base, walled)
	}
	// 47 km out loaded, 47 km back empty
	if want := (47*3.5 + 47*1.0) / 180; !near(walled.FuelGal, want) {
		t.Fatalf("walled fuel %v, want %v", walled.FuelGal, want)
	}
}

func TestEvaluateMidRouteReload(t *testing.T) {
	w := newWorld(t, state.FleetSpec{Type: "TA", Count: 1})
	r := routeFor(w, "TA01", part(0, 40, 40, 20, 1440), part(1, 44, 44, 20, 1440))
	res := NewEvaluator(w).EvaluateRoute(r, 0)
	if !res.Feasible || res.Reloads != 1 {
		t.Fatalf("want one reload, got %+v", res)
	}
	// plant->p0 60km full, p0->Norte 4km at 5m3, Norte->p1 4km full, p1->plant 68km at 5m3
	want := (60*15.0 + 4*5.0 + 4*15.0 + 68*5.0) / 180
	if !near(res.FuelGal, want) {
		t.Fatalf("fuel %v, want %v", res.FuelGal, want)
	}
	if !near(res.Cost-res.FuelGal, model.ReloadPenaltyGal) {
		t.Fatalf("penalty %v, want %v", res.Cost-res.FuelGal, model.ReloadPenaltyGal)
	}
	if res.EndMinute != 224 || res.ReloadMinutes != 20 {
		t.Fatalf("end %d reload minutes %d", res.EndMinute, res.ReloadMinutes)
	}
	if w.Depot("Norte").CapacityCurrent != 160 {
		t.Fatal("evaluation must not debit depot stock")
	}

	w.Depot("Norte").CapacityCurrent = 10
	w.Depot("Este").CapacityCurrent = 19
	if NewEvaluator(w).EvaluateRoute(r, 0).Feasible {
		t.Fatal("no depot holds 20m3, route must be infeasible")
	}
}

// serpentine walls off columns 1,3,..,11 leaving one gap per wall, alternating
// bottom and top, so distances from (0,0) wind through the whole left band.
func serpentine(g *grid.Grid) {
	for i, x := 0, 1; x <= 11; i, x = i+1, x+2 {
		gap := grid.Height - 1
		if i%2 == 1 {
			gap = 0
		}
		for y := 0; y < grid.Height; y++ {
			if y != gap {
				g.SetBlocked(grid.Point{X: x, Y: y}, true)
			}
		}
	}
}

func cellAt(t *testing.T, g *grid.Grid, from grid.Point, d int) grid.Point {
	t.Helper()
	for x := 0; x < grid.Width; x++ {
		for y := 0; y < grid.Height; y++ {
			p := grid.Point{X: x, Y: y}
			if !g.Blocked(p) && g.ShortestPath(from, p) == d {
				return p
			}
		}
	}
	t.Fatalf("no cell at distance %d", d)
	return grid.Point{}
}

func TestEvaluateFuelBoundary(t *testing.T) {
	w, err := state.New(state.Layout{
		Depots: []state.DepotSpec{{ID: "Planta", X: 0, Y: 0}, {ID: "Far", X: 69, Y: 49, Capacity: 100}},
		Fleet:  []state.FleetSpec{{Type: "TA", Count: 1}},
	})
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	serpentine(w.Grid)
	far := w.Depot("Far")

	// A full TA burns 15/180 gal per km, so 300 km empties the tank exactly.
	for _, tc := range []struct {
		km   int
		want bool
	}{{300, true}, {301, false}} {
		p := cellAt(t, w.Grid, grid.Point{}, tc.km)
		far.Pos = p
		r := routeFor(w, "TA01", part(0, p.X, p.Y, 25, 10000))
		r.EndDepot = far
		res := NewEvaluator(w).EvaluateRoute(r, 0)
		if res.Feasible != tc.want {
			t.Fatalf("%d km: feasible=%v, want %v (%+v)", tc.km, res.Feasible, tc.want, res)
		}
		if tc.want && !near(res.FuelGal, model.MaxFuelGal) {
			t.Fatalf("fuel %v, want a full tank", res.FuelGal)
		}
	}
}

func TestCloneReevaluatesIdentically(t *testing.T) {
	w := newWorld(t)
	ev := NewEvaluator(w)
	sol := model.NewSolution()
	sol.Routes = append(sol.Routes,
		routeFor(w, "TA01", part(0, 40, 40, 20, 1440), part(1, 44, 44, 20, 1440)),
		routeFor(w, "TD01", part(2, 15, 10, 5, 240)),
	)
	ev.EvaluateSolution(sol, 0)
	c := sol.Clone()
	ev.EvaluateSolution(c, 0)
	if c.TotalCost != sol.TotalCost || c.FullyFeasible != sol.FullyFeasible || c.OperationalFuelCost != sol.OperationalFuelCost {
		t.Fatalf("clone %v/%v, original %v/%v", c.TotalCost, c.FullyFeasible, sol.TotalCost, sol.FullyFeasible)
	}
	if !sol.FullyFeasible || !near(sol.TotalCost-sol.OperationalFuelCost, model.ReloadPenaltyGal) {
		t.Fatalf("operational fuel must exclude penalties: %v vs %v", sol.TotalCost, sol.OperationalFuelCost)
	}
}

func TestAggregateInfinity(t *testing.T) {
	w := newWorld(t, state.FleetSpec{Type: "TD", Count: 1})
	sol := model.NewSolution()
	sol.Routes = append(sol.Routes, routeFor(w, "TD01", part(0, 15, 10, 5, 240)))
	NewEvaluator(w).EvaluateSolution(sol, 0)
	if !sol.FullyFeasible {
		t.Fatal("expected feasible")
	}
	sol.Unassigned = append(sol.Unassigned, part(1, 5, 5, 1, 240))
	Aggregate(sol)
	if sol.FullyFeasible || !math.IsInf(sol.TotalCost, 1) || !math.IsInf(sol.OperationalFuelCost, 1) {
		t.Fatalf("an unassigned part must saturate the cost: %+v", sol)
	}
}
