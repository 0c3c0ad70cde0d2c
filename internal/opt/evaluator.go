package opt

import (
	"math"

	"lpgroute/internal/grid"
	"lpgroute/internal/model"
	"lpgroute/internal/state"
)

// RouteEval is the outcome of simulating a planned route on paper.
type RouteEval struct {
	Feasible bool
	// FuelGal is the plain sum of leg consumptions.
	FuelGal float64
	// Cost is FuelGal plus reload penalties; it is what the optimizer minimises.
	Cost          float64
	PenaltyGal    float64
	EndMinute     int
	Reloads       int
	ReloadMinutes int
}

func infeasible(start int) RouteEval {
	return RouteEval{Feasible: false, FuelGal: math.Inf(1), Cost: math.Inf(1), EndMinute: start}
}

// Evaluator judges routes against the world's grid, depots and fleet without
// mutating any of them. Distances are memoised, so an Evaluator must not be
// kept across a change of the blockage matrix.
type Evaluator struct {
	World *state.World
	memo  map[[2]grid.Point]int

	// Evaluations counts EvaluateRoute calls.
	Evaluations int
}

func NewEvaluator(w *state.World) *Evaluator {
	return &Evaluator{World: w, memo: map[[2]grid.Point]int{}}
}

func (e *Evaluator) Distance(a, b grid.Point) int {
	k := [2]grid.Point{a, b}
	if d, ok := e.memo[k]; ok {
		return d
	}
	d := e.World.Distance(a, b)
	e.memo[k] = d
	return d
}

// EvaluateRoute simulates r starting at startMinute: pre-trip, then each part in
// order with an optional reload detour, then the return leg.
func (e *Evaluator) EvaluateRoute(r *model.PlannedRoute, startMinute int) RouteEval {
	e.Evaluations++
	if r == nil || r.Truck == nil || r.StartDepot == nil || r.EndDepot == nil {
		return infeasible(startMinute)
	}
	tt := r.Truck.Type
	res := RouteEval{}
	now := startMinute + model.PreTripMinutes
	loc := r.StartDepot.Pos
	load := math.Min(r.Load(), tt.CapacityM3)
	fuel := model.MaxFuelGal
	total := 0.0

	for _, part := range r.Sequence {
		if load < part.DemandM3-model.LoadTolerance {
			depot, toDepot := e.World.NearestReloadDepot(loc, part.DemandM3, e.Distance)
			if depot == nil {
				return infeasible(startMinute)
			}
			if e.Distance(depot.Pos, part.Pos) == grid.Unreachable {
				return infeasible(startMinute)
			}
			f := model.FuelForLeg(toDepot, load, tt)
			if f > fuel {
				return infeasible(startMinute)
			}
			total += f
			fuel = model.MaxFuelGal
			load = tt.CapacityM3
			res.PenaltyGal += model.ReloadPenaltyGal
			res.Reloads++
			extra := model.TravelMinutes(toDepot) + model.ReloadMinutes
			res.ReloadMinutes += extra
			now += extra
			loc = depot.Pos
		}

		d := e.Distance(loc, part.Pos)
		if d == grid.Unreachable {
			return infeasible(startMinute)
		}
		f := model.FuelForLeg(d, load, tt)
		if f > fuel {
			return infeasible(startMinute)
		}
		total += f
		fuel -= f
		now += model.TravelMinutes(d)
		if now > part.DeadlineMinute {
			return infeasible(startMinute)
		}
		now += model.DischargeMinutes
		loc = part.Pos
		load -= part.DemandM3
		if load < 0 {
			load = 0
		}
	}

	d := e.Distance(loc, r.EndDepot.Pos)
	if d == grid.Unreachable {
		return infeasible(startMinute)
	}
	f := model.FuelForLeg(d, load, tt)
	if f > fuel {
		return infeasible(startMinute)
	}
	total += f
	now += model.TravelMinutes(d)

	res.Feasible = true
	res.FuelGal = total
	res.Cost = total + res.PenaltyGal
	res.EndMinute = now
	return res
}

// Apply evaluates r and stores the result in its cached fields.
func (e *Evaluator) Apply(r *model.PlannedRoute, startMinute int) RouteEval {
	ev := e.EvaluateRoute(r, startMinute)
	r.StartMinute = startMinute
	r.Feasible = ev.Feasible
	r.Cost = ev.Cost
	r.EstimatedFuel = ev.FuelGal
	r.EndMinute = ev.EndMinute
	r.Reloads = ev.Reloads
	return ev
}

// EvaluateSolution re-evaluates every route, then aggregates.
func (e *Evaluator) EvaluateSolution(s *model.Solution, startMinute int) {
	for _, r := range s.Routes {
		e.Apply(r, startMinute)
	}
	Aggregate(s)
}

// Aggregate recomputes the solution totals from the routes' cached values.
// Any infeasible route or unassigned part makes both totals +Inf.
func Aggregate(s *model.Solution) {
	total, fuel := 0.0, 0.0
	ok := len(s.Unassigned) == 0
	for _, r := range s.Routes {
		if !r.Feasible {
			ok = false
			continue
		}
		total += r.Cost
		fuel += r.EstimatedFuel
	}
	if !ok {
		total, fuel = math.Inf(1), math.Inf(1)
	}
	s.TotalCost = total
	s.OperationalFuelCost = fuel
	s.FullyFeasible = !math.IsInf(total, 1)
}
