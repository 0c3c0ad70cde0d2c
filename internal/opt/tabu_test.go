package opt

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"lpgroute/internal/model"
	"lpgroute/internal/state"
)

func checkSolution(t *testing.T, sol *model.Solution, parts []*model.CustomerPart) {
	t.Helper()
	seen := map[int]bool{}
	trucks := map[string]bool{}
	for _, r := range sol.Routes {
		if trucks[r.Truck.ID] {
			t.Fatalf("truck %s has two routes", r.Truck.ID)
		}
		trucks[r.Truck.ID] = true
		if r.Load() > r.Truck.Type.CapacityM3 {
			t.Fatalf("%s overloaded: %v", r, r.Load())
		}
		for _, p := range r.Sequence {
			if seen[p.PartID] {
				t.Fatalf("part %d in two routes", p.PartID)
			}
			seen[p.PartID] = true
		}
	}
	for _, p := range sol.Unassigned {
		if seen[p.PartID] {
			t.Fatalf("part %d both routed and unassigned", p.PartID)
		}
		seen[p.PartID] = true
	}
	if len(seen) != len(parts) {
		t.Fatalf("covered %d of %d parts", len(seen), len(parts))
	}
	if math.IsInf(sol.TotalCost, 1) == sol.FullyFeasible {
		t.Fatalf("TotalCost %v inconsistent with FullyFeasible=%v", sol.TotalCost, sol.FullyFeasible)
	}
}

func TestPlanSplitsLargeOrder(t *testing.T) {
	w := newWorld(t)
	w.SetOrders([]model.Order{{Pos: gp(20, 20), VolumeM3: 60, DeadlineHours: 10}})
	parts := w.ActivateOrder(w.PendingOrders[0])
	if len(parts) != 3 {
		t.Fatalf("want 3 parts, got %d", len(parts))
	}

	sol, m := NewPlanner(w, DefaultConfig()).Plan(parts, 0)
	checkSolution(t, sol, parts)
	if len(sol.Unassigned) != 0 || !sol.FullyFeasible {
		t.Fatalf("all parts should be placed: %+v", sol)
	}
	ev := NewEvaluator(w)
	for _, r := range sol.Routes {
		if len(r.Sequence) == 0 {
			t.Fatalf("empty route %s returned", r)
		}
		if !ev.EvaluateRoute(r, 0).Feasible {
			t.Fatalf("route %s misses a deadline", r)
		}
	}
	if m.Unassigned != 0 || m.BestCost > m.InitialCost {
		t.Fatalf("bad metrics %+v", m)
	}
}

func TestPlanLeavesLatePartUnassigned(t *testing.T) {
	w := newWorld(t, state.FleetSpec{Type: "TD", Count: 1})
	parts := []*model.CustomerPart{part(0, 60, 45, 2, 60)}
	sol, m := NewPlanner(w, DefaultConfig()).Plan(parts, 0)
	checkSolution(t, sol, parts)
	if len(sol.Unassigned) != 1 || !math.IsInf(sol.TotalCost, 1) || sol.FullyFeasible {
		t.Fatalf("late part must stay unassigned at +Inf: %+v", sol)
	}
	if len(sol.Routes) != 0 || m.Unassigned != 1 {
		t.Fatalf("empty routes must be dropped: %v", sol.Routes)
	}
}

func TestPlanEdgeCases(t *testing.T) {
	w := newWorld(t)
	sol, _ := NewPlanner(w, DefaultConfig()).Plan(nil, 0)
	if len(sol.Routes) != 0 || sol.TotalCost != 0 || !sol.FullyFeasible {
		t.Fatalf("no parts should give an empty feasible plan: %+v", sol)
	}

	for _, ts := range w.Trucks {
		ts.Status = model.StatusEnRoute
	}
	parts := []*model.CustomerPart{part(0, 15, 10, 1, 240), part(1, 16, 10, 1, 240)}
	sol, m := NewPlanner(w, DefaultConfig()).Plan(parts, 0)
	if len(sol.Unassigned) != 2 || !math.IsInf(sol.TotalCost, 1) || m.Trucks != 0 {
		t.Fatalf("busy fleet must leave every part out: %+v", sol)
	}
}

func TestPlanManyOrders(t *testing.T) {
	w := newWorld(t)
	var orders []model.Order
	for i := 0; i < 12; i++ {
		orders = append(orders, model.Order{
			Pos:           gp(5+(i*13)%60, 3+(i*7)%44),
			VolumeM3:      float64(2 + (i*5)%14),
			DeadlineHours: 8,
		})
	}
	w.SetOrders(orders)
	var parts []*model.CustomerPart
	for _, o := range w.PendingOrders {
		parts = append(parts, w.ActivateOrder(o)...)
	}
	cfg := DefaultConfig()
	cfg.MaxIterations = 60
	sol, m := NewPlanner(w, cfg).Plan(parts, 0)
	checkSolution(t, sol, parts)
	if m.Iterations > cfg.MaxIterations {
		t.Fatalf("iteration cap exceeded: %d", m.Iterations)
	}
	if sol.FullyFeasible && m.BestCost > m.InitialCost {
		t.Fatalf("best %v worse than initial %v", m.BestCost, m.InitialCost)
	}
	if _, err := json.Marshal(m); err != nil {
		t.Fatalf("metrics must encode: %v", err)
	}
}

func TestTwoOptInvolution(t *testing.T) {
	seq := []*model.CustomerPart{part(0, 1, 1, 1, 0), part(1, 2, 2, 1, 0), part(2, 3, 3, 1, 0), part(3, 4, 4, 1, 0), part(4, 5, 5, 1, 0)}
	for i := 0; i < len(seq)-1; i++ {
		for j := i + 1; j < len(seq); j++ {
			once := twoOptSwap(seq, i, j)
			if once[i] != seq[j] || once[j] != seq[i] {
				t.Fatalf("(%d,%d) did not reverse the segment", i, j)
			}
			twice := twoOptSwap(once, i, j)
			for k := range seq {
				if twice[k] != seq[k] {
					t.Fatalf("(%d,%d) applied twice changed position %d", i, j, k)
				}
			}
		}
	}
}

func TestTabuListEviction(t *testing.T) {
	tl := newTabuList(2)
	a, b, c := TwoOptMove("TA01", 3, 1), RelocateMove(7, "TB01"), RelocateMove(8, "TB01")
	tl.Add(a)
	tl.Add(b)
	if !tl.Contains(TwoOptMove("TA01", 1, 3)) || !tl.Contains(b) {
		t.Fatal("moves should be tabu, with 2-opt indices normalised")
	}
	tl.Add(c)
	if tl.Contains(a) || !tl.Contains(c) || tl.Len() != 2 {
		t.Fatal("oldest move should be evicted first")
	}
	tl.Add(b)
	tl.Add(c)
	if !tl.Contains(b) || !tl.Contains(c) {
		t.Fatal("re-added moves must stay tabu")
	}
	if AssignMove(1, "TA01").Tabuable() {
		t.Fatal("assignments are never tabu")
	}
	if !strings.HasPrefix(b.String(), "relocate(7") {
		t.Fatalf("move string %q", b)
	}
}

// aspirationCase is a single-truck route visiting four parts in a poor order.
func aspirationCase(t *testing.T) (*Planner, *model.Solution) {
	w := newWorld(t, state.FleetSpec{Type: "TD", Count: 1})
	p := NewPlanner(w, DefaultConfig())
	cur := model.NewSolution()
	cur.Routes = append(cur.Routes, routeFor(w, "TD01",
		part(0, 12, 30, 1.25, 1440), part(1, 12, 10, 1.25, 1440),
		part(2, 20, 10, 1.25, 1440), part(3, 20, 30, 1.25, 1440)))
	NewEvaluator(w).EvaluateSolution(cur, 0)
	if !cur.FullyFeasible {
		t.Fatal("start solution should be feasible")
	}
	return p, cur
}

func TestStepAspirationTakesTabuMoveOnNewBest(t *testing.T) {
	p, cur := aspirationCase(t)
	var m Metrics
	s := p.newSearch(0, &m)
	c, ok := s.bestNeighbor(cur)
	if !ok || !(c.sol.TotalCost < cur.TotalCost) {
		t.Fatalf("expected an improving neighbor, got %+v", c)
	}

	s.tabu.Add(c.move)
	next, res := s.step(cur, cur.Clone())
	if res != stepMoved || m.Aspirations != 1 || m.TabuHits != 1 {
		t.Fatalf("tabu move beating the best must be taken: res=%v %+v", res, m)
	}
	if next.TotalCost != c.sol.TotalCost {
		t.Fatalf("took %v, want %v", next.TotalCost, c.sol.TotalCost)
	}
}

func TestStepTabuMoveWithoutNewBestIsNoOp(t *testing.T) {
	p, cur := aspirationCase(t)
	var m Metrics
	s := p.newSearch(0, &m)
	c, _ := s.bestNeighbor(cur)

	s.tabu.Add(c.move)
	next, res := s.step(cur, c.sol.Clone())
	if res != stepNoOp || next != cur || m.NoOps != 1 || m.Aspirations != 0 {
		t.Fatalf("tabu move not beating the best must be skipped: res=%v %+v", res, m)
	}
	if s.tabu.Len() != 1 {
		t.Fatal("a skipped iteration must not touch the tabu list")
	}
}
