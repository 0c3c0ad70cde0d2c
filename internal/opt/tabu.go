package opt

import (
	"encoding/json"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"lpgroute/internal/model"
	"lpgroute/internal/state"
)

type Config struct {
	MaxIterations int `yaml:"iterations" json:"iterations"`
	Tenure        int `yaml:"tenure" json:"tenure"`
	// LogEvery is the progress log interval in iterations; 0 disables it.
	LogEvery int `yaml:"log_every" json:"logEvery"`
}

func DefaultConfig() Config {
	return Config{MaxIterations: model.DefaultTabuIterations, Tenure: model.DefaultTabuTenure, LogEvery: 100}
}

// Metrics summarises one planner call.
type Metrics struct {
	Iterations      int           `json:"iterations"`
	Improvements    int           `json:"improvements"`
	TabuHits        int           `json:"tabuHits"`
	Aspirations     int           `json:"aspirations"`
	NoOps           int           `json:"noOps"`
	Evaluations     int           `json:"evaluations"`
	Parts           int           `json:"parts"`
	Trucks          int           `json:"trucks"`
	InitialCost     float64       `json:"initialCost"`
	BestCost        float64       `json:"bestCost"`
	OperationalFuel float64       `json:"operationalFuel"`
	Unassigned      int           `json:"unassigned"`
	Elapsed         time.Duration `json:"elapsedNs"`
}

// MarshalJSON writes infinite costs as null.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	return json.Marshal(struct {
		plain
		InitialCost     *float64 `json:"initialCost"`
		BestCost        *float64 `json:"bestCost"`
		OperationalFuel *float64 `json:"operationalFuel"`
	}{plain(m), finite(m.InitialCost), finite(m.BestCost), finite(m.OperationalFuel)})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// Planner builds delivery plans with a best-fit construction followed by Tabu Search.
type Planner struct {
	World  *state.World
	Config Config
	Log    *log.Entry
}

func NewPlanner(w *state.World, cfg Config) *Planner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = model.DefaultTabuIterations
	}
	if cfg.Tenure <= 0 {
		cfg.Tenure = model.DefaultTabuTenure
	}
	return &Planner{World: w, Config: cfg, Log: log.WithField("component", "planner")}
}

// search is the state of a single Plan call.
type search struct {
	ev    *Evaluator
	start int
	tabu  *tabuList
	m     *Metrics
}

func (p *Planner) newSearch(start int, m *Metrics) *search {
	return &search{ev: NewEvaluator(p.World), start: start, tabu: newTabuList(p.Config.Tenure), m: m}
}

// Plan assigns parts to the trucks available at startMinute. Parts it cannot
// place stay in the solution's Unassigned list.
func (p *Planner) Plan(parts []*model.CustomerPart, startMinute int) (*model.Solution, Metrics) {
	began := time.Now()
	m := Metrics{Parts: len(parts)}
	sol := model.NewSolution()
	if len(parts) == 0 {
		Aggregate(sol)
		m.InitialCost, m.BestCost, m.OperationalFuel = 0, 0, 0
		m.Elapsed = time.Since(began)
		return sol, m
	}
	trucks := p.World.AvailableTrucks(startMinute)
	m.Trucks = len(trucks)
	if len(trucks) == 0 {
		sol.Unassigned = append(sol.Unassigned, parts...)
		Aggregate(sol)
		m.InitialCost, m.BestCost, m.OperationalFuel = sol.TotalCost, sol.TotalCost, sol.OperationalFuelCost
		m.Unassigned = len(parts)
		m.Elapsed = time.Since(began)
		p.Log.WithField("parts", len(parts)).Warn("no truck available, every part left unassigned")
		return sol, m
	}

	s := p.newSearch(startMinute, &m)
	cur := s.initial(trucks, parts)
	m.InitialCost = cur.TotalCost
	best := cur.Clone()

	for it := 1; it <= p.Config.MaxIterations; it++ {
		m.Iterations = it
		next, res := s.step(cur, best)
		if res != stepMoved {
			break
		}
		cur = next
		if cur.TotalCost < best.TotalCost {
			best = cur.Clone()
			m.Improvements++
		}
		if p.Config.LogEvery > 0 && it%p.Config.LogEvery == 0 {
			p.Log.WithFields(log.Fields{"iter": it, "current": cur.TotalCost, "best": best.TotalCost}).Info("tabu progress")
		}
	}

	best.Routes = nonEmpty(best.Routes)
	m.BestCost = best.TotalCost
	m.OperationalFuel = best.OperationalFuelCost
	m.Unassigned = len(best.Unassigned)
	m.Evaluations = s.ev.Evaluations
	m.Elapsed = time.Since(began)
	p.logSummary(best, m)
	return best, m
}

func (p *Planner) logSummary(sol *model.Solution, m Metrics) {
	p.Log.WithFields(log.Fields{
		"minute":      p.World.Now,
		"initialCost": m.InitialCost,
		"bestCost":    m.BestCost,
		"fuel":        m.OperationalFuel,
		"unassigned":  m.Unassigned,
		"iterations":  m.Iterations,
		"elapsed":     m.Elapsed,
	}).Info("plan ready")
	for _, r := range sol.Routes {
		p.Log.WithFields(log.Fields{
			"truck":    r.Truck.ID,
			"cost":     r.Cost,
			"fuel":     r.EstimatedFuel,
			"feasible": r.Feasible,
		}).Debug(r.String())
	}
}

func nonEmpty(routes []*model.PlannedRoute) []*model.PlannedRoute {
	out := routes[:0:0]
	for _, r := range routes {
		if len(r.Sequence) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// initial builds the best-fit insertion solution and drops empty routes.
func (s *search) initial(trucks []*model.Truck, parts []*model.CustomerPart) *model.Solution {
	sol := model.NewSolution()
	for _, t := range trucks {
		r := model.NewPlannedRoute(t)
		s.ev.Apply(r, s.start)
		sol.Routes = append(sol.Routes, r)
	}
	sol.Unassigned = append(sol.Unassigned, parts...)

	for len(sol.Unassigned) > 0 {
		bestInc := math.Inf(1)
		var bestRoute *model.PlannedRoute
		bestRi, bestUi := -1, -1
		for ui, part := range sol.Unassigned {
			for ri, r := range sol.Routes {
				if !fits(r, part) {
					continue
				}
				old := 0.0
				if r.Feasible && len(r.Sequence) > 0 {
					old = r.Cost
				}
				for pos := 0; pos <= len(r.Sequence); pos++ {
					nr := withPart(r, pos, part)
					if ev := s.ev.Apply(nr, s.start); ev.Feasible && ev.Cost-old < bestInc {
						bestInc = ev.Cost - old
						bestRoute, bestRi, bestUi = nr, ri, ui
					}
				}
			}
		}
		if bestRoute == nil {
			break
		}
		sol.Routes[bestRi] = bestRoute
		sol.Unassigned = dropPart(sol.Unassigned, bestUi)
	}

	sol.Routes = nonEmpty(sol.Routes)
	Aggregate(sol)
	return sol
}

type candidate struct {
	sol  *model.Solution
	move Move
	tabu bool
}

// bestNeighbor explores 2-opt, relocate and assign-unassigned in that order and
// returns the first neighbor with the lowest finite cost.
func (s *search) bestNeighbor(cur *model.Solution) (candidate, bool) {
	var best candidate
	bestCost := math.Inf(1)
	take := func(sol *model.Solution, mv Move) {
		Aggregate(sol)
		if sol.TotalCost < bestCost {
			bestCost = sol.TotalCost
			best = candidate{sol: sol, move: mv, tabu: mv.Tabuable() && s.tabu.Contains(mv)}
		}
	}

	// With a part still out, only an assignment can reach a finite cost, and only
	// when that part is the last one.
	if len(cur.Unassigned) == 0 {
		for ri, r := range cur.Routes {
			n := len(r.Sequence)
			for i := 0; i < n-1; i++ {
				for j := i + 1; j < n; j++ {
					nr := r.Clone()
					nr.Sequence = twoOptSwap(r.Sequence, i, j)
					if !s.ev.Apply(nr, s.start).Feasible {
						continue
					}
					ns := cur.ShallowCopy()
					ns.Routes[ri] = nr
					take(ns, TwoOptMove(r.Truck.ID, i, j))
				}
			}
		}

		for ai, a := range cur.Routes {
			for idx := len(a.Sequence) - 1; idx >= 0; idx-- {
				part := a.Sequence[idx]
				na := a.Clone()
				na.RemoveAt(idx)
				if !s.ev.Apply(na, s.start).Feasible {
					continue
				}
				for bi, b := range cur.Routes {
					if bi == ai || !fits(b, part) {
						continue
					}
					for pos := 0; pos <= len(b.Sequence); pos++ {
						nb := withPart(b, pos, part)
						if !s.ev.Apply(nb, s.start).Feasible {
							continue
						}
						ns := cur.ShallowCopy()
						ns.Routes[ai] = na
						ns.Routes[bi] = nb
						take(ns, RelocateMove(part.PartID, b.Truck.ID))
					}
				}
			}
		}
	} else if len(cur.Unassigned) == 1 {
		u := cur.Unassigned[0]
		for ri, r := range cur.Routes {
			if !fits(r, u) {
				continue
			}
			for pos := 0; pos <= len(r.Sequence); pos++ {
				nr := withPart(r, pos, u)
				if !s.ev.Apply(nr, s.start).Feasible {
					continue
				}
				ns := cur.ShallowCopy()
				ns.Routes[ri] = nr
				ns.Unassigned = nil
				take(ns, AssignMove(u.PartID, r.Truck.ID))
			}
		}
	}

	return best, best.sol != nil
}

type stepResult int

const (
	stepStuck stepResult = iota
	stepMoved
	stepNoOp
)

// step runs one Tabu Search iteration from cur. A tabu neighbor is taken only
// when it beats best; otherwise the iteration is a no-op and cur is returned.
func (s *search) step(cur, best *model.Solution) (*model.Solution, stepResult) {
	c, ok := s.bestNeighbor(cur)
	if !ok {
		return cur, stepStuck
	}
	if c.tabu {
		s.m.TabuHits++
		if !(c.sol.TotalCost < best.TotalCost) {
			s.m.NoOps++
			return cur, stepNoOp
		}
		s.m.Aspirations++
	}
	if c.move.Tabuable() {
		s.tabu.Add(c.move)
	}
	return c.sol, stepMoved
}
