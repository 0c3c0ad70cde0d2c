package sim

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"lpgroute/internal/grid"
	"lpgroute/internal/model"
	"lpgroute/internal/opt"
	"lpgroute/internal/store"
)

// FormatTime renders a simulated minute as "Dd HHh MMm".
func FormatTime(minute int) string {
	days := minute / model.MinutesPerDay
	rest := minute % model.MinutesPerDay
	return fmt.Sprintf("%dd %02dh %02dm", days, rest/60, rest%60)
}

// FormatCost renders a cost in gallons, or INF.
func FormatCost(c float64) string {
	if math.IsInf(c, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f Gal", c)
}

type RouteReport struct {
	Seq         int      `json:"seq"`
	Path        string   `json:"path"`
	PartIDs     []int    `json:"partIds"`
	StartMinute int      `json:"startMinute"`
	EndMinute   int      `json:"endMinute"`
	Cost        *float64 `json:"cost"`
	FuelGal     *float64 `json:"fuelGal"`
	Feasible    bool     `json:"feasible"`
	Reloads     int      `json:"reloads"`
}

type TruckReport struct {
	TruckID     string            `json:"truckId"`
	Status      model.TruckStatus `json:"status"`
	Location    grid.Point        `json:"location"`
	LoadM3      float64           `json:"loadM3"`
	FuelGal     float64           `json:"fuelGal"`
	PartsServed int               `json:"partsServed"`
	FuelUsedGal float64           `json:"fuelUsedGal"`
	Reloads     int               `json:"reloads"`
	LastFault   string            `json:"lastFault,omitempty"`
	Routes      []RouteReport     `json:"routes"`
}

// Report is the end-of-run account of every truck plus the parts left over.
type Report struct {
	RunID           string               `json:"runId"`
	Minute          int                  `json:"minute"`
	Time            string               `json:"time"`
	OrdersActivated int                  `json:"ordersActivated"`
	PartsServed     int                  `json:"partsServed"`
	FuelUsedGal     float64              `json:"fuelUsedGal"`
	Replans         int                  `json:"replans"`
	Faults          int                  `json:"faults"`
	Trucks          []TruckReport        `json:"trucks"`
	// Unserved holds copies; the live parts keep changing after Report returns.
	Unserved        []model.CustomerPart `json:"unserved"`
}

func (s *Simulator) Report() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w := s.world
	rep := Report{
		RunID:           s.RunID,
		Minute:          w.Now,
		Time:            FormatTime(w.Now),
		OrdersActivated: s.ordersActivated,
		Replans:         s.replans,
		Faults:          s.faults,
		Unserved:        make([]model.CustomerPart, 0, len(w.ActiveParts)),
	}
	for _, p := range w.ActiveParts {
		rep.Unserved = append(rep.Unserved, *p)
	}
	for _, t := range w.Fleet {
		ts := w.Trucks[t.ID]
		tr := TruckReport{
			TruckID:     t.ID,
			Status:      ts.Status,
			Location:    ts.Location,
			LoadM3:      ts.LoadM3,
			FuelGal:     ts.FuelGal,
			PartsServed: ts.PartsServed,
			FuelUsedGal: ts.FuelUsedGal,
			Reloads:     ts.Reloads,
			LastFault:   ts.LastFault,
			Routes:      []RouteReport{},
		}
		for i, r := range ts.History {
			tr.Routes = append(tr.Routes, routeReport(i, r))
		}
		rep.PartsServed += ts.PartsServed
		rep.FuelUsedGal += ts.FuelUsedGal
		rep.Trucks = append(rep.Trucks, tr)
	}
	sort.Slice(rep.Trucks, func(i, j int) bool { return rep.Trucks[i].TruckID < rep.Trucks[j].TruckID })
	return rep
}

func routeReport(seq int, r *model.PlannedRoute) RouteReport {
	ids := make([]int, len(r.Sequence))
	for i, p := range r.Sequence {
		ids[i] = p.PartID
	}
	return RouteReport{
		Seq:         seq,
		Path:        r.String(),
		PartIDs:     ids,
		StartMinute: r.StartMinute,
		EndMinute:   r.EndMinute,
		Cost:        finite(r.Cost),
		FuelGal:     finite(r.EstimatedFuel),
		Feasible:    r.Feasible,
		Reloads:     r.Reloads,
	}
}

// WriteTo prints the truck histories and the unserved parts.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Route history by truck (run %s, %s) ---\n", r.RunID, r.Time)
	for _, t := range r.Trucks {
		fmt.Fprintf(&b, "%s [%s]: ", t.TruckID, t.Status)
		if len(t.Routes) == 0 {
			b.WriteString("no routes assigned/executed.\n")
			continue
		}
		b.WriteString("\n")
		for _, rr := range t.Routes {
			fmt.Fprintf(&b, "  #%d %s start %s cost %s fuel %s", rr.Seq, rr.Path, FormatTime(rr.StartMinute), costString(rr.Cost), costString(rr.FuelGal))
			if !rr.Feasible {
				b.WriteString(" (infeasible)")
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  served %d parts, burned %.2f Gal, %d reloads", t.PartsServed, t.FuelUsedGal, t.Reloads)
		if t.LastFault != "" {
			fmt.Fprintf(&b, ", last fault: %s", t.LastFault)
		}
		b.WriteString("\n")
	}
	if len(r.Unserved) == 0 {
		b.WriteString("All active parts were served.\n")
	} else {
		fmt.Fprintf(&b, "%d parts left unserved:\n", len(r.Unserved))
		for i := range r.Unserved {
			fmt.Fprintf(&b, "  %s\n", &r.Unserved[i])
		}
	}
	fmt.Fprintf(&b, "Totals: %d orders, %d parts served, %.2f Gal, %d replans, %d faults\n",
		r.OrdersActivated, r.PartsServed, r.FuelUsedGal, r.Replans, r.Faults)
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func costString(c *float64) string {
	if c == nil {
		return "INF"
	}
	return FormatCost(*c)
}

// SaveReport writes the run, its route history and its planner calls to st.
func (s *Simulator) SaveReport(ctx context.Context, st store.Store) error {
	rep := s.Report()
	s.mu.RLock()
	run := store.RunRecord{
		ID:            s.RunID,
		StartedAt:     s.started,
		FinishedAt:    s.finished,
		DurationMin:   s.opts.Duration,
		Replan:        s.opts.Replan,
		Orders:        rep.OrdersActivated,
		PartsServed:   rep.PartsServed,
		PartsUnserved: len(rep.Unserved),
		Replans:       rep.Replans,
		Faults:        rep.Faults,
		FuelGal:       rep.FuelUsedGal,
	}
	s.mu.RUnlock()
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}
	if err := st.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("sim: save report: %w", err)
	}

	var routes []store.RouteRecord
	for _, t := range rep.Trucks {
		for _, rr := range t.Routes {
			routes = append(routes, store.RouteRecord{
				RunID:       s.RunID,
				TruckID:     t.TruckID,
				Seq:         rr.Seq,
				StartMinute: rr.StartMinute,
				EndMinute:   rr.EndMinute,
				PartIDs:     rr.PartIDs,
				Cost:        rr.Cost,
				FuelGal:     rr.FuelGal,
				Feasible:    rr.Feasible,
				Reloads:     rr.Reloads,
			})
		}
	}
	if err := st.SaveRouteHistory(ctx, s.RunID, routes); err != nil {
		return fmt.Errorf("sim: save report: %w", err)
	}

	var items []store.PlanMetricsRecord
	for _, pr := range opt.GetMetrics(s.RunID) {
		m := pr.Metrics
		items = append(items, store.PlanMetricsRecord{
			RunID:           s.RunID,
			Minute:          pr.Minute,
			Iterations:      m.Iterations,
			Improvements:    m.Improvements,
			TabuHits:        m.TabuHits,
			Aspirations:     m.Aspirations,
			NoOps:           m.NoOps,
			Parts:           m.Parts,
			Trucks:          m.Trucks,
			Unassigned:      m.Unassigned,
			InitialCost:     store.Finite(m.InitialCost),
			BestCost:        store.Finite(m.BestCost),
			OperationalFuel: store.Finite(m.OperationalFuel),
			ElapsedMs:       m.Elapsed.Milliseconds(),
		})
	}
	if err := st.SavePlanMetrics(ctx, s.RunID, items); err != nil {
		return fmt.Errorf("sim: save report: %w", err)
	}
	return nil
}
