// Package state holds World, the single simulation context shared by the
// planner, the evaluator and the simulator. Nothing here is global: callers
// pass a *World explicitly.
package state

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"lpgroute/internal/grid"
	"lpgroute/internal/model"
)

type DepotSpec struct {
	ID string `yaml:"id" json:"id"`
	X  int    `yaml:"x" json:"x"`
	Y  int    `yaml:"y" json:"y"`
	// Capacity in m3; zero or negative means an unbounded main plant.
	Capacity float64 `yaml:"capacity" json:"capacity"`
}

type FleetSpec struct {
	Type  string `yaml:"type" json:"type"`
	Count int    `yaml:"count" json:"count"`
	// Home depot id; empty means the main plant.
	Home string `yaml:"home,omitempty" json:"home,omitempty"`
}

// Layout describes depots and fleet composition.
type Layout struct {
	Depots []DepotSpec `yaml:"depots" json:"depots"`
	Fleet  []FleetSpec `yaml:"fleet" json:"fleet"`
}

func DefaultLayout() Layout {
	return Layout{
		Depots: []DepotSpec{
			{ID: "Planta", X: 12, Y: 8},
			{ID: "Norte", X: 42, Y: 42, Capacity: 160},
			{ID: "Este", X: 63, Y: 3, Capacity: 160},
		},
		Fleet: []FleetSpec{
			{Type: "TA", Count: 2},
			{Type: "TB", Count: 4},
			{Type: "TC", Count: 4},
			{Type: "TD", Count: 10},
		},
	}
}

var ErrNoMainPlant = errors.New("layout has no main plant")

// World is the process-wide simulation state.
type World struct {
	Grid   *grid.Grid
	Depots []*model.Depot
	Fleet  []*model.Truck
	// Trucks is indexed by truck id; iterate Fleet for a stable order.
	Trucks map[string]*model.TruckState

	PendingOrders []model.Order
	Blockages     []model.Blockage
	ActiveParts   []*model.CustomerPart
	Now           int

	nextPartID  int
	nextOrderID int
}

// New builds a world from a layout with every truck IDLE at its home depot.
func New(l Layout) (*World, error) {
	w := &World{Grid: grid.New(), Trucks: map[string]*model.TruckState{}}
	byID := map[string]*model.Depot{}
	var plant *model.Depot
	for _, ds := range l.Depots {
		if _, dup := byID[ds.ID]; dup {
			return nil, fmt.Errorf("state: duplicate depot %q", ds.ID)
		}
		d := model.NewDepot(ds.ID, ds.X, ds.Y, ds.Capacity)
		if !d.Pos.InBounds() {
			return nil, fmt.Errorf("state: depot %q at (%d,%d) is off the grid", ds.ID, ds.X, ds.Y)
		}
		if d.IsMainPlant() && plant == nil {
			plant = d
		}
		byID[d.ID] = d
		w.Depots = append(w.Depots, d)
	}
	if plant == nil {
		return nil, ErrNoMainPlant
	}
	counters := map[string]int{}
	for _, fs := range l.Fleet {
		tt, ok := model.TruckTypeByCode(fs.Type)
		if !ok {
			return nil, fmt.Errorf("state: unknown truck type %q", fs.Type)
		}
		home := plant
		if fs.Home != "" {
			if home, ok = byID[fs.Home]; !ok {
				return nil, fmt.Errorf("state: unknown home depot %q", fs.Home)
			}
		}
		for i := 0; i < fs.Count; i++ {
			counters[tt.Code]++
			t := &model.Truck{ID: model.TruckID(tt, counters[tt.Code]), Type: tt, Home: home}
			w.Fleet = append(w.Fleet, t)
			w.Trucks[t.ID] = model.NewTruckState(t)
		}
	}
	return w, nil
}

// MainPlant returns the first unbounded depot.
func (w *World) MainPlant() *model.Depot {
	for _, d := range w.Depots {
		if d.IsMainPlant() {
			return d
		}
	}
	return nil
}

func (w *World) Depot(id string) *model.Depot {
	for _, d := range w.Depots {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (w *World) Distance(a, b grid.Point) int { return w.Grid.ShortestPath(a, b) }

// DistanceFunc is the distance oracle used by NearestReloadDepot.
type DistanceFunc func(a, b grid.Point) int

// NearestReloadDepot picks the closest intermediate depot holding at least minM3
// (less the load tolerance). It returns nil when none is reachable.
func (w *World) NearestReloadDepot(from grid.Point, minM3 float64, dist DistanceFunc) (*model.Depot, int) {
	if dist == nil {
		dist = w.Distance
	}
	var best *model.Depot
	bestD := grid.Unreachable
	for _, d := range w.Depots {
		if d.IsMainPlant() || d.CapacityCurrent < minM3-model.LoadTolerance {
			continue
		}
		if dd := dist(from, d.Pos); dd != grid.Unreachable && dd < bestD {
			best, bestD = d, dd
		}
	}
	return best, bestD
}

// AvailableTrucks returns the IDLE trucks free at minute now, in fleet order.
func (w *World) AvailableTrucks(now int) []*model.Truck {
	var out []*model.Truck
	for _, t := range w.Fleet {
		ts := w.Trucks[t.ID]
		if ts.Status == model.StatusIdle && ts.TimeAvailable <= now {
			out = append(out, t)
		}
	}
	return out
}

// SetOrders replaces the pending orders, sorted by arrival, and assigns ids to
// orders that have none.
func (w *World) SetOrders(orders []model.Order) {
	w.PendingOrders = append([]model.Order(nil), orders...)
	for i := range w.PendingOrders {
		if w.PendingOrders[i].ID == 0 {
			w.nextOrderID++
			w.PendingOrders[i].ID = w.nextOrderID
		} else if w.PendingOrders[i].ID > w.nextOrderID {
			w.nextOrderID = w.PendingOrders[i].ID
		}
	}
	sort.SliceStable(w.PendingOrders, func(i, j int) bool {
		return w.PendingOrders[i].ArrivalMinute < w.PendingOrders[j].ArrivalMinute
	})
}

func (w *World) SetBlockages(bs []model.Blockage) {
	w.Blockages = append([]model.Blockage(nil), bs...)
}

// ActivateOrder splits an order into parts and adds them to the active set.
func (w *World) ActivateOrder(o model.Order) []*model.CustomerPart {
	parts := model.SplitOrder(o, w.nextPartID)
	w.nextPartID += len(parts)
	w.ActiveParts = append(w.ActiveParts, parts...)
	return parts
}

// RemoveActivePart drops a part from the active set; it reports whether it was present.
func (w *World) RemoveActivePart(p *model.CustomerPart) bool {
	for i, q := range w.ActiveParts {
		if q.PartID == p.PartID {
			w.ActiveParts = append(w.ActiveParts[:i], w.ActiveParts[i+1:]...)
			return true
		}
	}
	return false
}

// TotalIntermediateStock sums current LPG in bounded depots.
func (w *World) TotalIntermediateStock() float64 {
	sum := 0.0
	for _, d := range w.Depots {
		if !math.IsInf(d.CapacityCurrent, 1) {
			sum += d.CapacityCurrent
		}
	}
	return sum
}
