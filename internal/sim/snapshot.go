package sim

import (
	"fmt"
	"strconv"

	"lpgroute/internal/grid"
	"lpgroute/internal/model"
)

// Palette is the cycle of route colours handed to the visualizer.
var Palette = [12]string{
	"#0000FF", "#FF0000", "#FFC800", "#FF00FF", "#FFAFAF", "#B2B200",
	"#00FFFF", "#808080", "#007C00", "#0000B2", "#B20000", "#B28C00",
}

type LabelledPoint struct {
	Label string `json:"label"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

type TruckRoute struct {
	TruckID string          `json:"truckId"`
	Points  []LabelledPoint `json:"points"`
	Color   string          `json:"color"`
}

type DepotView struct {
	ID              string   `json:"id"`
	X               int      `json:"x"`
	Y               int      `json:"y"`
	MainPlant       bool     `json:"mainPlant"`
	CapacityMax     *float64 `json:"capacityMax"`
	CapacityCurrent *float64 `json:"capacityCurrent"`
}

type TruckView struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Status        model.TruckStatus `json:"status"`
	X             int               `json:"x"`
	Y             int               `json:"y"`
	LoadM3        float64           `json:"loadM3"`
	FuelGal       float64           `json:"fuelGal"`
	TimeAvailable int               `json:"timeAvailable"`
	Destination   string            `json:"destination,omitempty"`
	PlanSteps     int               `json:"planSteps"`
	LastFault     string            `json:"lastFault,omitempty"`
}

// Snapshot is everything the visualizer draws for one minute.
type Snapshot struct {
	RunID     string       `json:"runId"`
	Minute    int          `json:"minute"`
	Time      string       `json:"time"`
	Depots    []DepotView  `json:"depots"`
	Customers []grid.Point `json:"customers"`
	Routes    []TruckRoute `json:"routes"`
	Blocked   [][]bool     `json:"blocked"`
	Trucks    []TruckView  `json:"trucks"`
}

func (s *Simulator) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Simulator) snapshotLocked() Snapshot {
	w := s.world
	snap := Snapshot{
		RunID:   s.RunID,
		Minute:  w.Now,
		Time:    FormatTime(w.Now),
		Blocked: w.Grid.Matrix(),
		Trucks:  s.truckViewsLocked(),
	}
	for _, d := range w.Depots {
		snap.Depots = append(snap.Depots, DepotView{
			ID: d.ID, X: d.Pos.X, Y: d.Pos.Y, MainPlant: d.IsMainPlant(),
			CapacityMax: finite(d.CapacityMax), CapacityCurrent: finite(d.CapacityCurrent),
		})
	}

	seen := map[grid.Point]bool{}
	ci := 0
	for _, t := range w.Fleet {
		for _, r := range w.Trucks[t.ID].History {
			tr := TruckRoute{TruckID: t.ID, Color: Palette[ci%len(Palette)]}
			ci++
			tr.Points = append(tr.Points, LabelledPoint{Label: r.StartDepot.ID, X: r.StartDepot.Pos.X, Y: r.StartDepot.Pos.Y})
			for _, p := range r.Sequence {
				tr.Points = append(tr.Points, LabelledPoint{Label: "P" + strconv.Itoa(p.PartID), X: p.Pos.X, Y: p.Pos.Y})
				if !seen[p.Pos] {
					seen[p.Pos] = true
					snap.Customers = append(snap.Customers, p.Pos)
				}
			}
			tr.Points = append(tr.Points, LabelledPoint{Label: r.EndDepot.ID, X: r.EndDepot.Pos.X, Y: r.EndDepot.Pos.Y})
			snap.Routes = append(snap.Routes, tr)
		}
	}
	return snap
}

// TruckViews lists the trucks in fleet order.
func (s *Simulator) TruckViews() []TruckView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.truckViewsLocked()
}

func (s *Simulator) truckViewsLocked() []TruckView {
	out := make([]TruckView, 0, len(s.world.Fleet))
	for _, t := range s.world.Fleet {
		ts := s.world.Trucks[t.ID]
		v := TruckView{
			ID:            t.ID,
			Type:          t.Type.Code,
			Status:        ts.Status,
			X:             ts.Location.X,
			Y:             ts.Location.Y,
			LoadM3:        ts.LoadM3,
			FuelGal:       ts.FuelGal,
			TimeAvailable: ts.TimeAvailable,
			PlanSteps:     len(ts.Plan),
			LastFault:     ts.LastFault,
		}
		if !ts.Destination.IsZero() {
			v.Destination = fmt.Sprint(ts.Destination)
		}
		out = append(out, v)
	}
	return out
}
