package model

import (
    "math"
    "strconv"
    "strings"
)

// PlannedRoute is a depot-to-depot tour for one truck. The sequence holds references
// to parts owned by the world; cloning a route never copies a part.
type PlannedRoute struct {
    Truck       *Truck
    StartDepot  *Depot
    EndDepot    *Depot
    Sequence    []*CustomerPart
    StartMinute int

    // Cached evaluation.
    Cost          float64
    Feasible      bool
    EstimatedFuel float64
    EndMinute     int
    Reloads       int
}

func NewPlannedRoute(t *Truck) *PlannedRoute {
    return &PlannedRoute{
        Truck:         t,
        StartDepot:    t.Home,
        EndDepot:      t.Home,
        Cost:          math.Inf(1),
        EstimatedFuel: math.Inf(1),
    }
}

func (r *PlannedRoute) Clone() *PlannedRoute {
    c := *r
    c.Sequence = append([]*CustomerPart(nil), r.Sequence...)
    return &c
}

// Load is the total demand of the sequence.
func (r *PlannedRoute) Load() float64 {
    sum := 0.0
    for _, p := range r.Sequence {
        sum += p.DemandM3
    }
    return sum
}

// Insert places p at pos, shifting later parts right.
func (r *PlannedRoute) Insert(pos int, p *CustomerPart) {
    r.Sequence = append(r.Sequence, nil)
    copy(r.Sequence[pos+1:], r.Sequence[pos:])
    r.Sequence[pos] = p
}

// RemoveAt removes and returns the part at idx.
func (r *PlannedRoute) RemoveAt(idx int) *CustomerPart {
    p := r.Sequence[idx]
    r.Sequence = append(r.Sequence[:idx], r.Sequence[idx+1:]...)
    return p
}

func (r *PlannedRoute) String() string {
    ids := make([]string, len(r.Sequence))
    for i, p := range r.Sequence {
        ids[i] = strconv.Itoa(p.PartID)
    }
    seq := strings.Join(ids, "->")
    if seq == "" {
        seq = "(empty)"
    }
    return "Route[" + r.Truck.ID + ":" + r.StartDepot.ID + "->" + seq + "->" + r.EndDepot.ID + "]"
}

// Solution is a set of routes plus the parts left out of all of them.
type Solution struct {
    Routes     []*PlannedRoute
    Unassigned []*CustomerPart

    TotalCost           float64
    OperationalFuelCost float64
    FullyFeasible       bool
}

func NewSolution() *Solution {
    return &Solution{TotalCost: math.Inf(1), OperationalFuelCost: math.Inf(1)}
}

// Clone deep-copies routes and the unassigned list. Parts are shared.
func (s *Solution) Clone() *Solution {
    c := *s
    c.Routes = make([]*PlannedRoute, len(s.Routes))
    for i, r := range s.Routes {
        c.Routes[i] = r.Clone()
    }
    c.Unassigned = append([]*CustomerPart(nil), s.Unassigned...)
    return &c
}

// ShallowCopy copies the route and unassigned slices but shares the routes,
// so a caller can replace individual routes copy-on-write.
func (s *Solution) ShallowCopy() *Solution {
    c := *s
    c.Routes = append([]*PlannedRoute(nil), s.Routes...)
    c.Unassigned = append([]*CustomerPart(nil), s.Unassigned...)
    return &c
}

func (s *Solution) RouteFor(truckID string) *PlannedRoute {
    for _, r := range s.Routes {
        if r.Truck.ID == truckID {
            return r
        }
    }
    return nil
}

// HasPart reports whether any route carries the part.
func (s *Solution) HasPart(partID int) bool {
    for _, r := range s.Routes {
        for _, p := range r.Sequence {
            if p.PartID == partID {
                return true
            }
        }
    }
    return false
}

// AssignedCount counts parts across all routes.
func (s *Solution) AssignedCount() int {
    n := 0
    for _, r := range s.Routes {
        n += len(r.Sequence)
    }
    return n
}
