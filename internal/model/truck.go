package model

import (
    "math"

    "lpgroute/internal/grid"
)

type TruckStatus string

const (
    StatusIdle            TruckStatus = "IDLE"
    StatusPreTrip         TruckStatus = "PRE_TRIP"
    StatusEnRoute         TruckStatus = "EN_ROUTE"
    StatusEnRouteToReload TruckStatus = "EN_ROUTE_TO_RELOAD"
    StatusDischarging     TruckStatus = "DISCHARGING"
    StatusReturning       TruckStatus = "RETURNING"
    StatusInactive        TruckStatus = "INACTIVE"
)

// Statuses lists every state, for gauges and reports.
var Statuses = []TruckStatus{
    StatusIdle, StatusPreTrip, StatusEnRoute, StatusEnRouteToReload,
    StatusDischarging, StatusReturning, StatusInactive,
}

type StepKind int

const (
    StepNone StepKind = iota
    StepPart
    StepDepot
)

// PlanStep is one element of a truck's route plan: a customer part or a depot.
// The zero value is no step.
type PlanStep struct {
    Kind  StepKind
    Part  *CustomerPart
    Depot *Depot
}

func PartStep(p *CustomerPart) PlanStep { return PlanStep{Kind: StepPart, Part: p} }

func DepotStep(d *Depot) PlanStep { return PlanStep{Kind: StepDepot, Depot: d} }

func (s PlanStep) IsZero() bool { return s.Kind == StepNone }

// Position returns the cell of the step; ok is false for the zero step.
func (s PlanStep) Position() (grid.Point, bool) {
    switch s.Kind {
    case StepPart:
        return s.Part.Pos, true
    case StepDepot:
        return s.Depot.Pos, true
    }
    return grid.Point{}, false
}

func (s PlanStep) String() string {
    switch s.Kind {
    case StepPart:
        return s.Part.String()
    case StepDepot:
        return s.Depot.String()
    }
    return "-"
}

// Never is the TimeAvailable of a truck that will not act again.
const Never = math.MaxInt

// TruckState is the mutable execution state of one truck.
type TruckState struct {
    Truck         *Truck
    Status        TruckStatus
    Location      grid.Point
    LoadM3        float64
    FuelGal       float64
    TimeAvailable int
    Plan          []PlanStep
    Destination   PlanStep
    ArrivalMinute int
    // LegKm is the BFS distance of the leg in progress, fixed at departure.
    LegKm int
    // ReloadDepot is set while EN_ROUTE_TO_RELOAD.
    ReloadDepot *Depot
    History     []*PlannedRoute

    PartsServed int
    FuelUsedGal float64
    Reloads     int
    LastFault   string
}

func NewTruckState(t *Truck) *TruckState {
    return &TruckState{
        Truck:    t,
        Status:   StatusIdle,
        Location: t.Home.Pos,
        FuelGal:  MaxFuelGal,
    }
}

// PlanDemand sums the demand of the part steps in the plan.
func (ts *TruckState) PlanDemand() float64 {
    sum := 0.0
    for _, s := range ts.Plan {
        if s.Kind == StepPart {
            sum += s.Part.DemandM3
        }
    }
    return sum
}

// AtHome reports whether the truck stands on its home depot cell.
func (ts *TruckState) AtHome() bool { return ts.Location == ts.Truck.Home.Pos }

// Busy reports whether the truck is executing a plan.
func (ts *TruckState) Busy() bool {
    return ts.Status != StatusIdle && ts.Status != StatusInactive
}
