package store

import (
    "context"
    "errors"
    "math"
    "time"
)

// RunRecord summarises one finished simulation run.
type RunRecord struct {
    ID            string    `json:"id"`
    StartedAt     time.Time `json:"startedAt"`
    FinishedAt    time.Time `json:"finishedAt"`
    DurationMin   int       `json:"durationMin"`
    Replan        bool      `json:"replan"`
    Orders        int       `json:"orders"`
    PartsServed   int       `json:"partsServed"`
    PartsUnserved int       `json:"partsUnserved"`
    Replans       int       `json:"replans"`
    Faults        int       `json:"faults"`
    FuelGal       float64   `json:"fuelGal"`
}

// RouteRecord is one planned route executed by a truck. Costs are nil when
// the route was infeasible.
type RouteRecord struct {
    ID          string   `json:"id"`
    RunID       string   `json:"runId"`
    TruckID     string   `json:"truckId"`
    Seq         int      `json:"seq"`
    StartMinute int      `json:"startMinute"`
    EndMinute   int      `json:"endMinute"`
    PartIDs     []int    `json:"partIds"`
    Cost        *float64 `json:"cost"`
    FuelGal     *float64 `json:"fuelGal"`
    Feasible    bool     `json:"feasible"`
    Reloads     int      `json:"reloads"`
}

// PlanMetricsRecord is one planner call made during a run.
type PlanMetricsRecord struct {
    RunID           string   `json:"runId"`
    Minute          int      `json:"minute"`
    Iterations      int      `json:"iterations"`
    Improvements    int      `json:"improvements"`
    TabuHits        int      `json:"tabuHits"`
    Aspirations     int      `json:"aspirations"`
    NoOps           int      `json:"noOps"`
    Parts           int      `json:"parts"`
    Trucks          int      `json:"trucks"`
    Unassigned      int      `json:"unassigned"`
    InitialCost     *float64 `json:"initialCost"`
    BestCost        *float64 `json:"bestCost"`
    OperationalFuel *float64 `json:"operationalFuel"`
    ElapsedMs       int64    `json:"elapsedMs"`
}

// Store is the append-only report sink written at the end of a run.
type Store interface {
    SaveRun(ctx context.Context, run RunRecord) error
    SaveRouteHistory(ctx context.Context, runID string, routes []RouteRecord) error
    SavePlanMetrics(ctx context.Context, runID string, items []PlanMetricsRecord) error

    GetRun(ctx context.Context, id string) (RunRecord, error)
    // ListRuns returns the newest runs first.
    ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
    ListRouteHistory(ctx context.Context, runID string) ([]RouteRecord, error)
    ListPlanMetrics(ctx context.Context, runID string) ([]PlanMetricsRecord, error)
}

var ErrNotFound = errors.New("not found")

// Finite returns nil for infinite or NaN values.
func Finite(v float64) *float64 {
    if math.IsInf(v, 0) || math.IsNaN(v) { return nil }
    return &v
}
