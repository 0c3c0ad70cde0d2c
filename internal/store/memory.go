package store

import (
    "context"
    "sort"
    "sync"

    "github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu     sync.Mutex
    runs   map[string]RunRecord            // id -> run
    routes map[string][]RouteRecord        // runId -> routes
    planMx map[string][]PlanMetricsRecord  // runId -> planner calls
}

func NewMemory() *Memory {
    return &Memory{
        runs: map[string]RunRecord{},
        routes: map[string][]RouteRecord{},
        planMx: map[string][]PlanMetricsRecord{},
    }
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) SaveRun(ctx context.Context, run RunRecord) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" { run.ID = uuid.NewString() }
    m.runs[run.ID] = run
    return nil
}

func (m *Memory) SaveRouteHistory(ctx context.Context, runID string, routes []RouteRecord) error {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, r := range routes {
        if r.ID == "" { r.ID = uuid.NewString() }
        r.RunID = runID
        m.routes[runID] = append(m.routes[runID], r)
    }
    return nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, runID string, items []PlanMetricsRecord) error {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, it := range items {
        it.RunID = runID
        m.planMx[runID] = append(m.planMx[runID], it)
    }
    return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (RunRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok { return RunRecord{}, ErrNotFound }
    return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]RunRecord, 0, len(m.runs))
    for _, r := range m.runs { out = append(out, r) }
    sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
    if limit > 0 && len(out) > limit { out = out[:limit] }
    return out, nil
}

func (m *Memory) ListRouteHistory(ctx context.Context, runID string) ([]RouteRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.runs[runID]; !ok && len(m.routes[runID]) == 0 { return nil, ErrNotFound }
    return append([]RouteRecord{}, m.routes[runID]...), nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, runID string) ([]PlanMetricsRecord, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := append([]PlanMetricsRecord{}, m.planMx[runID]...)
    sort.SliceStable(out, func(i, j int) bool { return out[i].Minute < out[j].Minute })
    return out, nil
}
