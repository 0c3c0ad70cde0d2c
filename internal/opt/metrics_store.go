package opt

import (
    "sort"
    "sync"
)

// PlanRecord is one planner invocation of a simulation run.
type PlanRecord struct {
    RunID   string  `json:"runId"`
    Minute  int     `json:"minute"`
    Metrics Metrics `json:"metrics"`
}

type key struct {
    RunID  string
    Minute int
}

var (
    mu    sync.Mutex
    store = map[key]Metrics{}
)

// RecordMetrics keeps the metrics of the planner call made at minute of runID.
// A second call at the same minute replaces the first.
func RecordMetrics(runID string, minute int, m Metrics) {
    mu.Lock()
    store[key{RunID: runID, Minute: minute}] = m
    mu.Unlock()
}

// GetMetrics returns the recorded planner calls of runID ordered by minute.
func GetMetrics(runID string) []PlanRecord {
    mu.Lock()
    defer mu.Unlock()
    var out []PlanRecord
    for k, v := range store {
        if k.RunID == runID {
            out = append(out, PlanRecord{RunID: k.RunID, Minute: k.Minute, Metrics: v})
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Minute < out[j].Minute })
    return out
}

// ResetMetrics forgets every record of runID.
func ResetMetrics(runID string) {
    mu.Lock()
    for k := range store {
        if k.RunID == runID {
            delete(store, k)
        }
    }
    mu.Unlock()
}
