package api

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "lpgroute/internal/opt"
    "lpgroute/internal/store"
)

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check sink connectivity when the store can be pinged
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    if s.Sim == nil { writeProblem(w, 503, "Not Ready", "no simulation attached", r.URL.Path); return }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

// requireSim answers GET requests that need a simulation attached.
func (s *Server) requireSim(w http.ResponseWriter, r *http.Request) bool {
    if r.Method != http.MethodGet { writeProblem(w, 405, "Method Not Allowed", "", r.URL.Path); return false }
    if s.Sim == nil { writeProblem(w, 503, "No Simulation", "no simulation attached", r.URL.Path); return false }
    return true
}

func (s *Server) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/snapshot" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if !s.requireSim(w, r) { return }
    writeJSON(w, 200, s.Sim.Snapshot())
}

func (s *Server) TrucksHandler(w http.ResponseWriter, r *http.Request) {
    if !s.requireSim(w, r) { return }
    items := s.Sim.TruckViews()
    if st := r.URL.Query().Get("status"); st != "" {
        kept := items[:0]
        for _, v := range items {
            if strings.EqualFold(string(v.Status), st) { kept = append(kept, v) }
        }
        items = kept
    }
    writeItems(w, items)
}

// Report as JSON, or as the console text with ?format=text
func (s *Server) ReportHandler(w http.ResponseWriter, r *http.Request) {
    if !s.requireSim(w, r) { return }
    rep := s.Sim.Report()
    if r.URL.Query().Get("format") == "text" { writeText(w, 200, rep); return }
    writeJSON(w, 200, rep)
}

// Planner metrics for a run; the current run by default
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { writeProblem(w, 405, "Method Not Allowed", "", r.URL.Path); return }
    runID := r.URL.Query().Get("runId")
    if runID == "" { runID = s.RunID }
    if runID == "" { writeProblem(w, 400, "Missing runId", "", r.URL.Path); return }
    // Prefer the sink; fall back to the in-process record of a live run
    items, err := s.Store.ListPlanMetrics(r.Context(), runID)
    if err != nil && !errors.Is(err, store.ErrNotFound) { writeProblem(w, 500, "Plan metrics failed", err.Error(), r.URL.Path); return }
    if len(items) > 0 {
        writeJSON(w, 200, map[string]any{"runId": runID, "source": "store", "items": items})
        return
    }
    live := opt.GetMetrics(runID)
    if len(live) == 0 { writeRunProblem(w, 404, "Not Found", "no planner metrics for run", r.URL.Path, runID); return }
    writeJSON(w, 200, map[string]any{"runId": runID, "source": "live", "items": live})
}

func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/runs" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    limit := 20
    if v := r.URL.Query().Get("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n <= 0 { writeProblem(w, 400, "Invalid limit", v, r.URL.Path); return }
        limit = n
    }
    runs, err := s.Store.ListRuns(r.Context(), limit)
    if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
    writeItems(w, runs)
}

// /v1/runs/{id} and /v1/runs/{id}/routes
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { writeProblem(w, 405, "Method Not Allowed", "", r.URL.Path); return }
    rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/")
    parts := strings.Split(rest, "/")
    if parts[0] == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "routes") {
        writeProblem(w, 404, "Not Found", "", r.URL.Path)
        return
    }
    id := parts[0]
    if len(parts) == 2 {
        routes, err := s.Store.ListRouteHistory(r.Context(), id)
        if errors.Is(err, store.ErrNotFound) { writeRunProblem(w, 404, "Run not found", "", r.URL.Path, id); return }
        if err != nil { writeProblem(w, 500, "Route history failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"runId": id, "items": routes})
        return
    }
    run, err := s.Store.GetRun(r.Context(), id)
    if errors.Is(err, store.ErrNotFound) { writeRunProblem(w, 404, "Run not found", "", r.URL.Path, id); return }
    if err != nil { writeProblem(w, 500, "Get run failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, run)
}
