package api

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"

    "lpgroute/internal/events"
    "lpgroute/internal/grid"
    "lpgroute/internal/metrics"
    "lpgroute/internal/model"
    "lpgroute/internal/sim"
    "lpgroute/internal/state"
    "lpgroute/internal/store"
)

func runSim(t *testing.T) *sim.Simulator {
    t.Helper()
    l := state.DefaultLayout()
    l.Fleet = []state.FleetSpec{{Type: "TD", Count: 2}}
    w, err := state.New(l)
    if err != nil { t.Fatalf("state.New: %v", err) }
    w.SetOrders([]model.Order{{Pos: grid.Point{X: 15, Y: 10}, VolumeM3: 5, DeadlineHours: 4}})
    opts := sim.DefaultOptions()
    opts.Duration = 60
    opts.ProgressEvery = 0
    opts.Planner.MaxIterations = 20
    s, err := sim.Run(context.Background(), w, opts)
    if err != nil { t.Fatalf("sim.Run: %v", err) }
    return s
}

func newTestServer(t *testing.T, st store.Store) (*Server, *sim.Simulator) {
    t.Helper()
    sm := runSim(t)
    return NewServer(Deps{Sim: sm, RunID: sm.RunID, Store: st}), sm
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
    t.Helper()
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
    return rr
}

func TestHealthReady(t *testing.T) {
    s, _ := newTestServer(t, nil)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }

    bare := NewServer(Deps{})
    if rr := get(t, bare.Handler(), "/readyz"); rr.Code != 503 { t.Fatalf("ready without sim: got %d", rr.Code) }
    if rr := get(t, bare.Handler(), "/v1/snapshot"); rr.Code != 503 { t.Fatalf("snapshot without sim: got %d", rr.Code) }
}

func TestSnapshotTrucksReport(t *testing.T) {
    s, _ := newTestServer(t, nil)
    h := s.Handler()

    rr := get(t, h, "/v1/snapshot")
    if rr.Code != 200 { t.Fatalf("snapshot: %d", rr.Code) }
    var snap sim.Snapshot
    if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil { t.Fatalf("decode snapshot: %v", err) }
    if snap.Minute != 60 || len(snap.Trucks) != 2 || len(snap.Routes) != 1 || len(snap.Depots) != 3 {
        t.Fatalf("snapshot %+v", snap)
    }
    if snap.Depots[0].CapacityMax != nil { t.Fatal("main plant capacity should encode as null") }

    rr = get(t, h, "/v1/trucks?status=idle")
    var trucks struct{ Items []sim.TruckView }
    if err := json.Unmarshal(rr.Body.Bytes(), &trucks); err != nil || len(trucks.Items) != 2 {
        t.Fatalf("trucks %s err %v", rr.Body.String(), err)
    }
    rr = get(t, h, "/v1/trucks?status=EN_ROUTE")
    if err := json.Unmarshal(rr.Body.Bytes(), &trucks); err != nil || len(trucks.Items) != 0 {
        t.Fatalf("filtered trucks %s err %v", rr.Body.String(), err)
    }

    rr = get(t, h, "/v1/report")
    var rep sim.Report
    if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil || rep.PartsServed != 1 {
        t.Fatalf("report %s err %v", rr.Body.String(), err)
    }
    rr = get(t, h, "/v1/report?format=text")
    if !strings.Contains(rr.Body.String(), "All active parts were served.") {
        t.Fatalf("text report:\n%s", rr.Body.String())
    }

    rr = httptest.NewRecorder()
    h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/snapshot", nil))
    if rr.Code != 405 { t.Fatalf("POST snapshot: %d", rr.Code) }
}

func TestRunsFromStore(t *testing.T) {
    st := store.NewMemory()
    s, sm := newTestServer(t, st)
    if err := sm.SaveReport(context.Background(), st); err != nil { t.Fatalf("SaveReport: %v", err) }
    h := s.Handler()

    rr := get(t, h, "/v1/runs?limit=5")
    var runs struct{ Items []store.RunRecord }
    if err := json.Unmarshal(rr.Body.Bytes(), &runs); err != nil || len(runs.Items) != 1 || runs.Items[0].ID != sm.RunID {
        t.Fatalf("runs %s err %v", rr.Body.String(), err)
    }
    if rr := get(t, h, "/v1/runs/"+sm.RunID); rr.Code != 200 { t.Fatalf("run by id: %d", rr.Code) }
    rr = get(t, h, "/v1/runs/"+sm.RunID+"/routes")
    var routes struct{ Items []store.RouteRecord }
    if err := json.Unmarshal(rr.Body.Bytes(), &routes); err != nil || len(routes.Items) != 1 {
        t.Fatalf("routes %s err %v", rr.Body.String(), err)
    }
    rr = get(t, h, "/v1/runs/nope")
    var prob Problem
    if rr.Code != 404 || rr.Header().Get("Content-Type") != "application/problem+json" || json.Unmarshal(rr.Body.Bytes(), &prob) != nil || prob.RunID != "nope" {
        t.Fatalf("missing run: %d %s", rr.Code, rr.Body.String())
    }
    if rr := get(t, h, "/v1/runs/x/y/z"); rr.Code != 404 { t.Fatalf("bad path: %d", rr.Code) }
    if rr := get(t, h, "/v1/runs?limit=0"); rr.Code != 400 { t.Fatalf("bad limit: %d", rr.Code) }

    rr = get(t, h, "/v1/plan-metrics")
    var pm struct {
        Source string
        Items  []store.PlanMetricsRecord
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &pm); err != nil || pm.Source != "store" || len(pm.Items) != 1 {
        t.Fatalf("plan metrics %s err %v", rr.Body.String(), err)
    }
}

func TestPlanMetricsLive(t *testing.T) {
    s, _ := newTestServer(t, nil)
    rr := get(t, s.Handler(), "/v1/plan-metrics")
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"source":"live"`) {
        t.Fatalf("live metrics %d %s", rr.Code, rr.Body.String())
    }
    if rr := get(t, s.Handler(), "/v1/plan-metrics?runId=unknown"); rr.Code != 404 {
        t.Fatalf("unknown run: %d", rr.Code)
    }
}

func TestRateLimit(t *testing.T) {
    sm := runSim(t)
    s := NewServer(Deps{Sim: sm, RateRPS: 0.001, RateBurst: 1})
    h := s.Handler()
    if rr := get(t, h, "/v1/trucks"); rr.Code != 200 { t.Fatalf("first: %d", rr.Code) }
    rr := get(t, h, "/v1/trucks")
    if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
        t.Fatalf("second: %d", rr.Code)
    }
    if rr := get(t, h, "/healthz"); rr.Code != 200 { t.Fatalf("health is never limited: %d", rr.Code) }
}

func TestMetricsAndDocs(t *testing.T) {
    metrics.RegisterDefault()
    s := NewServer(Deps{})
    h := s.Handler()
    get(t, h, "/healthz")
    rr := get(t, h, "/metrics")
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), `http_requests_total{method="GET",path="/healthz",status="200"}`) {
        t.Fatalf("metrics body:\n%s", rr.Body.String())
    }
    rr = get(t, h, "/openapi.json")
    var doc map[string]any
    if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil || doc["openapi"] != "3.0.3" {
        t.Fatalf("openapi json %v %v", doc["openapi"], err)
    }
    if rr := get(t, h, "/debug"); rr.Code != 200 || !strings.Contains(rr.Body.String(), "version") {
        t.Fatalf("debug %d", rr.Code)
    }
}

func TestSnapshotWebSocket(t *testing.T) {
    sm := runSim(t)
    b := events.NewBroker()
    s := NewServer(Deps{Sim: sm, RunID: sm.RunID, Broker: b})
    ts := httptest.NewServer(s.Handler())
    defer ts.Close()

    c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/snapshot/ws", nil)
    if err != nil { t.Fatalf("dial: %v", err) }
    defer func() { _ = c.Close() }()
    _ = c.SetReadDeadline(time.Now().Add(5 * time.Second))

    read := func() wsMessage {
        t.Helper()
        var m wsMessage
        if err := c.ReadJSON(&m); err != nil { t.Fatalf("read: %v", err) }
        return m
    }
    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil { t.Fatal(err) }
    if m := read(); m.Type != "connection_ack" { t.Fatalf("want ack, got %s", m.Type) }
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}); err != nil { t.Fatal(err) }

    m := read()
    var snap sim.Snapshot
    if m.Type != "next" || m.ID != "1" || json.Unmarshal(m.Payload, &snap) != nil || snap.RunID != sm.RunID {
        t.Fatalf("first message %s %s", m.Type, m.Payload)
    }

    deadline := time.Now().Add(2 * time.Second)
    for b.Subscribers(events.TopicSnapshot) == 0 && time.Now().Before(deadline) {
        time.Sleep(5 * time.Millisecond)
    }
    snap.Minute = 61
    events.NewPublisher(b, sm.RunID).Emit(events.TopicSnapshot, "snapshot", 61, map[string]any{"snapshot": snap})
    m = read()
    var next sim.Snapshot
    if m.Type != "next" || json.Unmarshal(m.Payload, &next) != nil || next.Minute != 61 {
        t.Fatalf("streamed message %s %s", m.Type, m.Payload)
    }

    if err := c.WriteJSON(wsMessage{Type: "complete", ID: "1"}); err != nil { t.Fatal(err) }
    if m := read(); m.Type != "complete" { t.Fatalf("want complete, got %s", m.Type) }
}
