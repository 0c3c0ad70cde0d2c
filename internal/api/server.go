// Package api serves a read-only HTTP feed of a running simulation: health,
// snapshots, truck views, the run report, the stored runs and a live
// WebSocket stream of snapshots.
package api

import (
    "bufio"
    "errors"
    "net"
    "net/http"
    "strconv"
    "strings"
    "time"

    log "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "lpgroute/internal/events"
    "lpgroute/internal/metrics"
    "lpgroute/internal/sim"
    "lpgroute/internal/store"
)

// Simulation is the view of the simulator the feed reads from.
type Simulation interface {
    Snapshot() sim.Snapshot
    TruckViews() []sim.TruckView
    Report() sim.Report
}

type Server struct {
    Sim     Simulation
    RunID   string
    Store   store.Store
    Broker  events.EventBroker
    Limiter *rate.Limiter
}

type Deps struct {
    Sim       Simulation
    RunID     string
    Store     store.Store
    Broker    events.EventBroker
    RateRPS   float64
    RateBurst int
}

// NewServer creates a Server. A nil store falls back to an in-memory one and a
// nil broker to the in-process broker. A non-positive rate disables limiting.
func NewServer(d Deps) *Server {
    s := &Server{Sim: d.Sim, RunID: d.RunID, Store: d.Store, Broker: d.Broker}
    if s.Store == nil {
        s.Store = store.NewMemory()
    }
    if s.Broker == nil {
        s.Broker = events.NewBroker()
    }
    if d.RateRPS > 0 {
        burst := d.RateBurst
        if burst <= 0 {
            burst = 1
        }
        s.Limiter = rate.NewLimiter(rate.Limit(d.RateRPS), burst)
    }
    return s
}

// Handler wires every route behind logging, metrics and rate limiting.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()

    // Health
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)

    // Simulation views
    mux.HandleFunc("/v1/snapshot", s.SnapshotHandler)
    mux.HandleFunc("/v1/snapshot/ws", s.SnapshotWSHandler)
    mux.HandleFunc("/v1/trucks", s.TrucksHandler)
    mux.HandleFunc("/v1/report", s.ReportHandler)

    // Report sink
    mux.HandleFunc("/v1/plan-metrics", s.PlanMetricsHandler)
    mux.HandleFunc("/v1/runs", s.RunsHandler)
    mux.HandleFunc("/v1/runs/", s.RunByIDHandler)

    // Ops
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/debug", s.DebugJSON)
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", s.OpenAPIJSONHandler)
    mux.HandleFunc("/docs", s.DocsHandler)

    return logMiddleware(instrument(s.rateLimit(mux)))
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if s.Limiter != nil && r.URL.Path != "/healthz" && !s.Limiter.Allow() {
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is needed by the WebSocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok {
        return nil, nil, errors.New("api: response writer cannot hijack")
    }
    r.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

func instrument(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        path := pathLabel(r.URL.Path)
        code := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
    })
}

// pathLabel keeps metric cardinality bounded.
func pathLabel(p string) string {
    if strings.HasPrefix(p, "/v1/runs/") {
        return "/v1/runs/{id}"
    }
    return p
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        log.WithFields(log.Fields{
            "remote": r.RemoteAddr,
            "method": r.Method,
            "path":   r.URL.Path,
            "dur":    time.Since(start).String(),
        }).Debug("http")
    })
}
