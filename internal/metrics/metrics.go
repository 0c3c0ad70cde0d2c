package metrics

import (
    "net/http"
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    // Registry is the dedicated Prometheus registry of the process
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    PlannerRuns = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_planner_runs_total", Help: "Planner invocations."},
    )
    PlannerIterations = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_planner_iterations_total", Help: "Tabu Search iterations across all planner runs."},
    )
    // PlannerDuration is wall time per planner call in seconds
    PlannerDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "lpg_planner_duration_seconds", Help: "Planner wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}},
    )
    PlannerUnassigned = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "lpg_planner_unassigned_parts", Help: "Parts left unassigned by the last plan."},
    )
    Replans = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_replans_total", Help: "Plans applied during the simulation."},
    )

    PartsActivated = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_parts_activated_total", Help: "Customer parts created from arriving orders."},
    )
    PartsServed = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_parts_served_total", Help: "Customer parts delivered."},
    )
    LateDeliveries = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_late_deliveries_total", Help: "Parts reached after their deadline."},
    )
    // TruckFaults counts aborted plans by kind (unreachable, fuel, no_reload_depot, overload, bad_plan)
    TruckFaults = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "lpg_truck_faults_total", Help: "Truck plan aborts by kind."},
        []string{"kind"},
    )
    ReloadStops = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_reload_stops_total", Help: "Mid-route reloads at intermediate depots."},
    )
    FuelBurned = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "lpg_fuel_burned_gallons_total", Help: "Fuel debited from trucks."},
    )
    TruckStatus = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "lpg_trucks", Help: "Trucks per state."},
        []string{"status"},
    )
    SimMinute = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "lpg_sim_minute", Help: "Current simulated minute."},
    )
    DepotLevel = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "lpg_depot_level_m3", Help: "Current LPG stock of intermediate depots."},
        []string{"depot"},
    )
)

// RegisterDefault registers every collector on Registry once.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(PlannerRuns, PlannerIterations, PlannerDuration, PlannerUnassigned, Replans)
        Registry.MustRegister(PartsActivated, PartsServed, LateDeliveries, TruckFaults, ReloadStops, FuelBurned)
        Registry.MustRegister(TruckStatus, SimMinute, DepotLevel)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
    return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
