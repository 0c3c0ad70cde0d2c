package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/google/uuid"
    "github.com/jackc/pgx/v5/pgtype"
    _ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id             uuid PRIMARY KEY,
    started_at     timestamptz NOT NULL,
    finished_at    timestamptz NOT NULL,
    duration_min   integer NOT NULL,
    replan         boolean NOT NULL,
    orders         integer NOT NULL DEFAULT 0,
    parts_served   integer NOT NULL DEFAULT 0,
    parts_unserved integer NOT NULL DEFAULT 0,
    replans        integer NOT NULL DEFAULT 0,
    faults         integer NOT NULL DEFAULT 0,
    fuel_gal       double precision NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS route_history (
    id           uuid PRIMARY KEY,
    run_id       uuid NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    truck_id     text NOT NULL,
    seq          integer NOT NULL,
    start_minute integer NOT NULL,
    end_minute   integer NOT NULL,
    part_ids     integer[] NOT NULL,
    cost         double precision,
    fuel_gal     double precision,
    feasible     boolean NOT NULL,
    reloads      integer NOT NULL DEFAULT 0,
    UNIQUE (run_id, truck_id, seq)
);
CREATE TABLE IF NOT EXISTS plan_metrics (
    run_id           uuid NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    minute           integer NOT NULL,
    iterations       integer NOT NULL,
    improvements     integer NOT NULL,
    tabu_hits        integer NOT NULL,
    aspirations      integer NOT NULL,
    no_ops           integer NOT NULL,
    parts            integer NOT NULL,
    trucks           integer NOT NULL,
    unassigned       integer NOT NULL,
    initial_cost     double precision,
    best_cost        double precision,
    operational_fuel double precision,
    elapsed_ms       bigint NOT NULL,
    PRIMARY KEY (run_id, minute)
);
`

type Postgres struct {
    db    *sql.DB
    types *pgtype.Map
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, fmt.Errorf("store: open: %w", err)
    }
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("store: ping: %w", err)
    }
    return &Postgres{db: db, types: pgtype.NewMap()}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the report tables when they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
    if _, err := p.db.ExecContext(ctx, schema); err != nil {
        return fmt.Errorf("store: migrate: %w", err)
    }
    return nil
}

func (p *Postgres) SaveRun(ctx context.Context, r RunRecord) error {
    if r.ID == "" { r.ID = uuid.NewString() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO runs (id, started_at, finished_at, duration_min, replan, orders, parts_served, parts_unserved, replans, faults, fuel_gal)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (id) DO UPDATE SET finished_at=$3, parts_served=$7, parts_unserved=$8, replans=$9, faults=$10, fuel_gal=$11`,
        r.ID, r.StartedAt, r.FinishedAt, r.DurationMin, r.Replan, r.Orders, r.PartsServed, r.PartsUnserved, r.Replans, r.Faults, r.FuelGal)
    if err != nil { return fmt.Errorf("store: save run %s: %w", r.ID, err) }
    return nil
}

func (p *Postgres) SaveRouteHistory(ctx context.Context, runID string, routes []RouteRecord) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    for _, r := range routes {
        id := r.ID
        if id == "" { id = uuid.NewString() }
        _, err := tx.ExecContext(ctx, `INSERT INTO route_history (id, run_id, truck_id, seq, start_minute, end_minute, part_ids, cost, fuel_gal, feasible, reloads)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
            id, runID, r.TruckID, r.Seq, r.StartMinute, r.EndMinute, int32s(r.PartIDs), r.Cost, r.FuelGal, r.Feasible, r.Reloads)
        if err != nil { return fmt.Errorf("store: save route %s/%d: %w", r.TruckID, r.Seq, err) }
    }
    return tx.Commit()
}

func (p *Postgres) SavePlanMetrics(ctx context.Context, runID string, items []PlanMetricsRecord) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    for _, m := range items {
        _, err := tx.ExecContext(ctx, `INSERT INTO plan_metrics (run_id, minute, iterations, improvements, tabu_hits, aspirations, no_ops, parts, trucks, unassigned, initial_cost, best_cost, operational_fuel, elapsed_ms)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
            ON CONFLICT (run_id, minute) DO UPDATE SET
              iterations=$3, improvements=$4, tabu_hits=$5, aspirations=$6, no_ops=$7, parts=$8, trucks=$9, unassigned=$10, initial_cost=$11, best_cost=$12, operational_fuel=$13, elapsed_ms=$14`,
            runID, m.Minute, m.Iterations, m.Improvements, m.TabuHits, m.Aspirations, m.NoOps, m.Parts, m.Trucks, m.Unassigned, m.InitialCost, m.BestCost, m.OperationalFuel, m.ElapsedMs)
        if err != nil { return fmt.Errorf("store: save plan metrics at %d: %w", m.Minute, err) }
    }
    return tx.Commit()
}

const runColumns = `id::text, started_at, finished_at, duration_min, replan, orders, parts_served, parts_unserved, replans, faults, fuel_gal`

func scanRun(row interface{ Scan(...any) error }) (RunRecord, error) {
    var r RunRecord
    err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DurationMin, &r.Replan, &r.Orders, &r.PartsServed, &r.PartsUnserved, &r.Replans, &r.Faults, &r.FuelGal)
    return r, err
}

func (p *Postgres) GetRun(ctx context.Context, id string) (RunRecord, error) {
    r, err := scanRun(p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id::text=$1`, id))
    if errors.Is(err, sql.ErrNoRows) { return RunRecord{}, ErrNotFound }
    return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
    if limit <= 0 { limit = 50 }
    rows, err := p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []RunRecord{}
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, err }
        out = append(out, r)
    }
    return out, rows.Err()
}

func (p *Postgres) ListRouteHistory(ctx context.Context, runID string) ([]RouteRecord, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, run_id::text, truck_id, seq, start_minute, end_minute, part_ids, cost, fuel_gal, feasible, reloads
        FROM route_history WHERE run_id::text=$1 ORDER BY truck_id, seq`, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []RouteRecord{}
    for rows.Next() {
        var r RouteRecord
        var parts []int32
        var cost, fuel sql.NullFloat64
        if err := rows.Scan(&r.ID, &r.RunID, &r.TruckID, &r.Seq, &r.StartMinute, &r.EndMinute, p.types.SQLScanner(&parts), &cost, &fuel, &r.Feasible, &r.Reloads); err != nil {
            return nil, err
        }
        for _, id := range parts { r.PartIDs = append(r.PartIDs, int(id)) }
        r.Cost, r.FuelGal = nullable(cost), nullable(fuel)
        out = append(out, r)
    }
    return out, rows.Err()
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, runID string) ([]PlanMetricsRecord, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT run_id::text, minute, iterations, improvements, tabu_hits, aspirations, no_ops, parts, trucks, unassigned, initial_cost, best_cost, operational_fuel, elapsed_ms
        FROM plan_metrics WHERE run_id::text=$1 ORDER BY minute`, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []PlanMetricsRecord{}
    for rows.Next() {
        var m PlanMetricsRecord
        var initial, best, fuel sql.NullFloat64
        if err := rows.Scan(&m.RunID, &m.Minute, &m.Iterations, &m.Improvements, &m.TabuHits, &m.Aspirations, &m.NoOps, &m.Parts, &m.Trucks, &m.Unassigned, &initial, &best, &fuel, &m.ElapsedMs); err != nil {
            return nil, err
        }
        m.InitialCost, m.BestCost, m.OperationalFuel = nullable(initial), nullable(best), nullable(fuel)
        out = append(out, m)
    }
    return out, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 { if !v.Valid { return nil }; return &v.Float64 }

// int32s converts part ids for the integer[] column.
func int32s(v []int) []int32 {
    out := make([]int32, len(v))
    for i, x := range v { out[i] = int32(x) }
    return out
}
