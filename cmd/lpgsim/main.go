package main

import (
    "context"
    "errors"
    "flag"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    log "github.com/sirupsen/logrus"

    "lpgroute/internal/api"
    "lpgroute/internal/buildinfo"
    "lpgroute/internal/config"
    "lpgroute/internal/events"
    "lpgroute/internal/integrations/textfile"
    "lpgroute/internal/metrics"
    "lpgroute/internal/sim"
    "lpgroute/internal/state"
    "lpgroute/internal/store"
)

func main() {
    // .env is optional
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        log.WithError(err).Warn("could not read .env")
    }

    cfgPath := flag.String("config", "", "YAML config file")
    orders := flag.String("orders", "", "order file (overrides inputs.orders)")
    blockages := flag.String("blockages", "", "blockage file (overrides inputs.blockages)")
    duration := flag.Int("duration", 0, "last simulated minute (overrides simulation.duration)")
    replan := flag.Bool("replan", true, "replan when orders arrive or trucks fail")
    flag.Parse()

    cfg, err := config.Load(*cfgPath)
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    flag.Visit(func(f *flag.Flag) {
        switch f.Name {
        case "orders":
            cfg.Inputs.Orders = *orders
        case "blockages":
            cfg.Inputs.Blockages = *blockages
        case "duration":
            cfg.Simulation.Duration = *duration
        case "replan":
            cfg.Simulation.Replan = *replan
        }
    })
    if err := cfg.Validate(); err != nil {
        log.Fatalf("config: %v", err)
    }
    if err := cfg.Log.ConfigureLogging(); err != nil {
        log.Fatalf("config: %v", err)
    }
    log.Info(buildinfo.String())

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    world, err := state.New(cfg.Layout())
    if err != nil {
        log.Fatalf("world: %v", err)
    }
    src := textfile.Adapter{OrdersPath: cfg.Inputs.Orders, BlockagesPath: cfg.Inputs.Blockages}
    ob, err := src.FetchOrders(ctx)
    if err != nil {
        log.Fatalf("orders: %v", err)
    }
    bb, err := src.FetchBlockages(ctx)
    if err != nil {
        log.Fatalf("blockages: %v", err)
    }
    world.SetOrders(ob.Orders)
    world.SetBlockages(bb.Blockages)

    st := openStore(ctx, cfg.DatabaseURL)
    broker := openBroker(ctx, cfg.RedisURL)
    metrics.RegisterDefault()

    s := sim.New(world, cfg.SimOptions())
    s.Events = events.NewPublisher(broker, s.RunID)

    var srv *http.Server
    if cfg.Server.Addr != "" {
        feed := api.NewServer(api.Deps{
            Sim: s, RunID: s.RunID, Store: st, Broker: broker,
            RateRPS: cfg.Server.RateRPS, RateBurst: cfg.Server.RateBurst,
        })
        srv = &http.Server{
            Addr:              cfg.Server.Addr,
            Handler:           feed.Handler(),
            ReadHeaderTimeout: 5 * time.Second,
        }
        go func() {
            log.Infof("API listening on %s", cfg.Server.Addr)
            if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
                log.Errorf("server error: %v", err)
            }
        }()
    }

    if err := s.Run(ctx); err != nil {
        log.WithError(err).Warn("simulation interrupted")
    }

    if _, err := s.Report().WriteTo(os.Stdout); err != nil {
        log.WithError(err).Error("print report")
    }

    // The run context may already be cancelled; the report still gets written.
    saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()
    if err := s.SaveReport(saveCtx, st); err != nil {
        log.WithError(err).Error("save report")
    } else {
        log.WithField("run", s.RunID).Info("report saved")
    }

    if srv != nil {
        // keep serving the final state until interrupted
        if ctx.Err() == nil {
            log.Info("simulation done; serving the final state until interrupted")
            <-ctx.Done()
        }
        shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer shCancel()
        _ = srv.Shutdown(shCtx)
    }
    if c, ok := broker.(interface{ Close() error }); ok {
        _ = c.Close()
    }
    if c, ok := st.(interface{ Close() error }); ok {
        _ = c.Close()
    }
}

// openStore uses Postgres when DATABASE_URL is set, else the in-memory store.
func openStore(ctx context.Context, dsn string) store.Store {
    if dsn == "" {
        return store.NewMemory()
    }
    pg, err := store.NewPostgres(dsn)
    if err != nil {
        log.Fatalf("store: %v", err)
    }
    if os.Getenv("DB_MIGRATE") != "false" {
        if err := pg.Migrate(ctx); err != nil {
            log.Fatalf("store: %v", err)
        }
    }
    return pg
}

// openBroker uses Redis when REDIS_URL is set and reachable, else the
// in-process broker.
func openBroker(ctx context.Context, url string) events.EventBroker {
    if url == "" {
        return events.NewBroker()
    }
    rb, err := events.NewRedisBroker(url)
    if err == nil {
        pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
        err = rb.Ping(pctx)
        cancel()
        if err == nil {
            return rb
        }
        _ = rb.Close()
    }
    log.WithError(err).Warn("redis unavailable, using in-process broker")
    return events.NewBroker()
}
