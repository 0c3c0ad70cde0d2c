// Package config loads the run configuration: an optional YAML file layered
// over the built-in defaults, then environment overrides.
package config

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    log "github.com/sirupsen/logrus"
    yaml "gopkg.in/yaml.v3"

    "lpgroute/internal/model"
    "lpgroute/internal/opt"
    "lpgroute/internal/sim"
    "lpgroute/internal/state"
)

var ErrInvalid = errors.New("invalid config")

type Simulation struct {
    // Duration is the last simulated minute.
    Duration      int           `yaml:"duration"`
    Replan        bool          `yaml:"replan"`
    TickDelay     time.Duration `yaml:"tick_delay"`
    ProgressEvery int           `yaml:"progress_every"`
    SnapshotEvery int           `yaml:"snapshot_every"`
}

type Inputs struct {
    Orders    string `yaml:"orders"`
    Blockages string `yaml:"blockages"`
}

type Server struct {
    // Addr enables the HTTP feed when set, e.g. ":8080".
    Addr      string  `yaml:"addr"`
    RateRPS   float64 `yaml:"rate_rps"`
    RateBurst int     `yaml:"rate_burst"`
}

type Log struct {
    Level  string `yaml:"level"`
    Format string `yaml:"format"`
}

type Config struct {
    Simulation  Simulation        `yaml:"simulation"`
    Planner     opt.Config        `yaml:"planner"`
    Depots      []state.DepotSpec `yaml:"depots"`
    Fleet       []state.FleetSpec `yaml:"fleet"`
    Inputs      Inputs            `yaml:"inputs"`
    Server      Server            `yaml:"server"`
    Log         Log               `yaml:"log"`
    DatabaseURL string            `yaml:"database_url"`
    RedisURL    string            `yaml:"redis_url"`
}

func Default() Config {
    l := state.DefaultLayout()
    return Config{
        Simulation: Simulation{
            Duration:      8 * model.MinutesPerDay,
            Replan:        true,
            ProgressEvery: 60,
            SnapshotEvery: 15,
        },
        Planner: opt.DefaultConfig(),
        Depots:  l.Depots,
        Fleet:   l.Fleet,
        Server:  Server{RateRPS: 20, RateBurst: 40},
        Log:     Log{Level: "info", Format: "text"},
    }
}

// Load reads path (when non-empty) over the defaults and applies the
// environment. The result is validated.
func Load(path string) (Config, error) {
    cfg := Default()
    if path != "" {
        data, err := os.ReadFile(path)
        if err != nil {
            return cfg, fmt.Errorf("config: read %s: %w", path, err)
        }
        if err := yaml.Unmarshal(data, &cfg); err != nil {
            return cfg, fmt.Errorf("config: parse %s: %w", path, err)
        }
    }
    if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
        return cfg, err
    }
    return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment seen through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
    if v, ok := lookup("DATABASE_URL"); ok {
        c.DatabaseURL = v
    }
    if v, ok := lookup("REDIS_URL"); ok {
        c.RedisURL = v
    }
    if v, ok := lookup("PORT"); ok && v != "" {
        c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
    }
    if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
        c.Log.Level = v
    }
    if v, ok := lookup("RATE_RPS"); ok && v != "" {
        f, err := strconv.ParseFloat(v, 64)
        if err != nil {
            return fmt.Errorf("%w: RATE_RPS=%q", ErrInvalid, v)
        }
        c.Server.RateRPS = f
    }
    if v, ok := lookup("RATE_BURST"); ok && v != "" {
        n, err := strconv.Atoi(v)
        if err != nil {
            return fmt.Errorf("%w: RATE_BURST=%q", ErrInvalid, v)
        }
        c.Server.RateBurst = n
    }
    if v, ok := lookup("SIM_DURATION"); ok && v != "" {
        n, err := strconv.Atoi(v)
        if err != nil {
            return fmt.Errorf("%w: SIM_DURATION=%q", ErrInvalid, v)
        }
        c.Simulation.Duration = n
    }
    if v, ok := lookup("SIM_REPLAN"); ok && v != "" {
        b, err := strconv.ParseBool(v)
        if err != nil {
            return fmt.Errorf("%w: SIM_REPLAN=%q", ErrInvalid, v)
        }
        c.Simulation.Replan = b
    }
    return nil
}

func (c Config) Validate() error {
    if c.Simulation.Duration <= 0 {
        return fmt.Errorf("%w: simulation.duration must be positive", ErrInvalid)
    }
    if c.Planner.MaxIterations <= 0 || c.Planner.Tenure <= 0 {
        return fmt.Errorf("%w: planner iterations and tenure must be positive", ErrInvalid)
    }
    for _, f := range c.Fleet {
        if _, ok := model.TruckTypeByCode(f.Type); !ok {
            return fmt.Errorf("%w: unknown truck type %q", ErrInvalid, f.Type)
        }
        if f.Count < 0 {
            return fmt.Errorf("%w: negative count for %s", ErrInvalid, f.Type)
        }
    }
    if _, err := state.New(c.Layout()); err != nil {
        return fmt.Errorf("%w: %v", ErrInvalid, err)
    }
    if c.Server.Addr != "" && (c.Server.RateRPS <= 0 || c.Server.RateBurst <= 0) {
        return fmt.Errorf("%w: server rate must be positive", ErrInvalid)
    }
    if _, err := log.ParseLevel(c.Log.Level); err != nil {
        return fmt.Errorf("%w: %v", ErrInvalid, err)
    }
    return nil
}

func (c Config) Layout() state.Layout {
    return state.Layout{Depots: c.Depots, Fleet: c.Fleet}
}

func (c Config) SimOptions() sim.Options {
    return sim.Options{
        Duration:      c.Simulation.Duration,
        Replan:        c.Simulation.Replan,
        TickDelay:     c.Simulation.TickDelay,
        ProgressEvery: c.Simulation.ProgressEvery,
        SnapshotEvery: c.Simulation.SnapshotEvery,
        Planner:       c.Planner,
    }
}

// ConfigureLogging sets the level and formatter of the standard logrus logger.
func (l Log) ConfigureLogging() error {
    lvl, err := log.ParseLevel(l.Level)
    if err != nil {
        return fmt.Errorf("config: %w", err)
    }
    log.SetLevel(lvl)
    switch strings.ToLower(l.Format) {
    case "json":
        log.SetFormatter(&log.JSONFormatter{})
    default:
        log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
    }
    return nil
}
