package api

import (
    "encoding/json"
    "net/http"
    "os"
    "time"

    "lpgroute/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "runId": s.RunID,
        "config": map[string]any{
            "PORT":             os.Getenv("PORT"),
            "LOG_LEVEL":        os.Getenv("LOG_LEVEL"),
            "RATE_RPS":         os.Getenv("RATE_RPS"),
            "RATE_BURST":       os.Getenv("RATE_BURST"),
            "SIM_DURATION":     os.Getenv("SIM_DURATION"),
            "SIM_REPLAN":       os.Getenv("SIM_REPLAN"),
            "HAS_DATABASE_URL": os.Getenv("DATABASE_URL") != "",
            "HAS_REDIS_URL":    os.Getenv("REDIS_URL") != "",
        },
    }
    if s.Limiter != nil {
        info["rate"] = map[string]any{"rps": float64(s.Limiter.Limit()), "burst": s.Limiter.Burst()}
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
