// Package buildinfo carries version data stamped in with -ldflags "-X".
package buildinfo

import "runtime/debug"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    info := map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
    if bi, ok := debug.ReadBuildInfo(); ok {
        info["go"] = bi.GoVersion
        if Commit == "" {
            for _, s := range bi.Settings {
                if s.Key == "vcs.revision" {
                    info["commit"] = s.Value
                }
            }
        }
    }
    return info
}

// String is the one-line form printed at startup.
func String() string {
    s := "lpgsim " + Version
    if c := Info()["commit"]; c != "" {
        if len(c) > 12 {
            c = c[:12]
        }
        s += " (" + c + ")"
    }
    return s
}
