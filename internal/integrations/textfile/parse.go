// Package textfile reads orders and blockages from the plain-text formats
// used by the historical data sets:
//
//	orders:    01d00h24m:15,10,c-12,5m3,4h
//	blockages: 00d00h10m-00d02h00m:30,30,31,30,32,30
package textfile

import (
    "bufio"
    "fmt"
    "io"
    "os"
    "sort"
    "strconv"
    "strings"

    log "github.com/sirupsen/logrus"

    "lpgroute/internal/grid"
    "lpgroute/internal/integrations"
    "lpgroute/internal/model"
)

func malformed(format string, args ...any) error {
    return fmt.Errorf("%w: %s", integrations.ErrMalformedLine, fmt.Sprintf(format, args...))
}

func atoi(field, what string) (int, error) {
    n, err := strconv.Atoi(strings.TrimSpace(field))
    if err != nil {
        return 0, malformed("bad %s %q", what, field)
    }
    return n, nil
}

func cell(xs, ys string) (grid.Point, error) {
    x, err := atoi(xs, "x")
    if err != nil {
        return grid.Point{}, err
    }
    y, err := atoi(ys, "y")
    if err != nil {
        return grid.Point{}, err
    }
    p := grid.Point{X: x, Y: y}
    if !p.InBounds() {
        return grid.Point{}, malformed("cell (%d,%d) is off the grid", x, y)
    }
    return p, nil
}

// ParseOrderLine parses "<ts>:<x>,<y>,<customer>,<vol>m3,<h>h".
func ParseOrderLine(line string) (model.Order, error) {
    head, body, ok := strings.Cut(line, ":")
    if !ok {
        return model.Order{}, malformed("missing ':'")
    }
    at, err := ParseTimestamp(strings.TrimSpace(head))
    if err != nil {
        return model.Order{}, err
    }
    f := strings.Split(body, ",")
    if len(f) != 5 {
        return model.Order{}, malformed("want 5 fields, got %d", len(f))
    }
    pos, err := cell(f[0], f[1])
    if err != nil {
        return model.Order{}, err
    }
    volS := strings.TrimSuffix(strings.TrimSpace(f[3]), "m3")
    vol, err := strconv.ParseFloat(volS, 64)
    if err != nil || vol <= 0 {
        return model.Order{}, malformed("bad volume %q", f[3])
    }
    hours, err := atoi(strings.TrimSuffix(strings.TrimSpace(f[4]), "h"), "deadline")
    if err != nil {
        return model.Order{}, err
    }
    if hours <= 0 {
        return model.Order{}, malformed("deadline must be positive, got %dh", hours)
    }
    return model.Order{
        Customer:      strings.TrimSpace(f[2]),
        Pos:           pos,
        VolumeM3:      vol,
        DeadlineHours: hours,
        ArrivalMinute: at,
    }, nil
}

// ParseBlockageLine parses "<t1>-<t2>:<x1>,<y1>,<x2>,<y2>,...".
func ParseBlockageLine(line string) (model.Blockage, error) {
    head, body, ok := strings.Cut(line, ":")
    if !ok {
        return model.Blockage{}, malformed("missing ':'")
    }
    t1s, t2s, ok := strings.Cut(head, "-")
    if !ok {
        return model.Blockage{}, malformed("missing interval '-'")
    }
    start, err := ParseTimestamp(strings.TrimSpace(t1s))
    if err != nil {
        return model.Blockage{}, err
    }
    end, err := ParseTimestamp(strings.TrimSpace(t2s))
    if err != nil {
        return model.Blockage{}, err
    }
    if end < start {
        return model.Blockage{}, malformed("interval ends before it starts")
    }
    f := strings.Split(body, ",")
    if len(f)%2 != 0 {
        return model.Blockage{}, malformed("odd coordinate count %d", len(f))
    }
    b := model.Blockage{StartMinute: start, EndMinute: end}
    for i := 0; i < len(f); i += 2 {
        p, err := cell(f[i], f[i+1])
        if err != nil {
            return model.Blockage{}, err
        }
        b.Cells = append(b.Cells, p)
    }
    return b, nil
}

// scan feeds every non-blank, non-comment line to fn, logging and counting the
// lines fn rejects.
func scan(r io.Reader, name string, fn func(string) error) (int, error) {
    sc := bufio.NewScanner(r)
    skipped, n := 0, 0
    for sc.Scan() {
        n++
        line := strings.TrimSpace(sc.Text())
        if line == "" || strings.HasPrefix(line, "#") {
            continue
        }
        if err := fn(line); err != nil {
            skipped++
            log.WithFields(log.Fields{"file": name, "line": n, "reason": err}).Warn("skipping input line")
        }
    }
    if err := sc.Err(); err != nil {
        return skipped, fmt.Errorf("textfile: read %s: %w", name, err)
    }
    return skipped, nil
}

// ReadOrders parses orders from r, sorted by arrival. name labels log lines.
func ReadOrders(r io.Reader, name string) (integrations.OrderBatch, error) {
    var out integrations.OrderBatch
    skipped, err := scan(r, name, func(line string) error {
        o, err := ParseOrderLine(line)
        if err != nil {
            return err
        }
        out.Orders = append(out.Orders, o)
        return nil
    })
    out.Skipped = skipped
    sort.SliceStable(out.Orders, func(i, j int) bool { return out.Orders[i].ArrivalMinute < out.Orders[j].ArrivalMinute })
    return out, err
}

func ReadBlockages(r io.Reader, name string) (integrations.BlockageBatch, error) {
    var out integrations.BlockageBatch
    skipped, err := scan(r, name, func(line string) error {
        b, err := ParseBlockageLine(line)
        if err != nil {
            return err
        }
        out.Blockages = append(out.Blockages, b)
        return nil
    })
    out.Skipped = skipped
    return out, err
}

func LoadOrders(path string) (integrations.OrderBatch, error) {
    f, err := os.Open(path)
    if err != nil {
        return integrations.OrderBatch{}, fmt.Errorf("textfile: open orders: %w", err)
    }
    defer f.Close()
    return ReadOrders(f, path)
}

func LoadBlockages(path string) (integrations.BlockageBatch, error) {
    f, err := os.Open(path)
    if err != nil {
        return integrations.BlockageBatch{}, fmt.Errorf("textfile: open blockages: %w", err)
    }
    defer f.Close()
    return ReadBlockages(f, path)
}
