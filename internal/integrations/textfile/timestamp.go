package textfile

import (
    "fmt"
    "regexp"
    "strconv"

    "lpgroute/internal/integrations"
    "lpgroute/internal/model"
)

var tsPattern = regexp.MustCompile(`^(\d+)d(\d+)h(\d+)m$`)

// ParseTimestamp converts "NNdNNhNNm" into minutes since the start of the run.
func ParseTimestamp(s string) (int, error) {
    m := tsPattern.FindStringSubmatch(s)
    if m == nil {
        return 0, fmt.Errorf("%w: bad timestamp %q", integrations.ErrMalformedLine, s)
    }
    var v [3]int
    for i := range v {
        n, err := strconv.Atoi(m[i+1])
        if err != nil {
            return 0, fmt.Errorf("%w: timestamp %q: %v", integrations.ErrMalformedLine, s, err)
        }
        v[i] = n
    }
    d, h, mi := v[0], v[1], v[2]
    if h >= 24 || mi >= 60 {
        return 0, fmt.Errorf("%w: timestamp %q out of range", integrations.ErrMalformedLine, s)
    }
    return d*model.MinutesPerDay + h*60 + mi, nil
}

// FormatTimestamp is the inverse of ParseTimestamp.
func FormatTimestamp(minute int) string {
    d := minute / model.MinutesPerDay
    rest := minute % model.MinutesPerDay
    return fmt.Sprintf("%02dd%02dh%02dm", d, rest/60, rest%60)
}
