// Package discovery supplies gossip seed addresses for controller service
// announcements. Implementations live in sub-packages.
package discovery

import (
    "context"
    "sort"
    "strings"

    "go.uber.org/multierr"
)

// Discovery returns host:port seeds to join.
type Discovery interface {
    Seeds(ctx context.Context) ([]string, error)
}

// Func adapts a plain function to Discovery.
type Func func(ctx context.Context) ([]string, error)

func (f Func) Seeds(ctx context.Context) ([]string, error) { return f(ctx) }

// Merge returns a Discovery yielding the sorted union of ds. A failing
// source does not hide the seeds of the others; its error is returned
// alongside them.
func Merge(ds ...Discovery) Discovery {
    return Func(func(ctx context.Context) ([]string, error) {
        var errs error
        var all []string
        for _, d := range ds {
            if d == nil { continue }
            s, err := d.Seeds(ctx)
            errs = multierr.Append(errs, err)
            all = append(all, s...)
        }
        return Normalize(all), errs
    })
}

// Normalize trims, de-duplicates and sorts seeds, dropping empty ones.
func Normalize(seeds []string) []string {
    set := make(map[string]struct{}, len(seeds))
    out := make([]string, 0, len(seeds))
    for _, s := range seeds {
        s = strings.TrimSpace(s)
        if s == "" { continue }
        if _, ok := set[s]; ok { continue }
        set[s] = struct{}{}
        out = append(out, s)
    }
    sort.Strings(out)
    if len(out) == 0 { return nil }
    return out
}

// SplitList splits a comma separated seed list.
func SplitList(csv string) []string {
    if csv == "" { return nil }
    return Normalize(strings.Split(csv, ","))
}
