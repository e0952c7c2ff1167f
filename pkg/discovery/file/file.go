// Package file reads gossip seeds from an environment variable or from
// files matched by a path or glob.
package file

import (
    "bufio"
    "context"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-lsf/pkg/discovery"
)

type Options struct {
    // Path is a file or glob; each line holds seeds, comma separated, and
    // '#' starts a comment line.
    Path string
    // Env names a variable that overrides the files when set.
    Env string
    // Refresh is how long a file read is reused. Defaults to 5s.
    Refresh time.Duration
}

type source struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    return &source{opts: opts}
}

func (s *source) Seeds(context.Context) ([]string, error) {
    if s.opts.Env != "" {
        if v := strings.TrimSpace(os.Getenv(s.opts.Env)); v != "" { return discovery.SplitList(v), nil }
    }
    if s.opts.Path == "" { return nil, nil }
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.cache != nil && time.Since(s.last) < s.opts.Refresh {
        return append([]string(nil), s.cache...), nil
    }
    matches, err := filepath.Glob(s.opts.Path)
    if err != nil { return nil, fmt.Errorf("file: bad pattern %q: %w", s.opts.Path, err) }
    if len(matches) == 0 { return nil, fmt.Errorf("file: no seed file matches %q", s.opts.Path) }
    var all []string
    for _, m := range matches {
        seeds, err := load(m)
        if err != nil { return nil, err }
        all = append(all, seeds...)
    }
    s.cache, s.last = discovery.Normalize(all), time.Now()
    return append([]string(nil), s.cache...), nil
}

func load(path string) ([]string, error) {
    f, err := os.Open(path)
    if err != nil { return nil, fmt.Errorf("file: %w", err) }
    defer f.Close()
    var seeds []string
    sc := bufio.NewScanner(f)
    for sc.Scan() {
        line := strings.TrimSpace(sc.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        seeds = append(seeds, strings.Split(line, ",")...)
    }
    if err := sc.Err(); err != nil { return nil, fmt.Errorf("file: read %s: %w", path, err) }
    return seeds, nil
}
