// Package dns resolves gossip seeds from SRV or A/AAAA records.
package dns

import (
    "context"
    "fmt"
    "net"
    "strconv"
    "strings"
    "sync"
    "time"

    "go.uber.org/multierr"
    "go.uber.org/zap"

    "github.com/amirimatin/go-lsf/pkg/discovery"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
)

// Options configures DNS discovery.
type Options struct {
    // Names are SRV names ("_lsf._udp.example.com"), hostnames, or literal
    // host:port seeds.
    Names []string
    // Port is used for A/AAAA answers. Defaults to 7946.
    Port int
    // Refresh is how long a non-empty answer is reused. Defaults to 5s.
    Refresh  time.Duration
    Resolver *net.Resolver
    Logger   *zap.Logger
}

type resolver struct {
    opts  Options
    log   *zap.Logger
    mu    sync.Mutex
    last  time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Port == 0 { opts.Port = 7946 }
    if opts.Resolver == nil { opts.Resolver = net.DefaultResolver }
    return &resolver{opts: opts, log: logutil.Named(opts.Logger, "discovery.dns")}
}

// Seeds returns the cached answer while fresh. Lookup failures are returned
// only when nothing resolved.
func (d *resolver) Seeds(ctx context.Context) ([]string, error) {
    d.mu.Lock()
    defer d.mu.Unlock()
    if len(d.cache) > 0 && time.Since(d.last) < d.opts.Refresh {
        return append([]string(nil), d.cache...), nil
    }
    out, err := d.resolveAll(ctx)
    if len(out) == 0 && err != nil { return nil, err }
    if err != nil { d.log.Debug("partial seed resolution", zap.Error(err)) }
    d.cache, d.last = out, time.Now()
    return append([]string(nil), out...), nil
}

func (d *resolver) resolveAll(ctx context.Context) ([]string, error) {
    var out []string
    var errs error
    for _, name := range d.opts.Names {
        name = strings.TrimSpace(name)
        if name == "" { continue }
        if strings.Contains(name, ":") && !strings.HasPrefix(name, "_") {
            out = append(out, name)
            continue
        }
        if isSRV(name) {
            recs, err := d.lookupSRV(ctx, name)
            if err == nil && len(recs) > 0 {
                out = append(out, recs...)
                continue
            }
            errs = multierr.Append(errs, err)
        }
        hosts, err := d.lookupHost(ctx, name)
        errs = multierr.Append(errs, err)
        out = append(out, hosts...)
    }
    return discovery.Normalize(out), errs
}

func isSRV(name string) bool { return strings.HasPrefix(name, "_") && strings.Contains(name, "._") }

func (d *resolver) lookupSRV(ctx context.Context, fqdn string) ([]string, error) {
    svc, proto, domain := parseSRVName(fqdn)
    if svc == "" || proto == "" || domain == "" { return nil, fmt.Errorf("dns: malformed SRV name %q", fqdn) }
    _, addrs, err := d.opts.Resolver.LookupSRV(ctx, svc, proto, domain)
    if err != nil { return nil, fmt.Errorf("dns: srv %s: %w", fqdn, err) }
    out := make([]string, 0, len(addrs))
    for _, a := range addrs {
        out = append(out, net.JoinHostPort(strings.TrimSuffix(a.Target, "."), strconv.Itoa(int(a.Port))))
    }
    return out, nil
}

func (d *resolver) lookupHost(ctx context.Context, host string) ([]string, error) {
    ips, err := d.opts.Resolver.LookupHost(ctx, host)
    if err != nil { return nil, fmt.Errorf("dns: host %s: %w", host, err) }
    out := make([]string, 0, len(ips))
    for _, ip := range ips {
        out = append(out, net.JoinHostPort(ip, strconv.Itoa(d.opts.Port)))
    }
    return out, nil
}

// parseSRVName splits _service._proto.name.
func parseSRVName(fqdn string) (service, proto, name string) {
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 { return "", "", "" }
    return strings.TrimPrefix(parts[0], "_"), strings.TrimPrefix(parts[1], "_"), parts[2]
}
