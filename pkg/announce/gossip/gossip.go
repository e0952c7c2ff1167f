// Package gossip carries controller service announcements in memberlist
// node metadata. A controller service node advertises itself; client nodes
// join the same gossip pool and receive announcements as nodes come, change
// and go.
package gossip

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net"
    "sort"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/hashicorp/memberlist"
    "go.uber.org/multierr"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "github.com/amirimatin/go-lsf/pkg/announce"
    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/discovery"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
)

var (
    ErrNoNodeID   = errors.New("gossip: empty node id")
    ErrNoBind     = errors.New("gossip: empty bind address")
    ErrNotStarted = errors.New("gossip: not started")
    ErrStarted    = errors.New("gossip: already started")
)

const metaVersion = 1

// nodeMeta is the JSON document gossiped as node metadata.
type nodeMeta struct {
    V  int               `json:"v"`
    CS *bus.Announcement `json:"cs,omitempty"`
}

type Options struct {
    NodeID string
    // Bind is host:port; port 0 picks a free one.
    Bind      string
    Advertise string
    // Seeds are joined on Start. Optional.
    Seeds discovery.Discovery
    // Advertisement, when set, announces this node as a controller service.
    Advertisement *bus.Announcement
    Logger        *zap.Logger

    // Zero means memberlist defaults.
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration
    SuspicionMult int
    // LeaveTimeout bounds the leave broadcast on Stop. Defaults to 1s.
    LeaveTimeout time.Duration
    // UpdateTimeout bounds the wait for an advertisement change to be
    // broadcast. Defaults to 2s. The change keeps spreading after it.
    UpdateTimeout time.Duration
}

func (o Options) Validate() error {
    if o.NodeID == "" { return ErrNoNodeID }
    if o.Bind == "" { return ErrNoBind }
    if _, _, err := net.SplitHostPort(o.Bind); err != nil { return fmt.Errorf("gossip: invalid bind address %q: %w", o.Bind, err) }
    if o.Advertise != "" {
        if _, _, err := net.SplitHostPort(o.Advertise); err != nil { return fmt.Errorf("gossip: invalid advertise address %q: %w", o.Advertise, err) }
    }
    return nil
}

// Member is a gossip node and the controller service it advertises, if any.
type Member struct {
    Name         string            `json:"name"`
    Addr         string            `json:"addr"`
    Announcement *bus.Announcement `json:"announcement,omitempty"`
}

// Gossip is an announce.Source backed by memberlist.
type Gossip struct {
    opts Options
    log  *zap.Logger

    // lifecycle serializes Start and Stop.
    lifecycle sync.Mutex
    mu        sync.RWMutex
    ml    *memberlist.Memberlist
    meta  []byte
    sink  announce.Sink
    // node name -> advertised device, to report leaves
    known map[string]string
}

var _ announce.Source = (*Gossip)(nil)

func New(opts Options) (*Gossip, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    if opts.LeaveTimeout <= 0 { opts.LeaveTimeout = time.Second }
    if opts.UpdateTimeout <= 0 { opts.UpdateTimeout = 2 * time.Second }
    g := &Gossip{opts: opts, log: logutil.Named(opts.Logger, "gossip"), known: make(map[string]string)}
    meta, err := encodeMeta(opts.Advertisement)
    if err != nil { return nil, err }
    g.meta = meta
    return g, nil
}

func encodeMeta(a *bus.Announcement) ([]byte, error) {
    b, err := json.Marshal(nodeMeta{V: metaVersion, CS: a})
    if err != nil { return nil, fmt.Errorf("gossip: encode meta: %w", err) }
    if len(b) > memberlist.MetaMaxSize { return nil, fmt.Errorf("gossip: meta is %d bytes, limit %d", len(b), memberlist.MetaMaxSize) }
    return b, nil
}

func decodeMeta(b []byte) (*bus.Announcement, bool) {
    if len(b) == 0 { return nil, false }
    var m nodeMeta
    if err := json.Unmarshal(b, &m); err != nil || m.V != metaVersion || m.CS == nil || m.CS.DeviceID == "" { return nil, false }
    return m.CS, true
}

// Start creates the memberlist, joins the configured seeds and reports
// advertised controller services to sink. Seed failures are logged; the
// node keeps running alone and can Join later.
func (g *Gossip) Start(ctx context.Context, sink announce.Sink) error {
    g.lifecycle.Lock()
    defer g.lifecycle.Unlock()
    if g.list() != nil { return ErrStarted }
    cfg, err := g.config()
    if err != nil { return err }
    g.mu.Lock()
    g.sink = sink
    g.mu.Unlock()
    // Create calls back into the delegates, so g.mu must not be held.
    ml, err := memberlist.Create(cfg)
    if err != nil {
        g.mu.Lock()
        g.sink = announce.Sink{}
        g.mu.Unlock()
        return fmt.Errorf("gossip: create: %w", err)
    }
    g.mu.Lock()
    g.ml = ml
    g.mu.Unlock()
    g.log.Info("gossip started", zap.String("node", g.opts.NodeID), zap.String("addr", g.LocalAddr()))

    if g.opts.Seeds != nil {
        seeds, err := g.opts.Seeds.Seeds(ctx)
        if err != nil { g.log.Warn("seed discovery failed", zap.Error(err)) }
        if len(seeds) > 0 {
            if n, err := g.Join(seeds); err != nil {
                g.log.Warn("seed join failed", zap.Strings("seeds", seeds), zap.Int("joined", n), zap.Error(err))
            }
        }
    }
    return nil
}

func (g *Gossip) config() (*memberlist.Config, error) {
    cfg := memberlist.DefaultLANConfig()
    cfg.Name = g.opts.NodeID
    host, port, err := splitHostPort(g.opts.Bind)
    if err != nil { return nil, err }
    cfg.BindAddr, cfg.BindPort = host, port
    if g.opts.Advertise != "" {
        ahost, aport, err := splitHostPort(g.opts.Advertise)
        if err != nil { return nil, err }
        cfg.AdvertiseAddr, cfg.AdvertisePort = ahost, aport
    }
    if g.opts.ProbeInterval > 0 { cfg.ProbeInterval = g.opts.ProbeInterval }
    if g.opts.ProbeTimeout > 0 { cfg.ProbeTimeout = g.opts.ProbeTimeout }
    if g.opts.SuspicionMult > 0 { cfg.SuspicionMult = g.opts.SuspicionMult }
    cfg.Events = &eventDelegate{g: g}
    cfg.Delegate = &nodeDelegate{g: g}
    std, err := zap.NewStdLogAt(g.log, zapcore.DebugLevel)
    if err != nil { return nil, err }
    cfg.Logger = std
    return cfg, nil
}

func splitHostPort(addr string) (string, int, error) {
    host, p, err := net.SplitHostPort(addr)
    if err != nil { return "", 0, fmt.Errorf("gossip: invalid address %q: %w", addr, err) }
    port, err := strconv.Atoi(p)
    if err != nil || port < 0 || port > 65535 { return "", 0, fmt.Errorf("gossip: invalid port %q", p) }
    return host, port, nil
}

// Join contacts seeds and returns how many were reached.
func (g *Gossip) Join(seeds []string) (int, error) {
    ml := g.list()
    if ml == nil { return 0, ErrNotStarted }
    if len(seeds) == 0 { return 0, nil }
    return ml.Join(seeds)
}

// SetAdvertisement replaces this node's advertisement and gossips it.
// Passing nil withdraws it.
func (g *Gossip) SetAdvertisement(a *bus.Announcement) error {
    meta, err := encodeMeta(a)
    if err != nil { return err }
    g.mu.Lock()
    g.meta = meta
    ml := g.ml
    g.mu.Unlock()
    if ml == nil { return nil }
    if err := ml.UpdateNode(g.opts.UpdateTimeout); err != nil {
        // memberlist keeps gossiping the new meta after the wait expires
        if strings.Contains(err.Error(), "timeout waiting for update broadcast") {
            g.log.Debug("advertisement update still spreading", zap.Duration("waited", g.opts.UpdateTimeout))
            return nil
        }
        return fmt.Errorf("gossip: update advertisement: %w", err)
    }
    return nil
}

// LocalAddr returns this node's gossip address, or "" before Start.
func (g *Gossip) LocalAddr() string {
    ml := g.list()
    if ml == nil { return "" }
    n := ml.LocalNode()
    return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Members lists live gossip nodes sorted by name.
func (g *Gossip) Members() []Member {
    ml := g.list()
    if ml == nil { return nil }
    nodes := ml.Members()
    out := make([]Member, 0, len(nodes))
    for _, n := range nodes {
        m := Member{Name: n.Name, Addr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))}
        if a, ok := decodeMeta(n.Meta); ok { m.Announcement = a }
        out = append(out, m)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
    return out
}

// HealthScore is memberlist's awareness score; -1 when not running.
func (g *Gossip) HealthScore() int {
    ml := g.list()
    if ml == nil { return -1 }
    return ml.GetHealthScore()
}

// list returns the running memberlist. Delegates take g.mu while memberlist
// holds its own locks, so memberlist is never called with g.mu held.
func (g *Gossip) list() *memberlist.Memberlist {
    g.mu.RLock()
    defer g.mu.RUnlock()
    return g.ml
}

// Stop broadcasts a leave and shuts the node down. It is safe to call more
// than once.
func (g *Gossip) Stop() error {
    g.lifecycle.Lock()
    defer g.lifecycle.Unlock()
    g.mu.Lock()
    ml := g.ml
    g.ml = nil
    g.sink = announce.Sink{}
    g.known = make(map[string]string)
    g.mu.Unlock()
    if ml == nil { return nil }
    err := ml.Leave(g.opts.LeaveTimeout)
    err = multierr.Append(err, ml.Shutdown())
    g.log.Info("gossip stopped", zap.String("node", g.opts.NodeID))
    return err
}

func (g *Gossip) seen(n *memberlist.Node) {
    a, ok := decodeMeta(n.Meta)
    g.mu.Lock()
    prev, had := g.known[n.Name]
    if ok {
        g.known[n.Name] = a.DeviceID
    } else {
        delete(g.known, n.Name)
    }
    sink := g.sink
    g.mu.Unlock()
    if had && (!ok || prev != a.DeviceID) && sink.Lost != nil { sink.Lost(prev) }
    if ok && sink.Announce != nil {
        g.log.Debug("controller service announced", zap.String("node", n.Name), zap.String("device", a.DeviceID), zap.Stringer("rank", a.Rank))
        sink.Announce(*a)
    }
}

func (g *Gossip) gone(n *memberlist.Node) {
    g.mu.Lock()
    id, had := g.known[n.Name]
    delete(g.known, n.Name)
    sink := g.sink
    g.mu.Unlock()
    if had && sink.Lost != nil {
        g.log.Debug("controller service gone", zap.String("node", n.Name), zap.String("device", id))
        sink.Lost(id)
    }
}

type eventDelegate struct{ g *Gossip }

func (d *eventDelegate) NotifyJoin(n *memberlist.Node)   { if n != nil { d.g.seen(n) } }
func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) { if n != nil { d.g.seen(n) } }
func (d *eventDelegate) NotifyLeave(n *memberlist.Node)  { if n != nil { d.g.gone(n) } }

// nodeDelegate serves the current advertisement as node metadata.
type nodeDelegate struct{ g *Gossip }

func (d *nodeDelegate) NodeMeta(limit int) []byte {
    d.g.mu.RLock()
    defer d.g.mu.RUnlock()
    if len(d.g.meta) > limit { return nil }
    return d.g.meta
}

func (d *nodeDelegate) NotifyMsg([]byte)                       {}
func (d *nodeDelegate) GetBroadcasts(int, int) [][]byte        { return nil }
func (d *nodeDelegate) LocalState(bool) []byte                 { return nil }
func (d *nodeDelegate) MergeRemoteState([]byte, bool)          {}
