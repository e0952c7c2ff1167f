// Package bootstrap assembles a client process from Config: discovery,
// gossip announcements, the gRPC bus, the client itself and the admin
// endpoint. It also assembles a simulated controller service.
package bootstrap

import (
    "context"
    "fmt"
    "os"

    "github.com/google/uuid"
    "go.uber.org/multierr"
    "go.uber.org/zap"

    "github.com/amirimatin/go-lsf/pkg/admin"
    "github.com/amirimatin/go-lsf/pkg/announce/gossip"
    "github.com/amirimatin/go-lsf/pkg/bus/grpcbus"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/discovery"
    dDNS "github.com/amirimatin/go-lsf/pkg/discovery/dns"
    dFile "github.com/amirimatin/go-lsf/pkg/discovery/file"
    dStatic "github.com/amirimatin/go-lsf/pkg/discovery/static"
    "github.com/amirimatin/go-lsf/pkg/election"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
    "github.com/amirimatin/go-lsf/pkg/observability/metrics"
    "github.com/amirimatin/go-lsf/pkg/observability/tracing"
    "github.com/amirimatin/go-lsf/pkg/simulator"
)

// Node is an assembled, not yet started client process.
type Node struct {
    Log    *zap.Logger
    Gossip *gossip.Gossip
    Bus    *grpcbus.Bus
    Client *client.Client
    // Admin is nil when admin.bind is empty.
    Admin *admin.Server

    traceShutdown func(context.Context) error
}

// Logger builds the process logger from cfg.Log.
func Logger(cfg LogConfig) (*zap.Logger, error) {
    if cfg.JSON { logutil.SetJSON(true) }
    return logutil.New(cfg.Level)
}

// Discovery returns the seed source selected by cfg.Kind.
func Discovery(cfg DiscoveryConfig, log *zap.Logger) (discovery.Discovery, error) {
    switch cfg.Kind {
    case "dns":
        return dDNS.New(dDNS.Options{Names: discovery.SplitList(cfg.DNS), Port: cfg.DNSPort, Refresh: cfg.Refresh, Logger: log}), nil
    case "file":
        return dFile.New(dFile.Options{Path: cfg.File, Env: cfg.FileEnv, Refresh: cfg.Refresh}), nil
    case "static", "":
        return dStatic.Parse(cfg.Seeds), nil
    }
    return nil, fmt.Errorf("%w: %q", ErrDiscoveryKind, cfg.Kind)
}

func gossipOptions(cfg GossipConfig, seeds discovery.Discovery, log *zap.Logger) gossip.Options {
    id := cfg.NodeID
    if id == "" {
        host, _ := os.Hostname()
        id = fmt.Sprintf("lsf-client-%s-%s", host, uuid.NewString()[:8])
    }
    return gossip.Options{
        NodeID:        id,
        Bind:          cfg.Bind,
        Advertise:     cfg.Advertise,
        Seeds:         seeds,
        Logger:        log,
        ProbeInterval: cfg.ProbeInterval,
        ProbeTimeout:  cfg.ProbeTimeout,
        SuspicionMult: cfg.SuspicionMult,
    }
}

// Build assembles a Node. cb receives the client notifications; nil means
// client.NopCallback. A nil log is built from cfg.Log.
func Build(cfg Config, cb client.Callback, log *zap.Logger) (*Node, error) {
    if log == nil {
        l, err := Logger(cfg.Log)
        if err != nil { return nil, err }
        log = l
    }
    if cb == nil { cb = client.NopCallback{} }
    n := &Node{Log: log}

    shutdown, err := tracing.Setup(cfg.Trace)
    if err != nil { return nil, fmt.Errorf("bootstrap: tracing: %w", err) }
    n.traceShutdown = shutdown
    metrics.Register()

    seeds, err := Discovery(cfg.Discovery, log)
    if err != nil { return nil, err }
    g, err := gossip.New(gossipOptions(cfg.Gossip, seeds, log))
    if err != nil { return nil, err }
    n.Gossip = g

    b, err := grpcbus.New(grpcbus.Options{
        Source:       g,
        Logger:       log,
        DialTimeout:  cfg.Bus.DialTimeout,
        ConnTTL:      cfg.Bus.ConnTTL,
        LeaveTimeout: cfg.Bus.LeaveTimeout,
    })
    if err != nil { return nil, err }
    n.Bus = b

    c, err := client.New(b, cb, client.Options{Logger: log, CallTimeout: cfg.Client.CallTimeout, EventBuffer: cfg.Client.EventBuffer})
    if err != nil { return nil, err }
    n.Client = c

    if cfg.Admin.Bind != "" {
        adminTLS, err := cfg.Admin.TLS.Server()
        if err != nil { return nil, fmt.Errorf("bootstrap: admin tls: %w", err) }
        n.Admin = admin.NewServer(cfg.Admin.Bind, log).UseTLS(adminTLS)
    }
    return n, nil
}

// Start starts the client, then the admin endpoint.
func (n *Node) Start(ctx context.Context) error {
    if st := n.Client.Start(ctx); st != client.StatusOK { return fmt.Errorf("bootstrap: client start: %s", st) }
    if n.Admin != nil {
        if err := n.Admin.Start(ctx, n.Client); err != nil {
            n.Client.Stop()
            return fmt.Errorf("bootstrap: admin: %w", err)
        }
    }
    return nil
}

// Close stops everything Start started. The client stops its bus, which
// stops gossip.
func (n *Node) Close() error {
    var err error
    if n.Admin != nil { err = multierr.Append(err, n.Admin.Stop(context.Background())) }
    n.Client.Stop()
    if n.traceShutdown != nil { err = multierr.Append(err, n.traceShutdown(context.Background())) }
    _ = n.Log.Sync()
    return err
}

// Run builds and starts a Node. The caller must Close it.
func Run(ctx context.Context, cfg Config, cb client.Callback) (*Node, error) {
    n, err := Build(cfg, cb, nil)
    if err != nil { return nil, err }
    if err := n.Start(ctx); err != nil {
        _ = n.Close()
        return nil, err
    }
    return n, nil
}

// RunSimulator starts a simulated controller service announcing itself into
// the gossip pool described by cfg.Discovery and cfg.Gossip.
func RunSimulator(ctx context.Context, cfg Config, log *zap.Logger) (*simulator.Server, error) {
    rank, err := election.ParseRank(cfg.Simulator.Rank)
    if err != nil { return nil, err }
    seeds, err := Discovery(cfg.Discovery, log)
    if err != nil { return nil, err }

    ctrl := simulator.New(simulator.Options{
        DeviceID:   cfg.Simulator.DeviceID,
        DeviceName: cfg.Simulator.DeviceName,
        Lamps:      cfg.Simulator.Lamps,
        Logger:     log,
    })
    gopts := gossipOptions(cfg.Gossip, seeds, log)
    if cfg.Gossip.NodeID == "" { gopts.NodeID = cfg.Simulator.DeviceID }
    return simulator.Start(ctx, ctrl, simulator.ServeOptions{
        Bind:          cfg.Simulator.Bind,
        AdvertiseHost: cfg.Simulator.AdvertiseHost,
        Rank:          rank,
        Gossip:        gopts,
        Activity:      cfg.Simulator.Activity,
    })
}
