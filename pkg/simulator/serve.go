package simulator

import (
    "context"
    "fmt"
    "net"
    "strconv"
    "time"

    "go.uber.org/multierr"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/amirimatin/go-lsf/pkg/announce"
    "github.com/amirimatin/go-lsf/pkg/announce/gossip"
    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/bus/grpcbus"
    "github.com/amirimatin/go-lsf/pkg/election"
)

type ServeOptions struct {
    // Bind is the gRPC listen address. Defaults to 127.0.0.1:0.
    Bind string
    // AdvertiseHost replaces the bound host in the announcement.
    AdvertiseHost string
    Rank          election.Rank
    // Gossip configures the announcing node. NodeID defaults to the device
    // ID and Bind to 127.0.0.1:0; Advertisement is filled in.
    Gossip gossip.Options
    // Activity toggles one lamp per interval so clients see signals.
    // Zero disables it.
    Activity time.Duration
}

// Server hosts a Controller over gRPC and announces it over gossip.
type Server struct {
    ctrl   *Controller
    host   *grpcbus.Host
    gossip *gossip.Gossip
    ann    bus.Announcement
    opts   ServeOptions
}

// Start brings the host up, then starts announcing it.
func Start(ctx context.Context, ctrl *Controller, opts ServeOptions) (*Server, error) {
    host, err := grpcbus.NewHost(grpcbus.HostOptions{Bind: opts.Bind, DeviceID: ctrl.DeviceID(), Handler: ctrl, Logger: ctrl.opts.Logger})
    if err != nil { return nil, err }
    if err := host.Start(ctx); err != nil { return nil, err }
    ctrl.SetEmitter(func(iface, member string, args ...interface{}) error {
        _, err := host.Emit(iface, member, args...)
        return err
    })
    s := &Server{ctrl: ctrl, host: host, opts: opts}

    h, p, err := net.SplitHostPort(host.Addr())
    if err == nil && opts.AdvertiseHost != "" { h = opts.AdvertiseHost }
    port, perr := strconv.Atoi(p)
    if err == nil { err = perr }
    if err != nil {
        _ = host.Stop(ctx)
        return nil, fmt.Errorf("simulator: host address: %w", err)
    }
    ctrl.mu.Lock()
    name := ctrl.name
    ctrl.mu.Unlock()
    s.ann = bus.Announcement{DeviceID: ctrl.DeviceID(), DeviceName: name, Rank: opts.Rank, Port: uint16(port), BusAddress: h}

    gopts := opts.Gossip
    if gopts.NodeID == "" { gopts.NodeID = ctrl.DeviceID() }
    if gopts.Bind == "" { gopts.Bind = "127.0.0.1:0" }
    if gopts.Logger == nil { gopts.Logger = ctrl.opts.Logger }
    ann := s.ann
    gopts.Advertisement = &ann
    g, err := gossip.New(gopts)
    if err == nil { err = g.Start(ctx, announce.Sink{}) }
    if err != nil {
        _ = host.Stop(ctx)
        return nil, err
    }
    s.gossip = g
    ctrl.log.Info("simulated controller service up", zap.String("device", s.ann.DeviceID), zap.String("grpc", host.Addr()), zap.String("gossip", g.LocalAddr()), zap.Stringer("rank", opts.Rank))
    return s, nil
}

func (s *Server) Announcement() bus.Announcement { return s.ann }

func (s *Server) GossipAddr() string { return s.gossip.LocalAddr() }

func (s *Server) Host() *grpcbus.Host { return s.host }

// Run blocks until ctx ends, driving lamp activity when configured, then
// stops the server.
func (s *Server) Run(ctx context.Context) error {
    g, gctx := errgroup.WithContext(ctx)
    if s.opts.Activity > 0 {
        g.Go(func() error {
            t := time.NewTicker(s.opts.Activity)
            defer t.Stop()
            for {
                select {
                case <-gctx.Done():
                    return nil
                case <-t.C:
                    s.ctrl.Nudge()
                }
            }
        })
    }
    g.Go(func() error {
        <-gctx.Done()
        return nil
    })
    err := g.Wait()
    stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    return multierr.Append(err, s.Stop(stopCtx))
}

// Stop withdraws the announcement and shuts the host down.
func (s *Server) Stop(ctx context.Context) error {
    return multierr.Append(s.gossip.Stop(), s.host.Stop(ctx))
}

// Nudge toggles the next lamp in ID order and signals its new state.
func (c *Controller) Nudge() {
    c.mu.Lock()
    ids := c.lampIDs()
    if len(ids) == 0 {
        c.mu.Unlock()
        return
    }
    c.nudged = (c.nudged + 1) % len(ids)
    l := c.lamps[ids[c.nudged]]
    st := l.state
    st.OnOff = !st.OnOff
    sig := c.setLampState(l, st)
    emit := c.emit
    c.mu.Unlock()
    if emit != nil { _ = emit(sig.iface, sig.member, sig.args...) }
}
