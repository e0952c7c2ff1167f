// Package grpcbus carries controller client sessions over gRPC. Bus is the
// client side bus.Bus; Host serves a controller service. Message bodies are
// D-Bus encoded by pkg/wire and wrapped in JSON frames.
package grpcbus

import (
    "context"
    "errors"
    "fmt"
    "net"
    "strconv"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.uber.org/multierr"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"
    "google.golang.org/grpc"
    "google.golang.org/grpc/backoff"
    "google.golang.org/grpc/codes"
    "google.golang.org/grpc/credentials/insecure"
    "google.golang.org/grpc/keepalive"
    "google.golang.org/grpc/status"

    "github.com/amirimatin/go-lsf/pkg/announce"
    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

var (
    ErrNoSource = errors.New("grpcbus: nil announcement source")
    ErrStarted  = errors.New("grpcbus: already started")
)

type Options struct {
    // Source reports the controller services to join.
    Source announce.Source
    Logger *zap.Logger
    // DialTimeout bounds connecting and joining. Defaults to 3s.
    DialTimeout time.Duration
    // ConnTTL is how long an unused connection is kept. Defaults to 30s.
    ConnTTL time.Duration
    // LeaveTimeout bounds the Leave call. Defaults to 1s.
    LeaveTimeout time.Duration
}

func (o Options) Validate() error {
    if o.Source == nil { return ErrNoSource }
    if o.DialTimeout < 0 || o.ConnTTL < 0 || o.LeaveTimeout < 0 { return errors.New("grpcbus: negative timeout") }
    return nil
}

// Bus is a bus.Bus over gRPC.
type Bus struct {
    opts Options
    log  *zap.Logger
    id   string

    mu       sync.Mutex
    started  bool
    h        bus.Handler
    ctx      context.Context
    cancel   context.CancelFunc
    cm       *connManager
    next     bus.SessionID
    sessions map[bus.SessionID]*session

    wg sync.WaitGroup
}

type session struct {
    id       bus.SessionID
    remote   uint32
    deviceID string
    target   string
    cc       *grpc.ClientConn
    release  func()
    cancel   context.CancelFunc
    stream   grpc.ClientStream
}

var _ bus.Bus = (*Bus)(nil)

func New(opts Options) (*Bus, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    if opts.DialTimeout == 0 { opts.DialTimeout = 3 * time.Second }
    if opts.LeaveTimeout == 0 { opts.LeaveTimeout = time.Second }
    return &Bus{opts: opts, log: logutil.Named(opts.Logger, "grpcbus"), id: uuid.NewString(), sessions: make(map[bus.SessionID]*session)}, nil
}

// ClientID identifies this bus to controller services.
func (b *Bus) ClientID() string { return b.id }

func (b *Bus) dial(ctx context.Context, target string) (*grpc.ClientConn, error) {
    return grpc.DialContext(ctx, target,
        grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
        grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 500 * time.Millisecond}),
        grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 20 * time.Second, Timeout: 5 * time.Second, PermitWithoutStream: true}),
        grpc.WithTransportCredentials(insecure.NewCredentials()),
        grpc.WithBlock(),
    )
}

func (b *Bus) Start(ctx context.Context, h bus.Handler) error {
    b.mu.Lock()
    if b.started {
        b.mu.Unlock()
        return ErrStarted
    }
    b.h = h
    b.ctx, b.cancel = context.WithCancel(context.Background())
    b.cm = newConnManager(b.opts.ConnTTL, b.dial, b.log)
    b.started = true
    b.mu.Unlock()

    sink := announce.Sink{
        Announce: func(a bus.Announcement) {
            if h := b.handler(); h != nil { h.HandleAnnouncement(a) }
        },
        Lost: func(deviceID string) {
            if h := b.handler(); h != nil { h.HandleAnnouncementLost(deviceID) }
        },
    }
    if err := b.opts.Source.Start(ctx, sink); err != nil {
        _ = b.Stop()
        return fmt.Errorf("grpcbus: start announcements: %w", err)
    }
    b.log.Info("bus started", zap.String("client_id", b.id))
    return nil
}

func (b *Bus) handler() bus.Handler {
    b.mu.Lock()
    defer b.mu.Unlock()
    if !b.started { return nil }
    return b.h
}

// target builds the dial address. BusAddress may carry its own port, which
// a non-zero Port overrides.
func target(svc bus.Service) string {
    if svc.Port == 0 { return svc.BusAddress }
    host := svc.BusAddress
    if h, _, err := net.SplitHostPort(host); err == nil { host = h }
    return net.JoinHostPort(host, strconv.Itoa(int(svc.Port)))
}

func (b *Bus) JoinSessionAsync(ctx context.Context, svc bus.Service, done func(bus.SessionID, error)) error {
    b.mu.Lock()
    defer b.mu.Unlock()
    if !b.started { return bus.ErrNotStarted }
    b.wg.Add(1)
    go func() {
        defer b.wg.Done()
        s, err := b.join(ctx, svc)
        if err != nil {
            done(0, err)
            return
        }
        done(s.id, nil)
        b.wg.Add(1)
        go b.recvSignals(s)
    }()
    return nil
}

func (b *Bus) join(ctx context.Context, svc bus.Service) (*session, error) {
    addr := target(svc)
    dctx, cancel := context.WithTimeout(ctx, b.opts.DialTimeout)
    defer cancel()
    b.mu.Lock()
    cm := b.cm
    b.mu.Unlock()
    cc, release, err := cm.get(dctx, addr)
    if err != nil { return nil, fmt.Errorf("grpcbus: dial %s: %w", addr, err) }
    var resp joinResponse
    if err := cc.Invoke(dctx, methodJoin, &joinRequest{ClientID: b.id}, &resp); err != nil {
        release()
        return nil, fmt.Errorf("%w: %s: %v", bus.ErrJoinRefused, svc.DeviceID, err)
    }

    b.mu.Lock()
    if !b.started {
        b.mu.Unlock()
        release()
        return nil, bus.ErrNotStarted
    }
    sctx, scancel := context.WithCancel(b.ctx)
    b.mu.Unlock()
    cs, err := cc.NewStream(sctx, &grpc.StreamDesc{ServerStreams: true}, methodSignals)
    if err == nil { err = cs.SendMsg(&signalsRequest{SessionID: resp.SessionID}) }
    if err == nil { err = cs.CloseSend() }
    if err != nil {
        scancel()
        release()
        return nil, fmt.Errorf("grpcbus: open signal stream: %w", err)
    }

    b.mu.Lock()
    defer b.mu.Unlock()
    if !b.started {
        scancel()
        release()
        return nil, bus.ErrNotStarted
    }
    b.next++
    s := &session{id: b.next, remote: resp.SessionID, deviceID: svc.DeviceID, target: addr, cc: cc, release: release, cancel: scancel, stream: cs}
    b.sessions[s.id] = s
    b.log.Info("session joined", zap.String("device", svc.DeviceID), zap.String("target", addr), zap.Uint32("session", uint32(s.id)))
    return s, nil
}

func (b *Bus) recvSignals(s *session) {
    defer b.wg.Done()
    for {
        var f frame
        if err := s.stream.RecvMsg(&f); err != nil {
            b.lost(s, err)
            return
        }
        m, err := wire.Unmarshal(f.Data)
        if err != nil || m.Kind != wire.KindSignal {
            b.log.Warn("bad signal frame", zap.Uint32("session", uint32(s.id)), zap.Error(err))
            continue
        }
        if h := b.handler(); h != nil {
            h.HandleSignal(s.id, bus.Signal{Interface: m.Interface, Member: m.Member, Args: m.Args})
        }
    }
}

// lost reports s as lost unless it was already left or the bus stopped.
func (b *Bus) lost(s *session, reason error) {
    b.mu.Lock()
    cur, ok := b.sessions[s.id]
    if ok && cur == s { delete(b.sessions, s.id) }
    h := b.h
    b.mu.Unlock()
    if !ok || cur != s { return }
    s.cancel()
    s.release()
    b.log.Info("session lost", zap.String("device", s.deviceID), zap.Uint32("session", uint32(s.id)), zap.Error(reason))
    h.HandleSessionLost(s.id, reason)
}

func (b *Bus) LeaveSession(id bus.SessionID) error {
    b.mu.Lock()
    s, ok := b.sessions[id]
    delete(b.sessions, id)
    b.mu.Unlock()
    if !ok { return bus.ErrNoSession }
    return b.leave(s)
}

func (b *Bus) leave(s *session) error {
    defer s.release()
    s.cancel()
    ctx, cancel := context.WithTimeout(context.Background(), b.opts.LeaveTimeout)
    defer cancel()
    if err := s.cc.Invoke(ctx, methodLeave, &leaveRequest{SessionID: s.remote}, &empty{}); err != nil {
        return fmt.Errorf("grpcbus: leave session %d: %w", s.id, err)
    }
    return nil
}

func (b *Bus) CallAsync(id bus.SessionID, c bus.Call, timeout time.Duration, reply func(bus.Reply)) error {
    data, err := wire.Marshal(wire.Message{Kind: wire.KindCall, Interface: c.Interface, Member: c.Member, Args: c.Args})
    if err != nil { return err }
    b.mu.Lock()
    defer b.mu.Unlock()
    if !b.started { return bus.ErrNotStarted }
    s, ok := b.sessions[id]
    if !ok { return bus.ErrNoSession }
    parent := b.ctx
    b.wg.Add(1)
    go func() {
        defer b.wg.Done()
        ctx, cancel := parent, context.CancelFunc(func() {})
        if timeout > 0 { ctx, cancel = context.WithTimeout(parent, timeout) }
        defer cancel()
        var out frame
        if err := s.cc.Invoke(ctx, methodCall, &frame{SessionID: s.remote, Data: data}, &out); err != nil {
            if status.Code(err) == codes.DeadlineExceeded { err = fmt.Errorf("%w: %s", bus.ErrTimeout, c) }
            reply(bus.Reply{Err: err})
            return
        }
        if out.Error != "" {
            reply(bus.Reply{Err: fmt.Errorf("grpcbus: %s: %s", c, out.Error)})
            return
        }
        m, err := wire.Unmarshal(out.Data)
        if err == nil && m.Kind != wire.KindReply { err = fmt.Errorf("%w: %s", wire.ErrKind, m.Kind) }
        if err != nil {
            reply(bus.Reply{Err: err})
            return
        }
        reply(bus.Reply{Args: m.Args})
    }()
    return nil
}

// Stop leaves every session, stops the announcement source and waits for
// in-flight work to finish.
func (b *Bus) Stop() error {
    b.mu.Lock()
    if !b.started {
        b.mu.Unlock()
        return nil
    }
    b.started = false
    sessions := make([]*session, 0, len(b.sessions))
    for _, s := range b.sessions { sessions = append(sessions, s) }
    b.sessions = make(map[bus.SessionID]*session)
    cancel, cm := b.cancel, b.cm
    b.mu.Unlock()

    err := b.opts.Source.Stop()
    var g errgroup.Group
    for _, s := range sessions {
        s := s
        g.Go(func() error { return b.leave(s) })
    }
    // first failed leave only
    err = multierr.Append(err, g.Wait())
    cancel()
    b.wg.Wait()
    cm.close()
    b.log.Info("bus stopped", zap.Int("sessions_left", len(sessions)))
    return err
}
