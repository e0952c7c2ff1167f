package grpcbus

import (
    "context"
    "errors"
    "net"
    "sort"
    "sync"
    "time"

    "go.uber.org/zap"
    "google.golang.org/grpc"
    "google.golang.org/grpc/codes"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"
    "google.golang.org/grpc/status"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
    "github.com/amirimatin/go-lsf/pkg/observability/metrics"
    "github.com/amirimatin/go-lsf/pkg/observability/tracing"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

var (
    ErrNilCallHandler = errors.New("grpcbus: nil call handler")
    ErrHostStarted    = errors.New("grpcbus: host already started")
)

// CallHandler answers method calls on behalf of a controller service.
type CallHandler interface {
    HandleCall(ctx context.Context, session uint32, c bus.Call) ([]interface{}, error)
}

type HostOptions struct {
    // Bind is the listen address; defaults to 127.0.0.1:0.
    Bind     string
    DeviceID string
    Handler  CallHandler
    Logger   *zap.Logger
    // SignalBuffer is the per-session signal queue length. Signals for a
    // session whose queue is full are dropped. Defaults to 128.
    SignalBuffer int
}

func (o HostOptions) Validate() error {
    if o.Handler == nil { return ErrNilCallHandler }
    return nil
}

// Host serves one controller service over gRPC: sessions, method calls and
// a per-session signal stream.
type Host struct {
    opts HostOptions
    log  *zap.Logger

    mu       sync.Mutex
    lis      net.Listener
    srv      *grpc.Server
    health   *health.Server
    next     uint32
    sessions map[uint32]*hostSession
    served   chan struct{}
}

type hostSession struct {
    id     uint32
    client string
    out    chan *frame
    done   chan struct{}
    once   sync.Once
}

func (s *hostSession) end() bool {
    ended := false
    s.once.Do(func() {
        close(s.done)
        ended = true
    })
    return ended
}

func NewHost(opts HostOptions) (*Host, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    if opts.Bind == "" { opts.Bind = "127.0.0.1:0" }
    if opts.SignalBuffer <= 0 { opts.SignalBuffer = 128 }
    return &Host{opts: opts, log: logutil.Named(opts.Logger, "grpcbus.host"), sessions: make(map[uint32]*hostSession)}, nil
}

func (h *Host) Start(ctx context.Context) error {
    h.mu.Lock()
    defer h.mu.Unlock()
    if h.srv != nil { return ErrHostStarted }
    lis, err := net.Listen("tcp", h.opts.Bind)
    if err != nil { return err }
    opts := []grpc.ServerOption{
        grpc.ForceServerCodec(jsonCodec{}),
        grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}),
        grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}),
    }
    srv := grpc.NewServer(opts...)
    h.health = health.NewServer()
    healthpb.RegisterHealthServer(srv, h.health)
    srv.RegisterService(&controllerServiceDesc, &hostService{h: h})
    h.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
    h.lis, h.srv = lis, srv
    h.served = make(chan struct{})
    served := h.served
    go func() {
        defer close(served)
        _ = srv.Serve(lis)
    }()
    h.log.Info("controller service listening", zap.String("addr", lis.Addr().String()), zap.String("device", h.opts.DeviceID))
    return nil
}

// Addr returns the bound listen address, or "" before Start.
func (h *Host) Addr() string {
    h.mu.Lock()
    defer h.mu.Unlock()
    if h.lis == nil { return "" }
    return h.lis.Addr().String()
}

// Stop ends every session and stops the server, forcing it when ctx ends
// first.
func (h *Host) Stop(ctx context.Context) error {
    h.mu.Lock()
    srv, served := h.srv, h.served
    h.srv, h.lis = nil, nil
    sessions := h.sessions
    h.sessions = make(map[uint32]*hostSession)
    h.mu.Unlock()
    if srv == nil { return nil }
    for _, s := range sessions {
        s.end()
        metrics.HostSessions.Dec()
    }
    h.health.Shutdown()
    ch := make(chan struct{})
    go func() { srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        srv.Stop()
        <-ch
    }
    <-served
    return nil
}

// Emit sends a signal to every joined session and returns how many queued it.
func (h *Host) Emit(iface, member string, args ...interface{}) (int, error) {
    b, err := wire.Marshal(wire.Message{Kind: wire.KindSignal, Interface: iface, Member: member, Args: args})
    if err != nil { return 0, err }
    h.mu.Lock()
    defer h.mu.Unlock()
    n := 0
    for id, s := range h.sessions {
        select {
        case s.out <- &frame{SessionID: id, Data: b}:
            n++
        default:
            h.log.Warn("signal queue full", zap.Uint32("session", id), zap.String("signal", iface+"."+member))
        }
    }
    metrics.HostSignalsSent.WithLabelValues(iface).Add(float64(n))
    return n, nil
}

// DropSession ends session id as if the link failed. The client sees its
// signal stream end.
func (h *Host) DropSession(id uint32) bool {
    h.mu.Lock()
    s, ok := h.sessions[id]
    delete(h.sessions, id)
    h.mu.Unlock()
    if !ok { return false }
    s.end()
    metrics.HostSessions.Dec()
    h.log.Info("session dropped", zap.Uint32("session", id))
    return true
}

// Sessions lists the joined session IDs in ascending order.
func (h *Host) Sessions() []uint32 {
    h.mu.Lock()
    defer h.mu.Unlock()
    out := make([]uint32, 0, len(h.sessions))
    for id := range h.sessions { out = append(out, id) }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

func (h *Host) session(id uint32) (*hostSession, bool) {
    h.mu.Lock()
    defer h.mu.Unlock()
    s, ok := h.sessions[id]
    return s, ok
}

type hostService struct{ h *Host }

var _ controllerServiceServer = (*hostService)(nil)

func (s *hostService) Join(ctx context.Context, in *joinRequest) (*joinResponse, error) {
    _, end := tracing.StartSpan(ctx, "grpcbus.host.join", "client", in.ClientID)
    defer end()
    h := s.h
    h.mu.Lock()
    if h.srv == nil {
        h.mu.Unlock()
        return nil, status.Error(codes.Unavailable, "controller service stopping")
    }
    h.next++
    hs := &hostSession{id: h.next, client: in.ClientID, out: make(chan *frame, h.opts.SignalBuffer), done: make(chan struct{})}
    h.sessions[hs.id] = hs
    h.mu.Unlock()
    metrics.HostSessions.Inc()
    h.log.Info("session joined", zap.Uint32("session", hs.id), zap.String("client", in.ClientID))
    return &joinResponse{SessionID: hs.id, DeviceID: h.opts.DeviceID}, nil
}

func (s *hostService) Leave(ctx context.Context, in *leaveRequest) (*empty, error) {
    h := s.h
    h.mu.Lock()
    hs, ok := h.sessions[in.SessionID]
    delete(h.sessions, in.SessionID)
    h.mu.Unlock()
    if ok {
        hs.end()
        metrics.HostSessions.Dec()
        h.log.Info("session left", zap.Uint32("session", in.SessionID))
    }
    return &empty{}, nil
}

func (s *hostService) Call(ctx context.Context, in *frame) (*frame, error) {
    if _, ok := s.h.session(in.SessionID); !ok {
        return nil, status.Errorf(codes.NotFound, "session %d not joined", in.SessionID)
    }
    m, err := wire.Unmarshal(in.Data)
    if err != nil { return nil, status.Error(codes.InvalidArgument, err.Error()) }
    if m.Kind != wire.KindCall { return nil, status.Errorf(codes.InvalidArgument, "unexpected %s frame", m.Kind) }
    ctx, end := tracing.StartSpan(ctx, "grpcbus.host.call", "call", m.Interface+"."+m.Member)
    defer end()

    out, err := s.h.opts.Handler.HandleCall(ctx, in.SessionID, bus.Call{Interface: m.Interface, Member: m.Member, Args: m.Args})
    if err != nil {
        metrics.HostCalls.WithLabelValues(m.Interface, "error").Inc()
        return &frame{SessionID: in.SessionID, Error: err.Error()}, nil
    }
    b, err := wire.Marshal(wire.Message{Kind: wire.KindReply, Interface: m.Interface, Member: m.Member, Args: out})
    if err != nil {
        metrics.HostCalls.WithLabelValues(m.Interface, "encode_error").Inc()
        return &frame{SessionID: in.SessionID, Error: err.Error()}, nil
    }
    metrics.HostCalls.WithLabelValues(m.Interface, "ok").Inc()
    return &frame{SessionID: in.SessionID, Data: b}, nil
}

func (s *hostService) Signals(in *signalsRequest, stream grpc.ServerStream) error {
    hs, ok := s.h.session(in.SessionID)
    if !ok { return status.Errorf(codes.NotFound, "session %d not joined", in.SessionID) }
    for {
        select {
        case f := <-hs.out:
            if err := stream.SendMsg(f); err != nil { return err }
        case <-hs.done:
            return status.Error(codes.Aborted, "session closed")
        case <-stream.Context().Done():
            // client went away without leaving
            s.h.DropSession(in.SessionID)
            return nil
        }
    }
}
