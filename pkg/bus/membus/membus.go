// Package membus is an in-process bus.Bus. Tests and the simulator drive it
// directly: announcements, join outcomes, session loss and signals are
// injected through methods, and calls are answered by a Responder or taken
// from Calls. Every argument list is passed through the D-Bus codec so the
// receiving side sees wire-shaped values.
package membus

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

var ErrStopped = errors.New("membus: stopped")

// Responder answers a call made on a session joined to deviceID.
type Responder func(deviceID string, c bus.Call) ([]interface{}, error)

// Options configures a Bus.
type Options struct {
    Logger *zap.Logger
    // Responder answers calls. When nil calls are queued on Calls.
    Responder Responder
    // ManualJoins queues join requests on Joins instead of accepting them.
    ManualJoins bool
    // QueueSize bounds the Calls and Joins channels. Zero means 64.
    QueueSize int
}

// PendingCall is a call waiting for Reply or Fail. The first of Reply, Fail
// or the call timeout wins.
type PendingCall struct {
    Session  bus.SessionID
    DeviceID string
    Call     bus.Call

    once  sync.Once
    timer *time.Timer
    reply func(bus.Reply)
    b     *Bus
}

// Reply completes the call with args.
func (p *PendingCall) Reply(args ...interface{}) {
    out, err := roundTrip(wire.KindReply, p.Call.Interface, p.Call.Member, args)
    if err != nil {
        p.finish(bus.Reply{Err: err})
        return
    }
    p.finish(bus.Reply{Args: out})
}

// Fail completes the call with err.
func (p *PendingCall) Fail(err error) { p.finish(bus.Reply{Err: err}) }

func (p *PendingCall) finish(r bus.Reply) {
    p.once.Do(func() {
        if p.timer != nil { p.timer.Stop() }
        p.b.forget(p)
        p.reply(r)
    })
}

// PendingJoin is a join request held because of ManualJoins.
type PendingJoin struct {
    Service bus.Service

    once sync.Once
    done func(bus.SessionID, error)
    b    *Bus
}

// Accept opens the session and reports it to the joiner.
func (j *PendingJoin) Accept() bus.SessionID {
    var id bus.SessionID
    j.once.Do(func() {
        var err error
        id, err = j.b.openSession(j.Service.DeviceID)
        j.done(id, err)
    })
    return id
}

// Reject fails the join with err.
func (j *PendingJoin) Reject(err error) {
    j.once.Do(func() { j.done(0, err) })
}

// Bus is an in-process bus.Bus.
type Bus struct {
    opts Options
    log  *zap.Logger

    mu       sync.Mutex
    h        bus.Handler
    started  bool
    next     bus.SessionID
    sessions map[bus.SessionID]string
    failJoin map[string]error
    inflight map[*PendingCall]struct{}

    calls chan *PendingCall
    joins chan *PendingJoin
    wg    sync.WaitGroup
}

var _ bus.Bus = (*Bus)(nil)

func New(opts Options) *Bus {
    n := opts.QueueSize
    if n <= 0 { n = 64 }
    return &Bus{
        opts:     opts,
        log:      logutil.Named(opts.Logger, "membus"),
        sessions: make(map[bus.SessionID]string),
        failJoin: make(map[string]error),
        inflight: make(map[*PendingCall]struct{}),
        calls:    make(chan *PendingCall, n),
        joins:    make(chan *PendingJoin, n),
    }
}

// Calls delivers calls when no Responder is set.
func (b *Bus) Calls() <-chan *PendingCall { return b.calls }

// Joins delivers join requests when ManualJoins is set.
func (b *Bus) Joins() <-chan *PendingJoin { return b.joins }

func (b *Bus) Start(_ context.Context, h bus.Handler) error {
    if h == nil { return errors.New("membus: nil handler") }
    b.mu.Lock()
    defer b.mu.Unlock()
    if b.started { return errors.New("membus: already started") }
    b.h, b.started = h, true
    return nil
}

func (b *Bus) handler() bus.Handler {
    b.mu.Lock()
    defer b.mu.Unlock()
    if !b.started { return nil }
    return b.h
}

// Announce delivers a to the handler.
func (b *Bus) Announce(a bus.Announcement) {
    if h := b.handler(); h != nil { h.HandleAnnouncement(a) }
}

// LoseAnnouncement reports that deviceID stopped announcing.
func (b *Bus) LoseAnnouncement(deviceID string) {
    if h := b.handler(); h != nil { h.HandleAnnouncementLost(deviceID) }
}

// FailJoin makes joins to deviceID fail with err; a nil err clears it.
func (b *Bus) FailJoin(deviceID string, err error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    if err == nil {
        delete(b.failJoin, deviceID)
        return
    }
    b.failJoin[deviceID] = err
}

func (b *Bus) JoinSessionAsync(_ context.Context, svc bus.Service, done func(bus.SessionID, error)) error {
    b.mu.Lock()
    if !b.started {
        b.mu.Unlock()
        return ErrStopped
    }
    ferr := b.failJoin[svc.DeviceID]
    b.mu.Unlock()

    if b.opts.ManualJoins && ferr == nil {
        j := &PendingJoin{Service: svc, done: done, b: b}
        select {
        case b.joins <- j:
            return nil
        default:
            return errors.New("membus: join queue full")
        }
    }
    b.wg.Add(1)
    go func() {
        defer b.wg.Done()
        if ferr != nil {
            done(0, fmt.Errorf("%w: %v", bus.ErrJoinRefused, ferr))
            return
        }
        id, err := b.openSession(svc.DeviceID)
        done(id, err)
    }()
    return nil
}

func (b *Bus) openSession(deviceID string) (bus.SessionID, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    if !b.started { return 0, ErrStopped }
    b.next++
    b.sessions[b.next] = deviceID
    b.log.Debug("session opened", zap.String("device", deviceID), zap.Uint32("session", uint32(b.next)))
    return b.next, nil
}

func (b *Bus) LeaveSession(id bus.SessionID) error {
    b.mu.Lock()
    defer b.mu.Unlock()
    if _, ok := b.sessions[id]; !ok { return bus.ErrNoSession }
    delete(b.sessions, id)
    return nil
}

// Sessions returns the open sessions and their device IDs.
func (b *Bus) Sessions() map[bus.SessionID]string {
    b.mu.Lock()
    defer b.mu.Unlock()
    out := make(map[bus.SessionID]string, len(b.sessions))
    for id, d := range b.sessions { out[id] = d }
    return out
}

// LoseSession closes id and reports the loss to the handler.
func (b *Bus) LoseSession(id bus.SessionID, reason error) {
    b.mu.Lock()
    _, ok := b.sessions[id]
    delete(b.sessions, id)
    h := b.h
    started := b.started
    b.mu.Unlock()
    if ok && started { h.HandleSessionLost(id, reason) }
}

// EmitSignal delivers a signal on every session joined to deviceID.
func (b *Bus) EmitSignal(deviceID, iface, member string, args ...interface{}) error {
    out, err := roundTrip(wire.KindSignal, iface, member, args)
    if err != nil { return err }
    b.mu.Lock()
    var ids []bus.SessionID
    for id, d := range b.sessions {
        if d == deviceID { ids = append(ids, id) }
    }
    h := b.h
    started := b.started
    b.mu.Unlock()
    if !started { return ErrStopped }
    for _, id := range ids {
        h.HandleSignal(id, bus.Signal{Interface: iface, Member: member, Args: out})
    }
    return nil
}

// EmitRawSignal delivers s on id without encoding, for malformed payloads.
func (b *Bus) EmitRawSignal(id bus.SessionID, s bus.Signal) {
    if h := b.handler(); h != nil { h.HandleSignal(id, s) }
}

func (b *Bus) CallAsync(id bus.SessionID, c bus.Call, timeout time.Duration, reply func(bus.Reply)) error {
    args, err := roundTrip(wire.KindCall, c.Interface, c.Member, c.Args)
    if err != nil { return err }
    c.Args = args

    b.mu.Lock()
    if !b.started {
        b.mu.Unlock()
        return ErrStopped
    }
    deviceID, ok := b.sessions[id]
    if !ok {
        b.mu.Unlock()
        return bus.ErrNoSession
    }
    p := &PendingCall{Session: id, DeviceID: deviceID, Call: c, reply: reply, b: b}
    if timeout > 0 {
        p.timer = time.AfterFunc(timeout, func() { p.Fail(bus.ErrTimeout) })
    }
    b.inflight[p] = struct{}{}
    b.mu.Unlock()

    if r := b.opts.Responder; r != nil {
        b.wg.Add(1)
        go func() {
            defer b.wg.Done()
            out, err := r(deviceID, c)
            if err != nil {
                p.Fail(err)
                return
            }
            p.Reply(out...)
        }()
        return nil
    }
    select {
    case b.calls <- p:
        return nil
    default:
        if p.timer != nil { p.timer.Stop() }
        b.forget(p)
        return errors.New("membus: call queue full")
    }
}

func (b *Bus) forget(p *PendingCall) {
    b.mu.Lock()
    delete(b.inflight, p)
    b.mu.Unlock()
}

// Stop fails outstanding calls, drops sessions and waits for bus goroutines.
func (b *Bus) Stop() error {
    b.mu.Lock()
    if !b.started {
        b.mu.Unlock()
        return nil
    }
    b.started = false
    b.sessions = make(map[bus.SessionID]string)
    pending := make([]*PendingCall, 0, len(b.inflight))
    for p := range b.inflight { pending = append(pending, p) }
    b.mu.Unlock()
    for _, p := range pending { p.Fail(ErrStopped) }
    b.wg.Wait()
    return nil
}

func roundTrip(kind wire.Kind, iface, member string, args []interface{}) ([]interface{}, error) {
    m, err := wire.RoundTrip(wire.Message{Kind: kind, Interface: iface, Member: member, Args: args})
    if err != nil { return nil, err }
    return m.Args, nil
}
