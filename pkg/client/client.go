// Package client implements the controller client: it tracks announced
// controller services, keeps one session with the highest-ranked of them,
// dispatches asynchronous method calls and routes signals to the registered
// managers.
package client

import (
    "context"
    "sync"
    "time"

    "go.uber.org/atomic"
    "go.uber.org/zap"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/election"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
    "github.com/amirimatin/go-lsf/pkg/observability/metrics"
    "github.com/amirimatin/go-lsf/pkg/observability/tracing"
)

// Client is the controller client. It is safe for concurrent use. Callbacks
// are never invoked while internal locks are held.
type Client struct {
    opts Options
    bus  bus.Bus
    cb   Callback
    log  *zap.Logger

    state *atomic.Int32

    // lifecycle serializes Start and Stop.
    lifecycle sync.Mutex

    leaders struct {
        mu    sync.Mutex
        table *election.Table
    }
    current struct {
        mu      sync.Mutex
        ctx     context.Context
        cancel  context.CancelFunc
        leader  *leader
        joining *election.Entry
        gen     uint64
        // settling is set between losing a session and reporting it, so no
        // new join starts before Disconnected has fired.
        settling bool
    }
    mgrs struct {
        mu sync.Mutex
        m  map[EntityType]Manager
    }

    calls  *pendingCalls
    router *signalRouter
    eb     eventBus
}

type leader struct {
    entry   election.Entry
    session bus.SessionID
}

var _ bus.Handler = (*Client)(nil)

// New constructs a stopped client over b. Nothing happens on the bus until
// Start.
func New(b bus.Bus, cb Callback, opts Options) (*Client, error) {
    if b == nil { return nil, ErrNilBus }
    if cb == nil { return nil, ErrNilCallback }
    if err := opts.Validate(); err != nil { return nil, err }
    if opts.CallTimeout == 0 { opts.CallTimeout = DefaultCallTimeout }
    c := &Client{
        opts:   opts,
        bus:    b,
        cb:     cb,
        log:    logutil.Named(opts.Logger, "client"),
        state:  atomic.NewInt32(int32(StateStopped)),
        calls:  newPendingCalls(),
        router: newSignalRouter(),
    }
    c.leaders.table = election.NewTable()
    c.mgrs.m = make(map[EntityType]Manager)
    c.current.ctx = context.Background()
    return c, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) running() bool { return isRunning(c.State()) }

func isRunning(s State) bool {
    switch s {
    case StateIdle, StateConnecting, StateConnected:
        return true
    }
    return false
}

// advance moves a running client to s. It fails once Stop has begun so a
// late election step never overwrites Stopping or Stopped.
func (c *Client) advance(s State) bool {
    for {
        cur := c.state.Load()
        if !isRunning(State(cur)) { return false }
        if c.state.CAS(cur, int32(s)) { return true }
    }
}

// Start installs the managers' signal handlers and starts the bus. It fails
// unless the client is stopped.
func (c *Client) Start(ctx context.Context) Status {
    c.lifecycle.Lock()
    defer c.lifecycle.Unlock()
    if c.State() != StateStopped {
        c.log.Warn("start rejected", zap.Stringer("state", c.State()))
        return StatusErrFailure
    }
    if err := c.installSignalHandlers(); err != nil {
        c.log.Error("install signal handlers", zap.Error(err))
        c.router.clear()
        c.reportErrors([]ErrorCode{ErrorRegisteringSignalHandlers})
        return StatusErrFailure
    }
    runCtx, cancel := context.WithCancel(context.Background())
    c.current.mu.Lock()
    c.current.ctx, c.current.cancel = runCtx, cancel
    c.current.gen++
    c.current.mu.Unlock()

    c.state.Store(int32(StateIdle))
    if err := c.bus.Start(ctx, c); err != nil {
        c.log.Error("bus start failed", zap.Error(err))
        c.state.Store(int32(StateStopped))
        cancel()
        c.router.clear()
        return StatusErrFailure
    }
    c.log.Info("client started", zap.Int("signal_handlers", c.router.len()))
    return StatusOK
}

// Stop leaves the current session, discards candidates and pending calls
// and stops the bus. No callbacks fire for the teardown. Stopping a stopped
// client is a no-op.
func (c *Client) Stop() Status {
    c.lifecycle.Lock()
    defer c.lifecycle.Unlock()
    if c.State() == StateStopped { return StatusOK }
    c.state.Store(int32(StateStopping))

    c.current.mu.Lock()
    l := c.current.leader
    c.current.leader, c.current.joining, c.current.settling = nil, nil, false
    c.current.gen++
    cancel := c.current.cancel
    c.current.cancel = nil
    c.router.disable()
    c.current.mu.Unlock()

    if l != nil {
        if err := c.bus.LeaveSession(l.session); err != nil {
            c.log.Debug("leave session on stop", zap.Uint32("session", uint32(l.session)), zap.Error(err))
        }
    }
    c.leaders.mu.Lock()
    c.leaders.table.Reset()
    c.leaders.mu.Unlock()
    dropped := c.calls.clear()
    if cancel != nil { cancel() }
    if err := c.bus.Stop(); err != nil {
        c.log.Warn("bus stop", zap.Error(err))
    }
    c.router.clear()
    c.state.Store(int32(StateStopped))

    metrics.Candidates.Set(0)
    metrics.Connected.Set(0)
    metrics.PendingCalls.Set(0)
    c.log.Info("client stopped", zap.Int("dropped_calls", dropped))
    return StatusOK
}

// CallAsync sends iface.method with args to the current leader. The returned
// status only reports submission; h, or the error callback, reports the
// outcome exactly once when StatusOK is returned.
func (c *Client) CallAsync(iface, method string, h ReplyHandler, args ...interface{}) Status {
    if !h.valid() { return StatusErrFailure }
    if c.State() != StateConnected { return StatusErrNotConnected }
    c.current.mu.Lock()
    l := c.current.leader
    ctx := c.current.ctx
    c.current.mu.Unlock()
    if l == nil { return StatusErrNotConnected }

    pc := c.calls.add(l.session, iface, method, h)
    metrics.PendingCalls.Inc()
    _, end := tracing.StartSpan(ctx, "client.call", "call", pc.call, "device", l.entry.DeviceID)
    call := bus.Call{Interface: iface, Member: method, Args: args}
    err := c.bus.CallAsync(l.session, call, c.opts.CallTimeout, func(r bus.Reply) {
        end()
        c.handleReply(pc.id, r)
    })
    if err != nil {
        end()
        if _, ok := c.calls.take(pc.id); ok { metrics.PendingCalls.Dec() }
        metrics.Calls.WithLabelValues(iface, "dispatch_error").Inc()
        c.log.Warn("call dispatch failed", zap.String("call", pc.call), zap.Error(err))
        return StatusErrFailure
    }
    return StatusOK
}

func (c *Client) handleReply(id uint64, r bus.Reply) {
    pc, ok := c.calls.take(id)
    if !ok { return }
    metrics.PendingCalls.Dec()
    if !c.running() {
        metrics.Calls.WithLabelValues(pc.iface, "dropped").Inc()
        return
    }
    if r.Err != nil || !c.isCurrentSession(pc.session) {
        metrics.Calls.WithLabelValues(pc.iface, "timeout").Inc()
        c.log.Debug("call failed", zap.String("call", pc.call), zap.Duration("elapsed", time.Since(pc.at)), zap.Error(r.Err))
        c.reportErrors([]ErrorCode{ErrorMethodCallTimeout})
        return
    }
    if err := pc.handler.dispatch(r.Args); err != nil {
        metrics.Calls.WithLabelValues(pc.iface, "invalid_args").Inc()
        c.log.Warn("reply with invalid args", zap.String("call", pc.call), zap.Error(err))
        c.reportErrors([]ErrorCode{ErrorMessageWithInvalidArgs})
        return
    }
    metrics.Calls.WithLabelValues(pc.iface, "ok").Inc()
}

func (c *Client) isCurrentSession(id bus.SessionID) bool {
    c.current.mu.Lock()
    defer c.current.mu.Unlock()
    return c.current.leader != nil && c.current.leader.session == id
}

// failPending fails every call still pending on session with a timeout.
func (c *Client) failPending(session bus.SessionID) {
    pcs := c.calls.drainSession(session)
    if len(pcs) == 0 { return }
    metrics.PendingCalls.Sub(float64(len(pcs)))
    codes := make([]ErrorCode, len(pcs))
    for i, pc := range pcs {
        codes[i] = ErrorMethodCallTimeout
        metrics.Calls.WithLabelValues(pc.iface, "session_lost").Inc()
    }
    c.reportErrors(codes)
}

func (c *Client) reportErrors(codes []ErrorCode) {
    if len(codes) == 0 { return }
    c.log.Debug("client errors", zap.Stringers("codes", codes))
    c.cb.ControllerClientErrorCB(codes)
    c.eb.publish(Event{Type: EventError, Errors: codes})
}

// HandleAnnouncement records a candidate and re-runs the election.
func (c *Client) HandleAnnouncement(a bus.Announcement) {
    if !c.running() { return }
    c.leaders.mu.Lock()
    e := c.leaders.table.Record(election.Entry{
        DeviceID:   a.DeviceID,
        DeviceName: a.DeviceName,
        BusAddress: a.BusAddress,
        Port:       a.Port,
        Rank:       a.Rank,
    })
    n := c.leaders.table.Len()
    c.leaders.mu.Unlock()
    metrics.Candidates.Set(float64(n))
    c.log.Debug("announcement", zap.String("device", e.DeviceID), zap.Stringer("rank", e.Rank))
    c.eb.publish(Event{Type: EventCandidate, DeviceID: e.DeviceID, DeviceName: e.DeviceName})
    c.reconcile()
}

// HandleAnnouncementLost forgets a candidate. An established session is only
// ended by its own session loss.
func (c *Client) HandleAnnouncementLost(deviceID string) {
    if !c.running() { return }
    if !c.dropCandidate(deviceID) { return }
    c.eb.publish(Event{Type: EventCandidateLost, DeviceID: deviceID})
}

func (c *Client) dropCandidate(deviceID string) bool {
    c.leaders.mu.Lock()
    ok := c.leaders.table.Remove(deviceID)
    n := c.leaders.table.Len()
    c.leaders.mu.Unlock()
    metrics.Candidates.Set(float64(n))
    return ok
}

// HandleSessionLost tears down the current session when id matches it, then
// elects the next candidate.
func (c *Client) HandleSessionLost(id bus.SessionID, reason error) {
    if !c.running() { return }
    c.current.mu.Lock()
    l := c.current.leader
    if l == nil || l.session != id || !c.advance(StateIdle) {
        c.current.mu.Unlock()
        return
    }
    c.current.leader = nil
    c.current.settling = true
    c.router.disable()
    c.current.mu.Unlock()

    metrics.SessionsLost.Inc()
    metrics.Connected.Set(0)
    c.log.Info("session lost", zap.String("device", l.entry.DeviceID), zap.Uint32("session", uint32(id)), zap.Error(reason))
    c.failPending(id)
    c.cb.DisconnectedFromControllerServiceCB(l.entry.DeviceID, l.entry.DeviceName)
    c.eb.publish(Event{Type: EventDisconnected, DeviceID: l.entry.DeviceID, DeviceName: l.entry.DeviceName})
    c.dropCandidate(l.entry.DeviceID)

    c.current.mu.Lock()
    c.current.settling = false
    c.current.mu.Unlock()
    c.electOrIdle()
}

// HandleSignal routes s to its handler when it arrived on the current
// session. Undecodable signals are dropped.
func (c *Client) HandleSignal(id bus.SessionID, s bus.Signal) {
    if c.State() != StateConnected {
        metrics.Signals.WithLabelValues(s.Interface, "dropped").Inc()
        return
    }
    h, ok := c.router.lookup(id, s)
    if !ok {
        metrics.Signals.WithLabelValues(s.Interface, "unhandled").Inc()
        return
    }
    if err := h.dispatch(s.Args); err != nil {
        metrics.Signals.WithLabelValues(s.Interface, "invalid_args").Inc()
        c.log.Warn("signal with invalid args", zap.String("signal", s.Interface+"."+s.Member), zap.Error(err))
        return
    }
    metrics.Signals.WithLabelValues(s.Interface, "delivered").Inc()
}

type reconcileResult int

const (
    reconcileUnchanged reconcileResult = iota
    reconcileJoining
    reconcileNoCandidates
)

// reconcile compares the best candidate against the leader, or the join in
// flight, and starts a join when the best candidate should replace it. A
// connected leader is replaced only by a strictly outranking candidate.
func (c *Client) reconcile() reconcileResult {
    c.leaders.mu.Lock()
    entries := c.leaders.table.Entries()
    c.leaders.mu.Unlock()

    c.current.mu.Lock()
    if !c.running() || c.current.settling {
        c.current.mu.Unlock()
        return reconcileUnchanged
    }
    var incumbent *election.Entry
    switch {
    case c.current.joining != nil:
        incumbent = c.current.joining
    case c.current.leader != nil:
        incumbent = &c.current.leader.entry
    }
    if len(entries) == 0 {
        c.current.mu.Unlock()
        if incumbent != nil || !c.advance(StateIdle) { return reconcileUnchanged }
        return reconcileNoCandidates
    }
    best := entries[0]
    if incumbent != nil {
        inc := *incumbent
        for _, e := range entries {
            if e.DeviceID == inc.DeviceID {
                inc = e
                break
            }
        }
        if inc.DeviceID == best.DeviceID || !best.Outranks(inc) {
            c.current.mu.Unlock()
            return reconcileUnchanged
        }
    }
    if !c.advance(StateConnecting) {
        c.current.mu.Unlock()
        return reconcileUnchanged
    }
    old := c.current.leader
    c.current.leader = nil
    c.current.gen++
    gen := c.current.gen
    ctx := c.current.ctx
    target := best
    c.current.joining = &target
    if old != nil {
        c.router.disable()
        // hold off other elections until Disconnected has fired
        c.current.settling = true
    }
    c.current.mu.Unlock()

    if old != nil {
        c.log.Info("leader outranked", zap.String("from", old.entry.DeviceID), zap.String("to", best.DeviceID))
        metrics.Connected.Set(0)
        c.failPending(old.session)
        if err := c.bus.LeaveSession(old.session); err != nil {
            c.log.Debug("leave outranked session", zap.Error(err))
        }
        c.cb.DisconnectedFromControllerServiceCB(old.entry.DeviceID, old.entry.DeviceName)
        c.eb.publish(Event{Type: EventDisconnected, DeviceID: old.entry.DeviceID, DeviceName: old.entry.DeviceName})
        c.current.mu.Lock()
        c.current.settling = false
        stale := gen != c.current.gen
        c.current.mu.Unlock()
        if stale { return reconcileUnchanged }
    }
    c.join(ctx, gen, best)
    return reconcileJoining
}

// electOrIdle re-runs the election and reports when no candidate is left.
func (c *Client) electOrIdle() {
    if c.reconcile() == reconcileNoCandidates {
        c.log.Info("no active controller service")
        c.reportErrors([]ErrorCode{ErrorNoActiveControllerServiceFound})
    }
}

func (c *Client) join(ctx context.Context, gen uint64, e election.Entry) {
    c.log.Info("joining controller service", zap.String("device", e.DeviceID), zap.Stringer("rank", e.Rank))
    ctx, end := tracing.StartSpan(ctx, "client.join", "device", e.DeviceID, "rank", e.Rank.String())
    svc := bus.Service{DeviceID: e.DeviceID, BusAddress: e.BusAddress, Port: e.Port}
    err := c.bus.JoinSessionAsync(ctx, svc, func(id bus.SessionID, err error) {
        end()
        c.onJoinResult(gen, e, id, err)
    })
    if err != nil {
        end()
        c.onJoinResult(gen, e, 0, err)
    }
}

func (c *Client) onJoinResult(gen uint64, e election.Entry, id bus.SessionID, err error) {
    c.current.mu.Lock()
    if gen != c.current.gen || !c.running() {
        c.current.mu.Unlock()
        metrics.JoinAttempts.WithLabelValues("superseded").Inc()
        if err == nil {
            if lerr := c.bus.LeaveSession(id); lerr != nil {
                c.log.Debug("leave superseded session", zap.Error(lerr))
            }
        }
        return
    }
    next := StateConnected
    if err != nil { next = StateIdle }
    if !c.advance(next) {
        c.current.mu.Unlock()
        metrics.JoinAttempts.WithLabelValues("superseded").Inc()
        if err == nil {
            if lerr := c.bus.LeaveSession(id); lerr != nil {
                c.log.Debug("leave session joined during stop", zap.Error(lerr))
            }
        }
        return
    }
    c.current.joining = nil
    if err != nil {
        c.current.mu.Unlock()
        metrics.JoinAttempts.WithLabelValues("failure").Inc()
        c.log.Warn("join failed", zap.String("device", e.DeviceID), zap.Error(err))
        c.cb.ConnectToControllerServiceFailedCB(e.DeviceID, e.DeviceName)
        c.eb.publish(Event{Type: EventConnectFailed, DeviceID: e.DeviceID, DeviceName: e.DeviceName})
        c.dropCandidate(e.DeviceID)
        c.electOrIdle()
        return
    }
    c.current.leader = &leader{entry: e, session: id}
    c.router.enable(id)
    c.current.mu.Unlock()

    metrics.JoinAttempts.WithLabelValues("success").Inc()
    metrics.LeaderChanges.Inc()
    metrics.Connected.Set(1)
    c.log.Info("connected to controller service", zap.String("device", e.DeviceID), zap.Uint32("session", uint32(id)))
    c.cb.ConnectedToControllerServiceCB(e.DeviceID, e.DeviceName)
    c.eb.publish(Event{Type: EventConnected, DeviceID: e.DeviceID, DeviceName: e.DeviceName})
}

// Status returns a snapshot of the client.
func (c *Client) Status() *ClientStatus {
    st := &ClientStatus{State: c.State()}
    c.leaders.mu.Lock()
    st.Candidates = c.leaders.table.Entries()
    c.leaders.mu.Unlock()
    c.current.mu.Lock()
    if l := c.current.leader; l != nil {
        st.Leader = &LeaderInfo{
            DeviceID:   l.entry.DeviceID,
            DeviceName: l.entry.DeviceName,
            Rank:       l.entry.Rank,
            BusAddress: l.entry.BusAddress,
            SessionID:  uint32(l.session),
        }
    }
    if j := c.current.joining; j != nil { st.Joining = j.DeviceID }
    c.current.mu.Unlock()
    st.PendingCalls = c.calls.len()
    st.Managers = c.managerNames()
    return st
}
