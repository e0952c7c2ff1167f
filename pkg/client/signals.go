package client

import (
    "fmt"
    "sync"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

// SignalKind is the payload shape of a signal.
type SignalKind uint8

const (
    // SignalIDList carries (as).
    SignalIDList SignalKind = iota + 1
    // SignalNameChanged carries (s id, s name).
    SignalNameChanged
    // SignalStateChanged carries (s id, (buuuub) state).
    SignalStateChanged
    // SignalNoArgs carries nothing.
    SignalNoArgs
)

func (k SignalKind) String() string {
    switch k {
    case SignalIDList:
        return "id-list"
    case SignalNameChanged:
        return "name-changed"
    case SignalStateChanged:
        return "state-changed"
    case SignalNoArgs:
        return "no-args"
    }
    return fmt.Sprintf("signal-kind(%d)", uint8(k))
}

// SignalHandler binds one signal to a typed function. Build it with the
// constructors below.
type SignalHandler struct {
    Interface string
    Member    string
    Kind      SignalKind

    idList       func(ids []string)
    nameChanged  func(id, name string)
    stateChanged func(id string, state lsf.LampState)
    noArgs       func()
}

func IDListSignal(iface, member string, fn func(ids []string)) SignalHandler {
    return SignalHandler{Interface: iface, Member: member, Kind: SignalIDList, idList: fn}
}

func NameChangedSignal(iface, member string, fn func(id, name string)) SignalHandler {
    return SignalHandler{Interface: iface, Member: member, Kind: SignalNameChanged, nameChanged: fn}
}

func StateChangedSignal(iface, member string, fn func(id string, state lsf.LampState)) SignalHandler {
    return SignalHandler{Interface: iface, Member: member, Kind: SignalStateChanged, stateChanged: fn}
}

func NoArgsSignal(iface, member string, fn func()) SignalHandler {
    return SignalHandler{Interface: iface, Member: member, Kind: SignalNoArgs, noArgs: fn}
}

func (h SignalHandler) dispatch(args []interface{}) error {
    switch h.Kind {
    case SignalIDList:
        var ids []string
        if err := wire.Store(args, &ids); err != nil { return err }
        h.idList(ids)
    case SignalNameChanged:
        var id, name string
        if err := wire.Store(args, &id, &name); err != nil { return err }
        h.nameChanged(id, name)
    case SignalStateChanged:
        var id string
        var st lsf.LampState
        if err := wire.Store(args, &id, &st); err != nil { return err }
        h.stateChanged(id, st)
    case SignalNoArgs:
        if err := wire.Store(args); err != nil { return err }
        h.noArgs()
    default:
        return fmt.Errorf("client: unknown signal kind %d", h.Kind)
    }
    return nil
}

func (h SignalHandler) valid() bool {
    if h.Interface == "" || h.Member == "" { return false }
    switch h.Kind {
    case SignalIDList:
        return h.idList != nil
    case SignalNameChanged:
        return h.nameChanged != nil
    case SignalStateChanged:
        return h.stateChanged != nil
    case SignalNoArgs:
        return h.noArgs != nil
    }
    return false
}

type signalKey struct{ iface, member string }

// signalRouter maps (interface, member) to a handler. Routing is off until
// enable is called for a session and off again after disable or clear.
type signalRouter struct {
    mu       sync.RWMutex
    handlers map[signalKey]SignalHandler
    session  bus.SessionID
    active   bool
}

func newSignalRouter() *signalRouter {
    return &signalRouter{handlers: make(map[signalKey]SignalHandler)}
}

// register installs h, replacing any handler for the same signal.
func (r *signalRouter) register(h SignalHandler) error {
    if !h.valid() { return fmt.Errorf("client: invalid signal handler %s.%s", h.Interface, h.Member) }
    r.mu.Lock()
    r.handlers[signalKey{h.Interface, h.Member}] = h
    r.mu.Unlock()
    return nil
}

func (r *signalRouter) unregister(iface, member string) {
    r.mu.Lock()
    delete(r.handlers, signalKey{iface, member})
    r.mu.Unlock()
}

func (r *signalRouter) enable(session bus.SessionID) {
    r.mu.Lock()
    r.session, r.active = session, true
    r.mu.Unlock()
}

func (r *signalRouter) disable() {
    r.mu.Lock()
    r.active = false
    r.mu.Unlock()
}

func (r *signalRouter) clear() {
    r.mu.Lock()
    r.handlers = make(map[signalKey]SignalHandler)
    r.active = false
    r.mu.Unlock()
}

func (r *signalRouter) len() int {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return len(r.handlers)
}

// lookup returns the handler for s when routing is active for session.
func (r *signalRouter) lookup(session bus.SessionID, s bus.Signal) (SignalHandler, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    if !r.active || r.session != session { return SignalHandler{}, false }
    h, ok := r.handlers[signalKey{s.Interface, s.Member}]
    return h, ok
}
