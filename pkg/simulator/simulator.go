// Package simulator is an in-memory lighting controller service. It answers
// the same method calls a real controller service does and emits the
// matching signals, so clients can be exercised without lamps. Controller
// serves grpcbus hosts directly and membus through Responder.
package simulator

import (
    "context"
    "errors"
    "fmt"
    "sync"

    "go.uber.org/zap"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/bus/grpcbus"
    "github.com/amirimatin/go-lsf/pkg/bus/membus"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

// Version is reported by GetControllerServiceVersion and per lamp by
// GetLampServiceVersion.
const Version uint32 = 1

var (
    ErrUnknownMethod = errors.New("simulator: unknown method")
    ErrBadArgs       = errors.New("simulator: bad arguments")
)

// EmitFunc delivers a signal to joined clients.
type EmitFunc func(iface, member string, args ...interface{}) error

type Options struct {
    DeviceID   string
    DeviceName string
    // Lamps is the number of simulated lamps. Defaults to 3.
    Lamps int
    // Language is the only supported language. Defaults to "en".
    Language string
    Logger   *zap.Logger
}

// Controller holds the simulated lighting state. It is safe for concurrent
// use.
type Controller struct {
    opts Options
    log  *zap.Logger

    mu           sync.Mutex
    name         string
    emit         EmitFunc
    lamps        map[string]*lamp
    lampSeq      int
    nudged       int
    defaultState lsf.LampState
    groups       *store[lsf.LampGroup]
    presets      *store[lsf.LampState]
    scenes       *store[lsf.Scene]
    masters      *store[lsf.MasterScene]
}

var _ grpcbus.CallHandler = (*Controller)(nil)

type signal struct {
    iface, member string
    args          []interface{}
}

// method handlers run with c.mu held and return the reply plus the signals
// to emit once the lock is released.
type method func(c *Controller, args []interface{}) ([]interface{}, []signal, error)

var methods = map[string]method{}

func register(iface string, ms map[string]method) {
    for member, m := range ms { methods[iface+"."+member] = m }
}

func New(opts Options) *Controller {
    if opts.DeviceID == "" { opts.DeviceID = "lsf-sim" }
    if opts.DeviceName == "" { opts.DeviceName = opts.DeviceID }
    if opts.Lamps <= 0 { opts.Lamps = 3 }
    if opts.Language == "" { opts.Language = "en" }
    c := &Controller{opts: opts, log: logutil.Named(opts.Logger, "simulator"), name: opts.DeviceName}
    c.reset()
    return c
}

func (c *Controller) reset() {
    c.defaultState = lsf.LampState{OnOff: true, Brightness: 50}
    c.lamps = make(map[string]*lamp, c.opts.Lamps)
    for i := 0; i < c.opts.Lamps; i++ {
        l := newLamp(i+1, c.defaultState)
        c.lamps[l.id] = l
    }
    c.lampSeq = c.opts.Lamps
    c.groups = newStore[lsf.LampGroup]("group")
    c.presets = newStore[lsf.LampState]("preset")
    c.scenes = newStore[lsf.Scene]("scene")
    c.masters = newStore[lsf.MasterScene]("master")
}

func (c *Controller) DeviceID() string { return c.opts.DeviceID }

// SetEmitter sets where signals go. Signals are discarded until one is set.
func (c *Controller) SetEmitter(fn EmitFunc) {
    c.mu.Lock()
    c.emit = fn
    c.mu.Unlock()
}

// HandleCall answers one method call. Unknown methods and undecodable
// arguments are returned as errors; business failures are response codes in
// the reply.
func (c *Controller) HandleCall(_ context.Context, _ uint32, call bus.Call) ([]interface{}, error) {
    m, ok := methods[call.String()]
    if !ok { return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call) }
    c.mu.Lock()
    out, sigs, err := m(c, call.Args)
    emit := c.emit
    c.mu.Unlock()
    if err != nil {
        c.log.Debug("call rejected", zap.Stringer("call", call), zap.Error(err))
        return nil, err
    }
    c.log.Debug("call", zap.Stringer("call", call), zap.Int("signals", len(sigs)))
    if emit != nil {
        for _, s := range sigs {
            if err := emit(s.iface, s.member, s.args...); err != nil {
                c.log.Warn("emit failed", zap.String("signal", s.iface+"."+s.member), zap.Error(err))
            }
        }
    }
    return out, nil
}

// Responder adapts the controller to an in-process bus.
func (c *Controller) Responder() membus.Responder {
    return func(_ string, call bus.Call) ([]interface{}, error) {
        return c.HandleCall(context.Background(), 0, call)
    }
}

// Rename changes the controller service name and signals it.
func (c *Controller) Rename(name string) {
    c.mu.Lock()
    c.name = name
    emit := c.emit
    c.mu.Unlock()
    if emit != nil { _ = emit(lsf.ControllerServiceInterface, "ControllerServiceNameChanged", c.opts.DeviceID, name) }
}

// AddLamp brings a new lamp online and signals LampsFound.
func (c *Controller) AddLamp() string {
    c.mu.Lock()
    c.lampSeq++
    l := newLamp(c.lampSeq, c.defaultState)
    c.lamps[l.id] = l
    emit := c.emit
    c.mu.Unlock()
    if emit != nil { _ = emit(lsf.LampInterface, "LampsFound", []string{l.id}) }
    return l.id
}

// RemoveLamp takes a lamp offline and signals LampsLost.
func (c *Controller) RemoveLamp(id string) bool {
    c.mu.Lock()
    _, ok := c.lamps[id]
    delete(c.lamps, id)
    emit := c.emit
    c.mu.Unlock()
    if ok && emit != nil { _ = emit(lsf.LampInterface, "LampsLost", []string{id}) }
    return ok
}

// LampState returns a lamp's current state.
func (c *Controller) LampState(id string) (lsf.LampState, bool) {
    c.mu.Lock()
    defer c.mu.Unlock()
    l, ok := c.lamps[id]
    if !ok { return lsf.LampState{}, false }
    return l.state, true
}

func decode(args []interface{}, dest ...interface{}) error {
    if err := wire.Store(args, dest...); err != nil { return fmt.Errorf("%w: %v", ErrBadArgs, err) }
    return nil
}

func rc(code lsf.ResponseCode) uint32 { return uint32(code) }

func idList(iface, member string, ids ...string) signal {
    return signal{iface: iface, member: member, args: []interface{}{ids}}
}

func init() {
    register(lsf.ControllerServiceInterface, map[string]method{
        "GetControllerServiceVersion": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            if err := decode(args); err != nil { return nil, nil, err }
            return []interface{}{Version}, nil, nil
        },
        "LightingResetControllerService": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            if err := decode(args); err != nil { return nil, nil, err }
            c.reset()
            return []interface{}{rc(lsf.OK)}, []signal{{iface: lsf.ControllerServiceInterface, member: "ControllerServiceLightingReset"}}, nil
        },
    })
}
