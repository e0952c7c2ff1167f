package client

import (
    "fmt"
    "sync"
    "time"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

// ReplyKind selects how reply arguments are decoded.
type ReplyKind uint8

const (
    // ReplyIDList is (u, as).
    ReplyIDList ReplyKind = iota + 1
    // ReplyIDName is (u, s, s).
    ReplyIDName
    // ReplyID is (u, s).
    ReplyID
    // ReplyUint32 is a single (u).
    ReplyUint32
    // ReplyIDLanguageName is (u, s, s, s).
    ReplyIDLanguageName
    // ReplyCustom hands the raw arguments to a decode function.
    ReplyCustom
)

// ReplyHandler is a typed reply continuation. Exactly one function field,
// matching Kind, is set; use the On* constructors.
type ReplyHandler struct {
    Kind ReplyKind

    idList         func(rc lsf.ResponseCode, ids []string)
    idName         func(rc lsf.ResponseCode, id, name string)
    id             func(rc lsf.ResponseCode, id string)
    u32            func(v uint32)
    idLanguageName func(rc lsf.ResponseCode, id, language, name string)
    custom         func(args []interface{}) error
}

func OnIDList(fn func(rc lsf.ResponseCode, ids []string)) ReplyHandler {
    return ReplyHandler{Kind: ReplyIDList, idList: fn}
}

func OnIDName(fn func(rc lsf.ResponseCode, id, name string)) ReplyHandler {
    return ReplyHandler{Kind: ReplyIDName, idName: fn}
}

func OnID(fn func(rc lsf.ResponseCode, id string)) ReplyHandler {
    return ReplyHandler{Kind: ReplyID, id: fn}
}

func OnUint32(fn func(v uint32)) ReplyHandler {
    return ReplyHandler{Kind: ReplyUint32, u32: fn}
}

func OnIDLanguageName(fn func(rc lsf.ResponseCode, id, language, name string)) ReplyHandler {
    return ReplyHandler{Kind: ReplyIDLanguageName, idLanguageName: fn}
}

// OnCustom decodes with fn, which must convert every argument (typically
// with wire.Store) before invoking any application callback and return the
// decode error untouched so the reply is dropped.
func OnCustom(fn func(args []interface{}) error) ReplyHandler {
    return ReplyHandler{Kind: ReplyCustom, custom: fn}
}

// dispatch decodes args and invokes the continuation. On error nothing has
// been invoked.
func (h ReplyHandler) dispatch(args []interface{}) error {
    var rc lsf.ResponseCode
    switch h.Kind {
    case ReplyIDList:
        var ids []string
        if err := wire.Store(args, &rc, &ids); err != nil { return err }
        h.idList(rc, ids)
    case ReplyIDName:
        var id, name string
        if err := wire.Store(args, &rc, &id, &name); err != nil { return err }
        h.idName(rc, id, name)
    case ReplyID:
        var id string
        if err := wire.Store(args, &rc, &id); err != nil { return err }
        h.id(rc, id)
    case ReplyUint32:
        var v uint32
        if err := wire.Store(args, &v); err != nil { return err }
        h.u32(v)
    case ReplyIDLanguageName:
        var id, lang, name string
        if err := wire.Store(args, &rc, &id, &lang, &name); err != nil { return err }
        h.idLanguageName(rc, id, lang, name)
    case ReplyCustom:
        return h.custom(args)
    default:
        return fmt.Errorf("client: unknown reply kind %d", h.Kind)
    }
    return nil
}

func (h ReplyHandler) valid() bool {
    switch h.Kind {
    case ReplyIDList:
        return h.idList != nil
    case ReplyIDName:
        return h.idName != nil
    case ReplyID:
        return h.id != nil
    case ReplyUint32:
        return h.u32 != nil
    case ReplyIDLanguageName:
        return h.idLanguageName != nil
    case ReplyCustom:
        return h.custom != nil
    }
    return false
}

type pendingCall struct {
    id      uint64
    session bus.SessionID
    call    string
    iface   string
    handler ReplyHandler
    at      time.Time
}

// pendingCalls owns in-flight calls keyed by call id. An entry is removed by
// exactly one of take, drainSession or clear.
type pendingCalls struct {
    mu    sync.Mutex
    next  uint64
    calls map[uint64]*pendingCall
}

func newPendingCalls() *pendingCalls { return &pendingCalls{calls: make(map[uint64]*pendingCall)} }

func (p *pendingCalls) add(session bus.SessionID, iface, member string, h ReplyHandler) *pendingCall {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.next++
    pc := &pendingCall{id: p.next, session: session, iface: iface, call: iface + "." + member, handler: h, at: time.Now()}
    p.calls[pc.id] = pc
    return pc
}

func (p *pendingCalls) take(id uint64) (*pendingCall, bool) {
    p.mu.Lock()
    defer p.mu.Unlock()
    pc, ok := p.calls[id]
    if ok { delete(p.calls, id) }
    return pc, ok
}

// drainSession removes and returns every call dispatched on session.
func (p *pendingCalls) drainSession(session bus.SessionID) []*pendingCall {
    p.mu.Lock()
    defer p.mu.Unlock()
    var out []*pendingCall
    for id, pc := range p.calls {
        if pc.session == session {
            out = append(out, pc)
            delete(p.calls, id)
        }
    }
    return out
}

// clear drops every call and returns how many there were.
func (p *pendingCalls) clear() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    n := len(p.calls)
    p.calls = make(map[uint64]*pendingCall)
    return n
}

func (p *pendingCalls) len() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return len(p.calls)
}
