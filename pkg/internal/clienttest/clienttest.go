// Package clienttest wires a client to an in-process bus for tests.
package clienttest

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/bus/membus"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/election"
)

// DeviceID is the controller service Connect joins.
const DeviceID = "cs-1"

var ErrNotYet = errors.New("not yet")

// WaitUntil polls fn until it returns nil or timeout elapses.
func WaitUntil(t *testing.T, timeout time.Duration, fn func() error) {
    t.Helper()
    deadline := time.Now().Add(timeout)
    var err error
    for time.Now().Before(deadline) {
        if err = fn(); err == nil { return }
        time.Sleep(5 * time.Millisecond)
    }
    t.Fatalf("condition not met within %s: %v", timeout, err)
}

// Recorder is a client.Callback that logs every notification in order as
// "connected:<id>", "failed:<id>", "disconnected:<id>" or "error:<codes>".
type Recorder struct {
    mu     sync.Mutex
    events []string
    errs   [][]client.ErrorCode
}

var _ client.Callback = (*Recorder)(nil)

func (r *Recorder) add(s string) {
    r.mu.Lock()
    r.events = append(r.events, s)
    r.mu.Unlock()
}

func (r *Recorder) ConnectedToControllerServiceCB(id, _ string)      { r.add("connected:" + id) }
func (r *Recorder) ConnectToControllerServiceFailedCB(id, _ string)  { r.add("failed:" + id) }
func (r *Recorder) DisconnectedFromControllerServiceCB(id, _ string) { r.add("disconnected:" + id) }

func (r *Recorder) ControllerClientErrorCB(codes []client.ErrorCode) {
    names := make([]string, len(codes))
    for i, c := range codes { names[i] = c.String() }
    r.mu.Lock()
    r.events = append(r.events, "error:"+strings.Join(names, ","))
    r.errs = append(r.errs, append([]client.ErrorCode(nil), codes...))
    r.mu.Unlock()
}

// Events returns a copy of the recorded notifications.
func (r *Recorder) Events() []string {
    r.mu.Lock()
    defer r.mu.Unlock()
    return append([]string(nil), r.events...)
}

// Errors returns every error callback payload.
func (r *Recorder) Errors() [][]client.ErrorCode {
    r.mu.Lock()
    defer r.mu.Unlock()
    return append([][]client.ErrorCode(nil), r.errs...)
}

// Count returns how many recorded notifications equal ev.
func (r *Recorder) Count(ev string) int {
    n := 0
    for _, e := range r.Events() {
        if e == ev { n++ }
    }
    return n
}

// Await waits until ev has been recorded at least once.
func (r *Recorder) Await(t *testing.T, ev string) {
    t.Helper()
    WaitUntil(t, 2*time.Second, func() error {
        if r.Count(ev) > 0 { return nil }
        return fmt.Errorf("%w: %q in %v", ErrNotYet, ev, r.Events())
    })
}

// Harness is a client on an in-process bus.
type Harness struct {
    Bus    *membus.Bus
    Client *client.Client
    Rec    *Recorder
}

// New builds a stopped client. It is stopped again on test cleanup.
func New(t *testing.T, opts membus.Options) *Harness {
    t.Helper()
    h := &Harness{Bus: membus.New(opts), Rec: &Recorder{}}
    c, err := client.New(h.Bus, h.Rec, client.Options{CallTimeout: 2 * time.Second})
    if err != nil { t.Fatalf("client.New: %v", err) }
    h.Client = c
    t.Cleanup(func() { c.Stop() })
    return h
}

// Connect starts the client, announces DeviceID and waits for the session.
func (h *Harness) Connect(t *testing.T) {
    t.Helper()
    if st := h.Client.Start(context.Background()); st != client.StatusOK { t.Fatalf("start: %s", st) }
    h.Bus.Announce(bus.Announcement{DeviceID: DeviceID, DeviceName: "controller", Rank: election.Rank{Lo: 1}})
    h.Rec.Await(t, "connected:"+DeviceID)
}

// Connected returns a started harness joined to DeviceID with calls queued
// on Bus.Calls.
func Connected(t *testing.T) *Harness {
    t.Helper()
    h := New(t, membus.Options{})
    h.Connect(t)
    return h
}

// NextCall returns the next call the client made.
func (h *Harness) NextCall(t *testing.T) *membus.PendingCall {
    t.Helper()
    select {
    case p := <-h.Bus.Calls():
        return p
    case <-time.After(2 * time.Second):
        t.Fatalf("no call dispatched")
    }
    return nil
}

// NoCall fails if a call is dispatched within d.
func (h *Harness) NoCall(t *testing.T, d time.Duration) {
    t.Helper()
    select {
    case p := <-h.Bus.Calls():
        t.Fatalf("unexpected call %s", p.Call)
    case <-time.After(d):
    }
}

// Signal emits a signal from DeviceID.
func (h *Harness) Signal(t *testing.T, iface, member string, args ...interface{}) {
    t.Helper()
    if err := h.Bus.EmitSignal(DeviceID, iface, member, args...); err != nil { t.Fatalf("emit %s.%s: %v", iface, member, err) }
}
