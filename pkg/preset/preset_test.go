package preset

import (
    "testing"
    "time"

    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

type recorder struct {
    NopCallback
    defaults chan lsf.LampState
    setRC    chan lsf.ResponseCode
    changed  chan struct{}
}

func (r *recorder) GetDefaultLampStateReplyCB(_ lsf.ResponseCode, s lsf.LampState) { r.defaults <- s }
func (r *recorder) SetDefaultLampStateReplyCB(rc lsf.ResponseCode)                 { r.setRC <- rc }
func (r *recorder) DefaultLampStateChangedCB()                                     { r.changed <- struct{}{} }

func setup(t *testing.T) (*clienttest.Harness, *Manager, *recorder) {
    t.Helper()
    h := clienttest.Connected(t)
    r := &recorder{defaults: make(chan lsf.LampState, 1), setRC: make(chan lsf.ResponseCode, 1), changed: make(chan struct{}, 1)}
    m, err := NewManager(h.Client, r)
    if err != nil { t.Fatalf("NewManager: %v", err) }
    return h, m, r
}

func TestDefaultLampState(t *testing.T) {
    h, m, r := setup(t)
    want := lsf.LampState{OnOff: true, Brightness: 50}
    if st := m.SetDefaultLampState(want); st != client.StatusOK { t.Fatalf("status=%s", st) }
    p := h.NextCall(t)
    if len(p.Call.Args) != 1 { t.Fatalf("args=%v", p.Call.Args) }
    p.Reply(uint32(lsf.ErrBusy))
    select {
    case rc := <-r.setRC:
        if rc != lsf.ErrBusy { t.Fatalf("rc=%s", rc) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no set reply")
    }

    m.GetDefaultLampState()
    h.NextCall(t).Reply(uint32(lsf.OK), want)
    select {
    case got := <-r.defaults:
        if got != want { t.Fatalf("state=%+v", got) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no get reply")
    }
}

func TestDefaultLampStateChangedSignal(t *testing.T) {
    h, _, r := setup(t)
    h.Signal(t, lsf.PresetInterface, "DefaultLampStateChanged")
    select {
    case <-r.changed:
    case <-time.After(2 * time.Second):
        t.Fatalf("signal not delivered")
    }
}

func TestPresetDataSet(t *testing.T) {
    h, m, _ := setup(t)
    if st := m.GetPresetDataSet("p1", "en"); st != client.StatusOK { t.Fatalf("status=%s", st) }
    if a, b := h.NextCall(t).Call.Member, h.NextCall(t).Call.Member; a != "GetPreset" || b != "GetPresetName" {
        t.Fatalf("calls=%s,%s", a, b)
    }
}
