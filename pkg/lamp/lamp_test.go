package lamp

import (
    "errors"
    "reflect"
    "testing"
    "time"

    "github.com/godbus/dbus/v5"

    "github.com/amirimatin/go-lsf/pkg/bus/membus"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

type recorder struct {
    NopCallback
    states  chan lsf.LampState
    hues    chan uint32
    onOff   chan bool
    details chan lsf.LampDetails
    changed chan string
    fields  chan string
}

func newRecorder() *recorder {
    return &recorder{
        states:  make(chan lsf.LampState, 4),
        hues:    make(chan uint32, 4),
        onOff:   make(chan bool, 4),
        details: make(chan lsf.LampDetails, 4),
        changed: make(chan string, 4),
        fields:  make(chan string, 4),
    }
}

func (r *recorder) GetLampStateReplyCB(_ lsf.ResponseCode, _ string, s lsf.LampState) { r.states <- s }
func (r *recorder) GetLampStateHueFieldReplyCB(_ lsf.ResponseCode, _ string, v uint32) { r.hues <- v }
func (r *recorder) GetLampStateOnOffFieldReplyCB(_ lsf.ResponseCode, _ string, v bool) { r.onOff <- v }
func (r *recorder) GetLampDetailsReplyCB(_ lsf.ResponseCode, _ string, d lsf.LampDetails) {
    r.details <- d
}
func (r *recorder) LampStateChangedCB(id string, _ lsf.LampState) { r.changed <- id }
func (r *recorder) TransitionLampStateFieldReplyCB(_ lsf.ResponseCode, _ string, field string) {
    r.fields <- field
}

func recv[T any](t *testing.T, ch <-chan T) T {
    t.Helper()
    select {
    case v := <-ch:
        return v
    case <-time.After(2 * time.Second):
        t.Fatalf("timed out waiting for callback")
    }
    var zero T
    return zero
}

func setup(t *testing.T) (*clienttest.Harness, *Manager, *recorder) {
    t.Helper()
    h := clienttest.Connected(t)
    r := newRecorder()
    m, err := NewManager(h.Client, r)
    if err != nil { t.Fatalf("NewManager: %v", err) }
    return h, m, r
}

func TestGetLampState(t *testing.T) {
    h, m, r := setup(t)
    if st := m.GetLampState("l1"); st != client.StatusOK { t.Fatalf("status=%s", st) }
    p := h.NextCall(t)
    if p.Call.Interface != lsf.LampInterface || p.Call.Member != "GetLampState" { t.Fatalf("call=%s", p.Call) }
    want := lsf.LampState{OnOff: true, Hue: 10, Saturation: 20, Brightness: 30, ColorTemp: 4000}
    p.Reply(uint32(lsf.OK), "l1", want)
    if got := recv(t, r.states); got != want { t.Fatalf("state=%+v want %+v", got, want) }
}

func TestGetLampDetails(t *testing.T) {
    h, m, r := setup(t)
    m.GetLampDetails("l1")
    want := lsf.LampDetails{Make: 1, Model: 2, Dimmable: true, Color: true, MaxLumens: 800, ColorRenderingIndex: 90}
    h.NextCall(t).Reply(uint32(lsf.OK), "l1", want)
    if got := recv(t, r.details); got != want { t.Fatalf("details=%+v want %+v", got, want) }
}

func TestStateFieldGetters(t *testing.T) {
    h, m, r := setup(t)
    m.GetLampStateHueField("l1")
    p := h.NextCall(t)
    if !reflect.DeepEqual(p.Call.Args, []interface{}{"l1", lsf.FieldHue}) { t.Fatalf("args=%v", p.Call.Args) }
    p.Reply(uint32(lsf.OK), "l1", lsf.FieldHue, dbus.MakeVariant(uint32(120)))
    if v := recv(t, r.hues); v != 120 { t.Fatalf("hue=%d", v) }

    m.GetLampStateOnOffField("l1")
    h.NextCall(t).Reply(uint32(lsf.OK), "l1", lsf.FieldOnOff, dbus.MakeVariant(true))
    if !recv(t, r.onOff) { t.Fatalf("onOff=false") }

    // wrong variant type is an invalid reply
    m.GetLampStateOnOffField("l1")
    h.NextCall(t).Reply(uint32(lsf.OK), "l1", lsf.FieldOnOff, dbus.MakeVariant("yes"))
    h.Rec.Await(t, "error:ERROR_MESSAGE_WITH_INVALID_ARGS")
}

func TestTransitionFieldSendsVariant(t *testing.T) {
    h, m, r := setup(t)
    m.TransitionLampStateBrightnessField("l1", 77, 500)
    p := h.NextCall(t)
    if p.Call.Member != "TransitionLampStateField" || len(p.Call.Args) != 4 { t.Fatalf("call=%+v", p.Call) }
    v, ok := p.Call.Args[2].(dbus.Variant)
    if !ok || v.Value() != uint32(77) { t.Fatalf("value arg=%#v", p.Call.Args[2]) }
    p.Reply(uint32(lsf.OK), "l1", lsf.FieldBrightness)
    if f := recv(t, r.fields); f != lsf.FieldBrightness { t.Fatalf("field=%s", f) }
}

func TestLampStateChangedSignal(t *testing.T) {
    h, _, r := setup(t)
    h.Signal(t, lsf.LampInterface, "LampStateChanged", "l9", lsf.LampState{Brightness: 5})
    if id := recv(t, r.changed); id != "l9" { t.Fatalf("id=%s", id) }
}

func TestDataSetIssuesCallsInOrder(t *testing.T) {
    h, m, _ := setup(t)
    if st := m.GetLampDataSet("l1", "en"); st != client.StatusOK { t.Fatalf("status=%s", st) }
    var got []string
    for i := 0; i < 4; i++ { got = append(got, h.NextCall(t).Call.Member) }
    want := []string{"GetLampState", "GetLampParameters", "GetLampDetails", "GetLampName"}
    if !reflect.DeepEqual(got, want) { t.Fatalf("calls=%v want %v", got, want) }
}

func TestDataSetStopsAtFirstFailedSubmission(t *testing.T) {
    h := clienttest.New(t, membus.Options{QueueSize: 2})
    h.Connect(t)
    m, err := NewManager(h.Client, NopCallback{})
    if err != nil { t.Fatalf("NewManager: %v", err) }
    if st := m.GetLampDataSet("l1", "en"); st != client.StatusErrFailure { t.Fatalf("status=%s want failure", st) }
    // the first two requests stay submitted
    if a, b := h.NextCall(t).Call.Member, h.NextCall(t).Call.Member; a != "GetLampState" || b != "GetLampParameters" {
        t.Fatalf("calls=%s,%s", a, b)
    }
    h.NoCall(t, 20*time.Millisecond)
}

func TestNotConnected(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    m, err := NewManager(h.Client, NopCallback{})
    if err != nil { t.Fatalf("NewManager: %v", err) }
    if st := m.GetAllLampIDs(); st != client.StatusErrNotConnected { t.Fatalf("status=%s", st) }
    if st := m.GetLampDataSet("l1", "en"); st != client.StatusErrNotConnected { t.Fatalf("dataset status=%s", st) }
}

func TestSecondManagerRejected(t *testing.T) {
    h, m, _ := setup(t)
    if _, err := NewManager(h.Client, NopCallback{}); !errors.Is(err, client.ErrManagerRegistered) { t.Fatalf("err=%v", err) }
    m.Close()
    if _, err := NewManager(h.Client, NopCallback{}); err != nil { t.Fatalf("after close: %v", err) }
}
