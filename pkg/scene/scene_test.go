package scene

import (
    "reflect"
    "testing"
    "time"

    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

type recorder struct {
    NopCallback
    scenes  chan lsf.Scene
    applied chan []string
}

func (r *recorder) GetSceneReplyCB(_ lsf.ResponseCode, _ string, s lsf.Scene) { r.scenes <- s }
func (r *recorder) ScenesAppliedCB(ids []string)                              { r.applied <- ids }

func sample() lsf.Scene {
    return lsf.Scene{
        TransitionToState: []lsf.TransitionLampsLampGroupsToState{{
            Lamps: []string{"l1"}, LampGroups: []string{}, State: lsf.LampState{OnOff: true, Brightness: 80}, Period: 100,
        }},
        PulseWithPreset: []lsf.PulseLampsLampGroupsWithPreset{{
            Lamps: []string{}, LampGroups: []string{"g1"}, FromPresetID: "p1", ToPresetID: "p2", Period: 10, Duration: 20, NumPulses: 3,
        }},
        TransitionToPreset: []lsf.TransitionLampsLampGroupsToPreset{},
        PulseWithState:     []lsf.PulseLampsLampGroupsWithState{},
    }
}

func TestCreateAndGetScene(t *testing.T) {
    h := clienttest.Connected(t)
    r := &recorder{scenes: make(chan lsf.Scene, 1), applied: make(chan []string, 1)}
    m, err := NewManager(h.Client, r)
    if err != nil { t.Fatalf("NewManager: %v", err) }

    if st := m.CreateScene(sample(), "evening", "en"); st != client.StatusOK { t.Fatalf("status=%s", st) }
    p := h.NextCall(t)
    if len(p.Call.Args) != 6 || p.Call.Args[4] != "evening" { t.Fatalf("args=%#v", p.Call.Args) }
    p.Reply(uint32(lsf.OK), "s1")

    m.GetScene("s1")
    h.NextCall(t).Reply(append([]interface{}{uint32(lsf.OK), "s1"}, sample().Args()...)...)
    select {
    case got := <-r.scenes:
        if !reflect.DeepEqual(got, sample()) { t.Fatalf("scene=%+v", got) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no reply")
    }
}

func TestScenesAppliedSignal(t *testing.T) {
    h := clienttest.Connected(t)
    r := &recorder{scenes: make(chan lsf.Scene, 1), applied: make(chan []string, 1)}
    m, _ := NewManager(h.Client, r)
    m.ApplyScene("s1")
    h.NextCall(t).Reply(uint32(lsf.OK), "s1")
    h.Signal(t, lsf.SceneInterface, "ScenesApplied", []string{"s1"})
    select {
    case ids := <-r.applied:
        if !reflect.DeepEqual(ids, []string{"s1"}) { t.Fatalf("ids=%v", ids) }
    case <-time.After(2 * time.Second):
        t.Fatalf("signal not delivered")
    }
}
