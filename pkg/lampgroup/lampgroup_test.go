package lampgroup

import (
    "reflect"
    "testing"
    "time"

    "go.uber.org/atomic"

    "github.com/amirimatin/go-lsf/pkg/bus/membus"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

type recorder struct {
    NopCallback
    created  atomic.Int32
    ids      chan string
    groups   chan lsf.LampGroup
    deleted  chan []string
}

func newRecorder() *recorder {
    return &recorder{ids: make(chan string, 4), groups: make(chan lsf.LampGroup, 4), deleted: make(chan []string, 4)}
}

func (r *recorder) CreateLampGroupReplyCB(rc lsf.ResponseCode, id string) {
    r.created.Inc()
    if rc == lsf.OK { r.ids <- id }
}
func (r *recorder) GetLampGroupReplyCB(_ lsf.ResponseCode, _ string, g lsf.LampGroup) { r.groups <- g }
func (r *recorder) LampGroupsDeletedCB(ids []string)                                  { r.deleted <- ids }

func TestGetAllLampGroupIDsNotConnected(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    m, err := NewManager(h.Client, NopCallback{})
    if err != nil { t.Fatalf("NewManager: %v", err) }
    if st := m.GetAllLampGroupIDs(); st != client.StatusErrNotConnected { t.Fatalf("status=%s want %s", st, client.StatusErrNotConnected) }
}

func TestCreateLampGroupReplyOnce(t *testing.T) {
    h := clienttest.Connected(t)
    r := newRecorder()
    m, err := NewManager(h.Client, r)
    if err != nil { t.Fatalf("NewManager: %v", err) }

    g := lsf.LampGroup{Lamps: []string{"l1", "l2"}}
    if st := m.CreateLampGroup(g, "kitchen", "en"); st != client.StatusOK { t.Fatalf("status=%s", st) }
    p := h.NextCall(t)
    want := []interface{}{[]string{"l1", "l2"}, []string{}, "kitchen", "en"}
    if !reflect.DeepEqual(p.Call.Args, want) { t.Fatalf("args=%#v want %#v", p.Call.Args, want) }
    p.Reply(uint32(lsf.OK), "g-1")
    p.Reply(uint32(lsf.OK), "g-2")

    select {
    case id := <-r.ids:
        if id != "g-1" { t.Fatalf("id=%s", id) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no reply callback")
    }
    time.Sleep(20 * time.Millisecond)
    if n := r.created.Load(); n != 1 { t.Fatalf("reply callbacks=%d want 1", n) }
}

func TestGetLampGroupDecodesMembers(t *testing.T) {
    h := clienttest.Connected(t)
    r := newRecorder()
    m, _ := NewManager(h.Client, r)
    m.GetLampGroup("g-1")
    h.NextCall(t).Reply(uint32(lsf.OK), "g-1", []string{"l1"}, []string{"g-2"})
    select {
    case g := <-r.groups:
        if !reflect.DeepEqual(g, lsf.LampGroup{Lamps: []string{"l1"}, LampGroups: []string{"g-2"}}) { t.Fatalf("group=%+v", g) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no reply callback")
    }
}

func TestDataSetOrderAndSignals(t *testing.T) {
    h := clienttest.Connected(t)
    r := newRecorder()
    m, _ := NewManager(h.Client, r)
    if st := m.GetLampGroupDataSet("g-1", "en"); st != client.StatusOK { t.Fatalf("status=%s", st) }
    if a, b := h.NextCall(t).Call.Member, h.NextCall(t).Call.Member; a != "GetLampGroup" || b != "GetLampGroupName" {
        t.Fatalf("calls=%s,%s", a, b)
    }
    h.Signal(t, lsf.LampGroupInterface, "LampGroupsDeleted", []string{"g-1"})
    select {
    case ids := <-r.deleted:
        if !reflect.DeepEqual(ids, []string{"g-1"}) { t.Fatalf("ids=%v", ids) }
    case <-time.After(2 * time.Second):
        t.Fatalf("signal not delivered")
    }
}
