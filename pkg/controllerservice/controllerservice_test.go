package controllerservice

import (
    "testing"
    "time"

    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

type recorder struct {
    NopCallback
    versions chan uint32
    renamed  chan string
}

func (r *recorder) GetControllerServiceVersionReplyCB(v uint32)   { r.versions <- v }
func (r *recorder) ControllerServiceNameChangedCB(_, name string) { r.renamed <- name }

func TestVersionAndRename(t *testing.T) {
    h := clienttest.Connected(t)
    r := &recorder{versions: make(chan uint32, 1), renamed: make(chan string, 1)}
    m, err := NewManager(h.Client, r)
    if err != nil { t.Fatalf("NewManager: %v", err) }

    if st := m.GetControllerServiceVersion(); st != client.StatusOK { t.Fatalf("status=%s", st) }
    h.NextCall(t).Reply(uint32(2))
    select {
    case v := <-r.versions:
        if v != 2 { t.Fatalf("version=%d", v) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no reply")
    }

    h.Signal(t, lsf.ControllerServiceInterface, "ControllerServiceNameChanged", clienttest.DeviceID, "hall")
    select {
    case n := <-r.renamed:
        if n != "hall" { t.Fatalf("name=%s", n) }
    case <-time.After(2 * time.Second):
        t.Fatalf("signal not delivered")
    }
}

func TestVersionReplyWithExtraArgs(t *testing.T) {
    h := clienttest.Connected(t)
    r := &recorder{versions: make(chan uint32, 1), renamed: make(chan string, 1)}
    m, _ := NewManager(h.Client, r)
    m.GetControllerServiceVersion()
    h.NextCall(t).Reply(uint32(2), "extra")
    h.Rec.Await(t, "error:ERROR_MESSAGE_WITH_INVALID_ARGS")
    select {
    case v := <-r.versions:
        t.Fatalf("unexpected version %d", v)
    default:
    }
}
