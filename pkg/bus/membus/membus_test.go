package membus

import (
    "context"
    "errors"
    "reflect"
    "testing"
    "time"

    "go.uber.org/goleak"

    "github.com/amirimatin/go-lsf/pkg/bus"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

const lampIface = "org.allseen.LSF.ControllerService.Lamp"

type recorder struct {
    lost    chan bus.SessionID
    signals chan bus.Signal
}

func newRecorder() *recorder {
    return &recorder{lost: make(chan bus.SessionID, 8), signals: make(chan bus.Signal, 8)}
}

func (r *recorder) HandleAnnouncement(bus.Announcement)         {}
func (r *recorder) HandleAnnouncementLost(string)               {}
func (r *recorder) HandleSessionLost(id bus.SessionID, _ error) { r.lost <- id }
func (r *recorder) HandleSignal(_ bus.SessionID, s bus.Signal)  { r.signals <- s }

func join(t *testing.T, b *Bus, device string) bus.SessionID {
    t.Helper()
    type res struct {
        id  bus.SessionID
        err error
    }
    ch := make(chan res, 1)
    if err := b.JoinSessionAsync(context.Background(), bus.Service{DeviceID: device}, func(id bus.SessionID, err error) { ch <- res{id, err} }); err != nil {
        t.Fatalf("join: %v", err)
    }
    select {
    case r := <-ch:
        if r.err != nil { t.Fatalf("join %s: %v", device, r.err) }
        return r.id
    case <-time.After(time.Second):
        t.Fatalf("join %s: no outcome", device)
    }
    return 0
}

func awaitReply(t *testing.T, ch <-chan bus.Reply) bus.Reply {
    t.Helper()
    select {
    case r := <-ch:
        return r
    case <-time.After(2 * time.Second):
        t.Fatalf("no reply")
    }
    return bus.Reply{}
}

func TestResponderReplyIsWireShaped(t *testing.T) {
    b := New(Options{Responder: func(deviceID string, c bus.Call) ([]interface{}, error) {
        return []interface{}{uint32(0), []string{deviceID, c.Member}}, nil
    }})
    if err := b.Start(context.Background(), newRecorder()); err != nil { t.Fatal(err) }
    defer b.Stop()

    id := join(t, b, "dev-a")
    replies := make(chan bus.Reply, 1)
    call := bus.Call{Interface: lampIface, Member: "GetAllLampIDs"}
    if err := b.CallAsync(id, call, time.Second, func(r bus.Reply) { replies <- r }); err != nil { t.Fatalf("call: %v", err) }
    r := awaitReply(t, replies)
    want := []interface{}{uint32(0), []string{"dev-a", "GetAllLampIDs"}}
    if r.Err != nil || !reflect.DeepEqual(r.Args, want) { t.Fatalf("reply=%+v", r) }
}

func TestCallTimeoutAndStop(t *testing.T) {
    b := New(Options{})
    if err := b.Start(context.Background(), newRecorder()); err != nil { t.Fatal(err) }
    id := join(t, b, "dev-a")

    timedOut := make(chan bus.Reply, 1)
    if err := b.CallAsync(id, bus.Call{Interface: lampIface, Member: "Slow"}, 20*time.Millisecond, func(r bus.Reply) { timedOut <- r }); err != nil { t.Fatal(err) }
    if r := awaitReply(t, timedOut); !errors.Is(r.Err, bus.ErrTimeout) { t.Fatalf("err=%v", r.Err) }

    held := make(chan bus.Reply, 1)
    if err := b.CallAsync(id, bus.Call{Interface: lampIface, Member: "Held"}, 0, func(r bus.Reply) { held <- r }); err != nil { t.Fatal(err) }
    if err := b.Stop(); err != nil { t.Fatal(err) }
    if r := awaitReply(t, held); !errors.Is(r.Err, ErrStopped) { t.Fatalf("err=%v", r.Err) }
    if err := b.CallAsync(id, bus.Call{Interface: lampIface, Member: "Late"}, 0, func(bus.Reply) {}); !errors.Is(err, ErrStopped) { t.Fatalf("late call err=%v", err) }
    if err := b.Stop(); err != nil { t.Fatalf("second stop: %v", err) }
}

func TestFailJoin(t *testing.T) {
    b := New(Options{})
    if err := b.Start(context.Background(), newRecorder()); err != nil { t.Fatal(err) }
    defer b.Stop()

    b.FailJoin("dev-a", errors.New("busy"))
    errs := make(chan error, 1)
    if err := b.JoinSessionAsync(context.Background(), bus.Service{DeviceID: "dev-a"}, func(_ bus.SessionID, err error) { errs <- err }); err != nil { t.Fatal(err) }
    if err := <-errs; !errors.Is(err, bus.ErrJoinRefused) { t.Fatalf("err=%v", err) }

    b.FailJoin("dev-a", nil)
    join(t, b, "dev-a")
}

func TestSessionLossAndSignals(t *testing.T) {
    rec := newRecorder()
    b := New(Options{})
    if err := b.Start(context.Background(), rec); err != nil { t.Fatal(err) }
    defer b.Stop()

    id := join(t, b, "dev-a")
    if err := b.EmitSignal("dev-a", lampIface, "LampsFound", []string{"l1"}); err != nil { t.Fatal(err) }
    s := <-rec.signals
    if s.Member != "LampsFound" || !reflect.DeepEqual(s.Args, []interface{}{[]string{"l1"}}) { t.Fatalf("signal=%+v", s) }

    b.LoseSession(id, errors.New("gone"))
    if got := <-rec.lost; got != id { t.Fatalf("lost=%d want %d", got, id) }
    if err := b.LeaveSession(id); !errors.Is(err, bus.ErrNoSession) { t.Fatalf("leave err=%v", err) }
    if len(b.Sessions()) != 0 { t.Fatalf("sessions=%v", b.Sessions()) }
}
