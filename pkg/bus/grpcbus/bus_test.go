package grpcbus

import (
    "context"
    "errors"
    "net"
    "strconv"
    "strings"
    "testing"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials/insecure"

    "github.com/amirimatin/go-lsf/pkg/announce/static"
    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/election"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

type fakeController struct{}

func (fakeController) HandleCall(_ context.Context, _ uint32, c bus.Call) ([]interface{}, error) {
    switch c.Member {
    case "GetControllerServiceVersion":
        return []interface{}{uint32(7)}, nil
    case "Echo":
        return c.Args, nil
    }
    return nil, errors.New("unknown method " + c.Member)
}

type nameWatcher struct{ names chan string }

func (w *nameWatcher) EntityType() client.EntityType { return client.EntityControllerService }

func (w *nameWatcher) SignalHandlers() []client.SignalHandler {
    return []client.SignalHandler{
        client.NameChangedSignal(lsf.ControllerServiceInterface, "ControllerServiceNameChanged", func(_, name string) { w.names <- name }),
    }
}

func startHost(t *testing.T) (*Host, bus.Announcement) {
    t.Helper()
    h, err := NewHost(HostOptions{DeviceID: clienttest.DeviceID, Handler: fakeController{}})
    if err != nil { t.Fatalf("new host: %v", err) }
    if err := h.Start(context.Background()); err != nil { t.Fatalf("host start: %v", err) }
    t.Cleanup(func() {
        ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = h.Stop(ctx)
    })
    host, port, err := net.SplitHostPort(h.Addr())
    if err != nil { t.Fatalf("addr: %v", err) }
    p, _ := strconv.Atoi(port)
    return h, bus.Announcement{DeviceID: clienttest.DeviceID, DeviceName: "controller", Rank: election.Rank{Lo: 1}, BusAddress: host, Port: uint16(p)}
}

func TestTarget(t *testing.T) {
    cases := []struct {
        svc  bus.Service
        want string
    }{
        {bus.Service{BusAddress: "10.0.0.1:9000"}, "10.0.0.1:9000"},
        {bus.Service{BusAddress: "10.0.0.1", Port: 9001}, "10.0.0.1:9001"},
        {bus.Service{BusAddress: "10.0.0.1:9000", Port: 9001}, "10.0.0.1:9001"},
        {bus.Service{BusAddress: "::1", Port: 9001}, "[::1]:9001"},
    }
    for _, c := range cases {
        if got := target(c.svc); got != c.want { t.Fatalf("target(%+v) = %q, want %q", c.svc, got, c.want) }
    }
}

func TestOptionsValidate(t *testing.T) {
    if _, err := New(Options{}); err != ErrNoSource { t.Fatalf("err = %v, want ErrNoSource", err) }
    if _, err := NewHost(HostOptions{}); err != ErrNilCallHandler { t.Fatalf("err = %v, want ErrNilCallHandler", err) }
}

func TestEndToEnd(t *testing.T) {
    host, ann := startHost(t)
    src := static.New(ann)
    b, err := New(Options{Source: src, DialTimeout: 2 * time.Second, LeaveTimeout: 500 * time.Millisecond})
    if err != nil { t.Fatalf("new bus: %v", err) }
    rec := &clienttest.Recorder{}
    c, err := client.New(b, rec, client.Options{CallTimeout: 2 * time.Second})
    if err != nil { t.Fatalf("client: %v", err) }
    w := &nameWatcher{names: make(chan string, 1)}
    if err := c.Register(w); err != nil { t.Fatalf("register: %v", err) }
    if st := c.Start(context.Background()); st != client.StatusOK { t.Fatalf("start: %s", st) }
    defer c.Stop()
    rec.Await(t, "connected:"+clienttest.DeviceID)

    versions := make(chan uint32, 1)
    if st := c.CallAsync(lsf.ControllerServiceInterface, "GetControllerServiceVersion", client.OnUint32(func(v uint32) { versions <- v })); st != client.StatusOK {
        t.Fatalf("call: %s", st)
    }
    select {
    case v := <-versions:
        if v != 7 { t.Fatalf("version = %d", v) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no reply")
    }

    ids := make(chan []string, 1)
    st := c.CallAsync(lsf.LampInterface, "Echo", client.OnIDList(func(rc lsf.ResponseCode, got []string) {
        if rc == lsf.OK { ids <- got }
    }), uint32(lsf.OK), []string{"a", "b"})
    if st != client.StatusOK { t.Fatalf("echo: %s", st) }
    select {
    case got := <-ids:
        if len(got) != 2 || got[1] != "b" { t.Fatalf("ids = %v", got) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no echo reply")
    }

    // a host side failure surfaces as a failed call
    if st := c.CallAsync(lsf.LampInterface, "Nope", client.OnUint32(func(uint32) {})); st != client.StatusOK { t.Fatalf("nope: %s", st) }
    rec.Await(t, "error:"+client.ErrorMethodCallTimeout.String())

    clienttest.WaitUntil(t, 2*time.Second, func() error {
        if len(host.Sessions()) == 1 { return nil }
        return clienttest.ErrNotYet
    })
    if n, err := host.Emit(lsf.ControllerServiceInterface, "ControllerServiceNameChanged", clienttest.DeviceID, "lobby"); err != nil || n != 1 {
        t.Fatalf("emit: n=%d err=%v", n, err)
    }
    select {
    case name := <-w.names:
        if name != "lobby" { t.Fatalf("name = %q", name) }
    case <-time.After(2 * time.Second):
        t.Fatalf("signal not delivered")
    }

    if !host.DropSession(host.Sessions()[0]) { t.Fatalf("drop session") }
    rec.Await(t, "disconnected:"+clienttest.DeviceID)

    src.Announce(ann)
    clienttest.WaitUntil(t, 2*time.Second, func() error {
        if rec.Count("connected:"+clienttest.DeviceID) == 2 { return nil }
        return clienttest.ErrNotYet
    })

    if st := c.Stop(); st != client.StatusOK { t.Fatalf("stop: %s", st) }
    clienttest.WaitUntil(t, 2*time.Second, func() error {
        if len(host.Sessions()) == 0 { return nil }
        return clienttest.ErrNotYet
    })
}

func TestJoinUnreachableFails(t *testing.T) {
    lis, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil { t.Fatal(err) }
    addr := lis.Addr().String()
    _ = lis.Close()

    src := static.New(bus.Announcement{DeviceID: "gone", Rank: election.Rank{Lo: 1}, BusAddress: addr})
    b, err := New(Options{Source: src, DialTimeout: 300 * time.Millisecond})
    if err != nil { t.Fatalf("new bus: %v", err) }
    rec := &clienttest.Recorder{}
    c, err := client.New(b, rec, client.Options{})
    if err != nil { t.Fatalf("client: %v", err) }
    if st := c.Start(context.Background()); st != client.StatusOK { t.Fatalf("start: %s", st) }
    defer c.Stop()
    rec.Await(t, "failed:gone")
}

type nopHandler struct{}

func (nopHandler) HandleAnnouncement(bus.Announcement)    {}
func (nopHandler) HandleAnnouncementLost(string)          {}
func (nopHandler) HandleSessionLost(bus.SessionID, error) {}
func (nopHandler) HandleSignal(bus.SessionID, bus.Signal) {}

func TestStopReportsFailedLeave(t *testing.T) {
    lis, err := net.Listen("tcp", "127.0.0.1:0")
    if err != nil { t.Fatal(err) }
    addr := lis.Addr().String()
    _ = lis.Close()

    b, err := New(Options{Source: static.New(), LeaveTimeout: 200 * time.Millisecond})
    if err != nil { t.Fatalf("new bus: %v", err) }
    if err := b.Start(context.Background(), nopHandler{}); err != nil { t.Fatalf("start: %v", err) }
    cc, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
    if err != nil { t.Fatalf("dial: %v", err) }
    defer cc.Close()
    _, cancel := context.WithCancel(context.Background())
    b.mu.Lock()
    b.sessions[9] = &session{id: 9, remote: 1, deviceID: "gone", target: addr, cc: cc, release: func() {}, cancel: cancel}
    b.mu.Unlock()

    err = b.Stop()
    if err == nil || !strings.Contains(err.Error(), "leave session 9") { t.Fatalf("stop err = %v", err) }
}
