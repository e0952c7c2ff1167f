package client_test

import (
    "context"
    "errors"
    "reflect"
    "testing"
    "time"

    "go.uber.org/atomic"
    "go.uber.org/goleak"

    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/bus/membus"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/election"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

func announce(b *membus.Bus, id string, rank uint64) {
    b.Announce(bus.Announcement{DeviceID: id, DeviceName: "name-" + id, Rank: election.Rank{Lo: rank}})
}

func nextJoin(t *testing.T, b *membus.Bus) *membus.PendingJoin {
    t.Helper()
    select {
    case j := <-b.Joins():
        return j
    case <-time.After(2 * time.Second):
        t.Fatalf("no join requested")
    }
    return nil
}

func awaitState(t *testing.T, c *client.Client, want client.State) {
    t.Helper()
    clienttest.WaitUntil(t, 2*time.Second, func() error {
        if c.State() != want { return clienttest.ErrNotYet }
        return nil
    })
}

type fakeManager struct {
    t       client.EntityType
    signals []client.SignalHandler
}

func (m *fakeManager) EntityType() client.EntityType            { return m.t }
func (m *fakeManager) SignalHandlers() []client.SignalHandler { return m.signals }

func TestNewValidates(t *testing.T) {
    b := membus.New(membus.Options{})
    if _, err := client.New(nil, client.NopCallback{}, client.Options{}); !errors.Is(err, client.ErrNilBus) { t.Fatalf("nil bus: %v", err) }
    if _, err := client.New(b, nil, client.Options{}); !errors.Is(err, client.ErrNilCallback) { t.Fatalf("nil callback: %v", err) }
    if _, err := client.New(b, client.NopCallback{}, client.Options{CallTimeout: -time.Second}); !errors.Is(err, client.ErrInvalidCallTimeout) { t.Fatalf("negative timeout: %v", err) }
}

func TestStartTwiceFails(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    if st := h.Client.Start(context.Background()); st != client.StatusOK { t.Fatalf("start: %s", st) }
    if st := h.Client.Start(context.Background()); st != client.StatusErrFailure { t.Fatalf("second start: %s", st) }
    if h.Client.State() != client.StateIdle { t.Fatalf("state=%s want idle", h.Client.State()) }
}

func TestHigherRankReplacesLeader(t *testing.T) {
    h := clienttest.New(t, membus.Options{ManualJoins: true})
    if st := h.Client.Start(context.Background()); st != client.StatusOK { t.Fatalf("start: %s", st) }

    announce(h.Bus, "a", 5)
    j := nextJoin(t, h.Bus)
    if j.Service.DeviceID != "a" { t.Fatalf("join target=%s want a", j.Service.DeviceID) }
    j.Accept()
    h.Rec.Await(t, "connected:a")

    announce(h.Bus, "b", 10)
    j = nextJoin(t, h.Bus)
    if j.Service.DeviceID != "b" { t.Fatalf("join target=%s want b", j.Service.DeviceID) }
    if got := h.Rec.Events(); !reflect.DeepEqual(got, []string{"connected:a", "disconnected:a"}) {
        t.Fatalf("events before rejoin=%v", got)
    }
    j.Accept()
    h.Rec.Await(t, "connected:b")

    st := h.Client.Status()
    if st.Leader == nil || st.Leader.DeviceID != "b" { t.Fatalf("leader=%+v want b", st.Leader) }
    if len(st.Candidates) != 2 || st.Candidates[0].DeviceID != "b" { t.Fatalf("candidates=%+v", st.Candidates) }
    sessions := h.Bus.Sessions()
    if len(sessions) != 1 { t.Fatalf("open sessions=%v want only b", sessions) }
}

func TestLowerOrEqualRankDoesNotReplaceLeader(t *testing.T) {
    h := clienttest.New(t, membus.Options{ManualJoins: true})
    h.Client.Start(context.Background())
    announce(h.Bus, "a", 5)
    nextJoin(t, h.Bus).Accept()
    h.Rec.Await(t, "connected:a")

    announce(h.Bus, "b", 5)
    announce(h.Bus, "c", 1)
    announce(h.Bus, "a", 5)
    select {
    case j := <-h.Bus.Joins():
        t.Fatalf("unexpected join to %s", j.Service.DeviceID)
    case <-time.After(50 * time.Millisecond):
    }
    if got := h.Rec.Events(); !reflect.DeepEqual(got, []string{"connected:a"}) { t.Fatalf("events=%v", got) }
}

func TestJoinFailureFallsBackToNextCandidate(t *testing.T) {
    h := clienttest.New(t, membus.Options{ManualJoins: true})
    h.Bus.FailJoin("b", errors.New("refused"))
    h.Client.Start(context.Background())

    announce(h.Bus, "a", 5)
    first := nextJoin(t, h.Bus)
    announce(h.Bus, "b", 10)
    h.Rec.Await(t, "failed:b")

    second := nextJoin(t, h.Bus)
    if second.Service.DeviceID != "a" { t.Fatalf("fallback target=%s want a", second.Service.DeviceID) }
    // the superseded join succeeds late and must be left again
    first.Accept()
    second.Accept()
    h.Rec.Await(t, "connected:a")

    if got := h.Rec.Events(); !reflect.DeepEqual(got, []string{"failed:b", "connected:a"}) { t.Fatalf("events=%v", got) }
    if n := len(h.Bus.Sessions()); n != 1 { t.Fatalf("open sessions=%d want 1", n) }
    for _, c := range h.Client.Status().Candidates {
        if c.DeviceID == "b" { t.Fatalf("failed candidate still listed") }
    }
}

func TestNoCandidatesLeftReportsError(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    h.Bus.FailJoin("a", errors.New("refused"))
    h.Client.Start(context.Background())
    announce(h.Bus, "a", 5)
    h.Rec.Await(t, "error:ERROR_NO_ACTIVE_CONTROLLER_SERVICE_FOUND")
    if got := h.Rec.Events(); !reflect.DeepEqual(got, []string{"failed:a", "error:ERROR_NO_ACTIVE_CONTROLLER_SERVICE_FOUND"}) {
        t.Fatalf("events=%v", got)
    }
    awaitState(t, h.Client, client.StateIdle)
}

func TestAnnouncementWithdrawalKeepsSession(t *testing.T) {
    h := clienttest.New(t, membus.Options{ManualJoins: true})
    h.Client.Start(context.Background())
    announce(h.Bus, "a", 5)
    announce(h.Bus, "b", 1)
    nextJoin(t, h.Bus).Accept()
    h.Rec.Await(t, "connected:a")

    h.Bus.LoseAnnouncement("a")
    h.Bus.LoseAnnouncement("b")
    st := h.Client.Status()
    if st.State != client.StateConnected || st.Leader == nil || st.Leader.DeviceID != "a" { t.Fatalf("status=%+v", st) }
    if len(st.Candidates) != 0 { t.Fatalf("candidates=%+v want none", st.Candidates) }

    var id bus.SessionID
    for s := range h.Bus.Sessions() { id = s }
    h.Bus.LoseSession(id, errors.New("gone"))
    h.Rec.Await(t, "error:ERROR_NO_ACTIVE_CONTROLLER_SERVICE_FOUND")
    if got := h.Rec.Events(); !reflect.DeepEqual(got, []string{"connected:a", "disconnected:a", "error:ERROR_NO_ACTIVE_CONTROLLER_SERVICE_FOUND"}) {
        t.Fatalf("events=%v", got)
    }
    awaitState(t, h.Client, client.StateIdle)
}

func TestSessionLostFailsPendingCallsAndReelects(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    h.Client.Start(context.Background())
    announce(h.Bus, "a", 10)
    h.Rec.Await(t, "connected:a")
    announce(h.Bus, "b", 5)

    var replies atomic.Int32
    for i := 0; i < 2; i++ {
        st := h.Client.CallAsync(lsf.ControllerServiceInterface, "GetControllerServiceVersion", client.OnUint32(func(uint32) { replies.Inc() }))
        if st != client.StatusOK { t.Fatalf("call %d: %s", i, st) }
    }
    p1, p2 := h.NextCall(t), h.NextCall(t)

    h.Bus.LoseSession(p1.Session, errors.New("link down"))
    h.Rec.Await(t, "connected:b")
    want := []string{
        "connected:a",
        "error:ERROR_ALLJOYN_METHOD_CALL_TIMEOUT,ERROR_ALLJOYN_METHOD_CALL_TIMEOUT",
        "disconnected:a",
        "connected:b",
    }
    if got := h.Rec.Events(); !reflect.DeepEqual(got, want) { t.Fatalf("events=%v want %v", got, want) }

    p1.Reply(uint32(1))
    p2.Reply(uint32(1))
    time.Sleep(20 * time.Millisecond)
    if replies.Load() != 0 { t.Fatalf("late replies delivered: %d", replies.Load()) }
    if n := h.Client.Status().PendingCalls; n != 0 { t.Fatalf("pending=%d", n) }
}

func TestSessionLostWithoutCandidatesGoesIdle(t *testing.T) {
    h := clienttest.Connected(t)
    id := h.Client.Status().Leader.SessionID
    h.Bus.LoseSession(bus.SessionID(id), nil)
    h.Rec.Await(t, "error:ERROR_NO_ACTIVE_CONTROLLER_SERVICE_FOUND")
    awaitState(t, h.Client, client.StateIdle)
    if st := h.Client.CallAsync(lsf.LampInterface, "GetAllLampIDs", client.OnIDList(func(lsf.ResponseCode, []string) {})); st != client.StatusErrNotConnected {
        t.Fatalf("status=%s want not connected", st)
    }
}

func TestCallNotConnected(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    st := h.Client.CallAsync(lsf.LampInterface, "GetAllLampIDs", client.OnIDList(func(lsf.ResponseCode, []string) {}))
    if st != client.StatusErrNotConnected { t.Fatalf("status=%s", st) }
    h.Client.Start(context.Background())
    st = h.Client.CallAsync(lsf.LampInterface, "GetAllLampIDs", client.OnIDList(func(lsf.ResponseCode, []string) {}))
    if st != client.StatusErrNotConnected { t.Fatalf("idle status=%s", st) }
}

func TestCallReplyDecoded(t *testing.T) {
    h := clienttest.Connected(t)
    got := make(chan []string, 1)
    st := h.Client.CallAsync(lsf.LampInterface, "GetAllLampIDs", client.OnIDList(func(rc lsf.ResponseCode, ids []string) {
        if rc != lsf.OK { t.Errorf("rc=%s", rc) }
        got <- ids
    }))
    if st != client.StatusOK { t.Fatalf("status=%s", st) }
    p := h.NextCall(t)
    if p.Call.Member != "GetAllLampIDs" || len(p.Call.Args) != 0 { t.Fatalf("call=%+v", p.Call) }
    p.Reply(uint32(lsf.OK), []string{"l1", "l2"})
    select {
    case ids := <-got:
        if !reflect.DeepEqual(ids, []string{"l1", "l2"}) { t.Fatalf("ids=%v", ids) }
    case <-time.After(2 * time.Second):
        t.Fatalf("no reply")
    }
}

func TestReplyWithWrongArgumentsReportsError(t *testing.T) {
    h := clienttest.Connected(t)
    var called atomic.Bool
    h.Client.CallAsync(lsf.LampInterface, "GetAllLampIDs", client.OnIDList(func(lsf.ResponseCode, []string) { called.Store(true) }))
    h.NextCall(t).Reply(uint32(lsf.OK))
    h.Rec.Await(t, "error:ERROR_MESSAGE_WITH_INVALID_ARGS")

    h.Client.CallAsync(lsf.LampInterface, "GetLampName", client.OnIDLanguageName(func(lsf.ResponseCode, string, string, string) { called.Store(true) }))
    h.NextCall(t).Reply(uint32(lsf.OK), "l1", uint32(7), "name")
    clienttest.WaitUntil(t, 2*time.Second, func() error {
        if h.Rec.Count("error:ERROR_MESSAGE_WITH_INVALID_ARGS") != 2 { return clienttest.ErrNotYet }
        return nil
    })
    if called.Load() { t.Fatalf("handler invoked for malformed reply") }
}

func TestCallOutcomeExactlyOnce(t *testing.T) {
    h := clienttest.Connected(t)
    var replies atomic.Int32
    h.Client.CallAsync(lsf.ControllerServiceInterface, "GetControllerServiceVersion", client.OnUint32(func(uint32) { replies.Inc() }))
    p := h.NextCall(t)
    p.Fail(bus.ErrTimeout)
    p.Reply(uint32(1))
    h.Rec.Await(t, "error:ERROR_ALLJOYN_METHOD_CALL_TIMEOUT")
    time.Sleep(20 * time.Millisecond)
    if replies.Load() != 0 { t.Fatalf("reply delivered after timeout") }
    if n := h.Rec.Count("error:ERROR_ALLJOYN_METHOD_CALL_TIMEOUT"); n != 1 { t.Fatalf("timeouts=%d", n) }
}

func TestCallTimesOut(t *testing.T) {
    b := membus.New(membus.Options{})
    rec := &clienttest.Recorder{}
    c, err := client.New(b, rec, client.Options{CallTimeout: 20 * time.Millisecond})
    if err != nil { t.Fatalf("new: %v", err) }
    defer c.Stop()
    c.Start(context.Background())
    announce(b, "a", 1)
    rec.Await(t, "connected:a")
    c.CallAsync(lsf.LampInterface, "GetAllLampIDs", client.OnIDList(func(lsf.ResponseCode, []string) {}))
    <-b.Calls()
    rec.Await(t, "error:ERROR_ALLJOYN_METHOD_CALL_TIMEOUT")
}

func TestStopIsIdempotentAndSilent(t *testing.T) {
    h := clienttest.Connected(t)
    var replies atomic.Int32
    h.Client.CallAsync(lsf.ControllerServiceInterface, "GetControllerServiceVersion", client.OnUint32(func(uint32) { replies.Inc() }))
    p := h.NextCall(t)
    before := h.Rec.Events()

    if st := h.Client.Stop(); st != client.StatusOK { t.Fatalf("stop: %s", st) }
    if st := h.Client.Stop(); st != client.StatusOK { t.Fatalf("second stop: %s", st) }
    p.Reply(uint32(1))
    time.Sleep(20 * time.Millisecond)

    if got := h.Rec.Events(); !reflect.DeepEqual(got, before) { t.Fatalf("callbacks during stop: %v", got[len(before):]) }
    if replies.Load() != 0 { t.Fatalf("reply delivered after stop") }
    st := h.Client.Status()
    if st.State != client.StateStopped || len(st.Candidates) != 0 || st.PendingCalls != 0 || st.Leader != nil {
        t.Fatalf("status after stop=%+v", st)
    }
    if n := len(h.Bus.Sessions()); n != 0 { t.Fatalf("sessions after stop=%d", n) }
}

func TestRestartAfterStop(t *testing.T) {
    h := clienttest.Connected(t)
    h.Client.Stop()
    h.Connect(t)
    clienttest.WaitUntil(t, 2*time.Second, func() error {
        if h.Rec.Count("connected:"+clienttest.DeviceID) != 2 { return clienttest.ErrNotYet }
        return nil
    })
    if h.Client.State() != client.StateConnected { t.Fatalf("state=%s after restart", h.Client.State()) }
}

func TestStopDuringElectionStaysStopped(t *testing.T) {
    for i := 0; i < 20; i++ {
        h := clienttest.New(t, membus.Options{})
        if st := h.Client.Start(context.Background()); st != client.StatusOK { t.Fatalf("start %d: %s", i, st) }
        announce(h.Bus, "a", 5)
        announce(h.Bus, "b", 10)
        h.Client.Stop()
        seen := len(h.Rec.Events())
        time.Sleep(5 * time.Millisecond)
        if st := h.Client.State(); st != client.StateStopped { t.Fatalf("run %d: state=%s after stop", i, st) }
        if got := h.Rec.Events(); len(got) != seen { t.Fatalf("run %d: callbacks after stop: %v", i, got[seen:]) }
        if n := len(h.Bus.Sessions()); n != 0 { t.Fatalf("run %d: open sessions=%d", i, n) }
    }
}

func TestLateJoinAfterStopIsLeft(t *testing.T) {
    h := clienttest.New(t, membus.Options{ManualJoins: true})
    h.Client.Start(context.Background())
    announce(h.Bus, "a", 5)
    j := nextJoin(t, h.Bus)
    h.Client.Stop()
    j.Accept()
    if st := h.Client.State(); st != client.StateStopped { t.Fatalf("state=%s", st) }
    if h.Rec.Count("connected:a") != 0 { t.Fatalf("events=%v", h.Rec.Events()) }
    if n := len(h.Bus.Sessions()); n != 0 { t.Fatalf("open sessions=%d", n) }
}

func TestDuplicateManagerRejected(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    if err := h.Client.Register(&fakeManager{t: client.EntityLamp}); err != nil { t.Fatalf("register: %v", err) }
    err := h.Client.Register(&fakeManager{t: client.EntityLamp})
    if !errors.Is(err, client.ErrManagerRegistered) { t.Fatalf("duplicate register err=%v", err) }
    if err := h.Client.Register(&fakeManager{t: client.EntityScene}); err != nil { t.Fatalf("register scene: %v", err) }
    if got := h.Client.Status().Managers; !reflect.DeepEqual(got, []string{"lamp", "scene"}) { t.Fatalf("managers=%v", got) }
}

func TestSignalsRoutedOnlyWhileConnected(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    ids := make(chan []string, 4)
    m := &fakeManager{t: client.EntityLamp, signals: []client.SignalHandler{
        client.IDListSignal(lsf.LampInterface, "LampsNameChanged", func(v []string) { ids <- v }),
    }}
    if err := h.Client.Register(m); err != nil { t.Fatalf("register: %v", err) }
    h.Connect(t)

    h.Signal(t, lsf.LampInterface, "LampsNameChanged", []string{"l1"})
    select {
    case v := <-ids:
        if !reflect.DeepEqual(v, []string{"l1"}) { t.Fatalf("ids=%v", v) }
    case <-time.After(2 * time.Second):
        t.Fatalf("signal not delivered")
    }

    // malformed payload is dropped
    id := bus.SessionID(h.Client.Status().Leader.SessionID)
    h.Bus.EmitRawSignal(id, bus.Signal{Interface: lsf.LampInterface, Member: "LampsNameChanged", Args: []interface{}{uint32(3)}})
    // unknown signals are ignored
    h.Signal(t, lsf.LampInterface, "LampsFound", []string{"x"})
    // stale session id is ignored
    h.Bus.EmitRawSignal(id+100, bus.Signal{Interface: lsf.LampInterface, Member: "LampsNameChanged", Args: []interface{}{[]string{"x"}}})

    h.Client.Stop()
    h.Bus.EmitRawSignal(id, bus.Signal{Interface: lsf.LampInterface, Member: "LampsNameChanged", Args: []interface{}{[]string{"x"}}})
    select {
    case v := <-ids:
        t.Fatalf("unexpected delivery %v", v)
    case <-time.After(30 * time.Millisecond):
    }
}

func TestSubscribeMirrorsCallbacks(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    ch := h.Client.Subscribe(ctx)
    h.Connect(t)
    seen := map[client.EventType]bool{}
    deadline := time.After(2 * time.Second)
    for !seen[client.EventConnected] {
        select {
        case ev := <-ch:
            seen[ev.Type] = true
        case <-deadline:
            t.Fatalf("events seen=%v", seen)
        }
    }
    if !seen[client.EventCandidate] { t.Fatalf("candidate event missing: %v", seen) }
}
