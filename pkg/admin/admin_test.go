package admin

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "go.uber.org/atomic"

    "github.com/amirimatin/go-lsf/pkg/bus/membus"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/internal/clienttest"
)

func TestStatusRoundTrip(t *testing.T) {
    h := clienttest.Connected(t)
    s := NewServer("127.0.0.1:0", nil)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    if err := s.Start(ctx, h.Client); err != nil { t.Fatalf("start: %v", err) }
    defer s.Stop(context.Background())
    if err := s.Start(ctx, h.Client); !errors.Is(err, ErrStarted) { t.Fatalf("second start: %v", err) }

    st, err := NewClient(time.Second).GetStatus(ctx, s.Addr())
    if err != nil { t.Fatalf("status: %v", err) }
    if st.State != client.StateConnected { t.Fatalf("state=%s", st.State) }
    if st.Leader == nil || st.Leader.DeviceID != clienttest.DeviceID { t.Fatalf("leader=%+v", st.Leader) }
    if len(st.Candidates) != 1 { t.Fatalf("candidates=%d", len(st.Candidates)) }
}

func TestReadiness(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    srv := httptest.NewServer(Handler(h.Client))
    defer srv.Close()

    get := func(path string) int {
        t.Helper()
        resp, err := http.Get(srv.URL + path)
        if err != nil { t.Fatalf("get %s: %v", path, err) }
        resp.Body.Close()
        return resp.StatusCode
    }
    if c := get("/healthz"); c != http.StatusOK { t.Fatalf("healthz=%d", c) }
    if c := get("/readyz"); c != http.StatusServiceUnavailable { t.Fatalf("readyz before connect=%d", c) }
    h.Connect(t)
    if c := get("/readyz"); c != http.StatusOK { t.Fatalf("readyz after connect=%d", c) }
    if c := get("/metrics"); c != http.StatusOK { t.Fatalf("metrics=%d", c) }
}

func TestMethodNotAllowed(t *testing.T) {
    h := clienttest.New(t, membus.Options{})
    srv := httptest.NewServer(Handler(h.Client))
    defer srv.Close()
    resp, err := http.Post(srv.URL+"/status", "application/json", strings.NewReader("{}"))
    if err != nil { t.Fatalf("post: %v", err) }
    resp.Body.Close()
    if resp.StatusCode != http.StatusMethodNotAllowed { t.Fatalf("code=%d", resp.StatusCode) }
}

func TestClientGivesUpAfterRetries(t *testing.T) {
    calls := atomic.NewInt32(0)
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls.Inc()
        http.Error(w, "busy", http.StatusInternalServerError)
    }))
    defer srv.Close()
    _, err := NewClient(time.Second).GetStatus(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
    if err == nil || !strings.Contains(err.Error(), "status 500") { t.Fatalf("err=%v", err) }
    if n := calls.Load(); n != 3 { t.Fatalf("calls=%d", n) }
}

func TestStartRejectsNilReporter(t *testing.T) {
    if err := NewServer("127.0.0.1:0", nil).Start(context.Background(), nil); !errors.Is(err, ErrNilReporter) {
        t.Fatalf("err=%v", err)
    }
}
