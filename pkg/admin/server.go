// Package admin serves a small HTTP endpoint next to a running client:
// status, health, readiness and Prometheus metrics.
package admin

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "net"
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"

    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/internal/logutil"
    "github.com/amirimatin/go-lsf/pkg/observability/metrics"
    "github.com/amirimatin/go-lsf/pkg/observability/tracing"
)

var (
    ErrNilReporter = errors.New("admin: nil status reporter")
    ErrStarted     = errors.New("admin: already started")
)

// Reporter is implemented by *client.Client.
type Reporter interface {
    Status() *client.ClientStatus
}

var _ Reporter = (*client.Client)(nil)

type Server struct {
    bind   string
    log    *zap.Logger
    tlsCfg *tls.Config

    mu  sync.Mutex
    srv *http.Server
    lis net.Listener
}

// NewServer binds to the given TCP address (e.g. ":17947").
func NewServer(bind string, logger *zap.Logger) *Server {
    return &Server{bind: bind, log: logutil.Named(logger, "admin")}
}

// UseTLS serves HTTPS with cfg when non-nil.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// Handler returns the admin routes for r.
func Handler(r Reporter) http.Handler {
    mux := http.NewServeMux()
    mux.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
        if req.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        _, end := tracing.StartSpan(req.Context(), "admin.status")
        defer end()
        w.Header().Set("Content-Type", "application/json")
        _ = json.NewEncoder(w).Encode(r.Status())
    })
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
        if req.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    // ready means joined to a controller service
    mux.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
        if req.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        st := r.Status().State
        if st != client.StateConnected {
            http.Error(w, st.String(), http.StatusServiceUnavailable)
            return
        }
        _, _ = w.Write([]byte(st.String()))
    })
    mux.Handle("/metrics", promhttp.Handler())
    return mux
}

// Start serves r until ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context, r Reporter) error {
    if r == nil { return ErrNilReporter }
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.srv != nil { return ErrStarted }
    metrics.Register()

    ln, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    if s.tlsCfg != nil { ln = tls.NewListener(ln, s.tlsCfg) }
    srv := &http.Server{Handler: Handler(r), ReadHeaderTimeout: 5 * time.Second}
    s.srv, s.lis = srv, ln

    go func() {
        <-ctx.Done()
        _ = s.Stop(context.Background())
    }()
    go func() {
        if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
            s.log.Error("server error", zap.Error(err))
        }
    }()
    s.log.Info("admin listening", zap.String("addr", ln.Addr().String()), zap.Bool("tls", s.tlsCfg != nil))
    return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

// Stop shuts the server down, waiting up to two seconds for requests.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv, s.lis = nil, nil
    s.mu.Unlock()
    if srv == nil { return nil }
    c, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    return srv.Shutdown(c)
}
