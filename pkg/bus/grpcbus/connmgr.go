package grpcbus

import (
    "context"
    "sync"
    "time"

    "go.uber.org/zap"
    "google.golang.org/grpc"

    "github.com/amirimatin/go-lsf/pkg/observability/metrics"
)

type dialFunc func(ctx context.Context, target string) (*grpc.ClientConn, error)

// connManager shares one connection per controller service address across
// sessions and calls, closing connections that stay unreferenced past ttl.
type connManager struct {
    mu      sync.Mutex
    conns   map[string]*managedConn
    ttl     time.Duration
    dial    dialFunc
    log     *zap.Logger
    closing chan struct{}
    done    chan struct{}
}

type managedConn struct {
    cc       *grpc.ClientConn
    lastUsed time.Time
    ref      int
}

func newConnManager(ttl time.Duration, dial dialFunc, log *zap.Logger) *connManager {
    if ttl <= 0 { ttl = 30 * time.Second }
    m := &connManager{ttl: ttl, dial: dial, log: log, conns: make(map[string]*managedConn), closing: make(chan struct{}), done: make(chan struct{})}
    go m.janitor()
    return m
}

// get returns a connection for target and a release func to call when the
// caller no longer needs it.
func (m *connManager) get(ctx context.Context, target string) (*grpc.ClientConn, func(), error) {
    m.mu.Lock()
    if mc, ok := m.conns[target]; ok {
        mc.ref++
        mc.lastUsed = time.Now()
        cc := mc.cc
        m.mu.Unlock()
        metrics.GRPCConnReuse.Inc()
        return cc, func() { m.release(target) }, nil
    }
    m.mu.Unlock()

    cc, err := m.dial(ctx, target)
    if err != nil { return nil, func() {}, err }

    m.mu.Lock()
    defer m.mu.Unlock()
    if existing, ok := m.conns[target]; ok {
        // lost a dial race
        _ = cc.Close()
        existing.ref++
        existing.lastUsed = time.Now()
        metrics.GRPCConnReuse.Inc()
        return existing.cc, func() { m.release(target) }, nil
    }
    m.conns[target] = &managedConn{cc: cc, lastUsed: time.Now(), ref: 1}
    metrics.GRPCConnDials.Inc()
    metrics.GRPCConnActive.Inc()
    m.log.Debug("dialed controller service", zap.String("target", target))
    return cc, func() { m.release(target) }, nil
}

func (m *connManager) release(target string) {
    m.mu.Lock()
    if mc, ok := m.conns[target]; ok {
        if mc.ref > 0 { mc.ref-- }
        mc.lastUsed = time.Now()
    }
    m.mu.Unlock()
}

func (m *connManager) close() {
    close(m.closing)
    <-m.done
    m.mu.Lock()
    for k, mc := range m.conns {
        _ = mc.cc.Close()
        metrics.GRPCConnActive.Dec()
        delete(m.conns, k)
    }
    m.mu.Unlock()
}

func (m *connManager) janitor() {
    defer close(m.done)
    ticker := time.NewTicker(m.ttl / 2)
    defer ticker.Stop()
    for {
        select {
        case <-m.closing:
            return
        case <-ticker.C:
            cutoff := time.Now().Add(-m.ttl)
            m.mu.Lock()
            for addr, mc := range m.conns {
                if mc.ref == 0 && mc.lastUsed.Before(cutoff) {
                    _ = mc.cc.Close()
                    metrics.GRPCConnEvictions.Inc()
                    metrics.GRPCConnActive.Dec()
                    delete(m.conns, addr)
                }
            }
            m.mu.Unlock()
        }
    }
}
