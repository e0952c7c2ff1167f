package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    Candidates = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "lsf_client",
        Name:      "candidates",
        Help:      "Number of announced controller services currently known",
    })

    Connected = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "lsf_client",
        Name:      "connected",
        Help:      "1 while a controller service session is active, else 0",
    })

    LeaderChanges = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Name:      "leader_changes_total",
        Help:      "Total number of sessions established with a new leader",
    })

    JoinAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Name:      "join_attempts_total",
        Help:      "Session join attempts by result",
    }, []string{"result"})

    SessionsLost = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Name:      "sessions_lost_total",
        Help:      "Total number of sessions lost while connected",
    })

    PendingCalls = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "lsf_client",
        Name:      "pending_calls",
        Help:      "Method calls awaiting a reply",
    })

    Calls = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Name:      "calls_total",
        Help:      "Method calls by terminal outcome",
    }, []string{"interface", "outcome"})

    Signals = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Name:      "signals_total",
        Help:      "Inbound signals by outcome",
    }, []string{"interface", "outcome"})

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Subsystem: "grpc_conn",
        Name:      "dials_total",
        Help:      "Total number of new gRPC connections dialed",
    })
    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Subsystem: "grpc_conn",
        Name:      "reuse_total",
        Help:      "Total number of gRPC connection reuses from cache",
    })
    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "lsf_client",
        Subsystem: "grpc_conn",
        Name:      "evictions_total",
        Help:      "Total number of cached gRPC connections evicted",
    })
    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "lsf_client",
        Subsystem: "grpc_conn",
        Name:      "active",
        Help:      "Number of active cached gRPC connections",
    })

    // Host side (controller service)
    HostSessions = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "lsf_service",
        Name:      "sessions",
        Help:      "Sessions currently joined to this controller service",
    })
    HostSignalsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "lsf_service",
        Name:      "signals_sent_total",
        Help:      "Signals delivered to session subscribers",
    }, []string{"interface"})
    HostCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "lsf_service",
        Name:      "calls_total",
        Help:      "Method calls handled by result",
    }, []string{"interface", "result"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(Candidates)
        prometheus.MustRegister(Connected)
        prometheus.MustRegister(LeaderChanges)
        prometheus.MustRegister(JoinAttempts)
        prometheus.MustRegister(SessionsLost)
        prometheus.MustRegister(PendingCalls)
        prometheus.MustRegister(Calls)
        prometheus.MustRegister(Signals)
        prometheus.MustRegister(GRPCConnDials)
        prometheus.MustRegister(GRPCConnReuse)
        prometheus.MustRegister(GRPCConnEvictions)
        prometheus.MustRegister(GRPCConnActive)
        prometheus.MustRegister(HostSessions)
        prometheus.MustRegister(HostSignalsSent)
        prometheus.MustRegister(HostCalls)
    })
}
