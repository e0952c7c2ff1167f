// Package tlsconfig builds tls.Config values for the controller bus and the
// admin endpoint from certificate files.
package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"
)

var (
    ErrNoKeyPair = errors.New("tlsconfig: cert and key files required")
    ErrBadCA     = errors.New("tlsconfig: no certificates found in CA file")
)

type Options struct {
    Enable             bool   `mapstructure:"enable"`
    CAFile             string `mapstructure:"ca"`
    CertFile           string `mapstructure:"cert"`
    KeyFile            string `mapstructure:"key"`
    InsecureSkipVerify bool   `mapstructure:"skip_verify"`
    ServerName         string `mapstructure:"server_name"`
    // Reload re-reads the key pair from disk at most this often, so
    // certificates can be rotated in place. Zero loads them once.
    Reload time.Duration `mapstructure:"reload"`
}

// Server returns a server config, or nil when TLS is disabled. A CA file
// turns on client certificate verification.
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    if o.CertFile == "" || o.KeyFile == "" { return nil, ErrNoKeyPair }
    kp, err := o.keyPair()
    if err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return kp.get() }}
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    return cfg, nil
}

// Client returns a client config, or nil when TLS is disabled. The key pair
// is optional and only sent when the server asks for one.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: o.InsecureSkipVerify, ServerName: o.ServerName} //nolint:gosec
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    if o.CertFile != "" && o.KeyFile != "" {
        kp, err := o.keyPair()
        if err != nil { return nil, err }
        cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) { return kp.get() }
    }
    return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
    pem, err := os.ReadFile(path)
    if err != nil { return nil, err }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(pem) { return nil, fmt.Errorf("%w: %s", ErrBadCA, path) }
    return pool, nil
}

type keyPair struct {
    cert, key string
    ttl       time.Duration

    mu     sync.Mutex
    cached *tls.Certificate
    loaded time.Time
}

// keyPair loads the pair once up front so a bad path fails construction
// rather than the first handshake.
func (o Options) keyPair() (*keyPair, error) {
    kp := &keyPair{cert: o.CertFile, key: o.KeyFile, ttl: o.Reload}
    if _, err := kp.get(); err != nil { return nil, err }
    return kp, nil
}

func (kp *keyPair) get() (*tls.Certificate, error) {
    kp.mu.Lock()
    defer kp.mu.Unlock()
    if kp.cached != nil && (kp.ttl <= 0 || time.Since(kp.loaded) < kp.ttl) { return kp.cached, nil }
    cert, err := tls.LoadX509KeyPair(kp.cert, kp.key)
    if err != nil {
        // keep serving the last good pair during a partial rotation
        if kp.cached != nil { return kp.cached, nil }
        return nil, err
    }
    kp.cached, kp.loaded = &cert, time.Now()
    return kp.cached, nil
}
