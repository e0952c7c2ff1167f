package admin

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/amirimatin/go-lsf/pkg/client"
)

// Client reads the admin endpoint of a running process, retrying transient
// failures with backoff.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
    attempts  int
}

func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr, attempts: 3}
}

// UseTLS switches to https with cfg when non-nil.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    c.transport.TLSClientConfig = cfg
    c.isTLS = cfg != nil
    return c
}

func (c *Client) url(addr, path string) string {
    scheme := "http"
    if c.isTLS { scheme = "https" }
    return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}

// Get fetches path from addr and returns the body of a 200 response.
func (c *Client) Get(ctx context.Context, addr, path string) ([]byte, error) {
    var lastErr error
    for attempt := 0; attempt < c.attempts; attempt++ {
        body, err := c.get(ctx, c.url(addr, path))
        if err == nil { return body, nil }
        lastErr = err
        select {
        case <-ctx.Done():
            return nil, lastErr
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return nil, lastErr
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return nil, err }
    resp, err := c.httpc.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    b, err := io.ReadAll(resp.Body)
    if err != nil { return nil, err }
    if resp.StatusCode != http.StatusOK { return nil, fmt.Errorf("admin: %s: status %d: %s", url, resp.StatusCode, b) }
    return b, nil
}

// GetStatus fetches and decodes /status.
func (c *Client) GetStatus(ctx context.Context, addr string) (*client.ClientStatus, error) {
    b, err := c.Get(ctx, addr, "/status")
    if err != nil { return nil, err }
    var st client.ClientStatus
    if err := json.Unmarshal(b, &st); err != nil { return nil, fmt.Errorf("admin: decode status: %w", err) }
    return &st, nil
}
