package client

import (
    "context"
    "sync"
    "time"
)

type EventType string

const (
    EventConnected     EventType = "connected"
    EventConnectFailed EventType = "connect_failed"
    EventDisconnected  EventType = "disconnected"
    EventError         EventType = "error"
    EventCandidate     EventType = "candidate"
    EventCandidateLost EventType = "candidate_lost"
)

// Event mirrors the lifecycle callbacks for consumers that prefer a channel.
// Only the fields relevant to Type are populated.
type Event struct {
    Type       EventType
    At         time.Time
    DeviceID   string
    DeviceName string
    Errors     []ErrorCode
}

// Subscribe returns a channel of events. The returned channel is buffered and
// closed automatically when ctx is done. Events may be dropped if the consumer
// is too slow (best-effort delivery) to avoid back-pressuring internals.
func (c *Client) Subscribe(ctx context.Context) <-chan Event {
    n := c.opts.EventBuffer
    if n <= 0 { n = 64 }
    ch := make(chan Event, n)
    c.eb.add(ch)
    go func() {
        <-ctx.Done()
        c.eb.remove(ch)
        close(ch)
    }()
    return ch
}

// internal event bus
type eventBus struct {
    mu   sync.Mutex
    subs map[chan Event]struct{}
}

func (e *eventBus) add(ch chan Event) {
    e.mu.Lock()
    if e.subs == nil { e.subs = make(map[chan Event]struct{}) }
    e.subs[ch] = struct{}{}
    e.mu.Unlock()
}

func (e *eventBus) remove(ch chan Event) {
    e.mu.Lock()
    if e.subs != nil { delete(e.subs, ch) }
    e.mu.Unlock()
}

func (e *eventBus) publish(ev Event) {
    if ev.At.IsZero() { ev.At = time.Now() }
    e.mu.Lock()
    for ch := range e.subs {
        select {
        case ch <- ev:
        default:
            // drop if receiver is slow
        }
    }
    e.mu.Unlock()
}
