// Package static announces a fixed set of controller services, for
// deployments where the controller addresses are known up front.
package static

import (
    "context"
    "errors"
    "sync"

    "github.com/amirimatin/go-lsf/pkg/announce"
    "github.com/amirimatin/go-lsf/pkg/bus"
)

var ErrStarted = errors.New("static: already started")

// Source replays its announcements to the sink on Start and forwards later
// Announce and Withdraw calls while running.
type Source struct {
    mu      sync.Mutex
    entries map[string]bus.Announcement
    order   []string
    sink    *announce.Sink
}

var _ announce.Source = (*Source)(nil)

func New(as ...bus.Announcement) *Source {
    s := &Source{entries: make(map[string]bus.Announcement)}
    for _, a := range as { s.put(a) }
    return s
}

func (s *Source) put(a bus.Announcement) {
    if _, ok := s.entries[a.DeviceID]; !ok { s.order = append(s.order, a.DeviceID) }
    s.entries[a.DeviceID] = a
}

func (s *Source) Start(_ context.Context, sink announce.Sink) error {
    s.mu.Lock()
    if s.sink != nil {
        s.mu.Unlock()
        return ErrStarted
    }
    s.sink = &sink
    replay := make([]bus.Announcement, 0, len(s.order))
    for _, id := range s.order { replay = append(replay, s.entries[id]) }
    s.mu.Unlock()
    if sink.Announce != nil {
        for _, a := range replay { sink.Announce(a) }
    }
    return nil
}

// Announce adds or replaces a controller service.
func (s *Source) Announce(a bus.Announcement) {
    s.mu.Lock()
    s.put(a)
    sink := s.sink
    s.mu.Unlock()
    if sink != nil && sink.Announce != nil { sink.Announce(a) }
}

// Withdraw removes a controller service, reporting it lost when running.
func (s *Source) Withdraw(deviceID string) {
    s.mu.Lock()
    _, ok := s.entries[deviceID]
    delete(s.entries, deviceID)
    for i, id := range s.order {
        if id == deviceID {
            s.order = append(s.order[:i], s.order[i+1:]...)
            break
        }
    }
    sink := s.sink
    s.mu.Unlock()
    if ok && sink != nil && sink.Lost != nil { sink.Lost(deviceID) }
}

func (s *Source) Stop() error {
    s.mu.Lock()
    s.sink = nil
    s.mu.Unlock()
    return nil
}
