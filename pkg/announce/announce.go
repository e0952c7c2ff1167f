// Package announce defines how controller service announcements reach a
// bus. Implementations live in sub-packages.
package announce

import (
    "context"

    "github.com/amirimatin/go-lsf/pkg/bus"
)

// Sink receives announcements. Both functions may be called from any
// goroutine and must not block.
type Sink struct {
    Announce func(a bus.Announcement)
    Lost     func(deviceID string)
}

// Source watches for controller services and reports them to a Sink until
// stopped.
type Source interface {
    Start(ctx context.Context, sink Sink) error
    Stop() error
}
