// Package bus defines the transport capability the controller client runs
// on: announcement delivery, session join/leave/loss, asynchronous method
// calls and signal delivery. Implementations live in sub-packages.
package bus

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/amirimatin/go-lsf/pkg/election"
)

var (
    ErrNotStarted  = errors.New("bus: not started")
    ErrNoSession   = errors.New("bus: unknown session")
    ErrJoinRefused = errors.New("bus: session join refused")
    ErrTimeout     = errors.New("bus: method call timed out")
)

// SessionID identifies a joined session on the local side of the bus.
type SessionID uint32

// Announcement advertises a controller service and how to join it.
type Announcement struct {
    DeviceID   string        `json:"deviceId"`
    DeviceName string        `json:"deviceName"`
    Rank       election.Rank `json:"rank"`
    Port       uint16        `json:"port"`
    BusAddress string        `json:"busAddress"`
}

// Service is the join target derived from an announcement.
type Service struct {
    DeviceID   string
    BusAddress string
    Port       uint16
}

// Call is one method invocation. Args are D-Bus representable values.
type Call struct {
    Interface string
    Member    string
    Args      []interface{}
}

func (c Call) String() string { return fmt.Sprintf("%s.%s", c.Interface, c.Member) }

// Reply is the terminal outcome of a Call: decoded arguments, or Err when
// the call failed or timed out.
type Reply struct {
    Args []interface{}
    Err  error
}

type Signal struct {
    Interface string
    Member    string
    Args      []interface{}
}

// Handler receives bus events. Methods are invoked from bus goroutines and
// must not block.
type Handler interface {
    HandleAnnouncement(a Announcement)
    // HandleAnnouncementLost reports that a device stopped announcing.
    HandleAnnouncementLost(deviceID string)
    HandleSessionLost(id SessionID, reason error)
    HandleSignal(id SessionID, s Signal)
}

// Bus is the capability consumed by the controller client.
type Bus interface {
    // Start begins delivering events to h.
    Start(ctx context.Context, h Handler) error
    // JoinSessionAsync starts joining svc and reports the outcome through
    // done exactly once, from another goroutine. A non-nil return means done
    // will not be called.
    JoinSessionAsync(ctx context.Context, svc Service, done func(SessionID, error)) error
    // LeaveSession ends a session. No HandleSessionLost follows for it.
    LeaveSession(id SessionID) error
    // CallAsync dispatches c on session id. reply is invoked exactly once
    // unless CallAsync returns an error.
    CallAsync(id SessionID, c Call, timeout time.Duration, reply func(Reply)) error
    Stop() error
}
