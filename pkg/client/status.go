package client

import (
    "fmt"

    "github.com/amirimatin/go-lsf/pkg/election"
)

// Status is the synchronous outcome of submitting a call.
type Status int

const (
    StatusOK Status = iota
    StatusErrNotConnected
    StatusErrFailure
    StatusErrRetry
)

func (s Status) String() string {
    switch s {
    case StatusOK:
        return "CONTROLLER_CLIENT_OK"
    case StatusErrNotConnected:
        return "CONTROLLER_CLIENT_ERR_NOT_CONNECTED"
    case StatusErrFailure:
        return "CONTROLLER_CLIENT_ERR_FAILURE"
    case StatusErrRetry:
        return "CONTROLLER_CLIENT_ERR_RETRY"
    }
    return fmt.Sprintf("CONTROLLER_CLIENT_STATUS(%d)", int(s))
}

// ErrorCode reports transport and internal failures through
// Callback.ControllerClientErrorCB.
type ErrorCode int

const (
    ErrorNone ErrorCode = iota
    ErrorRegisteringSignalHandlers
    ErrorNoActiveControllerServiceFound
    ErrorMethodCallTimeout
    ErrorIrrecoverable
    ErrorDisconnectedFromBus
    ErrorClientExiting
    ErrorMessageWithInvalidArgs
)

func (e ErrorCode) String() string {
    switch e {
    case ErrorNone:
        return "ERROR_NONE"
    case ErrorRegisteringSignalHandlers:
        return "ERROR_REGISTERING_SIGNAL_HANDLERS"
    case ErrorNoActiveControllerServiceFound:
        return "ERROR_NO_ACTIVE_CONTROLLER_SERVICE_FOUND"
    case ErrorMethodCallTimeout:
        return "ERROR_ALLJOYN_METHOD_CALL_TIMEOUT"
    case ErrorIrrecoverable:
        return "ERROR_IRRECOVERABLE"
    case ErrorDisconnectedFromBus:
        return "ERROR_DISCONNECTED_FROM_BUS"
    case ErrorClientExiting:
        return "ERROR_CONTROLLER_CLIENT_EXITING"
    case ErrorMessageWithInvalidArgs:
        return "ERROR_MESSAGE_WITH_INVALID_ARGS"
    }
    return fmt.Sprintf("ERROR_CODE(%d)", int(e))
}

// State is the session lifecycle state.
type State int32

const (
    StateStopped State = iota
    StateIdle
    StateConnecting
    StateConnected
    StateStopping
)

func (s State) String() string {
    switch s {
    case StateStopped:
        return "stopped"
    case StateIdle:
        return "idle"
    case StateConnecting:
        return "connecting"
    case StateConnected:
        return "connected"
    case StateStopping:
        return "stopping"
    }
    return fmt.Sprintf("state(%d)", int32(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
    for v := StateStopped; v <= StateStopping; v++ {
        if v.String() == string(b) {
            *s = v
            return nil
        }
    }
    return fmt.Errorf("client: unknown state %q", b)
}

// LeaderInfo describes the controller service the client is joined to.
type LeaderInfo struct {
    DeviceID   string        `json:"deviceId"`
    DeviceName string        `json:"deviceName"`
    Rank       election.Rank `json:"rank"`
    BusAddress string        `json:"busAddress"`
    SessionID  uint32        `json:"sessionId"`
}

// ClientStatus is a JSON-serializable snapshot of the client suitable for
// status endpoints and tooling.
type ClientStatus struct {
    State        State            `json:"state"`
    Leader       *LeaderInfo      `json:"leader,omitempty"`
    Joining      string           `json:"joining,omitempty"`
    Candidates   []election.Entry `json:"candidates"`
    PendingCalls int              `json:"pendingCalls"`
    Managers     []string         `json:"managers"`
}
