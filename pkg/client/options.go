package client

import (
    "time"

    "go.uber.org/zap"
)

// DefaultCallTimeout bounds how long a dispatched call waits for its reply.
const DefaultCallTimeout = 25 * time.Second

// Options configures a Client. The zero value is usable.
type Options struct {
    // Logger is used for operational messages. Nil disables logging.
    Logger *zap.Logger
    // CallTimeout is passed to the bus for every method call. Zero means
    // DefaultCallTimeout.
    CallTimeout time.Duration
    // EventBuffer sizes channels returned by Subscribe. Zero means 64.
    EventBuffer int
}

// Validate performs a minimal validation of Options.
func (o Options) Validate() error {
    if o.CallTimeout < 0 {
        return ErrInvalidCallTimeout
    }
    return nil
}
