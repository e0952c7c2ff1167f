package client

import "errors"

var (
    ErrNilBus             = errors.New("client: nil Bus")
    ErrNilCallback        = errors.New("client: nil Callback")
    ErrManagerRegistered  = errors.New("client: manager already registered for entity type")
    ErrInvalidCallTimeout = errors.New("client: negative call timeout")
)
