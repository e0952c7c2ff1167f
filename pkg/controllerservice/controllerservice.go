// Package controllerservice is the typed facade over the top-level
// ControllerService interface.
package controllerservice

import (
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

type Callback interface {
    GetControllerServiceVersionReplyCB(version uint32)
    LightingResetControllerServiceReplyCB(rc lsf.ResponseCode)
    ControllerServiceLightingResetCB()
    ControllerServiceNameChangedCB(id, name string)
}

type NopCallback struct{}

var _ Callback = NopCallback{}

func (NopCallback) GetControllerServiceVersionReplyCB(uint32)             {}
func (NopCallback) LightingResetControllerServiceReplyCB(lsf.ResponseCode) {}
func (NopCallback) ControllerServiceLightingResetCB()                     {}
func (NopCallback) ControllerServiceNameChangedCB(string, string)         {}

type Manager struct {
    c  *client.Client
    cb Callback
}

var _ client.Manager = (*Manager)(nil)

func NewManager(c *client.Client, cb Callback) (*Manager, error) {
    if cb == nil { return nil, client.ErrNilCallback }
    m := &Manager{c: c, cb: cb}
    if err := c.Register(m); err != nil { return nil, err }
    return m, nil
}

func (m *Manager) EntityType() client.EntityType { return client.EntityControllerService }

func (m *Manager) SignalHandlers() []client.SignalHandler {
    return []client.SignalHandler{
        client.NoArgsSignal(lsf.ControllerServiceInterface, "ControllerServiceLightingReset", m.cb.ControllerServiceLightingResetCB),
        client.NameChangedSignal(lsf.ControllerServiceInterface, "ControllerServiceNameChanged", m.cb.ControllerServiceNameChangedCB),
    }
}

func (m *Manager) Close() { m.c.Unregister(client.EntityControllerService) }

func (m *Manager) GetControllerServiceVersion() client.Status {
    return m.c.CallAsync(lsf.ControllerServiceInterface, "GetControllerServiceVersion", client.OnUint32(m.cb.GetControllerServiceVersionReplyCB))
}

// LightingResetControllerService resets every lamp, group, preset and scene
// on the controller service.
func (m *Manager) LightingResetControllerService() client.Status {
    return m.c.CallAsync(lsf.ControllerServiceInterface, "LightingResetControllerService", client.OnUint32(func(v uint32) {
        m.cb.LightingResetControllerServiceReplyCB(lsf.ResponseCode(v))
    }))
}
