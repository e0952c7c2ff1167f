// Package preset is the typed facade over the Preset interface, including
// the controller-wide default lamp state.
package preset

import (
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

type Callback interface {
    GetDefaultLampStateReplyCB(rc lsf.ResponseCode, state lsf.LampState)
    SetDefaultLampStateReplyCB(rc lsf.ResponseCode)
    GetAllPresetIDsReplyCB(rc lsf.ResponseCode, ids []string)
    GetPresetNameReplyCB(rc lsf.ResponseCode, id, language, name string)
    SetPresetNameReplyCB(rc lsf.ResponseCode, id, language string)
    CreatePresetReplyCB(rc lsf.ResponseCode, id string)
    UpdatePresetReplyCB(rc lsf.ResponseCode, id string)
    DeletePresetReplyCB(rc lsf.ResponseCode, id string)
    GetPresetReplyCB(rc lsf.ResponseCode, id string, state lsf.LampState)

    DefaultLampStateChangedCB()
    PresetsNameChangedCB(ids []string)
    PresetsCreatedCB(ids []string)
    PresetsUpdatedCB(ids []string)
    PresetsDeletedCB(ids []string)
}

type NopCallback struct{}

var _ Callback = NopCallback{}

func (NopCallback) GetDefaultLampStateReplyCB(lsf.ResponseCode, lsf.LampState)    {}
func (NopCallback) SetDefaultLampStateReplyCB(lsf.ResponseCode)                   {}
func (NopCallback) GetAllPresetIDsReplyCB(lsf.ResponseCode, []string)             {}
func (NopCallback) GetPresetNameReplyCB(lsf.ResponseCode, string, string, string) {}
func (NopCallback) SetPresetNameReplyCB(lsf.ResponseCode, string, string)         {}
func (NopCallback) CreatePresetReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) UpdatePresetReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) DeletePresetReplyCB(lsf.ResponseCode, string)                  {}
func (NopCallback) GetPresetReplyCB(lsf.ResponseCode, string, lsf.LampState)      {}
func (NopCallback) DefaultLampStateChangedCB()                                    {}
func (NopCallback) PresetsNameChangedCB([]string)                                 {}
func (NopCallback) PresetsCreatedCB([]string)                                     {}
func (NopCallback) PresetsUpdatedCB([]string)                                     {}
func (NopCallback) PresetsDeletedCB([]string)                                     {}

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

func (m *Manager) EntityType() client.EntityType { return client.EntityPreset }

func (m *Manager) SignalHandlers() []client.SignalHandler {
    return []client.SignalHandler{
        client.NoArgsSignal(lsf.PresetInterface, "DefaultLampStateChanged", m.cb.DefaultLampStateChangedCB),
        client.IDListSignal(lsf.PresetInterface, "PresetsNameChanged", m.cb.PresetsNameChangedCB),
        client.IDListSignal(lsf.PresetInterface, "PresetsCreated", m.cb.PresetsCreatedCB),
        client.IDListSignal(lsf.PresetInterface, "PresetsUpdated", m.cb.PresetsUpdatedCB),
        client.IDListSignal(lsf.PresetInterface, "PresetsDeleted", m.cb.PresetsDeletedCB),
    }
}

func (m *Manager) Close() { m.c.Unregister(client.EntityPreset) }

func (m *Manager) call(member string, h client.ReplyHandler, args ...interface{}) client.Status {
    return m.c.CallAsync(lsf.PresetInterface, member, h, args...)
}

func (m *Manager) GetDefaultLampState() client.Status {
    return m.call("GetDefaultLampState", client.OnCustom(func(args []interface{}) error {
        var (
            rc lsf.ResponseCode
            st lsf.LampState
        )
        if err := wire.Store(args, &rc, &st); err != nil { return err }
        m.cb.GetDefaultLampStateReplyCB(rc, st)
        return nil
    }))
}

func (m *Manager) SetDefaultLampState(state lsf.LampState) client.Status {
    return m.call("SetDefaultLampState", client.OnUint32(func(v uint32) {
        m.cb.SetDefaultLampStateReplyCB(lsf.ResponseCode(v))
    }), state)
}

func (m *Manager) GetAllPresetIDs() client.Status {
    return m.call("GetAllPresetIDs", client.OnIDList(m.cb.GetAllPresetIDsReplyCB))
}

func (m *Manager) GetPresetName(id, language string) client.Status {
    return m.call("GetPresetName", client.OnIDLanguageName(m.cb.GetPresetNameReplyCB), id, language)
}

func (m *Manager) SetPresetName(id, name, language string) client.Status {
    return m.call("SetPresetName", client.OnIDName(m.cb.SetPresetNameReplyCB), id, name, language)
}

func (m *Manager) CreatePreset(state lsf.LampState, name, language string) client.Status {
    return m.call("CreatePreset", client.OnID(m.cb.CreatePresetReplyCB), state, name, language)
}

func (m *Manager) UpdatePreset(id string, state lsf.LampState) client.Status {
    return m.call("UpdatePreset", client.OnID(m.cb.UpdatePresetReplyCB), id, state)
}

func (m *Manager) DeletePreset(id string) client.Status {
    return m.call("DeletePreset", client.OnID(m.cb.DeletePresetReplyCB), id)
}

func (m *Manager) GetPreset(id string) client.Status {
    return m.call("GetPreset", client.OnCustom(func(args []interface{}) error {
        var (
            rc  lsf.ResponseCode
            pid string
            st  lsf.LampState
        )
        if err := wire.Store(args, &rc, &pid, &st); err != nil { return err }
        m.cb.GetPresetReplyCB(rc, pid, st)
        return nil
    }), id)
}

// GetPresetDataSet requests the preset state and then its name.
func (m *Manager) GetPresetDataSet(id, language string) client.Status {
    if st := m.GetPreset(id); st != client.StatusOK { return st }
    return m.GetPresetName(id, language)
}
