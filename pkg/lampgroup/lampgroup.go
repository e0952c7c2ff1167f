// Package lampgroup is the typed facade over the LampGroup interface.
package lampgroup

import (
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

type Callback interface {
    GetAllLampGroupIDsReplyCB(rc lsf.ResponseCode, ids []string)
    GetLampGroupNameReplyCB(rc lsf.ResponseCode, id, language, name string)
    SetLampGroupNameReplyCB(rc lsf.ResponseCode, id, language string)
    CreateLampGroupReplyCB(rc lsf.ResponseCode, id string)
    UpdateLampGroupReplyCB(rc lsf.ResponseCode, id string)
    DeleteLampGroupReplyCB(rc lsf.ResponseCode, id string)
    GetLampGroupReplyCB(rc lsf.ResponseCode, id string, group lsf.LampGroup)
    TransitionLampGroupStateReplyCB(rc lsf.ResponseCode, id string)
    PulseLampGroupWithStateReplyCB(rc lsf.ResponseCode, id string)
    PulseLampGroupWithPresetReplyCB(rc lsf.ResponseCode, id string)
    TransitionLampGroupStateToPresetReplyCB(rc lsf.ResponseCode, id string)
    TransitionLampGroupStateFieldReplyCB(rc lsf.ResponseCode, id, field string)
    ResetLampGroupStateReplyCB(rc lsf.ResponseCode, id string)
    ResetLampGroupStateFieldReplyCB(rc lsf.ResponseCode, id, field string)

    LampGroupsNameChangedCB(ids []string)
    LampGroupsCreatedCB(ids []string)
    LampGroupsUpdatedCB(ids []string)
    LampGroupsDeletedCB(ids []string)
}

type NopCallback struct{}

var _ Callback = NopCallback{}

func (NopCallback) GetAllLampGroupIDsReplyCB(lsf.ResponseCode, []string)                {}
func (NopCallback) GetLampGroupNameReplyCB(lsf.ResponseCode, string, string, string)    {}
func (NopCallback) SetLampGroupNameReplyCB(lsf.ResponseCode, string, string)            {}
func (NopCallback) CreateLampGroupReplyCB(lsf.ResponseCode, string)                     {}
func (NopCallback) UpdateLampGroupReplyCB(lsf.ResponseCode, string)                     {}
func (NopCallback) DeleteLampGroupReplyCB(lsf.ResponseCode, string)                     {}
func (NopCallback) GetLampGroupReplyCB(lsf.ResponseCode, string, lsf.LampGroup)         {}
func (NopCallback) TransitionLampGroupStateReplyCB(lsf.ResponseCode, string)            {}
func (NopCallback) PulseLampGroupWithStateReplyCB(lsf.ResponseCode, string)             {}
func (NopCallback) PulseLampGroupWithPresetReplyCB(lsf.ResponseCode, string)            {}
func (NopCallback) TransitionLampGroupStateToPresetReplyCB(lsf.ResponseCode, string)    {}
func (NopCallback) TransitionLampGroupStateFieldReplyCB(lsf.ResponseCode, string, string) {}
func (NopCallback) ResetLampGroupStateReplyCB(lsf.ResponseCode, string)                 {}
func (NopCallback) ResetLampGroupStateFieldReplyCB(lsf.ResponseCode, string, string)    {}
func (NopCallback) LampGroupsNameChangedCB([]string)                                    {}
func (NopCallback) LampGroupsCreatedCB([]string)                                        {}
func (NopCallback) LampGroupsUpdatedCB([]string)                                        {}
func (NopCallback) LampGroupsDeletedCB([]string)                                        {}

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

func (m *Manager) EntityType() client.EntityType { return client.EntityLampGroup }

func (m *Manager) SignalHandlers() []client.SignalHandler {
    return []client.SignalHandler{
        client.IDListSignal(lsf.LampGroupInterface, "LampGroupsNameChanged", m.cb.LampGroupsNameChangedCB),
        client.IDListSignal(lsf.LampGroupInterface, "LampGroupsCreated", m.cb.LampGroupsCreatedCB),
        client.IDListSignal(lsf.LampGroupInterface, "LampGroupsUpdated", m.cb.LampGroupsUpdatedCB),
        client.IDListSignal(lsf.LampGroupInterface, "LampGroupsDeleted", m.cb.LampGroupsDeletedCB),
    }
}

func (m *Manager) Close() { m.c.Unregister(client.EntityLampGroup) }

func (m *Manager) call(member string, h client.ReplyHandler, args ...interface{}) client.Status {
    return m.c.CallAsync(lsf.LampGroupInterface, member, h, args...)
}

func (m *Manager) GetAllLampGroupIDs() client.Status {
    return m.call("GetAllLampGroupIDs", client.OnIDList(m.cb.GetAllLampGroupIDsReplyCB))
}

func (m *Manager) GetLampGroupName(id, language string) client.Status {
    return m.call("GetLampGroupName", client.OnIDLanguageName(m.cb.GetLampGroupNameReplyCB), id, language)
}

func (m *Manager) SetLampGroupName(id, name, language string) client.Status {
    return m.call("SetLampGroupName", client.OnIDName(m.cb.SetLampGroupNameReplyCB), id, name, language)
}

// CreateLampGroup sends the group members followed by its name. The new
// group ID arrives on CreateLampGroupReplyCB.
func (m *Manager) CreateLampGroup(group lsf.LampGroup, name, language string) client.Status {
    args := append(group.Args(), name, language)
    return m.call("CreateLampGroup", client.OnID(m.cb.CreateLampGroupReplyCB), args...)
}

func (m *Manager) UpdateLampGroup(id string, group lsf.LampGroup) client.Status {
    args := append([]interface{}{id}, group.Args()...)
    return m.call("UpdateLampGroup", client.OnID(m.cb.UpdateLampGroupReplyCB), args...)
}

func (m *Manager) DeleteLampGroup(id string) client.Status {
    return m.call("DeleteLampGroup", client.OnID(m.cb.DeleteLampGroupReplyCB), id)
}

func (m *Manager) GetLampGroup(id string) client.Status {
    return m.call("GetLampGroup", client.OnCustom(func(args []interface{}) error {
        var (
            rc  lsf.ResponseCode
            gid string
            g   lsf.LampGroup
        )
        if err := wire.Store(args, &rc, &gid, &g.Lamps, &g.LampGroups); err != nil { return err }
        m.cb.GetLampGroupReplyCB(rc, gid, g)
        return nil
    }), id)
}

func (m *Manager) TransitionLampGroupState(id string, state lsf.LampState, period uint32) client.Status {
    return m.call("TransitionLampGroupState", client.OnID(m.cb.TransitionLampGroupStateReplyCB), id, state, period)
}

func (m *Manager) PulseLampGroupWithState(id string, from, to lsf.LampState, period, duration, pulses uint32) client.Status {
    return m.call("PulseLampGroupWithState", client.OnID(m.cb.PulseLampGroupWithStateReplyCB), id, from, to, period, duration, pulses)
}

func (m *Manager) PulseLampGroupWithPreset(id, fromPreset, toPreset string, period, duration, pulses uint32) client.Status {
    return m.call("PulseLampGroupWithPreset", client.OnID(m.cb.PulseLampGroupWithPresetReplyCB), id, fromPreset, toPreset, period, duration, pulses)
}

func (m *Manager) TransitionLampGroupStateToPreset(id, preset string, period uint32) client.Status {
    return m.call("TransitionLampGroupStateToPreset", client.OnID(m.cb.TransitionLampGroupStateToPresetReplyCB), id, preset, period)
}

func (m *Manager) TransitionLampGroupStateOnOffField(id string, onOff bool) client.Status {
    return m.transitionField(id, lsf.FieldOnOff, onOff, 0)
}

func (m *Manager) TransitionLampGroupStateHueField(id string, hue, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldHue, hue, period)
}

func (m *Manager) TransitionLampGroupStateSaturationField(id string, saturation, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldSaturation, saturation, period)
}

func (m *Manager) TransitionLampGroupStateBrightnessField(id string, brightness, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldBrightness, brightness, period)
}

func (m *Manager) TransitionLampGroupStateColorTempField(id string, colorTemp, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldColorTemp, colorTemp, period)
}

func (m *Manager) transitionField(id, field string, v interface{}, period uint32) client.Status {
    return m.call("TransitionLampGroupStateField", client.OnIDName(m.cb.TransitionLampGroupStateFieldReplyCB), id, field, wire.Variant(v), period)
}

func (m *Manager) ResetLampGroupState(id string) client.Status {
    return m.call("ResetLampGroupState", client.OnID(m.cb.ResetLampGroupStateReplyCB), id)
}

func (m *Manager) ResetLampGroupStateField(id, field string) client.Status {
    return m.call("ResetLampGroupStateField", client.OnIDName(m.cb.ResetLampGroupStateFieldReplyCB), id, field)
}

// GetLampGroupDataSet requests the group and then its name, stopping at the
// first request that is not submitted.
func (m *Manager) GetLampGroupDataSet(id, language string) client.Status {
    if st := m.GetLampGroup(id); st != client.StatusOK { return st }
    return m.GetLampGroupName(id, language)
}
