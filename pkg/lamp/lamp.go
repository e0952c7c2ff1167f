// Package lamp is the typed facade over the controller service Lamp
// interface.
package lamp

import (
    "github.com/godbus/dbus/v5"

    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

// Callback receives Lamp replies and signals.
type Callback interface {
    GetAllLampIDsReplyCB(rc lsf.ResponseCode, ids []string)
    GetLampSupportedLanguagesReplyCB(rc lsf.ResponseCode, id string, languages []string)
    GetLampManufacturerReplyCB(rc lsf.ResponseCode, id, language, manufacturer string)
    GetLampNameReplyCB(rc lsf.ResponseCode, id, language, name string)
    SetLampNameReplyCB(rc lsf.ResponseCode, id, language string)
    GetLampDetailsReplyCB(rc lsf.ResponseCode, id string, details lsf.LampDetails)
    GetLampParametersReplyCB(rc lsf.ResponseCode, id string, params lsf.LampParameters)
    GetLampParametersEnergyUsageMilliwattsFieldReplyCB(rc lsf.ResponseCode, id string, v uint32)
    GetLampParametersLumensFieldReplyCB(rc lsf.ResponseCode, id string, v uint32)
    GetLampStateReplyCB(rc lsf.ResponseCode, id string, state lsf.LampState)
    GetLampStateOnOffFieldReplyCB(rc lsf.ResponseCode, id string, onOff bool)
    GetLampStateHueFieldReplyCB(rc lsf.ResponseCode, id string, hue uint32)
    GetLampStateSaturationFieldReplyCB(rc lsf.ResponseCode, id string, saturation uint32)
    GetLampStateBrightnessFieldReplyCB(rc lsf.ResponseCode, id string, brightness uint32)
    GetLampStateColorTempFieldReplyCB(rc lsf.ResponseCode, id string, colorTemp uint32)
    TransitionLampStateReplyCB(rc lsf.ResponseCode, id string)
    PulseLampWithStateReplyCB(rc lsf.ResponseCode, id string)
    PulseLampWithPresetReplyCB(rc lsf.ResponseCode, id string)
    TransitionLampStateToPresetReplyCB(rc lsf.ResponseCode, id string)
    TransitionLampStateFieldReplyCB(rc lsf.ResponseCode, id, field string)
    ResetLampStateReplyCB(rc lsf.ResponseCode, id string)
    ResetLampStateFieldReplyCB(rc lsf.ResponseCode, id, field string)
    GetLampFaultsReplyCB(rc lsf.ResponseCode, id string, faults []uint32)
    ClearLampFaultReplyCB(rc lsf.ResponseCode, id string, fault uint32)
    GetLampServiceVersionReplyCB(rc lsf.ResponseCode, id string, version uint32)

    LampNameChangedCB(id, name string)
    LampStateChangedCB(id string, state lsf.LampState)
    LampsFoundCB(ids []string)
    LampsLostCB(ids []string)
}

// Manager issues Lamp calls through a client. Every method returns the
// submission status; the reply arrives on Callback.
type Manager struct {
    c  *client.Client
    cb Callback
}

var _ client.Manager = (*Manager)(nil)

// NewManager registers a Lamp manager with c. Only one may exist per client.
func NewManager(c *client.Client, cb Callback) (*Manager, error) {
    if cb == nil { return nil, client.ErrNilCallback }
    m := &Manager{c: c, cb: cb}
    if err := c.Register(m); err != nil { return nil, err }
    return m, nil
}

func (m *Manager) EntityType() client.EntityType { return client.EntityLamp }

func (m *Manager) SignalHandlers() []client.SignalHandler {
    return []client.SignalHandler{
        client.NameChangedSignal(lsf.LampInterface, "LampNameChanged", m.cb.LampNameChangedCB),
        client.StateChangedSignal(lsf.LampInterface, "LampStateChanged", m.cb.LampStateChangedCB),
        client.IDListSignal(lsf.LampInterface, "LampsFound", m.cb.LampsFoundCB),
        client.IDListSignal(lsf.LampInterface, "LampsLost", m.cb.LampsLostCB),
    }
}

// Close unregisters the manager.
func (m *Manager) Close() { m.c.Unregister(client.EntityLamp) }

func (m *Manager) call(member string, h client.ReplyHandler, args ...interface{}) client.Status {
    return m.c.CallAsync(lsf.LampInterface, member, h, args...)
}

func (m *Manager) GetAllLampIDs() client.Status {
    return m.call("GetAllLampIDs", client.OnIDList(m.cb.GetAllLampIDsReplyCB))
}

func (m *Manager) GetLampSupportedLanguages(id string) client.Status {
    return m.call("GetLampSupportedLanguages", client.OnCustom(func(args []interface{}) error {
        var (
            rc    lsf.ResponseCode
            lamp  string
            langs []string
        )
        if err := wire.Store(args, &rc, &lamp, &langs); err != nil { return err }
        m.cb.GetLampSupportedLanguagesReplyCB(rc, lamp, langs)
        return nil
    }), id)
}

func (m *Manager) GetLampManufacturer(id, language string) client.Status {
    return m.call("GetLampManufacturer", client.OnIDLanguageName(m.cb.GetLampManufacturerReplyCB), id, language)
}

func (m *Manager) GetLampName(id, language string) client.Status {
    return m.call("GetLampName", client.OnIDLanguageName(m.cb.GetLampNameReplyCB), id, language)
}

func (m *Manager) SetLampName(id, name, language string) client.Status {
    return m.call("SetLampName", client.OnIDName(m.cb.SetLampNameReplyCB), id, name, language)
}

func (m *Manager) GetLampDetails(id string) client.Status {
    return m.call("GetLampDetails", client.OnCustom(func(args []interface{}) error {
        var (
            rc   lsf.ResponseCode
            lamp string
            d    lsf.LampDetails
        )
        if err := wire.Store(args, &rc, &lamp, &d); err != nil { return err }
        m.cb.GetLampDetailsReplyCB(rc, lamp, d)
        return nil
    }), id)
}

func (m *Manager) GetLampParameters(id string) client.Status {
    return m.call("GetLampParameters", client.OnCustom(func(args []interface{}) error {
        var (
            rc   lsf.ResponseCode
            lamp string
            p    lsf.LampParameters
        )
        if err := wire.Store(args, &rc, &lamp, &p); err != nil { return err }
        m.cb.GetLampParametersReplyCB(rc, lamp, p)
        return nil
    }), id)
}

func (m *Manager) GetLampParametersEnergyUsageMilliwattsField(id string) client.Status {
    return m.call("GetLampParametersField", uint32Field(m.cb.GetLampParametersEnergyUsageMilliwattsFieldReplyCB), id, lsf.FieldEnergyUsageMilliwatts)
}

func (m *Manager) GetLampParametersLumensField(id string) client.Status {
    return m.call("GetLampParametersField", uint32Field(m.cb.GetLampParametersLumensFieldReplyCB), id, lsf.FieldLumens)
}

func (m *Manager) GetLampState(id string) client.Status {
    return m.call("GetLampState", stateReply(m.cb.GetLampStateReplyCB), id)
}

func (m *Manager) GetLampStateOnOffField(id string) client.Status {
    return m.call("GetLampStateField", boolField(m.cb.GetLampStateOnOffFieldReplyCB), id, lsf.FieldOnOff)
}

func (m *Manager) GetLampStateHueField(id string) client.Status {
    return m.call("GetLampStateField", uint32Field(m.cb.GetLampStateHueFieldReplyCB), id, lsf.FieldHue)
}

func (m *Manager) GetLampStateSaturationField(id string) client.Status {
    return m.call("GetLampStateField", uint32Field(m.cb.GetLampStateSaturationFieldReplyCB), id, lsf.FieldSaturation)
}

func (m *Manager) GetLampStateBrightnessField(id string) client.Status {
    return m.call("GetLampStateField", uint32Field(m.cb.GetLampStateBrightnessFieldReplyCB), id, lsf.FieldBrightness)
}

func (m *Manager) GetLampStateColorTempField(id string) client.Status {
    return m.call("GetLampStateField", uint32Field(m.cb.GetLampStateColorTempFieldReplyCB), id, lsf.FieldColorTemp)
}

func (m *Manager) TransitionLampState(id string, state lsf.LampState, period uint32) client.Status {
    return m.call("TransitionLampState", client.OnID(m.cb.TransitionLampStateReplyCB), id, state, period)
}

func (m *Manager) PulseLampWithState(id string, from, to lsf.LampState, period, duration, pulses uint32) client.Status {
    return m.call("PulseLampWithState", client.OnID(m.cb.PulseLampWithStateReplyCB), id, from, to, period, duration, pulses)
}

func (m *Manager) PulseLampWithPreset(id, fromPreset, toPreset string, period, duration, pulses uint32) client.Status {
    return m.call("PulseLampWithPreset", client.OnID(m.cb.PulseLampWithPresetReplyCB), id, fromPreset, toPreset, period, duration, pulses)
}

func (m *Manager) TransitionLampStateToPreset(id, preset string, period uint32) client.Status {
    return m.call("TransitionLampStateToPreset", client.OnID(m.cb.TransitionLampStateToPresetReplyCB), id, preset, period)
}

func (m *Manager) TransitionLampStateOnOffField(id string, onOff bool) client.Status {
    return m.transitionField(id, lsf.FieldOnOff, onOff, 0)
}

func (m *Manager) TransitionLampStateHueField(id string, hue, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldHue, hue, period)
}

func (m *Manager) TransitionLampStateSaturationField(id string, saturation, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldSaturation, saturation, period)
}

func (m *Manager) TransitionLampStateBrightnessField(id string, brightness, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldBrightness, brightness, period)
}

func (m *Manager) TransitionLampStateColorTempField(id string, colorTemp, period uint32) client.Status {
    return m.transitionField(id, lsf.FieldColorTemp, colorTemp, period)
}

func (m *Manager) transitionField(id, field string, v interface{}, period uint32) client.Status {
    return m.call("TransitionLampStateField", client.OnIDName(m.cb.TransitionLampStateFieldReplyCB), id, field, wire.Variant(v), period)
}

func (m *Manager) ResetLampState(id string) client.Status {
    return m.call("ResetLampState", client.OnID(m.cb.ResetLampStateReplyCB), id)
}

// ResetLampStateField resets one of the lsf.Field* state fields to its
// default.
func (m *Manager) ResetLampStateField(id, field string) client.Status {
    return m.call("ResetLampStateField", client.OnIDName(m.cb.ResetLampStateFieldReplyCB), id, field)
}

func (m *Manager) GetLampFaults(id string) client.Status {
    return m.call("GetLampFaults", client.OnCustom(func(args []interface{}) error {
        var (
            rc     lsf.ResponseCode
            lamp   string
            faults []uint32
        )
        if err := wire.Store(args, &rc, &lamp, &faults); err != nil { return err }
        m.cb.GetLampFaultsReplyCB(rc, lamp, faults)
        return nil
    }), id)
}

func (m *Manager) ClearLampFault(id string, fault uint32) client.Status {
    return m.call("ClearLampFault", idUint32(m.cb.ClearLampFaultReplyCB), id, fault)
}

func (m *Manager) GetLampServiceVersion(id string) client.Status {
    return m.call("GetLampServiceVersion", idUint32(m.cb.GetLampServiceVersionReplyCB), id)
}

// GetLampDataSet requests state, parameters, details and name in that
// order and stops at the first request that is not submitted.
func (m *Manager) GetLampDataSet(id, language string) client.Status {
    if st := m.GetLampState(id); st != client.StatusOK { return st }
    if st := m.GetLampParameters(id); st != client.StatusOK { return st }
    if st := m.GetLampDetails(id); st != client.StatusOK { return st }
    return m.GetLampName(id, language)
}

func stateReply(fn func(rc lsf.ResponseCode, id string, state lsf.LampState)) client.ReplyHandler {
    return client.OnCustom(func(args []interface{}) error {
        var (
            rc lsf.ResponseCode
            id string
            st lsf.LampState
        )
        if err := wire.Store(args, &rc, &id, &st); err != nil { return err }
        fn(rc, id, st)
        return nil
    })
}

func idUint32(fn func(rc lsf.ResponseCode, id string, v uint32)) client.ReplyHandler {
    return client.OnCustom(func(args []interface{}) error {
        var (
            rc lsf.ResponseCode
            id string
            v  uint32
        )
        if err := wire.Store(args, &rc, &id, &v); err != nil { return err }
        fn(rc, id, v)
        return nil
    })
}

func uint32Field(fn func(rc lsf.ResponseCode, id string, v uint32)) client.ReplyHandler {
    return client.OnCustom(func(args []interface{}) error {
        var v uint32
        rc, id, err := storeField(args, &v)
        if err != nil { return err }
        fn(rc, id, v)
        return nil
    })
}

func boolField(fn func(rc lsf.ResponseCode, id string, v bool)) client.ReplyHandler {
    return client.OnCustom(func(args []interface{}) error {
        var v bool
        rc, id, err := storeField(args, &v)
        if err != nil { return err }
        fn(rc, id, v)
        return nil
    })
}

// storeField decodes a (u, s, s, v) field reply. The value is only
// converted when rc is OK.
func storeField(args []interface{}, dest interface{}) (lsf.ResponseCode, string, error) {
    var (
        rc        lsf.ResponseCode
        id, field string
        v         dbus.Variant
    )
    if err := wire.Store(args, &rc, &id, &field, &v); err != nil { return 0, "", err }
    if rc == lsf.OK {
        if err := wire.StoreVariant(v, dest); err != nil { return 0, "", err }
    }
    return rc, id, nil
}
