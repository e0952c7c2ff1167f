package simulator

import (
    "fmt"
    "sort"

    "github.com/godbus/dbus/v5"

    "github.com/amirimatin/go-lsf/pkg/lsf"
    "github.com/amirimatin/go-lsf/pkg/wire"
)

const manufacturer = "go-lsf simulator"

type lamp struct {
    id      string
    name    string
    state   lsf.LampState
    details lsf.LampDetails
    faults  []uint32
}

func newLamp(n int, st lsf.LampState) *lamp {
    return &lamp{
        id:    fmt.Sprintf("lamp-%d", n),
        name:  fmt.Sprintf("Lamp %d", n),
        state: st,
        details: lsf.LampDetails{
            Make: 1, Model: 1, Type: 1, LampType: 2, BaseType: 1, BeamAngle: 120,
            Dimmable: true, Color: true, VariableColorTemp: true,
            MinVoltage: 100, MaxVoltage: 240, Wattage: 9, IncandescentEquivalent: 60,
            MaxLumens: 800, MinTemperature: 2700, MaxTemperature: 6500, ColorRenderingIndex: 90,
        },
    }
}

// parameters derives live readings from the state. Brightness is read as a
// percentage.
func (l *lamp) parameters() lsf.LampParameters {
    if !l.state.OnOff { return lsf.LampParameters{} }
    b := l.state.Brightness
    if b > 100 { b = 100 }
    return lsf.LampParameters{
        EnergyUsageMilliwatts: l.details.Wattage * 1000 * b / 100,
        Lumens:                l.details.MaxLumens * b / 100,
    }
}

func stateField(st lsf.LampState, field string) (interface{}, bool) {
    switch field {
    case lsf.FieldOnOff:
        return st.OnOff, true
    case lsf.FieldHue:
        return st.Hue, true
    case lsf.FieldSaturation:
        return st.Saturation, true
    case lsf.FieldBrightness:
        return st.Brightness, true
    case lsf.FieldColorTemp:
        return st.ColorTemp, true
    }
    return nil, false
}

// setStateField stores v into field, copying the field from def when v is
// nil.
func setStateField(st *lsf.LampState, field string, v *dbus.Variant, def lsf.LampState) lsf.ResponseCode {
    var err error
    switch field {
    case lsf.FieldOnOff:
        st.OnOff = def.OnOff
        if v != nil { err = wire.StoreVariant(*v, &st.OnOff) }
    case lsf.FieldHue:
        st.Hue = def.Hue
        if v != nil { err = wire.StoreVariant(*v, &st.Hue) }
    case lsf.FieldSaturation:
        st.Saturation = def.Saturation
        if v != nil { err = wire.StoreVariant(*v, &st.Saturation) }
    case lsf.FieldBrightness:
        st.Brightness = def.Brightness
        if v != nil { err = wire.StoreVariant(*v, &st.Brightness) }
    case lsf.FieldColorTemp:
        st.ColorTemp = def.ColorTemp
        if v != nil { err = wire.StoreVariant(*v, &st.ColorTemp) }
    default:
        return lsf.ErrInvalidField
    }
    if err != nil { return lsf.ErrInvalidArgs }
    st.NullState = false
    return lsf.OK
}

func paramField(p lsf.LampParameters, field string) (uint32, bool) {
    switch field {
    case lsf.FieldEnergyUsageMilliwatts:
        return p.EnergyUsageMilliwatts, true
    case lsf.FieldLumens:
        return p.Lumens, true
    }
    return 0, false
}

func (c *Controller) lampIDs() []string {
    ids := make([]string, 0, len(c.lamps))
    for id := range c.lamps { ids = append(ids, id) }
    sort.Strings(ids)
    return ids
}

// setLampState changes a lamp's state and returns the signal announcing it.
func (c *Controller) setLampState(l *lamp, st lsf.LampState) signal {
    if st.NullState { st = c.defaultState }
    l.state = st
    return signal{iface: lsf.LampInterface, member: "LampStateChanged", args: []interface{}{l.id, l.state}}
}

func (c *Controller) checkLanguage(lang string) lsf.ResponseCode {
    if lang != c.opts.Language { return lsf.ErrInvalid }
    return lsf.OK
}

// InjectFault records a fault code on a lamp.
func (c *Controller) InjectFault(id string, fault uint32) bool {
    c.mu.Lock()
    defer c.mu.Unlock()
    l, ok := c.lamps[id]
    if ok { l.faults = append(l.faults, fault) }
    return ok
}

func withLamp(fn func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error), miss func(id string, rest []interface{}) []interface{}) method {
    return func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
        if len(args) == 0 { return nil, nil, fmt.Errorf("%w: missing lamp id", ErrBadArgs) }
        var id string
        if err := decode(args[:1], &id); err != nil { return nil, nil, err }
        l, ok := c.lamps[id]
        if !ok { return miss(id, args[1:]), nil, nil }
        return fn(c, l, args[1:])
    }
}

func missID(id string, _ []interface{}) []interface{} { return []interface{}{rc(lsf.ErrNotFound), id} }

func missIDStr(id string, rest []interface{}) []interface{} {
    var s string
    if len(rest) > 0 { s, _ = rest[0].(string) }
    return []interface{}{rc(lsf.ErrNotFound), id, s}
}

func missIDLangName(id string, rest []interface{}) []interface{} {
    var lang string
    if len(rest) > 0 { lang, _ = rest[len(rest)-1].(string) }
    return []interface{}{rc(lsf.ErrNotFound), id, lang, ""}
}

func missField(id string, rest []interface{}) []interface{} {
    var field string
    if len(rest) > 0 { field, _ = rest[0].(string) }
    return []interface{}{rc(lsf.ErrNotFound), id, field, wire.Variant(uint32(0))}
}

func init() {
    register(lsf.LampInterface, map[string]method{
        "GetAllLampIDs": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            if err := decode(args); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), c.lampIDs()}, nil, nil
        },
        "GetLampSupportedLanguages": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id, []string{c.opts.Language}}, nil, nil
        }, func(id string, _ []interface{}) []interface{} { return []interface{}{rc(lsf.ErrNotFound), id, []string{}} }),
        "GetLampManufacturer": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var lang string
            if err := decode(rest, &lang); err != nil { return nil, nil, err }
            if code := c.checkLanguage(lang); code != lsf.OK { return []interface{}{rc(code), l.id, lang, ""}, nil, nil }
            return []interface{}{rc(lsf.OK), l.id, lang, manufacturer}, nil, nil
        }, missIDLangName),
        "GetLampName": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var lang string
            if err := decode(rest, &lang); err != nil { return nil, nil, err }
            if code := c.checkLanguage(lang); code != lsf.OK { return []interface{}{rc(code), l.id, lang, ""}, nil, nil }
            return []interface{}{rc(lsf.OK), l.id, lang, l.name}, nil, nil
        }, missIDLangName),
        "SetLampName": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var name, lang string
            if err := decode(rest, &name, &lang); err != nil { return nil, nil, err }
            if code := c.checkLanguage(lang); code != lsf.OK { return []interface{}{rc(code), l.id, lang}, nil, nil }
            if name == "" { return []interface{}{rc(lsf.ErrEmptyName), l.id, lang}, nil, nil }
            l.name = name
            return []interface{}{rc(lsf.OK), l.id, lang}, []signal{{iface: lsf.LampInterface, member: "LampNameChanged", args: []interface{}{l.id, name}}}, nil
        }, func(id string, rest []interface{}) []interface{} {
            var lang string
            if len(rest) > 1 { lang, _ = rest[1].(string) }
            return []interface{}{rc(lsf.ErrNotFound), id, lang}
        }),
        "GetLampDetails": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id, l.details}, nil, nil
        }, func(id string, _ []interface{}) []interface{} { return []interface{}{rc(lsf.ErrNotFound), id, lsf.LampDetails{}} }),
        "GetLampParameters": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id, l.parameters()}, nil, nil
        }, func(id string, _ []interface{}) []interface{} { return []interface{}{rc(lsf.ErrNotFound), id, lsf.LampParameters{}} }),
        "GetLampParametersField": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var field string
            if err := decode(rest, &field); err != nil { return nil, nil, err }
            v, ok := paramField(l.parameters(), field)
            if !ok { return []interface{}{rc(lsf.ErrInvalidField), l.id, field, wire.Variant(uint32(0))}, nil, nil }
            return []interface{}{rc(lsf.OK), l.id, field, wire.Variant(v)}, nil, nil
        }, missField),
        "GetLampState": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id, l.state}, nil, nil
        }, func(id string, _ []interface{}) []interface{} { return []interface{}{rc(lsf.ErrNotFound), id, lsf.LampState{}} }),
        "GetLampStateField": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var field string
            if err := decode(rest, &field); err != nil { return nil, nil, err }
            v, ok := stateField(l.state, field)
            if !ok { return []interface{}{rc(lsf.ErrInvalidField), l.id, field, wire.Variant(uint32(0))}, nil, nil }
            return []interface{}{rc(lsf.OK), l.id, field, wire.Variant(v)}, nil, nil
        }, missField),
        "TransitionLampState": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var (
                st     lsf.LampState
                period uint32
            )
            if err := decode(rest, &st, &period); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id}, []signal{c.setLampState(l, st)}, nil
        }, missID),
        "PulseLampWithState": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var (
                from, to                 lsf.LampState
                period, duration, pulses uint32
            )
            if err := decode(rest, &from, &to, &period, &duration, &pulses); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id}, nil, nil
        }, missID),
        "PulseLampWithPreset": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var (
                from, to                 string
                period, duration, pulses uint32
            )
            if err := decode(rest, &from, &to, &period, &duration, &pulses); err != nil { return nil, nil, err }
            if _, ok := c.presets.get(from); !ok { return []interface{}{rc(lsf.ErrNotFound), l.id}, nil, nil }
            if _, ok := c.presets.get(to); !ok { return []interface{}{rc(lsf.ErrNotFound), l.id}, nil, nil }
            return []interface{}{rc(lsf.OK), l.id}, nil, nil
        }, missID),
        "TransitionLampStateToPreset": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var (
                preset string
                period uint32
            )
            if err := decode(rest, &preset, &period); err != nil { return nil, nil, err }
            p, ok := c.presets.get(preset)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), l.id}, nil, nil }
            return []interface{}{rc(lsf.OK), l.id}, []signal{c.setLampState(l, p.v)}, nil
        }, missID),
        "TransitionLampStateField": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var (
                field  string
                v      dbus.Variant
                period uint32
            )
            if err := decode(rest, &field, &v, &period); err != nil { return nil, nil, err }
            st := l.state
            if code := setStateField(&st, field, &v, c.defaultState); code != lsf.OK {
                return []interface{}{rc(code), l.id, field}, nil, nil
            }
            return []interface{}{rc(lsf.OK), l.id, field}, []signal{c.setLampState(l, st)}, nil
        }, missIDStr),
        "ResetLampState": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id}, []signal{c.setLampState(l, c.defaultState)}, nil
        }, missID),
        "ResetLampStateField": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var field string
            if err := decode(rest, &field); err != nil { return nil, nil, err }
            st := l.state
            if code := setStateField(&st, field, nil, c.defaultState); code != lsf.OK {
                return []interface{}{rc(code), l.id, field}, nil, nil
            }
            return []interface{}{rc(lsf.OK), l.id, field}, []signal{c.setLampState(l, st)}, nil
        }, missIDStr),
        "GetLampFaults": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id, append([]uint32{}, l.faults...)}, nil, nil
        }, func(id string, _ []interface{}) []interface{} { return []interface{}{rc(lsf.ErrNotFound), id, []uint32{}} }),
        "ClearLampFault": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            var fault uint32
            if err := decode(rest, &fault); err != nil { return nil, nil, err }
            for i, f := range l.faults {
                if f == fault {
                    l.faults = append(l.faults[:i], l.faults[i+1:]...)
                    return []interface{}{rc(lsf.OK), l.id, fault}, nil, nil
                }
            }
            return []interface{}{rc(lsf.ErrNotFound), l.id, fault}, nil, nil
        }, func(id string, rest []interface{}) []interface{} {
            var fault uint32
            if len(rest) > 0 { fault, _ = rest[0].(uint32) }
            return []interface{}{rc(lsf.ErrNotFound), id, fault}
        }),
        "GetLampServiceVersion": withLamp(func(c *Controller, l *lamp, rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), l.id, Version}, nil, nil
        }, func(id string, _ []interface{}) []interface{} { return []interface{}{rc(lsf.ErrNotFound), id, uint32(0)} }),
    })
}
