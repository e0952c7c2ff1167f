package simulator

import (
    "github.com/godbus/dbus/v5"

    "github.com/amirimatin/go-lsf/pkg/lsf"
)

// kind describes how one named entity family appears on the wire.
type kind struct {
    iface    string
    plural   string
    idsCall  string
    nameCall string
}

// nameMethods returns the GetAll*IDs, Get*Name and Set*Name handlers shared
// by every named entity family.
func nameMethods[T any](k kind, st func(c *Controller) *store[T]) map[string]method {
    return map[string]method{
        "GetAll" + k.idsCall + "IDs": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            if err := decode(args); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), st(c).ids()}, nil, nil
        },
        "Get" + k.nameCall + "Name": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id, lang string
            if err := decode(args, &id, &lang); err != nil { return nil, nil, err }
            if code := c.checkLanguage(lang); code != lsf.OK { return []interface{}{rc(code), id, lang, ""}, nil, nil }
            e, ok := st(c).get(id)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), id, lang, ""}, nil, nil }
            return []interface{}{rc(lsf.OK), id, lang, e.name}, nil, nil
        },
        "Set" + k.nameCall + "Name": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id, name, lang string
            if err := decode(args, &id, &name, &lang); err != nil { return nil, nil, err }
            if code := c.checkLanguage(lang); code != lsf.OK { return []interface{}{rc(code), id, lang}, nil, nil }
            if name == "" { return []interface{}{rc(lsf.ErrEmptyName), id, lang}, nil, nil }
            e, ok := st(c).get(id)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), id, lang}, nil, nil }
            e.name = name
            return []interface{}{rc(lsf.OK), id, lang}, []signal{idList(k.iface, k.plural+"NameChanged", id)}, nil
        },
    }
}

func merge(ms ...map[string]method) map[string]method {
    out := make(map[string]method)
    for _, m := range ms {
        for k, v := range m { out[k] = v }
    }
    return out
}

// created validates a name and language before storing a new entity.
func created[T any](c *Controller, k kind, s *store[T], v T, name, lang string) ([]interface{}, []signal) {
    if code := c.checkLanguage(lang); code != lsf.OK { return []interface{}{rc(code), ""}, nil }
    if name == "" { return []interface{}{rc(lsf.ErrEmptyName), ""}, nil }
    e := s.create(name, v)
    return []interface{}{rc(lsf.OK), e.id}, []signal{idList(k.iface, k.plural+"Created", e.id)}
}

func updated[T any](k kind, s *store[T], id string, v T) ([]interface{}, []signal) {
    e, ok := s.get(id)
    if !ok { return []interface{}{rc(lsf.ErrNotFound), id}, nil }
    e.v = v
    return []interface{}{rc(lsf.OK), id}, []signal{idList(k.iface, k.plural+"Updated", id)}
}

// deleted removes id unless inUse reports a dependent entity.
func deleted[T any](k kind, s *store[T], id string, inUse bool) ([]interface{}, []signal) {
    if _, ok := s.get(id); !ok { return []interface{}{rc(lsf.ErrNotFound), id}, nil }
    if inUse { return []interface{}{rc(lsf.ErrDependency), id}, nil }
    s.remove(id)
    return []interface{}{rc(lsf.OK), id}, []signal{idList(k.iface, k.plural+"Deleted", id)}
}

func contains(ids []string, id string) bool {
    for _, x := range ids {
        if x == id { return true }
    }
    return false
}

// lampsOf expands lamp and group IDs to lamps, following nested groups once.
func (c *Controller) lampsOf(lamps, groups []string) []*lamp {
    seen := make(map[string]bool)
    visited := make(map[string]bool)
    var out []*lamp
    var walk func(lamps, groups []string)
    walk = func(lamps, groups []string) {
        for _, id := range lamps {
            if l, ok := c.lamps[id]; ok && !seen[id] {
                seen[id] = true
                out = append(out, l)
            }
        }
        for _, gid := range groups {
            if visited[gid] { continue }
            visited[gid] = true
            if g, ok := c.groups.get(gid); ok { walk(g.v.Lamps, g.v.LampGroups) }
        }
    }
    walk(lamps, groups)
    return out
}

func (c *Controller) setAll(ls []*lamp, fn func(st lsf.LampState) lsf.LampState) []signal {
    sigs := make([]signal, 0, len(ls))
    for _, l := range ls { sigs = append(sigs, c.setLampState(l, fn(l.state))) }
    return sigs
}

// applyScene runs every state and preset transition of s.
func (c *Controller) applyScene(s lsf.Scene) []signal {
    var sigs []signal
    for _, t := range s.TransitionToState {
        st := t.State
        sigs = append(sigs, c.setAll(c.lampsOf(t.Lamps, t.LampGroups), func(lsf.LampState) lsf.LampState { return st })...)
    }
    for _, t := range s.TransitionToPreset {
        p, ok := c.presets.get(t.PresetID)
        if !ok { continue }
        sigs = append(sigs, c.setAll(c.lampsOf(t.Lamps, t.LampGroups), func(lsf.LampState) lsf.LampState { return p.v })...)
    }
    return sigs
}

var (
    groupKind  = kind{iface: lsf.LampGroupInterface, plural: "LampGroups", idsCall: "LampGroup", nameCall: "LampGroup"}
    presetKind = kind{iface: lsf.PresetInterface, plural: "Presets", idsCall: "Preset", nameCall: "Preset"}
    sceneKind  = kind{iface: lsf.SceneInterface, plural: "Scenes", idsCall: "Scene", nameCall: "Scene"}
    masterKind = kind{iface: lsf.MasterSceneInterface, plural: "MasterScenes", idsCall: "MasterScene", nameCall: "MasterScene"}
)

func groupMethods() map[string]method {
    withGroup := func(fn func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error), miss func(id string, rest []interface{}) []interface{}) method {
        return func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            if len(args) == 0 { return nil, nil, ErrBadArgs }
            var id string
            if err := decode(args[:1], &id); err != nil { return nil, nil, err }
            g, ok := c.groups.get(id)
            if !ok { return miss(id, args[1:]), nil, nil }
            return fn(c, g, args[1:])
        }
    }
    return map[string]method{
        "CreateLampGroup": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var (
                g          lsf.LampGroup
                name, lang string
            )
            if err := decode(args, &g.Lamps, &g.LampGroups, &name, &lang); err != nil { return nil, nil, err }
            out, sigs := created(c, groupKind, c.groups, g, name, lang)
            return out, sigs, nil
        },
        "UpdateLampGroup": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var (
                id string
                g  lsf.LampGroup
            )
            if err := decode(args, &id, &g.Lamps, &g.LampGroups); err != nil { return nil, nil, err }
            out, sigs := updated(groupKind, c.groups, id, g)
            return out, sigs, nil
        },
        "DeleteLampGroup": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            inUse := c.groups.any(func(e *entity[lsf.LampGroup]) bool { return contains(e.v.LampGroups, id) }) ||
                c.scenes.any(func(e *entity[lsf.Scene]) bool { return sceneUsesGroup(e.v, id) })
            out, sigs := deleted(groupKind, c.groups, id, inUse)
            return out, sigs, nil
        },
        "GetLampGroup": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            g, ok := c.groups.get(id)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), id, []string{}, []string{}}, nil, nil }
            return append([]interface{}{rc(lsf.OK), id}, g.v.Args()...), nil, nil
        },
        "TransitionLampGroupState": withGroup(func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error) {
            var (
                st     lsf.LampState
                period uint32
            )
            if err := decode(rest, &st, &period); err != nil { return nil, nil, err }
            sigs := c.setAll(c.lampsOf(nil, []string{g.id}), func(lsf.LampState) lsf.LampState { return st })
            return []interface{}{rc(lsf.OK), g.id}, sigs, nil
        }, missID),
        "PulseLampGroupWithState": withGroup(func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error) {
            var (
                from, to                 lsf.LampState
                period, duration, pulses uint32
            )
            if err := decode(rest, &from, &to, &period, &duration, &pulses); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), g.id}, nil, nil
        }, missID),
        "PulseLampGroupWithPreset": withGroup(func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error) {
            var (
                from, to                 string
                period, duration, pulses uint32
            )
            if err := decode(rest, &from, &to, &period, &duration, &pulses); err != nil { return nil, nil, err }
            _, okFrom := c.presets.get(from)
            _, okTo := c.presets.get(to)
            if !okFrom || !okTo { return []interface{}{rc(lsf.ErrNotFound), g.id}, nil, nil }
            return []interface{}{rc(lsf.OK), g.id}, nil, nil
        }, missID),
        "TransitionLampGroupStateToPreset": withGroup(func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error) {
            var (
                preset string
                period uint32
            )
            if err := decode(rest, &preset, &period); err != nil { return nil, nil, err }
            p, ok := c.presets.get(preset)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), g.id}, nil, nil }
            sigs := c.setAll(c.lampsOf(nil, []string{g.id}), func(lsf.LampState) lsf.LampState { return p.v })
            return []interface{}{rc(lsf.OK), g.id}, sigs, nil
        }, missID),
        "TransitionLampGroupStateField": withGroup(func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error) {
            var (
                field  string
                v      dbus.Variant
                period uint32
            )
            if err := decode(rest, &field, &v, &period); err != nil { return nil, nil, err }
            var probe lsf.LampState
            if code := setStateField(&probe, field, &v, c.defaultState); code != lsf.OK {
                return []interface{}{rc(code), g.id, field}, nil, nil
            }
            sigs := c.setAll(c.lampsOf(nil, []string{g.id}), func(st lsf.LampState) lsf.LampState {
                setStateField(&st, field, &v, c.defaultState)
                return st
            })
            return []interface{}{rc(lsf.OK), g.id, field}, sigs, nil
        }, missIDStr),
        "ResetLampGroupState": withGroup(func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error) {
            if err := decode(rest); err != nil { return nil, nil, err }
            def := c.defaultState
            sigs := c.setAll(c.lampsOf(nil, []string{g.id}), func(lsf.LampState) lsf.LampState { return def })
            return []interface{}{rc(lsf.OK), g.id}, sigs, nil
        }, missID),
        "ResetLampGroupStateField": withGroup(func(c *Controller, g *entity[lsf.LampGroup], rest []interface{}) ([]interface{}, []signal, error) {
            var field string
            if err := decode(rest, &field); err != nil { return nil, nil, err }
            if _, ok := stateField(c.defaultState, field); !ok { return []interface{}{rc(lsf.ErrInvalidField), g.id, field}, nil, nil }
            sigs := c.setAll(c.lampsOf(nil, []string{g.id}), func(st lsf.LampState) lsf.LampState {
                setStateField(&st, field, nil, c.defaultState)
                return st
            })
            return []interface{}{rc(lsf.OK), g.id, field}, sigs, nil
        }, missIDStr),
    }
}

func sceneUsesGroup(s lsf.Scene, id string) bool {
    for _, t := range s.TransitionToState {
        if contains(t.LampGroups, id) { return true }
    }
    for _, t := range s.TransitionToPreset {
        if contains(t.LampGroups, id) { return true }
    }
    for _, t := range s.PulseWithState {
        if contains(t.LampGroups, id) { return true }
    }
    for _, t := range s.PulseWithPreset {
        if contains(t.LampGroups, id) { return true }
    }
    return false
}

func sceneUsesPreset(s lsf.Scene, id string) bool {
    for _, t := range s.TransitionToPreset {
        if t.PresetID == id { return true }
    }
    for _, t := range s.PulseWithPreset {
        if t.FromPresetID == id || t.ToPresetID == id { return true }
    }
    return false
}

func presetMethods() map[string]method {
    return map[string]method{
        "GetDefaultLampState": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            if err := decode(args); err != nil { return nil, nil, err }
            return []interface{}{rc(lsf.OK), c.defaultState}, nil, nil
        },
        "SetDefaultLampState": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var st lsf.LampState
            if err := decode(args, &st); err != nil { return nil, nil, err }
            c.defaultState = st
            return []interface{}{rc(lsf.OK)}, []signal{{iface: lsf.PresetInterface, member: "DefaultLampStateChanged"}}, nil
        },
        "CreatePreset": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var (
                st         lsf.LampState
                name, lang string
            )
            if err := decode(args, &st, &name, &lang); err != nil { return nil, nil, err }
            out, sigs := created(c, presetKind, c.presets, st, name, lang)
            return out, sigs, nil
        },
        "UpdatePreset": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var (
                id string
                st lsf.LampState
            )
            if err := decode(args, &id, &st); err != nil { return nil, nil, err }
            out, sigs := updated(presetKind, c.presets, id, st)
            return out, sigs, nil
        },
        "DeletePreset": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            inUse := c.scenes.any(func(e *entity[lsf.Scene]) bool { return sceneUsesPreset(e.v, id) })
            out, sigs := deleted(presetKind, c.presets, id, inUse)
            return out, sigs, nil
        },
        "GetPreset": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            p, ok := c.presets.get(id)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), id, lsf.LampState{}}, nil, nil }
            return []interface{}{rc(lsf.OK), id, p.v}, nil, nil
        },
    }
}

func decodeScene(args []interface{}, lead []interface{}, tail ...interface{}) (lsf.Scene, error) {
    var s lsf.Scene
    dest := append(append(lead, &s.TransitionToState, &s.TransitionToPreset, &s.PulseWithState, &s.PulseWithPreset), tail...)
    err := decode(args, dest...)
    return s, err
}

func sceneMethods() map[string]method {
    return map[string]method{
        "CreateScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var name, lang string
            s, err := decodeScene(args, nil, &name, &lang)
            if err != nil { return nil, nil, err }
            out, sigs := created(c, sceneKind, c.scenes, s, name, lang)
            return out, sigs, nil
        },
        "UpdateScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            s, err := decodeScene(args, []interface{}{&id})
            if err != nil { return nil, nil, err }
            out, sigs := updated(sceneKind, c.scenes, id, s)
            return out, sigs, nil
        },
        "DeleteScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            inUse := c.masters.any(func(e *entity[lsf.MasterScene]) bool { return contains(e.v.Scenes, id) })
            out, sigs := deleted(sceneKind, c.scenes, id, inUse)
            return out, sigs, nil
        },
        "GetScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            s, ok := c.scenes.get(id)
            if !ok { return append([]interface{}{rc(lsf.ErrNotFound), id}, lsf.Scene{}.Args()...), nil, nil }
            return append([]interface{}{rc(lsf.OK), id}, s.v.Args()...), nil, nil
        },
        "ApplyScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            s, ok := c.scenes.get(id)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), id}, nil, nil }
            sigs := append(c.applyScene(s.v), idList(lsf.SceneInterface, "ScenesApplied", id))
            return []interface{}{rc(lsf.OK), id}, sigs, nil
        },
    }
}

func masterMethods() map[string]method {
    return map[string]method{
        "CreateMasterScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var (
                ms         lsf.MasterScene
                name, lang string
            )
            if err := decode(args, &ms.Scenes, &name, &lang); err != nil { return nil, nil, err }
            out, sigs := created(c, masterKind, c.masters, ms, name, lang)
            return out, sigs, nil
        },
        "UpdateMasterScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var (
                id string
                ms lsf.MasterScene
            )
            if err := decode(args, &id, &ms.Scenes); err != nil { return nil, nil, err }
            out, sigs := updated(masterKind, c.masters, id, ms)
            return out, sigs, nil
        },
        "DeleteMasterScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            out, sigs := deleted(masterKind, c.masters, id, false)
            return out, sigs, nil
        },
        "GetMasterScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            m, ok := c.masters.get(id)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), id, []string{}}, nil, nil }
            return append([]interface{}{rc(lsf.OK), id}, m.v.Args()...), nil, nil
        },
        "ApplyMasterScene": func(c *Controller, args []interface{}) ([]interface{}, []signal, error) {
            var id string
            if err := decode(args, &id); err != nil { return nil, nil, err }
            m, ok := c.masters.get(id)
            if !ok { return []interface{}{rc(lsf.ErrNotFound), id}, nil, nil }
            var sigs []signal
            var applied []string
            for _, sid := range m.v.Scenes {
                if s, ok := c.scenes.get(sid); ok {
                    sigs = append(sigs, c.applyScene(s.v)...)
                    applied = append(applied, sid)
                }
            }
            if len(applied) > 0 { sigs = append(sigs, idList(lsf.SceneInterface, "ScenesApplied", applied...)) }
            sigs = append(sigs, idList(lsf.MasterSceneInterface, "MasterScenesApplied", id))
            return []interface{}{rc(lsf.OK), id}, sigs, nil
        },
    }
}

func init() {
    register(lsf.LampGroupInterface, merge(nameMethods(groupKind, func(c *Controller) *store[lsf.LampGroup] { return c.groups }), groupMethods()))
    register(lsf.PresetInterface, merge(nameMethods(presetKind, func(c *Controller) *store[lsf.LampState] { return c.presets }), presetMethods()))
    register(lsf.SceneInterface, merge(nameMethods(sceneKind, func(c *Controller) *store[lsf.Scene] { return c.scenes }), sceneMethods()))
    register(lsf.MasterSceneInterface, merge(nameMethods(masterKind, func(c *Controller) *store[lsf.MasterScene] { return c.masters }), masterMethods()))
}
