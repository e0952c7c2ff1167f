package lsf

// Field order in every struct below is the wire order; do not reorder.

// LampState is encoded as (buuuub).
type LampState struct {
    OnOff      bool   `json:"onOff"`
    Hue        uint32 `json:"hue"`
    Saturation uint32 `json:"saturation"`
    Brightness uint32 `json:"brightness"`
    ColorTemp  uint32 `json:"colorTemp"`
    // NullState marks a state that carries no values.
    NullState bool `json:"nullState"`
}

// LampDetails is the static description a lamp reports about itself.
type LampDetails struct {
    Make                   uint32 `json:"make"`
    Model                  uint32 `json:"model"`
    Type                   uint32 `json:"type"`
    LampType               uint32 `json:"lampType"`
    BaseType               uint32 `json:"baseType"`
    BeamAngle              uint32 `json:"beamAngle"`
    Dimmable               bool   `json:"dimmable"`
    Color                  bool   `json:"color"`
    VariableColorTemp      bool   `json:"variableColorTemp"`
    HasEffects             bool   `json:"hasEffects"`
    MinVoltage             uint32 `json:"minVoltage"`
    MaxVoltage             uint32 `json:"maxVoltage"`
    Wattage                uint32 `json:"wattage"`
    IncandescentEquivalent uint32 `json:"incandescentEquivalent"`
    MaxLumens              uint32 `json:"maxLumens"`
    MinTemperature         uint32 `json:"minTemperature"`
    MaxTemperature         uint32 `json:"maxTemperature"`
    ColorRenderingIndex    uint32 `json:"colorRenderingIndex"`
}

type LampParameters struct {
    EnergyUsageMilliwatts uint32 `json:"energyUsageMilliwatts"`
    Lumens                uint32 `json:"lumens"`
}

// LampGroup travels as two positional arrays (lamps, groups), not as a struct.
type LampGroup struct {
    Lamps      []string `json:"lamps"`
    LampGroups []string `json:"lampGroups"`
}

// Args returns the positional arguments for g.
func (g LampGroup) Args() []interface{} {
    return []interface{}{nonNil(g.Lamps), nonNil(g.LampGroups)}
}

type TransitionLampsLampGroupsToState struct {
    Lamps      []string  `json:"lamps"`
    LampGroups []string  `json:"lampGroups"`
    State      LampState `json:"state"`
    Period     uint32    `json:"period"`
}

type TransitionLampsLampGroupsToPreset struct {
    Lamps      []string `json:"lamps"`
    LampGroups []string `json:"lampGroups"`
    PresetID   string   `json:"presetId"`
    Period     uint32   `json:"period"`
}

type PulseLampsLampGroupsWithState struct {
    Lamps      []string  `json:"lamps"`
    LampGroups []string  `json:"lampGroups"`
    FromState  LampState `json:"fromState"`
    ToState    LampState `json:"toState"`
    Period     uint32    `json:"period"`
    Duration   uint32    `json:"duration"`
    NumPulses  uint32    `json:"numPulses"`
}

type PulseLampsLampGroupsWithPreset struct {
    Lamps        []string `json:"lamps"`
    LampGroups   []string `json:"lampGroups"`
    FromPresetID string   `json:"fromPresetId"`
    ToPresetID   string   `json:"toPresetId"`
    Period       uint32   `json:"period"`
    Duration     uint32   `json:"duration"`
    NumPulses    uint32   `json:"numPulses"`
}

// Scene travels as four positional component arrays.
type Scene struct {
    TransitionToState  []TransitionLampsLampGroupsToState  `json:"transitionToState"`
    TransitionToPreset []TransitionLampsLampGroupsToPreset `json:"transitionToPreset"`
    PulseWithState     []PulseLampsLampGroupsWithState     `json:"pulseWithState"`
    PulseWithPreset    []PulseLampsLampGroupsWithPreset    `json:"pulseWithPreset"`
}

// Args returns the positional arguments for s. Nil component slices are sent
// as empty arrays.
func (s Scene) Args() []interface{} {
    tts := s.TransitionToState
    if tts == nil { tts = []TransitionLampsLampGroupsToState{} }
    ttp := s.TransitionToPreset
    if ttp == nil { ttp = []TransitionLampsLampGroupsToPreset{} }
    pws := s.PulseWithState
    if pws == nil { pws = []PulseLampsLampGroupsWithState{} }
    pwp := s.PulseWithPreset
    if pwp == nil { pwp = []PulseLampsLampGroupsWithPreset{} }
    return []interface{}{tts, ttp, pws, pwp}
}

// MasterScene travels as a single array of scene IDs.
type MasterScene struct {
    Scenes []string `json:"scenes"`
}

func (m MasterScene) Args() []interface{} { return []interface{}{nonNil(m.Scenes)} }

func nonNil(s []string) []string {
    if s == nil { return []string{} }
    return s
}
