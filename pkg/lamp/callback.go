package lamp

import "github.com/amirimatin/go-lsf/pkg/lsf"

// NopCallback implements Callback with no-ops. Embed it and override the
// methods of interest.
type NopCallback struct{}

var _ Callback = NopCallback{}

func (NopCallback) GetAllLampIDsReplyCB(lsf.ResponseCode, []string)                                {}
func (NopCallback) GetLampSupportedLanguagesReplyCB(lsf.ResponseCode, string, []string)            {}
func (NopCallback) GetLampManufacturerReplyCB(lsf.ResponseCode, string, string, string)            {}
func (NopCallback) GetLampNameReplyCB(lsf.ResponseCode, string, string, string)                    {}
func (NopCallback) SetLampNameReplyCB(lsf.ResponseCode, string, string)                            {}
func (NopCallback) GetLampDetailsReplyCB(lsf.ResponseCode, string, lsf.LampDetails)                {}
func (NopCallback) GetLampParametersReplyCB(lsf.ResponseCode, string, lsf.LampParameters)          {}
func (NopCallback) GetLampParametersEnergyUsageMilliwattsFieldReplyCB(lsf.ResponseCode, string, uint32) {}
func (NopCallback) GetLampParametersLumensFieldReplyCB(lsf.ResponseCode, string, uint32)           {}
func (NopCallback) GetLampStateReplyCB(lsf.ResponseCode, string, lsf.LampState)                    {}
func (NopCallback) GetLampStateOnOffFieldReplyCB(lsf.ResponseCode, string, bool)                   {}
func (NopCallback) GetLampStateHueFieldReplyCB(lsf.ResponseCode, string, uint32)                   {}
func (NopCallback) GetLampStateSaturationFieldReplyCB(lsf.ResponseCode, string, uint32)            {}
func (NopCallback) GetLampStateBrightnessFieldReplyCB(lsf.ResponseCode, string, uint32)            {}
func (NopCallback) GetLampStateColorTempFieldReplyCB(lsf.ResponseCode, string, uint32)             {}
func (NopCallback) TransitionLampStateReplyCB(lsf.ResponseCode, string)                            {}
func (NopCallback) PulseLampWithStateReplyCB(lsf.ResponseCode, string)                             {}
func (NopCallback) PulseLampWithPresetReplyCB(lsf.ResponseCode, string)                            {}
func (NopCallback) TransitionLampStateToPresetReplyCB(lsf.ResponseCode, string)                    {}
func (NopCallback) TransitionLampStateFieldReplyCB(lsf.ResponseCode, string, string)               {}
func (NopCallback) ResetLampStateReplyCB(lsf.ResponseCode, string)                                 {}
func (NopCallback) ResetLampStateFieldReplyCB(lsf.ResponseCode, string, string)                    {}
func (NopCallback) GetLampFaultsReplyCB(lsf.ResponseCode, string, []uint32)                        {}
func (NopCallback) ClearLampFaultReplyCB(lsf.ResponseCode, string, uint32)                         {}
func (NopCallback) GetLampServiceVersionReplyCB(lsf.ResponseCode, string, uint32)                  {}
func (NopCallback) LampNameChangedCB(string, string)                                               {}
func (NopCallback) LampStateChangedCB(string, lsf.LampState)                                       {}
func (NopCallback) LampsFoundCB([]string)                                                          {}
func (NopCallback) LampsLostCB([]string)                                                           {}
