// Package lsf holds the lighting service vocabulary shared by the client,
// the typed managers and the simulator: interface names, response codes and
// the fixed-order tuples exchanged on the wire.
package lsf

import "fmt"

const (
    ControllerServiceInterface = "org.allseen.LSF.ControllerService"
    LampInterface              = ControllerServiceInterface + ".Lamp"
    LampGroupInterface         = ControllerServiceInterface + ".LampGroup"
    PresetInterface            = ControllerServiceInterface + ".Preset"
    SceneInterface             = ControllerServiceInterface + ".Scene"
    MasterSceneInterface       = ControllerServiceInterface + ".MasterScene"
)

// ResponseCode is the business outcome carried as the first argument of
// most replies.
type ResponseCode uint32

const (
    OK ResponseCode = iota
    ErrNull
    ErrUnexpected
    ErrInvalid
    ErrUnknown
    ErrFailure
    ErrBusy
    ErrRejected
    ErrRange
    ErrInvalidField
    ErrMessage
    ErrInvalidArgs
    ErrEmptyName
    ErrResourcesExhausted
    ErrReplyWithInvalidArgs
    ErrPartial
    ErrNotFound
    ErrNoSlot
    ErrDependency
)

var responseCodeNames = [...]string{
    "LSF_OK",
    "LSF_ERR_NULL",
    "LSF_ERR_UNEXPECTED",
    "LSF_ERR_INVALID",
    "LSF_ERR_UNKNOWN",
    "LSF_ERR_FAILURE",
    "LSF_ERR_BUSY",
    "LSF_ERR_REJECTED",
    "LSF_ERR_RANGE",
    "LSF_ERR_INVALID_FIELD",
    "LSF_ERR_MESSAGE",
    "LSF_ERR_INVALID_ARGS",
    "LSF_ERR_EMPTY_NAME",
    "LSF_ERR_RESOURCES_EXHAUSTED",
    "LSF_ERR_REPLY_WITH_INVALID_ARGS",
    "LSF_ERR_PARTIAL",
    "LSF_ERR_NOT_FOUND",
    "LSF_ERR_NO_SLOT",
    "LSF_ERR_DEPENDENCY",
}

func (c ResponseCode) String() string {
    if int(c) < len(responseCodeNames) { return responseCodeNames[c] }
    return fmt.Sprintf("LSF_RESPONSE_CODE(%d)", uint32(c))
}

// State field names used by the field-level get/transition/reset calls.
const (
    FieldOnOff      = "OnOff"
    FieldHue        = "Hue"
    FieldSaturation = "Saturation"
    FieldBrightness = "Brightness"
    FieldColorTemp  = "ColorTemp"
)

// Lamp parameter field names.
const (
    FieldEnergyUsageMilliwatts = "Energy_Usage_Milliwatts"
    FieldLumens                = "Brightness_Lumens"
)
