package client

// Callback receives client lifecycle notifications and internal errors.
// Calls arrive on bus goroutines.
type Callback interface {
    ConnectedToControllerServiceCB(deviceID, deviceName string)
    ConnectToControllerServiceFailedCB(deviceID, deviceName string)
    DisconnectedFromControllerServiceCB(deviceID, deviceName string)
    ControllerClientErrorCB(codes []ErrorCode)
}

// NopCallback implements Callback with no-ops; embed it to override only
// the notifications of interest.
type NopCallback struct{}

func (NopCallback) ConnectedToControllerServiceCB(string, string)      {}
func (NopCallback) ConnectToControllerServiceFailedCB(string, string)  {}
func (NopCallback) DisconnectedFromControllerServiceCB(string, string) {}
func (NopCallback) ControllerClientErrorCB([]ErrorCode)                {}

var _ Callback = NopCallback{}
