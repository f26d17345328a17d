package events

// Core event names registered at bus construction. Feature modules may
// register additional names at any time.
const (
	Connected    = "connected"
	Reconnected  = "reconnected"
	Disconnected = "disconnected"

	StartCall = "startCall"
	EndCall   = "endCall"
	Error     = "error"

	StreamCreated   = "streamCreated"
	StreamDestroyed = "streamDestroyed"
	SignalReceived  = "signal"

	SubscribeToCamera     = "subscribeToCamera"
	SubscribeToScreen     = "subscribeToScreen"
	SubscribeToSIP        = "subscribeToSip"
	UnsubscribeFromCamera = "unsubscribeFromCamera"
	UnsubscribeFromScreen = "unsubscribeFromScreen"

	StartScreenShare = "startScreenShare"
	EndScreenShare   = "endScreenShare"

	// Legacy aliases kept for feature modules written against the old
	// screen-viewing names.
	StartViewingSharedScreen = "startViewingSharedScreen"
	EndViewingSharedScreen   = "endViewingSharedScreen"
)

// CoreEvents lists every name the session core registers up front.
func CoreEvents() []string {
	return []string{
		Connected, Reconnected, Disconnected,
		StartCall, EndCall, Error,
		StreamCreated, StreamDestroyed, SignalReceived,
		SubscribeToCamera, SubscribeToScreen, SubscribeToSIP,
		UnsubscribeFromCamera, UnsubscribeFromScreen,
		StartScreenShare, EndScreenShare,
		StartViewingSharedScreen, EndViewingSharedScreen,
	}
}
