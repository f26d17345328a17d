// Package domain contains entity without logic, just meta-data
package domain

// Kind is the coarse media category of a stream or handle.
type Kind string

const (
	KindCamera Kind = "camera"
	KindScreen Kind = "screen"
	// KindSIP marks non-browser participants that publish audio/video
	// without a declared video type. Treated as camera-equivalent for
	// registry slots and admission control.
	KindSIP Kind = "sip"
)

// Slot maps a kind onto one of the two registry collections.
func (k Kind) Slot() Kind {
	if k == KindScreen {
		return KindScreen
	}
	return KindCamera
}
