package core

import "fmt"

// CodeConnectFailed is the provider code for a failed media connection.
// The orchestrator translates it into a user-facing connectivity hint.
const CodeConnectFailed = 1013

// ProviderError carries the provider's numeric error code alongside its
// message so callers can branch on known codes.
type ProviderError struct {
	Code int
	Msg  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Msg)
}
