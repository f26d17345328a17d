package domain

import "errors"

var (
	ErrMissingAPIKey    = errors.New("credentials: api key required")
	ErrMissingSessionID = errors.New("credentials: session id required")
	ErrMissingToken     = errors.New("credentials: token required")
)

// Credentials identify one provider session. All three fields are required.
type Credentials struct {
	APIKey    string `json:"apiKey" mapstructure:"api_key"`
	SessionID string `json:"sessionId" mapstructure:"session_id"`
	Token     string `json:"token" mapstructure:"token"`
}

func (c Credentials) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.SessionID == "" {
		return ErrMissingSessionID
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}
