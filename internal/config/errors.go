package config

import "errors"

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a problem with the local configuration, detected
// before any remote call is made.
type ConfigurationError struct {
	Network string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewError returns a ConfigurationError for network.
func NewError(network, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Network: network, Reason: reason, Err: err}
}
