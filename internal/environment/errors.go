package environment

import (
	"errors"
	"fmt"
)

// ErrUnknownEnvironment is returned when a mode name matches no table entry
var ErrUnknownEnvironment = errors.New("unknown environment")

// ConfigurationError reports an environment that cannot be used. It is fatal
// at startup: serving the wrong origins silently is worse than not serving.
type ConfigurationError struct {
	Mode string
	Err  error
}

// Error returns the error message
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for environment %q: %v", e.Mode, e.Err)
}

// Unwrap returns the underlying error
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
