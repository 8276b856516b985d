package types

import (
	"errors"
	"fmt"
)

// ConfigurationError reports invalid parameters, unknown algorithm names or
// input series of mismatching lengths. It is always fatal to a run.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StateError reports an operation invoked in the wrong lifecycle state,
// e.g. predicting with a model that was never fitted.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error: %s: %s", e.Op, e.Reason)
}

func NewStateError(op, reason string) *StateError {
	return &StateError{Op: op, Reason: reason}
}

// AcquisitionError is produced by a connector when its upstream source could
// not deliver usable data. Connectors absorb it into a synthetic fallback
// unless asked not to.
type AcquisitionError struct {
	Connector string
	Err       error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition failed for %s: %v", e.Connector, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// ValidationError wraps anything that went wrong while computing holdout
// metrics. It never aborts a run.
type ValidationError struct {
	Target string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation unavailable for %s: %v", e.Target, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort a pipeline run as is.
func IsFatal(err error) bool {
	var ce *ConfigurationError
	var se *StateError
	return errors.As(err, &ce) || errors.As(err, &se)
}
