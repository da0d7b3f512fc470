package host

import (
	"fmt"

	"github.com/pkg/errors"
)

// TransientSensorError is returned by SensorService.Fetch when a buffer is not available
// yet. The capture may be retried.
type TransientSensorError struct {
	Sensor Sensor
	Cause  error
}

// NewTransientSensorError returns a transient error for sensor.
func NewTransientSensorError(sensor Sensor, cause error) error {
	return &TransientSensorError{Sensor: sensor, Cause: cause}
}

func (e *TransientSensorError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("sensor %s not ready", e.Sensor)
	}
	return fmt.Sprintf("sensor %s not ready: %v", e.Sensor, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransientSensorError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err, or any error it wraps, is a TransientSensorError.
func IsTransient(err error) bool {
	var tErr *TransientSensorError
	return errors.As(err, &tErr)
}

// NewPrimNotFoundError returns an error for a missing prim.
func NewPrimNotFoundError(path string) error {
	return errors.Errorf("prim %q not found", path)
}

// NewAttributeNotFoundError returns an error for a missing attribute.
func NewAttributeNotFoundError(path, name string) error {
	return errors.Errorf("attribute %q not found on prim %q", name, path)
}
