package capture

import (
	"errors"
	"fmt"
)

// ErrAlreadyRecording is returned by Record while a recording is active.
var ErrAlreadyRecording = errors.New("capture: already recording")

// DeviceUnavailableError is returned when the microphone cannot be opened,
// because permission was denied or no device exists.
type DeviceUnavailableError struct {
	Err error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("microphone unavailable: %v", e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// NotRecordingError is returned by Stop when no recording is active.
type NotRecordingError struct{}

func (e *NotRecordingError) Error() string { return "no active recording" }

// IsNotRecording reports whether err is a NotRecordingError.
func IsNotRecording(err error) bool {
	var nr *NotRecordingError
	return errors.As(err, &nr)
}

// IsDeviceUnavailable reports whether err is a DeviceUnavailableError.
func IsDeviceUnavailable(err error) bool {
	var du *DeviceUnavailableError
	return errors.As(err, &du)
}
