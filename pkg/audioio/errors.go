package audioio

import "errors"

var (
	// ErrDeviceUnavailable is returned when no audio device can be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrUnsupportedBackend is returned for unknown backend names.
	ErrUnsupportedBackend = errors.New("unsupported audio backend")
)
