package playback

import "errors"

var (
	// ErrAlreadyPlaying is returned by Play while another payload is playing.
	ErrAlreadyPlaying = errors.New("playback: already playing")

	// ErrEmptyPayload is returned for payloads with no audio bytes.
	ErrEmptyPayload = errors.New("playback: empty audio payload")

	// ErrUnsupportedFormat is returned when no player can decode the payload.
	ErrUnsupportedFormat = errors.New("playback: unsupported audio format")
)
