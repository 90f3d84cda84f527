package media

import (
	"fmt"
	"strings"
)

// Common audio media types.
const (
	AudioWAV  = "audio/wav"
	AudioMPEG = "audio/mpeg"
	AudioWebM = "audio/webm"
	AudioOGG  = "audio/ogg"
	AudioFLAC = "audio/flac"
	AudioL16  = "audio/L16"
)

// Audio is an encoded audio payload: captured speech or synthesized reply.
// It is owned by one pipeline pass and never persisted.
type Audio struct {
	MediaType string
	Data      []byte
}

// Empty reports whether the payload carries no audio bytes.
func (a Audio) Empty() bool {
	return len(a.Data) == 0
}

// DataURI renders the payload as a data URI for direct playback.
func (a Audio) DataURI() string {
	return DataURI{MediaType: a.MediaType, Data: a.Data}.String()
}

// AudioFromDataURI parses a data URI carrying an audio media type.
func AudioFromDataURI(s string) (Audio, error) {
	d, err := ParseDataURI(s)
	if err != nil {
		return Audio{}, err
	}
	if !strings.HasPrefix(d.MediaType, "audio/") {
		return Audio{}, fmt.Errorf("media: %q is not an audio media type", d.MediaType)
	}
	return Audio{MediaType: d.MediaType, Data: d.Data}, nil
}

// BaseType strips parameters from a media type ("audio/webm;codecs=opus" -> "audio/webm").
func BaseType(mediaType string) string {
	base, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// FormatFromMediaType maps an audio media type to a short container name.
func FormatFromMediaType(mediaType string) string {
	switch BaseType(mediaType) {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/flac":
		return "flac"
	case "audio/l16":
		return "pcm"
	default:
		return "wav"
	}
}

// MediaTypeFromFormat is the inverse of FormatFromMediaType.
func MediaTypeFromFormat(format string) string {
	switch strings.ToLower(format) {
	case "mp3":
		return AudioMPEG
	case "webm":
		return AudioWebM
	case "ogg", "opus":
		return AudioOGG
	case "flac":
		return AudioFLAC
	case "pcm":
		return AudioL16
	default:
		return AudioWAV
	}
}
