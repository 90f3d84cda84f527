// Package media defines the payload encodings exchanged between the voice
// pipeline stages: base64 data URIs, audio payloads and WAV framing.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DocumentPrefix marks a grounding payload as a PDF document. Any string not
// starting with exactly this prefix is plain text.
const DocumentPrefix = "data:application/pdf;base64,"

// DocumentMediaType is the media type of document payloads.
const DocumentMediaType = "application/pdf"

// ErrNotDataURI is returned when a string is not a base64 data URI.
var ErrNotDataURI = errors.New("media: not a base64 data URI")

// DataURI is a decoded "data:<mediatype>;base64,<data>" value.
type DataURI struct {
	MediaType string
	Data      []byte
}

// IsDocument reports whether s is a document payload. The check is purely
// structural: the prefix must appear at the very start of s.
func IsDocument(s string) bool {
	return strings.HasPrefix(s, DocumentPrefix)
}

// EncodeDocument wraps raw PDF bytes in a document data URI.
func EncodeDocument(pdf []byte) string {
	return DocumentPrefix + base64.StdEncoding.EncodeToString(pdf)
}

// ParseDataURI decodes a base64 data URI. Media type parameters other than
// the base64 marker (e.g. ";codecs=opus") are kept in MediaType.
func ParseDataURI(s string) (DataURI, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, ErrNotDataURI
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return DataURI{}, ErrNotDataURI
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, fmt.Errorf("media: decode data URI: %w", err)
	}
	return DataURI{MediaType: mediaType, Data: data}, nil
}

// String encodes the value as a base64 data URI.
func (d DataURI) String() string {
	return "data:" + d.MediaType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}
