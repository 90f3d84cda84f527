package agent

import (
	"fmt"
	"strings"

	"github.com/teslashibe/voiceflow/pkg/media"
)

// PayloadKind tags a grounding payload.
type PayloadKind string

const (
	PayloadText     PayloadKind = "text"
	PayloadDocument PayloadKind = "document"
)

// ParsePayloadKind validates a slot name.
func ParsePayloadKind(s string) (PayloadKind, error) {
	switch PayloadKind(s) {
	case PayloadText, PayloadDocument:
		return PayloadKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPayloadKind, s)
	}
}

// Payload is the grounding content handed to the responder. Content is the
// raw text for PayloadText and the full data URI for PayloadDocument.
type Payload struct {
	Kind    PayloadKind `json:"kind"`
	Content string      `json:"content"`
}

// ClassifyPayload tags a grounding string. Only the exact document prefix at
// the start of s makes it a document; everything else is text.
func ClassifyPayload(s string) Payload {
	if media.IsDocument(s) {
		return Payload{Kind: PayloadDocument, Content: s}
	}
	return Payload{Kind: PayloadText, Content: s}
}

// Grounding holds one agent's grounding slots. A document and a text value
// may both be set; the document always wins at resolution time.
type Grounding struct {
	Text     string
	Document string
}

// HasText reports whether the text slot holds non-blank content.
func (g Grounding) HasText() bool {
	return strings.TrimSpace(g.Text) != ""
}

// HasDocument reports whether the document slot is set.
func (g Grounding) HasDocument() bool {
	return g.Document != ""
}

// Set stores v in the slot its prefix selects.
func (g Grounding) Set(v string) Grounding {
	p := ClassifyPayload(v)
	if p.Kind == PayloadDocument {
		g.Document = v
	} else {
		g.Text = v
	}
	return g
}

// WithText replaces the text slot.
func (g Grounding) WithText(text string) Grounding {
	g.Text = text
	return g
}

// WithDocument replaces the document slot. The value must carry the
// document prefix.
func (g Grounding) WithDocument(uri string) (Grounding, error) {
	if !media.IsDocument(uri) {
		return g, fmt.Errorf("%w: must start with %q", ErrInvalidDocument, media.DocumentPrefix)
	}
	g.Document = uri
	return g, nil
}

// Clear empties one slot.
func (g Grounding) Clear(kind PayloadKind) Grounding {
	switch kind {
	case PayloadDocument:
		g.Document = ""
	case PayloadText:
		g.Text = ""
	}
	return g
}

// Resolve selects the payload for profile. Generic agents resolve to nil.
// For the others the document slot wins over the text slot, and an agent
// with neither fails with MissingGroundingError. A text slot holding a PDF
// data URI is still classified by its prefix.
func Resolve(profile Profile, g Grounding) (*Payload, error) {
	if !profile.RequiresGrounding() {
		return nil, nil
	}
	if g.HasDocument() {
		return &Payload{Kind: PayloadDocument, Content: g.Document}, nil
	}
	if g.HasText() {
		p := ClassifyPayload(g.Text)
		return &p, nil
	}
	return nil, &MissingGroundingError{Agent: profile.ID, Kind: profile.Kind}
}
