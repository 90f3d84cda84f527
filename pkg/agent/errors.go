package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an agent ID is not in the registry.
	ErrNotFound = errors.New("agent not found")

	// ErrDuplicate is returned when a registry is built with a repeated ID.
	ErrDuplicate = errors.New("duplicate agent id")

	// ErrInvalidKind is returned for profiles with an unknown dispatch kind.
	ErrInvalidKind = errors.New("invalid dispatch kind")

	// ErrInvalidPayloadKind is returned for an unknown grounding slot.
	ErrInvalidPayloadKind = errors.New("invalid payload kind")

	// ErrInvalidDocument is returned when a document slot value is not a
	// PDF data URI.
	ErrInvalidDocument = errors.New("invalid document payload")
)

// MissingGroundingError is returned when an agent that needs grounding has
// neither a document nor a text payload configured.
type MissingGroundingError struct {
	Agent ID
	Kind  Kind
}

func (e *MissingGroundingError) Error() string {
	return fmt.Sprintf("agent %s (%s) has no grounding configured", e.Agent, e.Kind)
}

// IsMissingGrounding reports whether err is a MissingGroundingError.
func IsMissingGrounding(err error) bool {
	var mg *MissingGroundingError
	return errors.As(err, &mg)
}
