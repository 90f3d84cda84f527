// Package hub provides a websocket broadcast hub using channel-based
// fan-out.
package hub

import "encoding/json"

// Message is one encoded frame queued for clients.
type Message struct {
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// EncodeJSON marshals v into a Message.
func EncodeJSON(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
