// Package protocol defines the messages exchanged between the input capture
// layer and the translation reactor, in line, JSON and binary forms.
package protocol

import "encoding/json"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeLine carries one line of the inter-stage protocol ("M 10 20", "Ca", "exit")
	TypeLine MessageType = "line"

	// TypeRaw carries an untranslated keyboard or pointer event
	TypeRaw MessageType = "raw"

	// TypeAck is sent by the server after a client connects
	TypeAck MessageType = "ack"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Envelope is the generic container for all WebSocket messages
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Raw event types
const (
	RawKey         = "key"
	RawPointerMove = "mouse_move"
	RawPointerBtn  = "mouse_btn"
)

// RawEvent is a keyboard or pointer event as reported by an OS hook.
type RawEvent struct {
	Type    string `json:"type"` // "key", "mouse_move", "mouse_btn"
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Button  int    `json:"btn,omitempty"` // 1=left, 2=right
	Pressed bool   `json:"pressed,omitempty"`
	KeyCode uint16 `json:"keycode,omitempty"`
}

// AckPayload is the payload for TypeAck
type AckPayload struct {
	ClientID string `json:"client_id"`
	Session  string `json:"session"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(t MessageType, payload interface{}) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Payload: data}, nil
}

// LineEnvelope wraps a protocol message for WebSocket transport.
func LineEnvelope(m Message) Envelope {
	// marshalling a string cannot fail
	env, _ := NewEnvelope(TypeLine, m.String())
	return env
}
