package feed

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MessageType defines the type of feed message
type MessageType string

const (
	TypeConnected       MessageType = "connected"
	TypeRecordingStored MessageType = "recording_stored"
)

// Message is the envelope of every server to client frame
type Message struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ConnectedData confirms a successful subscription
type ConnectedData struct {
	ContributorID uuid.UUID `json:"contributorId"`
}

// ToJSON converts a message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
