package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SpendStoredMessage is a lightweight mirror message. It carries only the
// row ID; the worker fetches the full spend from the database.
type SpendStoredMessage struct {
	EventID   string    `json:"event_id"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSpendStoredMessage creates a mirror message for a stored spend row.
func NewSpendStoredMessage(id int64) *SpendStoredMessage {
	return &SpendStoredMessage{
		EventID:   uuid.NewString(),
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON renders the message as its wire payload.
func (m *SpendStoredMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SpendStoredMessageFromJSON parses a wire payload back into a message.
func SpendStoredMessageFromJSON(data []byte) (*SpendStoredMessage, error) {
	var msg SpendStoredMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
