package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var errMissingID = errors.New("message has no id")

// TransactionSyncMessage represents a lightweight message for exporting a transaction.
// Contains only the ID and version, the worker will fetch the full transaction from database
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionSyncMessage creates a new sync message with just ID and version
func NewTransactionSyncMessage(id string, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON creates a message from JSON bytes
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errMissingID
	}
	return &msg, nil
}

// ChangeMessage tells snapshot holders that an entity changed.
type ChangeMessage struct {
	Entity    string    `json:"entity"` // card, transaction or budget
	ID        string    `json:"id"`
	Op        string    `json:"op"` // create, update or delete
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(entity, id, op string) *ChangeMessage {
	return &ChangeMessage{
		Entity:    entity,
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
