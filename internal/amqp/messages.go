package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ExpenseRecordedMessage announces a newly stored expense. It carries ids
// only; consumers read the expense itself from the database.
type ExpenseRecordedMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(id, userID, version int64) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:        id,
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON decodes a message and rejects ones without
// an expense id.
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, errors.New("message has no expense id")
	}
	return &msg, nil
}
