package amqp

import (
	"encoding/json"
	"time"
)

// CycleExecutedMessage announces that a salary cycle committed. The worker
// fetches the cycle's ledger entries from the database; the message stays
// lightweight on purpose.
type CycleExecutedMessage struct {
	CycleID   int64     `json:"cycle_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCycleExecutedMessage(cycleID, userID int64) *CycleExecutedMessage {
	return &CycleExecutedMessage{
		CycleID:   cycleID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *CycleExecutedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CycleExecutedMessageFromJSON(data []byte) (*CycleExecutedMessage, error) {
	var msg CycleExecutedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
