package amqp

import (
	"encoding/json"
	"time"
)

// ExportMessage asks the worker to mirror one transaction to the backup
// spreadsheet. Only identifiers travel; the worker loads the full row.
type ExportMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewExportMessage(transactionID, userID string) *ExportMessage {
	return &ExportMessage{
		TransactionID: transactionID,
		UserID:        userID,
		Timestamp:     time.Now(),
	}
}

func (m *ExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportMessageFromJSON(data []byte) (*ExportMessage, error) {
	var msg ExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
