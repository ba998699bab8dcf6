package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// LedgerSyncMessage asks the mirror worker to push one transaction row
// to the spreadsheet. Version disambiguates re-syncs after edits.
type LedgerSyncMessage struct {
	TransactionID string    `json:"transaction_id"`
	Owner         string    `json:"owner"`
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

// LedgerDeleteMessage tells the mirror worker a transaction was removed.
type LedgerDeleteMessage struct {
	TransactionID string    `json:"transaction_id"`
	Owner         string    `json:"owner"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(id, owner string, version int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		TransactionID: id,
		Owner:         owner,
		Version:       version,
		Timestamp:     time.Now().UTC(),
	}
}

func NewLedgerDeleteMessage(id, owner string) *LedgerDeleteMessage {
	return &LedgerDeleteMessage{
		TransactionID: id,
		Owner:         owner,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var m LedgerSyncMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal sync message: %w", err)
	}
	if m.TransactionID == "" {
		return nil, fmt.Errorf("sync message missing transaction id")
	}
	return &m, nil
}

func (m *LedgerDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerDeleteMessageFromJSON(data []byte) (*LedgerDeleteMessage, error) {
	var m LedgerDeleteMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal delete message: %w", err)
	}
	if m.TransactionID == "" {
		return nil, fmt.Errorf("delete message missing transaction id")
	}
	return &m, nil
}
