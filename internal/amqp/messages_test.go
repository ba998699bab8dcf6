package amqp

import (
	"testing"
)

func TestLedgerSyncMessageRoundTrip(t *testing.T) {
	msg := NewLedgerSyncMessage("txn-1", "alice", 3)
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := LedgerSyncMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TransactionID != "txn-1" || got.Owner != "alice" || got.Version != 3 {
		t.Errorf("got %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp set")
	}
}

func TestLedgerSyncMessageRejectsMissingID(t *testing.T) {
	if _, err := LedgerSyncMessageFromJSON([]byte(`{"owner":"alice"}`)); err == nil {
		t.Error("expected error for missing transaction id")
	}
	if _, err := LedgerSyncMessageFromJSON([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestLedgerDeleteMessageRoundTrip(t *testing.T) {
	msg := NewLedgerDeleteMessage("txn-2", "bob")
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := LedgerDeleteMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TransactionID != "txn-2" || got.Owner != "bob" {
		t.Errorf("got %+v", got)
	}
}
