package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger mutation.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
	CategoryAdded      EventType = "category.added"
	CategoryDeleted    EventType = "category.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted, CategoryAdded, CategoryDeleted:
		return true
	}
	return false
}

// LedgerEvent tells consumers that the ledger changed. It carries ids only;
// consumers read current state from the store.
type LedgerEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	CategoryID    int64     `json:"category_id,omitempty"`
	Month         string    `json:"month,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType) LedgerEvent {
	return LedgerEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

func NewTransactionEvent(t EventType, id int64, month string) LedgerEvent {
	e := NewLedgerEvent(t)
	e.TransactionID = id
	e.Month = month
	return e
}

func NewCategoryEvent(t EventType, id int64) LedgerEvent {
	e := NewLedgerEvent(t)
	e.CategoryID = id
	return e
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	if !e.Type.Valid() {
		return LedgerEvent{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}
