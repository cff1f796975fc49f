package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	TransactionRecorded EventType = "transaction.recorded"
	LedgerReset         EventType = "ledger.reset"
)

var ErrMalformedEvent = errors.New("malformed ledger event")

// LedgerEvent announces a change to a user's ledger. Consumers re-read the
// store for details; the event carries only identifiers.
type LedgerEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          EventType `json:"type"`
	UserID        int64     `json:"user_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Removed       int64     `json:"removed,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecorded(userID, transactionID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:            uuid.New(),
		Type:          TransactionRecorded,
		UserID:        userID,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

func NewLedgerReset(userID, removed int64) *LedgerEvent {
	return &LedgerEvent{
		ID:        uuid.New(),
		Type:      LedgerReset,
		UserID:    userID,
		Removed:   removed,
		Timestamp: time.Now().UTC(),
	}
}

func (e *LedgerEvent) Validate() error {
	if e.UserID == 0 {
		return fmt.Errorf("%w: missing user_id", ErrMalformedEvent)
	}
	switch e.Type {
	case TransactionRecorded:
		if e.TransactionID <= 0 {
			return fmt.Errorf("%w: missing transaction_id", ErrMalformedEvent)
		}
	case LedgerReset:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, e.Type)
	}
	return nil
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var evt LedgerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return &evt, nil
}
