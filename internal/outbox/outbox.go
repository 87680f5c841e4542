package outbox

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

const EventHistoryCreated = "sms.history.created"

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       any
}

// InsertTx writes the event in the caller's transaction so it commits or
// rolls back together with the record it describes.
func InsertTx(ctx context.Context, tx *sqlx.Tx, evt Event) error {
	if tx == nil {
		return errors.New("tx is required")
	}
	if evt.AggregateType == "" || evt.AggregateID == "" || evt.EventType == "" {
		return errors.New("aggregate_type, aggregate_id, and event_type are required")
	}

	b, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, status)
		VALUES (?, ?, ?, CAST(? AS JSON), ?)
	`
	_, err = tx.ExecContext(ctx, q, evt.AggregateType, evt.AggregateID, evt.EventType, string(b), StatusPending)
	return err
}
