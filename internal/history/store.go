package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sms-console/internal/model"
	"sms-console/internal/outbox"
	"sms-console/pkg/db"
	"sms-console/pkg/metrics"
)

var ErrNotFound = errors.New("history record not found")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Store struct {
	db *db.DB
	// publishEvents adds an outbox event per record.
	publishEvents bool
}

func NewStore(database *db.DB, publishEvents bool) *Store {
	return &Store{db: database, publishEvents: publishEvents}
}

type historyRow struct {
	ID                   string         `db:"id"`
	SenderID             string         `db:"sender_id"`
	RecipientCount       int            `db:"recipient_count"`
	FailedRecipientCount int            `db:"failed_recipient_count"`
	Message              string         `db:"message"`
	Status               string         `db:"status"`
	Type                 string         `db:"type"`
	Date                 string         `db:"date"`
	FailedRecipients     []byte         `db:"failed_recipients"`
	Error                sql.NullString `db:"error"`
	CreatedAt            time.Time      `db:"created_at"`
}

func (r historyRow) toModel() (model.SmsHistoryRecord, error) {
	rec := model.SmsHistoryRecord{
		ID:                   r.ID,
		SenderID:             r.SenderID,
		RecipientCount:       r.RecipientCount,
		FailedRecipientCount: r.FailedRecipientCount,
		Message:              r.Message,
		Status:               model.HistoryStatus(r.Status),
		Type:                 r.Type,
		Date:                 r.Date,
		CreatedAt:            r.CreatedAt,
		Error:                r.Error.String,
	}
	if len(r.FailedRecipients) > 0 {
		if err := json.Unmarshal(r.FailedRecipients, &rec.FailedRecipients); err != nil {
			return model.SmsHistoryRecord{}, fmt.Errorf("decode failed recipients of %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

// Insert writes one audit record. Records are never updated afterwards.
func (s *Store) Insert(ctx context.Context, rec model.SmsHistoryRecord) (err error) {
	var failed any
	if len(rec.FailedRecipients) > 0 {
		b, err := json.Marshal(rec.FailedRecipients)
		if err != nil {
			return err
		}
		failed = string(b)
	}
	var recErr any
	if rec.Error != "" {
		recErr = rec.Error
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `
		INSERT INTO sms_history
			(id, sender_id, recipient_count, failed_recipient_count, message, status, type, date, failed_recipients, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CAST(? AS JSON), ?, ?)
	`
	execFn := metrics.DBExecObserver("insert_sms_history", func(c context.Context) error {
		_, execErr := tx.ExecContext(c, query,
			rec.ID, rec.SenderID, rec.RecipientCount, rec.FailedRecipientCount, rec.Message,
			rec.Status, rec.Type, rec.Date, failed, recErr, rec.CreatedAt)
		return execErr
	})
	if err = execFn(ctx); err != nil {
		return err
	}

	if s.publishEvents {
		err = outbox.InsertTx(ctx, tx, outbox.Event{
			AggregateType: "sms_history",
			AggregateID:   rec.ID,
			EventType:     outbox.EventHistoryCreated,
			Payload:       rec,
		})
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type Filter struct {
	Status model.HistoryStatus
	Limit  int
}

func (s *Store) List(ctx context.Context, f Filter) ([]model.SmsHistoryRecord, error) {
	query := `SELECT id, sender_id, recipient_count, failed_recipient_count, message, status, type, date, failed_recipients, error, created_at FROM sms_history`
	var args []any

	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, f.Status)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	var rows []historyRow
	queryFn := metrics.DBExecObserver("select_sms_history", func(c context.Context) error {
		return s.db.SelectContext(c, &rows, query, args...)
	})
	if err := queryFn(ctx); err != nil {
		return nil, err
	}

	out := make([]model.SmsHistoryRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.SmsHistoryRecord, error) {
	const query = `SELECT id, sender_id, recipient_count, failed_recipient_count, message, status, type, date, failed_recipients, error, created_at FROM sms_history WHERE id = ?`

	var r historyRow
	queryFn := metrics.DBExecObserver("select_sms_history_by_id", func(c context.Context) error {
		return s.db.GetContext(c, &r, query, id)
	})
	if err := queryFn(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SmsHistoryRecord{}, ErrNotFound
		}
		return model.SmsHistoryRecord{}, err
	}
	return r.toModel()
}
