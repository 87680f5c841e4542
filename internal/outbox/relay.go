package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"sms-console/pkg/db"
	"sms-console/pkg/metrics"
	amqp "sms-console/pkg/queue"
)

type Publisher interface {
	PublishContext(ctx context.Context, req amqp.PublishRequest) error
}

type row struct {
	ID          int64           `db:"id"`
	AggregateID string          `db:"aggregate_id"`
	EventType   string          `db:"event_type"`
	Payload     json.RawMessage `db:"payload"`
	Attempts    int             `db:"attempts"`
	CreatedAt   time.Time       `db:"created_at"`
}

const maxAttempts = 10

type RelayConfig struct {
	Exchange  string
	BatchSize int
	IdleSleep time.Duration
	// Lease is how long a claimed event may stay in processing before
	// another pass takes it back.
	Lease time.Duration
}

// Relay publishes pending outbox events to RabbitMQ, oldest first.
type Relay struct {
	db        *db.DB
	publisher Publisher
	cfg       RelayConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewRelay(database *db.DB, publisher Publisher, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = 500 * time.Millisecond
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &Relay{db: database, publisher: publisher, cfg: cfg, logger: logger, now: time.Now}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	for {
		n, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("outbox relay pass", "err", err)
		}
		if n > 0 && err == nil && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.IdleSleep):
		}
	}
}

// RunOnce claims one batch and publishes it. It returns how many events it claimed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.claimPending(ctx)
	if err != nil {
		return 0, err
	}
	for i, ev := range rows {
		if ctx.Err() != nil {
			r.release(ctx, rows[i:])
			break
		}
		if err := r.publishOne(ctx, ev); err != nil {
			r.logger.Error("outbox publish one", "id", ev.ID, "err", err)
		}
	}
	return len(rows), nil
}

func (r *Relay) claimPending(ctx context.Context) ([]row, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const selectQ = `
		SELECT id, aggregate_id, event_type, payload, attempts, created_at
		FROM outbox_events
		WHERE (status = 'pending' AND (next_run_at IS NULL OR next_run_at <= CURRENT_TIMESTAMP))
		   OR (status = 'processing' AND claimed_at < ?)
		ORDER BY created_at ASC, id ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED
	`
	now := r.now()
	var rows []row
	if err := tx.SelectContext(ctx, &rows, selectQ, now.Add(-r.cfg.Lease), r.cfg.BatchSize); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, tx.Commit()
	}

	args := make([]any, 0, len(rows)+1)
	args = append(args, now)
	for _, ev := range rows {
		args = append(args, ev.ID)
	}
	q := `UPDATE outbox_events SET status = 'processing', claimed_at = ? WHERE id IN (?` + strings.Repeat(",?", len(rows)-1) + `)`
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rows, nil
}

// publishOne publishes with ctx but records the outcome with a detached
// context, so a shutdown mid-publish still leaves the row in a final or
// retryable state.
func (r *Relay) publishOne(ctx context.Context, ev row) error {
	err := metrics.RelayObserver(func(c context.Context) error {
		return r.publisher.PublishContext(c, amqp.PublishRequest{
			Exchange:  r.cfg.Exchange,
			Key:       ev.EventType,
			MessageID: ev.AggregateID,
			Msg:       ev.Payload,
		})
	})(ctx)
	detached := context.WithoutCancel(ctx)
	if err != nil {
		return r.failOrRetry(detached, ev, err)
	}

	_, err = r.db.ExecContext(detached,
		`UPDATE outbox_events SET status = 'processed', claimed_at = NULL, last_error = NULL WHERE id = ?`, ev.ID)
	return err
}

// release hands unpublished events back without counting an attempt.
func (r *Relay) release(ctx context.Context, rows []row) {
	ids := make([]any, 0, len(rows))
	for _, ev := range rows {
		ids = append(ids, ev.ID)
	}
	q := `UPDATE outbox_events SET status = 'pending', claimed_at = NULL WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	if _, err := r.db.ExecContext(context.WithoutCancel(ctx), q, ids...); err != nil {
		r.logger.Error("outbox release claimed events", "count", len(ids), "err", err)
	}
}

func (r *Relay) failOrRetry(ctx context.Context, ev row, cause error) error {
	attempts := ev.Attempts + 1

	if attempts >= maxAttempts {
		_, err := r.db.ExecContext(ctx,
			`UPDATE outbox_events SET status = 'failed', attempts = ?, claimed_at = NULL, last_error = ? WHERE id = ?`,
			attempts, cause.Error(), ev.ID,
		)
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = 'pending', attempts = ?, next_run_at = ?, claimed_at = NULL, last_error = ? WHERE id = ?`,
		attempts, r.now().Add(backoff(attempts)), cause.Error(), ev.ID,
	)
	return err
}

// backoff doubles from 2s and caps at 64s.
func backoff(attempts int) time.Duration {
	return time.Second * time.Duration(1<<min(attempts, 6))
}
