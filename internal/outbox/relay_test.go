package outbox

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"sms-console/pkg/db"
	amqp "sms-console/pkg/queue"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

type fakePublisher struct {
	err  error
	sent []amqp.PublishRequest
}

func (f *fakePublisher) PublishContext(_ context.Context, req amqp.PublishRequest) error {
	f.sent = append(f.sent, req)
	return f.err
}

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })
	return &db.DB{DB: sqlx.NewDb(mockDB, "mysql")}, mock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func pendingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "attempts", "created_at"}).
		AddRow(int64(7), "rec-1", EventHistoryCreated, []byte(`{"id":"rec-1"}`), 0, time.Now())
}

func TestRelayPublishesPendingEvents(t *testing.T) {
	database, mock := newMockDB(t)
	pub := &fakePublisher{}
	relay := NewRelay(database, pub, RelayConfig{Exchange: "sms_history"}, quietLogger())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, aggregate_id, event_type, payload").WithArgs(sqlmock.AnyArg(), 100).WillReturnRows(pendingRows())
	mock.ExpectExec("UPDATE outbox_events SET status = 'processing'").WithArgs(sqlmock.AnyArg(), int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE outbox_events SET status = 'processed'").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 claimed event, got %d", n)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.sent))
	}
	got := pub.sent[0]
	if got.Exchange != "sms_history" || got.Key != EventHistoryCreated || got.MessageID != "rec-1" {
		t.Fatalf("unexpected publish %+v", got)
	}
	if string(got.Msg) != `{"id":"rec-1"}` {
		t.Fatalf("unexpected payload %s", got.Msg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRelayReschedulesFailedPublish(t *testing.T) {
	database, mock := newMockDB(t)
	pub := &fakePublisher{err: errors.New("broker down")}
	relay := NewRelay(database, pub, RelayConfig{Exchange: "sms_history"}, quietLogger())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, aggregate_id, event_type, payload").WithArgs(sqlmock.AnyArg(), 100).WillReturnRows(pendingRows())
	mock.ExpectExec("UPDATE outbox_events SET status = 'processing'").WithArgs(sqlmock.AnyArg(), int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE outbox_events SET status = 'pending'").
		WithArgs(1, sqlmock.AnyArg(), "broker down", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRelayIdlePass(t *testing.T) {
	database, mock := newMockDB(t)
	relay := NewRelay(database, &fakePublisher{}, RelayConfig{BatchSize: 5}, quietLogger())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, aggregate_id, event_type, payload").WithArgs(sqlmock.AnyArg(), 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "attempts", "created_at"}))
	mock.ExpectCommit()

	n, err := relay.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected empty pass, got n=%d err=%v", n, err)
	}
}

// cancellingPublisher stops the relay's context during the first publish,
// the way a SIGTERM would in the middle of a batch.
type cancellingPublisher struct {
	cancel context.CancelFunc
	calls  int
}

func (p *cancellingPublisher) PublishContext(ctx context.Context, _ amqp.PublishRequest) error {
	p.calls++
	p.cancel()
	return ctx.Err()
}

func TestRelayShutdownMidBatchLeavesNoEventProcessing(t *testing.T) {
	database, mock := newMockDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &cancellingPublisher{cancel: cancel}
	relay := NewRelay(database, pub, RelayConfig{Exchange: "sms_history"}, quietLogger())

	rows := pendingRows().AddRow(int64(8), "rec-2", EventHistoryCreated, []byte(`{"id":"rec-2"}`), 0, time.Now())
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, aggregate_id, event_type, payload").WithArgs(sqlmock.AnyArg(), 100).WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox_events SET status = 'processing'").
		WithArgs(sqlmock.AnyArg(), int64(7), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE outbox_events SET status = 'pending', attempts").
		WithArgs(1, sqlmock.AnyArg(), context.Canceled.Error(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox_events SET status = 'pending', claimed_at = NULL WHERE id IN").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := relay.RunOnce(ctx)
	if err != nil || n != 2 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}
	if pub.calls != 1 {
		t.Fatalf("expected publishing to stop after cancellation, got %d calls", pub.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimPendingReclaimsExpiredLease(t *testing.T) {
	database, mock := newMockDB(t)
	relay := NewRelay(database, &fakePublisher{}, RelayConfig{Lease: 30 * time.Second}, quietLogger())
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	relay.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE \(status = 'pending' (.+) OR \(status = 'processing' AND claimed_at < \?\)`).
		WithArgs(now.Add(-30*time.Second), 100).
		WillReturnRows(pendingRows())
	mock.ExpectExec("UPDATE outbox_events SET status = 'processing', claimed_at = \\?").
		WithArgs(now, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows, err := relay.claimPending(context.Background())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != 7 {
		t.Fatalf("unexpected claim %+v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBackoff(t *testing.T) {
	if backoff(1) != 2*time.Second {
		t.Fatalf("unexpected first backoff %s", backoff(1))
	}
	if backoff(9) != 64*time.Second {
		t.Fatalf("expected cap at 64s, got %s", backoff(9))
	}
}

func TestInsertTxValidates(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	tx, err := database.BeginTxx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := InsertTx(context.Background(), tx, Event{EventType: EventHistoryCreated}); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := InsertTx(context.Background(), nil, Event{}); err == nil {
		t.Fatalf("expected error for nil tx")
	}
}
