package sms

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sms-console/internal/credential"
	"sms-console/internal/gateway"
	"sms-console/internal/model"
)

type fakeLoader struct {
	creds model.GatewayCredentials
	err   error
}

func (f fakeLoader) Load(context.Context) (model.GatewayCredentials, error) {
	return f.creds, f.err
}

type fakeHistory struct {
	mu      sync.Mutex
	records []model.SmsHistoryRecord
	failN   int
	calls   int
}

func (f *fakeHistory) Insert(_ context.Context, rec model.SmsHistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failN {
		return errors.New("db unavailable")
	}
	f.records = append(f.records, rec)
	return nil
}

type panicGateway struct{}

func (panicGateway) Send(context.Context, gateway.SendRequest) (gateway.Response, error) {
	panic("nil map write")
}

var configured = fakeLoader{creds: model.GatewayCredentials{ClientID: "client-1", ClientSecret: "secret"}}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

// stubGateway answers per recipient; unknown recipients get a 200 jobId reply.
func stubGateway(t *testing.T, replies map[string]func(http.ResponseWriter)) (*gateway.Client, *int) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		if reply, ok := replies[r.URL.Query().Get("to")]; ok {
			reply(w)
			return
		}
		_, _ = w.Write([]byte(`{"jobId":"x"}`))
	}))
	t.Cleanup(srv.Close)
	return gateway.NewClient(gateway.Options{BaseURL: srv.URL, Timeout: time.Second}), &calls
}

func reply(status int, body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestDispatcher(gw Gateway, loader CredentialLoader, hist HistoryWriter) *Dispatcher {
	d := NewDispatcher(gw, loader, hist, quietLogger())
	d.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC) }
	return d
}

func request(recipients ...string) model.BulkSendRequest {
	return model.BulkSendRequest{SenderID: "Preach It", Message: "Hello", Recipients: recipients}
}

func TestDispatchAllSent(t *testing.T) {
	gw, calls := stubGateway(t, map[string]func(http.ResponseWriter){
		"233241234567": reply(http.StatusOK, `{"status":0,"jobId":"abc"}`),
	})
	hist := &fakeHistory{}

	res := newTestDispatcher(gw, configured, hist).Dispatch(context.Background(), request("233241234567"))

	if !res.Success || res.Error != "" {
		t.Fatalf("expected success, got %+v", res)
	}
	if *calls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", *calls)
	}
	if len(hist.records) != 1 {
		t.Fatalf("expected one history record, got %d", len(hist.records))
	}
	rec := hist.records[0]
	if rec.Status != model.StatusSent || rec.RecipientCount != 1 || rec.FailedRecipientCount != 0 || rec.FailedRecipients != nil {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Type != model.HistoryTypeBulk || rec.Date != "2026-10-17" || rec.ID == "" {
		t.Fatalf("unexpected record metadata %+v", rec)
	}
}

func TestDispatchAllFailed(t *testing.T) {
	gw, _ := stubGateway(t, map[string]func(http.ResponseWriter){
		"233241234567": reply(http.StatusInternalServerError, `{"status":1}`),
	})
	hist := &fakeHistory{}

	res := newTestDispatcher(gw, configured, hist).Dispatch(context.Background(), request("233241234567"))

	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	rec := hist.records[0]
	if rec.Status != model.StatusFailed || rec.FailedRecipientCount != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(rec.FailedRecipients) != 1 || rec.FailedRecipients[0] != "233241234567" {
		t.Fatalf("unexpected failed recipients %v", rec.FailedRecipients)
	}
	if rec.Error != "" {
		t.Fatalf("per-recipient failures must not set the record error, got %q", rec.Error)
	}
}

func TestDispatchPartiallySent(t *testing.T) {
	gw, calls := stubGateway(t, map[string]func(http.ResponseWriter){
		"233241234567": reply(http.StatusOK, `<html>oops</html>`),
		"233201234567": reply(http.StatusOK, `{"jobId":"x"}`),
	})
	hist := &fakeHistory{}

	res := newTestDispatcher(gw, configured, hist).Dispatch(context.Background(), request("233241234567", "233201234567"))

	want := "1 messages sent successfully, 1 failed. Failed recipients: 233241234567"
	if res.Success || res.Error != want {
		t.Fatalf("expected %q, got %+v", want, res)
	}
	if *calls != 2 {
		t.Fatalf("expected 2 gateway calls, got %d", *calls)
	}
	rec := hist.records[0]
	if rec.Status != model.StatusPartiallySent || rec.RecipientCount != 2 || rec.FailedRecipientCount != len(rec.FailedRecipients) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestDispatchFailedRecipientsKeepInputOrder(t *testing.T) {
	bad := reply(http.StatusBadRequest, `{"status":1}`)
	gw, _ := stubGateway(t, map[string]func(http.ResponseWriter){
		"233200000003": bad,
		"233200000001": bad,
	})
	hist := &fakeHistory{}

	res := newTestDispatcher(gw, configured, hist).
		Dispatch(context.Background(), request("233200000001", "233200000002", "233200000003"))

	if !strings.HasSuffix(res.Error, "Failed recipients: 233200000001, 233200000003") {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if !strings.HasPrefix(res.Error, "1 messages sent successfully, 2 failed.") {
		t.Fatalf("unexpected error %q", res.Error)
	}
}

func TestDispatchCredentialsNotConfigured(t *testing.T) {
	gw, calls := stubGateway(t, nil)
	hist := &fakeHistory{}
	loader := fakeLoader{err: credential.ErrNotConfigured}

	res := newTestDispatcher(gw, loader, hist).Dispatch(context.Background(), request("233241234567"))

	if res.Success || res.Error != NotConfiguredMessage {
		t.Fatalf("unexpected result %+v", res)
	}
	if *calls != 0 || hist.calls != 0 {
		t.Fatalf("expected no gateway calls and no history, got %d calls and %d inserts", *calls, hist.calls)
	}
}

func TestDispatchCredentialStorageErrorIsAudited(t *testing.T) {
	gw, calls := stubGateway(t, nil)
	hist := &fakeHistory{}
	loader := fakeLoader{err: errors.New("connection refused")}

	res := newTestDispatcher(gw, loader, hist).Dispatch(context.Background(), request("233241234567"))

	if res.Error != "Failed to send bulk SMS: connection refused" {
		t.Fatalf("unexpected result %+v", res)
	}
	if *calls != 0 {
		t.Fatalf("expected no gateway calls, got %d", *calls)
	}
	if len(hist.records) != 1 || hist.records[0].Status != model.StatusFailed || hist.records[0].Error != "connection refused" {
		t.Fatalf("unexpected history %+v", hist.records)
	}
}

func TestDispatchPanicIsAudited(t *testing.T) {
	hist := &fakeHistory{}

	res := newTestDispatcher(panicGateway{}, configured, hist).Dispatch(context.Background(), request("233241234567"))

	if res.Success || !strings.HasPrefix(res.Error, "Failed to send bulk SMS: ") {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(hist.records) != 1 || hist.records[0].Status != model.StatusFailed || hist.records[0].Error != "nil map write" {
		t.Fatalf("unexpected history %+v", hist.records)
	}
}

func TestDispatchHistoryWriteFailureFallsBackToFailedRecord(t *testing.T) {
	gw, _ := stubGateway(t, nil)
	hist := &fakeHistory{failN: 1}

	res := newTestDispatcher(gw, configured, hist).Dispatch(context.Background(), request("233241234567"))

	if res.Success || !strings.Contains(res.Error, "db unavailable") {
		t.Fatalf("unexpected result %+v", res)
	}
	if hist.calls != 2 || len(hist.records) != 1 || hist.records[0].Status != model.StatusFailed {
		t.Fatalf("unexpected history %+v after %d calls", hist.records, hist.calls)
	}
}

func TestDispatchIgnoresCallerCancellation(t *testing.T) {
	gw, calls := stubGateway(t, nil)
	hist := &fakeHistory{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestDispatcher(gw, configured, hist).Dispatch(ctx, request("233241234567", "233201234567"))

	if !res.Success || *calls != 2 {
		t.Fatalf("expected both recipients sent, got %+v after %d calls", res, *calls)
	}
}

func TestDispatchIsNotIdempotent(t *testing.T) {
	gw, _ := stubGateway(t, nil)
	hist := &fakeHistory{}
	d := newTestDispatcher(gw, configured, hist)

	d.Dispatch(context.Background(), request("233241234567"))
	d.Dispatch(context.Background(), request("233241234567"))

	if len(hist.records) != 2 || hist.records[0].ID == hist.records[1].ID {
		t.Fatalf("expected two distinct records, got %+v", hist.records)
	}
}

func TestAggregate(t *testing.T) {
	cases := []struct {
		total, failed int
		want          model.HistoryStatus
	}{
		{1, 0, model.StatusSent},
		{3, 3, model.StatusFailed},
		{3, 1, model.StatusPartiallySent},
	}
	for _, tc := range cases {
		if got := aggregate(tc.total, tc.failed); got != tc.want {
			t.Fatalf("aggregate(%d, %d) = %q, want %q", tc.total, tc.failed, got, tc.want)
		}
	}
}

// panicOnMessage blows up when a record with the given message is logged.
type panicOnMessage struct {
	slog.Handler
	msg string
}

func (h panicOnMessage) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == h.msg {
		panic("log sink closed")
	}
	return h.Handler.Handle(ctx, r)
}

func TestDispatchPanicAfterHistoryWriteKeepsOneRecord(t *testing.T) {
	gw, _ := stubGateway(t, nil)
	hist := &fakeHistory{}
	d := newTestDispatcher(gw, configured, hist)
	d.logger = slog.New(panicOnMessage{
		Handler: slog.NewTextHandler(bytes.NewBuffer(nil), nil),
		msg:     "bulk sms finished",
	})

	res := d.Dispatch(context.Background(), request("233241234567"))

	if res.Success || !strings.HasPrefix(res.Error, "Failed to send bulk SMS: ") {
		t.Fatalf("unexpected result %+v", res)
	}
	if hist.calls != 1 || len(hist.records) != 1 || hist.records[0].Status != model.StatusSent {
		t.Fatalf("expected the single Sent record to stand, got %+v after %d inserts", hist.records, hist.calls)
	}
}
