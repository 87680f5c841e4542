package history

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sms-console/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func TestListHandler(t *testing.T) {
	store, mock := newMockStore(t, false)
	mock.ExpectQuery("SELECT (.+) FROM sms_history").
		WithArgs("Sent", 5).
		WillReturnRows(sqlmock.NewRows(historyColumns).
			AddRow("rec-1", "Preach It", 1, 0, "Hello", "Sent", model.HistoryTypeBulk, "2026-10-17", nil, nil, time.Now()))

	h := NewHandler(store, quietLogger())
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/sms/history?status=Sent&limit=5", nil), rec)

	if err := h.List(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"Sent"`) || strings.Contains(body, "failedRecipients") {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestListHandlerRejectsBadInput(t *testing.T) {
	h := NewHandler(nil, quietLogger())
	e := echo.New()

	for _, target := range []string{"/sms/history?status=Queued", "/sms/history?limit=-1", "/sms/history?limit=abc"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		err := h.List(c)
		if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %v", target, err)
		}
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	store, mock := newMockStore(t, false)
	mock.ExpectQuery("SELECT (.+) FROM sms_history WHERE id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(historyColumns))

	h := NewHandler(store, quietLogger())
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/sms/history/nope", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.Get(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
