package sms

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"sms-console/internal/phone"

	"github.com/labstack/echo/v4"
)

func TestSendBulkHandlerForm(t *testing.T) {
	gw, calls := stubGateway(t, nil)
	hist := &fakeHistory{}
	h := NewHandler(newTestDispatcher(gw, configured, hist), phone.NewPattern("233"), quietLogger())

	form := url.Values{
		"senderId":   {"Preach It"},
		"message":    {"Hello"},
		"recipients": {"233241234567", "233201234567"},
	}
	req := httptest.NewRequest(http.MethodPost, "/sms/bulk", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.SendBulk(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if *calls != 2 || len(hist.records) != 1 {
		t.Fatalf("expected 2 calls and 1 record, got %d and %d", *calls, len(hist.records))
	}
}

func TestSendBulkHandlerJSONPartialFailureStill200(t *testing.T) {
	gw, _ := stubGateway(t, map[string]func(http.ResponseWriter){
		"233241234567": reply(http.StatusOK, `not json`),
	})
	h := NewHandler(newTestDispatcher(gw, configured, &fakeHistory{}), phone.NewPattern("233"), quietLogger())

	body := `{"senderId":"Preach It","message":"Hello","recipients":["233241234567","233201234567"]}`
	req := httptest.NewRequest(http.MethodPost, "/sms/bulk", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.SendBulk(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestSendBulkHandlerValidationMakesNoCalls(t *testing.T) {
	gw, calls := stubGateway(t, nil)
	hist := &fakeHistory{}
	h := NewHandler(newTestDispatcher(gw, configured, hist), phone.NewPattern("233"), quietLogger())

	form := url.Values{
		"senderId":   {"Preach It"},
		"message":    {strings.Repeat("x", 161)},
		"recipients": {"233241234567"},
	}
	req := httptest.NewRequest(http.MethodPost, "/sms/bulk", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c := echo.New().NewContext(req, httptest.NewRecorder())

	err := h.SendBulk(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	fields, _ := he.Message.(ValidationErrors)
	if _, ok := fields["message"]; !ok {
		t.Fatalf("expected message field error, got %v", he.Message)
	}
	if *calls != 0 || hist.calls != 0 {
		t.Fatalf("validation failure must not reach the gateway or history")
	}
}
