package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newServer(key string) *echo.Echo {
	e := echo.New()
	e.Use(APIKey(key))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/sms/history", ok)
	e.GET("/healthz", ok)
	e.GET("/healthz-admin", ok)
	e.GET("/metricsX", ok)
	e.GET("/swagger/*", ok)
	return e
}

func status(e *echo.Echo, path, key string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestAPIKey(t *testing.T) {
	e := newServer("let-me-in")

	cases := []struct {
		path, key string
		want      int
	}{
		{"/sms/history", "let-me-in", http.StatusOK},
		{"/sms/history", "wrong", http.StatusUnauthorized},
		{"/sms/history", "", http.StatusBadRequest},
		{"/healthz", "", http.StatusOK},
		{"/swagger/index.html", "", http.StatusOK},
		{"/healthz-admin", "", http.StatusBadRequest},
		{"/metricsX", "wrong", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if got := status(e, tc.path, tc.key); got != tc.want {
			t.Fatalf("%s with key %q: expected %d, got %d", tc.path, tc.key, tc.want, got)
		}
	}
}

func TestAPIKeyDisabled(t *testing.T) {
	if got := status(newServer(""), "/sms/history", ""); got != http.StatusOK {
		t.Fatalf("expected open access without a configured key, got %d", got)
	}
}
