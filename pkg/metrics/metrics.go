package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prom.NewCounterVec(
		prom.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"path", "method", "code"},
	)
	httpDuration = prom.NewHistogramVec(
		prom.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prom.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prom.MustRegister(httpRequests, httpDuration)
}

// EchoMiddleware records request counts and latency per route template.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			timer := prom.NewTimer(httpDuration.WithLabelValues(path, method))
			err := next(c)
			timer.ObserveDuration()

			status := c.Response().Status
			var he *echo.HTTPError
			if err != nil && !c.Response().Committed {
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
			return err
		}
	}
}

func Handler() echo.HandlerFunc {
	h := promhttp.Handler()
	return func(c echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}
