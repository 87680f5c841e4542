package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sms-console/internal/model"
	"sms-console/pkg/circuitbreaker"
	"sms-console/pkg/metrics"
	"sms-console/pkg/tracing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes caps how much of a gateway reply is read; an acknowledgement
// is a small JSON object.
const maxBodyBytes = 64 << 10

var (
	ErrMalformedBody    = errors.New("gateway response is not valid JSON")
	ErrUnexpectedStatus = errors.New("gateway returned unexpected status")
	ErrRejected         = errors.New("gateway did not accept the message")
)

type Options struct {
	BaseURL string
	Timeout time.Duration
	// Breaker is optional; nil sends every request.
	Breaker *circuitbreaker.Breaker
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to the SMS gateway. One instance is built per process and shared.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

func NewClient(opts Options) *Client {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: opts.BaseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		breaker: opts.Breaker,
	}
}

type SendRequest struct {
	Credentials model.GatewayCredentials
	From        string
	To          string
	Content     string
}

type Response struct {
	StatusCode int
	Body       string
	JobID      string
}

// Send issues one GET for one recipient and classifies the answer. A nil error
// means the gateway accepted the message.
func (c *Client) Send(ctx context.Context, req SendRequest) (Response, error) {
	ctx, span := tracing.Start(ctx, "gateway.send", tracing.Attr("recipient", req.To))
	defer span.End()

	var resp Response
	err := metrics.GatewayObserver(func(ctx context.Context) error {
		if c.breaker != nil {
			if err := c.breaker.Allow(); err != nil {
				return err
			}
		}

		var err error
		resp, err = c.do(ctx, req)
		if c.breaker != nil {
			c.breaker.Record(gatewayFault(resp, err))
		}
		return err
	})(ctx)

	tracing.Fail(span, err)
	return resp, err
}

func (c *Client) do(ctx context.Context, req SendRequest) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(req), nil)
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		// url.Error would print the query string, secret included
		var ue *url.Error
		if errors.As(err, &ue) {
			err = fmt.Errorf("gateway request: %w", ue.Err)
		}
		return Response{}, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return Response{StatusCode: httpResp.StatusCode}, err
	}

	resp := Response{StatusCode: httpResp.StatusCode, Body: string(body)}
	return resp, classify(&resp)
}

func (c *Client) requestURL(req SendRequest) string {
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	params := []struct{ key, val string }{
		{"clientid", req.Credentials.ClientID},
		{"clientsecret", req.Credentials.ClientSecret},
		{"from", req.From},
		{"to", req.To},
		{"content", req.Content},
	}

	var b strings.Builder
	b.WriteString(c.baseURL)
	for i, p := range params {
		if i == 0 {
			b.WriteString(sep)
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(encodeComponent(p.val))
	}
	return b.String()
}

// encodeComponent percent-encodes a query value with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// classify applies the gateway acceptance rules in order: body must be JSON,
// status must be 200 or 201, and the body must carry status 0 (either casing)
// or a job id.
func classify(resp *Response) error {
	var parsed any
	if err := json.Unmarshal([]byte(resp.Body), &parsed); err != nil {
		return fmt.Errorf("%w: %v body=%q", ErrMalformedBody, err, resp.Body)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: %d body=%q", ErrUnexpectedStatus, resp.StatusCode, resp.Body)
	}

	fields, _ := parsed.(map[string]any)
	if jobID, ok := fields["jobId"]; ok && truthy(jobID) {
		resp.JobID = fmt.Sprint(jobID)
	}
	if isZero(fields["status"]) || isZero(fields["Status"]) || resp.JobID != "" {
		return nil
	}
	return fmt.Errorf("%w: body=%q", ErrRejected, resp.Body)
}

func isZero(v any) bool {
	n, ok := v.(float64)
	return ok && n == 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

// gatewayFault keeps per-message rejections from tripping the breaker; only
// transport errors and 5xx answers count against the gateway.
func gatewayFault(resp Response, err error) error {
	if err == nil {
		return nil
	}
	if resp.StatusCode != 0 && resp.StatusCode < http.StatusInternalServerError {
		return nil
	}
	return err
}
