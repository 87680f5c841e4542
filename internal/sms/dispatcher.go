package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sms-console/internal/credential"
	"sms-console/internal/gateway"
	"sms-console/internal/model"
	"sms-console/pkg/metrics"
	"sms-console/pkg/tracing"

	"github.com/google/uuid"
)

const NotConfiguredMessage = "API credentials are not configured. Please set them in Settings."

type Gateway interface {
	Send(ctx context.Context, req gateway.SendRequest) (gateway.Response, error)
}

type CredentialLoader interface {
	Load(ctx context.Context) (model.GatewayCredentials, error)
}

type HistoryWriter interface {
	Insert(ctx context.Context, rec model.SmsHistoryRecord) error
}

// Dispatcher runs one bulk send end to end: credentials, one gateway call per
// recipient in order, and a single history record.
type Dispatcher struct {
	gateway Gateway
	creds   CredentialLoader
	history HistoryWriter
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewDispatcher(gw Gateway, creds CredentialLoader, history HistoryWriter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gateway: gw,
		creds:   creds,
		history: history,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Dispatch expects a request that already passed Validate. It never returns an
// error: every failure is folded into the result, and every run that gets past
// the credential check leaves exactly one history record.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.BulkSendRequest) (result model.DispatchResult) {
	// the loop runs to completion even if the client disconnects
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.Start(ctx, "sms.dispatch",
		tracing.Attr("sender_id", req.SenderID),
		tracing.IntAttr("recipients", len(req.Recipients)))
	defer span.End()

	persisted := false
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			tracing.Fail(span, err)
			d.logger.Error("bulk sms panicked", "err", err, "history_written", persisted)
			if persisted {
				result = model.DispatchResult{Error: "Failed to send bulk SMS: " + err.Error()}
				return
			}
			result = d.abort(ctx, req, err)
		}
	}()

	creds, err := d.creds.Load(ctx)
	if errors.Is(err, credential.ErrNotConfigured) {
		d.logger.Warn("bulk sms rejected, gateway credentials missing", "sender_id", req.SenderID)
		return model.DispatchResult{Error: NotConfiguredMessage}
	}
	if err != nil {
		tracing.Fail(span, err)
		d.logger.Error("load gateway credentials", "err", err)
		return d.abort(ctx, req, err)
	}

	var failed []string
	for _, to := range req.Recipients {
		if d.sendOne(ctx, creds, req, to) == model.OutcomeFailed {
			failed = append(failed, to)
		}
	}

	rec := d.newRecord(req, aggregate(len(req.Recipients), len(failed)))
	rec.FailedRecipientCount = len(failed)
	rec.FailedRecipients = failed

	if err := d.history.Insert(ctx, rec); err != nil {
		err = fmt.Errorf("save history: %w", err)
		tracing.Fail(span, err)
		d.logger.Error("save bulk sms history", "err", err, "status", rec.Status)
		return d.abort(ctx, req, err)
	}
	persisted = true
	metrics.DispatchFinished(string(rec.Status))

	d.logger.Info("bulk sms finished",
		"history_id", rec.ID,
		"status", rec.Status,
		"recipients", rec.RecipientCount,
		"failed", rec.FailedRecipientCount)

	if len(failed) == 0 {
		return model.DispatchResult{Success: true}
	}
	return model.DispatchResult{Error: fmt.Sprintf("%d messages sent successfully, %d failed. Failed recipients: %s",
		len(req.Recipients)-len(failed), len(failed), strings.Join(failed, ", "))}
}

func (d *Dispatcher) sendOne(ctx context.Context, creds model.GatewayCredentials, req model.BulkSendRequest, to string) model.RecipientOutcome {
	resp, err := d.gateway.Send(ctx, gateway.SendRequest{
		Credentials: creds,
		From:        req.SenderID,
		To:          to,
		Content:     req.Message,
	})
	if err != nil {
		metrics.RecipientAttempted(string(model.OutcomeFailed))
		d.logger.Warn("sms not accepted by gateway",
			"recipient", to,
			"status_code", resp.StatusCode,
			"err", err)
		return model.OutcomeFailed
	}

	metrics.RecipientAttempted(string(model.OutcomeSuccess))
	d.logger.Debug("sms accepted by gateway", "recipient", to, "job_id", resp.JobID)
	return model.OutcomeSuccess
}

// abort writes the Failed record for a run that broke before aggregation
// finished. A write failure here is only logged.
func (d *Dispatcher) abort(ctx context.Context, req model.BulkSendRequest, cause error) model.DispatchResult {
	rec := d.newRecord(req, model.StatusFailed)
	rec.Error = cause.Error()
	if err := d.history.Insert(ctx, rec); err != nil {
		d.logger.Error("save failed bulk sms history", "err", err, "cause", cause)
	}
	metrics.DispatchFinished(string(model.StatusFailed))
	return model.DispatchResult{Error: "Failed to send bulk SMS: " + cause.Error()}
}

func (d *Dispatcher) newRecord(req model.BulkSendRequest, status model.HistoryStatus) model.SmsHistoryRecord {
	now := d.now().UTC()
	return model.SmsHistoryRecord{
		ID:             d.newID(),
		SenderID:       req.SenderID,
		RecipientCount: len(req.Recipients),
		Message:        req.Message,
		Status:         status,
		Type:           model.HistoryTypeBulk,
		Date:           now.Format(model.HistoryDateLayout),
		CreatedAt:      now,
	}
}

func aggregate(total, failed int) model.HistoryStatus {
	switch {
	case failed == 0:
		return model.StatusSent
	case failed == total:
		return model.StatusFailed
	default:
		return model.StatusPartiallySent
	}
}
