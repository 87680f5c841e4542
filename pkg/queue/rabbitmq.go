package amqp

import (
	"context"
	"log/slog"
	"time"

	"sms-console/pkg/tracing"

	"github.com/rabbitmq/amqp091-go"
)

type RabbitConnection struct {
	Conn *amqp091.Connection
}

func NewRabbitConnection(rabbitURI string) (*RabbitConnection, error) {
	cfg := amqp091.Config{
		Properties: amqp091.NewConnectionProperties(),
	}

	conn, err := amqp091.DialConfig(rabbitURI, cfg)
	if err != nil {
		slog.Error("cannot connect to rabbit", "err", err)
		return nil, err
	}

	return &RabbitConnection{Conn: conn}, nil
}

type PublishRequest struct {
	Exchange  string
	Key       string
	MessageID string
	Msg       []byte
}

func (rp *RabbitConnection) PublishContext(ctx context.Context, req PublishRequest) (err error) {
	ctx, span := tracing.Start(ctx, "rabbit.publish",
		tracing.Attr("exchange", req.Exchange),
		tracing.Attr("routing_key", req.Key),
	)
	defer func() {
		tracing.Fail(span, err)
		span.End()
	}()

	ch, err := rp.Conn.Channel()
	if err != nil {
		slog.Error("cannot create channel from rabbit mq connection", "err", err)
		return err
	}
	defer func() {
		if closeErr := ch.Close(); closeErr != nil {
			slog.Error("cannot close channel from rabbit mq connection", "err", closeErr)
		}
	}()

	return ch.PublishWithContext(ctx, req.Exchange, req.Key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    req.MessageID,
		Timestamp:    time.Now(),
		Body:         req.Msg,
	})
}

func (rp *RabbitConnection) Close() error {
	if rp == nil || rp.Conn == nil {
		return nil
	}
	return rp.Conn.Close()
}
