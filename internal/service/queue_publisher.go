package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/metrics"
	"github.com/grp-2-projet-elective/cesieats-back/internal/queue"
)

// QueuePublisher publishes auth events to the auth.events queue. Each
// publish opens its own connection, so a broker outage only costs the
// events emitted while it lasts. Errors are logged and returned so the
// caller may ignore them without interrupting the request flow.
type QueuePublisher struct {
	URL     string
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

func NewQueuePublisher(url string, log zerolog.Logger, m *metrics.Metrics) *QueuePublisher {
	return &QueuePublisher{URL: url, Log: log, Metrics: m}
}

// Publish sends ev as a persistent JSON message.
func (p *QueuePublisher) Publish(ctx context.Context, ev queue.AuthEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.AuthEventsQueue, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	); err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.AuthEventsQueue, false, false, pub); err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: publish failed")
		return err
	}
	p.Metrics.Event(ev.Type)
	return nil
}

// LogPublisher is used when the broker is disabled: events only reach the
// structured log and the metrics.
type LogPublisher struct {
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

func (p LogPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.Log.Info().Str("event", ev.Type).Uint64("user_id", ev.UserID).Str("mail", ev.Mail).Msg("auth event")
	p.Metrics.Event(ev.Type)
	return nil
}
