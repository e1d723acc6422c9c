package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/config"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

const (
	ExchangeName          = "sourcing"
	TranscriptsQueueName  = "content_transcripts"
	TranscriptsRoutingKey = models.WebhookEventTranscriptsUpdated
)

// Queue publishes transcript events to a topic exchange and reads them
// back from the durable transcripts queue.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// URL builds the AMQP URL for cfg; credentials and vhost are escaped
func URL(cfg config.QueueConfig) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
	u.Path = "/"
	if vhost := strings.TrimPrefix(cfg.Vhost, "/"); vhost != "" {
		u.Path += vhost
	}
	return u.String()
}

func New(cfg config.QueueConfig) (*Queue, error) {
	conn, err := amqp.Dial(URL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err == nil {
		err = declareTopology(channel)
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Queue{conn: conn, channel: channel}, nil
}

// declareTopology makes sure the exchange, the queue and their binding exist
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}
	if _, err := ch.QueueDeclare(TranscriptsQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", TranscriptsQueueName, err)
	}
	if err := ch.QueueBind(TranscriptsQueueName, TranscriptsRoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s to %s: %w", TranscriptsQueueName, TranscriptsRoutingKey, err)
	}
	return nil
}

// Close closes the channel, then the connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func eventMessage(event *models.TranscriptEvent) (amqp.Publishing, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode %s event: %w", event.Event, err)
	}

	return amqp.Publishing{
		MessageId:    uuid.NewString(),
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         event.Event,
		Timestamp:    event.Timestamp,
		Body:         body,
	}, nil
}

// PublishTranscriptEvent routes event by its event name
func (q *Queue) PublishTranscriptEvent(ctx context.Context, event *models.TranscriptEvent) error {
	msg, err := eventMessage(event)
	if err != nil {
		return err
	}

	if err := q.channel.PublishWithContext(ctx, ExchangeName, event.Event, false, false, msg); err != nil {
		metrics.RecordError("queue", "publish")
		return fmt.Errorf("failed to publish %s event: %w", event.Event, err)
	}
	return nil
}

// deliver hands one delivery to handler. Undecodable bodies are dropped.
// A handler failure goes back to the queue once; if the redelivery fails
// too the message is dropped.
func deliver(msg amqp.Delivery, handler func(*models.TranscriptEvent) error) error {
	var event models.TranscriptEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		metrics.RecordError("queue", "decode")
		return msg.Nack(false, false)
	}
	if err := handler(&event); err != nil {
		if msg.Redelivered {
			metrics.RecordError("queue", "dropped")
			return msg.Nack(false, false)
		}
		return msg.Nack(false, true)
	}
	return msg.Ack(false)
}

// ConsumeTranscriptEvents starts delivering transcript events to handler,
// one unacknowledged message at a time, until ctx is done.
func (q *Queue) ConsumeTranscriptEvents(ctx context.Context, logger *logging.Logger, handler func(*models.TranscriptEvent) error) error {
	if err := q.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := q.channel.Consume(TranscriptsQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", TranscriptsQueueName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if err := deliver(msg, handler); err != nil {
					logger.WithField("message_id", msg.MessageId).ErrorWithErr("Failed to acknowledge transcript event", err)
				}
			}
		}
	}()
	return nil
}

// Depth returns the number of ready messages in the transcripts queue
func (q *Queue) Depth() (int, error) {
	info, err := q.channel.QueueDeclarePassive(TranscriptsQueueName, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect %s: %w", TranscriptsQueueName, err)
	}
	return info.Messages, nil
}
