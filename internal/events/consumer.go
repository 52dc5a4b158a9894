// AngelaMos | 2026
// consumer.go

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/carterperez-dev/cinemadb/internal/config"
)

const (
	maxBackoff    = 30 * time.Second
	prefetchCount = 50
)

type HandlerFunc func(ctx context.Context, env Envelope) error

// Consume binds queue to the exchange for every routing key in bindings and
// feeds deliveries to handle until ctx is done. Lost connections are
// redialed with exponential backoff. Messages that fail to decode or
// handle are rejected without requeue.
func Consume(
	ctx context.Context,
	cfg config.AMQPConfig,
	queue string,
	bindings []string,
	handle HandlerFunc,
) error {
	backoff := time.Second

	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			slog.Warn("consumer dial failed", "error", err, "retry_in", backoff)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, cfg.Exchange, queue, bindings, handle)
		_ = conn.Close() //nolint:errcheck // connection is being replaced

		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("consumer loop ended, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(
	ctx context.Context,
	conn *amqp.Connection,
	exchange, queue string,
	bindings []string,
	handle HandlerFunc,
) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	if err := declareExchange(ch, exchange); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}

	for _, key := range bindings {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", queue, key, err)
		}
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for d := range deliveries {
		if err := dispatch(ctx, d.Body, handle); err != nil {
			slog.Warn("event handling failed",
				"error", err,
				"routing_key", d.RoutingKey,
				"message_id", d.MessageId,
			)
			_ = d.Nack(false, false) //nolint:errcheck // broker drops it
			continue
		}
		_ = d.Ack(false) //nolint:errcheck // redelivered on failure
	}

	return errors.New("delivery channel closed")
}

func dispatch(ctx context.Context, body []byte, handle HandlerFunc) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	return handle(ctx, env)
}
