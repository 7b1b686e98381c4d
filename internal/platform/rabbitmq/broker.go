// Package rabbitmq implements the message broker adapter on top of RabbitMQ.
// One durable direct exchange carries all traffic; each recipient gets a
// durable queue declared lazily on first use, bound on a per-user routing
// key. Delivery is at-least-once: messages stay in the queue until a
// consumer acknowledges them after successfully applying them downstream.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taskpilot/taskpilot-api/internal/config"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// Broker wraps a RabbitMQ connection and the exchange topology.
// Channels are opened per operation over the shared connection so concurrent
// publishers and consumers never serialize on a single channel.
type Broker struct {
	url      string
	exchange string
	logger   *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

// New creates a Broker for the given configuration. The connection is
// established lazily on first use so a broker outage at boot does not keep
// the durable write path from serving.
func New(cfg config.BrokerConfig, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Broker{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		logger:   logger.With(slog.String("component", "broker")),
	}
}

// NotificationQueueName returns the per-recipient notification queue name.
func NotificationQueueName(userID uuid.UUID) string {
	return fmt.Sprintf("user_%s_notifications", userID)
}

// NotificationRoutingKey returns the routing key that targets a recipient's
// notification queue.
func NotificationRoutingKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_%s", userID)
}

// ChatQueueName returns the per-recipient chat queue name.
func ChatQueueName(userID uuid.UUID) string {
	return fmt.Sprintf("chat_user_%s", userID)
}

// ChatRoutingKey returns the routing key that targets a recipient's chat
// queue. It is distinct from the notification key so the two pipelines do
// not cross-deliver.
func ChatRoutingKey(userID uuid.UUID) string {
	return fmt.Sprintf("chat_user_%s", userID)
}

// channel returns a fresh channel over the shared connection, reconnecting
// if the connection was never established or has been closed. The exchange
// declare is idempotent and repeated on reconnect.
func (b *Broker) channel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		b.conn = conn
		b.logger.Info("broker connection established")
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open broker channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		b.exchange,
		"direct",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return ch, nil
}

// declareAndBind declares the recipient queue (idempotent) and binds it to
// the exchange under the routing key.
func (b *Broker) declareAndBind(ch *amqp.Channel, queue, routingKey string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(queue, routingKey, b.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}

	return nil
}

// PublishNotification serializes the notification and publishes it to the
// recipient's queue with persistent delivery.
func (b *Broker) PublishNotification(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to serialize notification: %w", err)
	}

	routingKey := NotificationRoutingKey(n.RecipientID)
	return b.publish(ctx, NotificationQueueName(n.RecipientID), routingKey, body)
}

// PublishChatMessage serializes the chat message and publishes it to the
// recipient's chat queue with persistent delivery.
func (b *Broker) PublishChatMessage(ctx context.Context, m *domain.ChatMessage) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize chat message: %w", err)
	}

	return b.publish(ctx, ChatQueueName(m.RecipientID), ChatRoutingKey(m.RecipientID), body)
}

func (b *Broker) publish(ctx context.Context, queue, routingKey string, body []byte) error {
	ch, err := b.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := b.declareAndBind(ch, queue, routingKey); err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		b.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	b.logger.Debug("published message",
		"queue", queue,
		"routing_key", routingKey,
		"bytes", len(body))

	return nil
}

// DrainNotifications pulls every pending notification off the recipient's
// queue, invoking apply for each one. A message is acknowledged only after
// apply returns nil, so a crash between get and apply leaves it
// redeliverable; an apply failure requeues the message and stops the drain.
// Returns the notifications that were successfully applied.
func (b *Broker) DrainNotifications(
	ctx context.Context,
	userID uuid.UUID,
	apply func(ctx context.Context, n *domain.Notification) error,
) ([]*domain.Notification, error) {
	ch, err := b.channel()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	queue := NotificationQueueName(userID)
	if err := b.declareAndBind(ch, queue, NotificationRoutingKey(userID)); err != nil {
		return nil, err
	}

	var drained []*domain.Notification
	for {
		if err := ctx.Err(); err != nil {
			return drained, err
		}

		delivery, ok, err := ch.Get(queue, false) // manual ack
		if err != nil {
			return drained, fmt.Errorf("failed to get message from %s: %w", queue, err)
		}
		if !ok {
			break // queue empty
		}

		var n domain.Notification
		if err := json.Unmarshal(delivery.Body, &n); err != nil {
			// A malformed message would poison the queue if requeued; drop
			// it and keep draining. The durable store still has the record.
			b.logger.Error("dropping undecodable broker message",
				"queue", queue,
				"error", err)
			_ = delivery.Ack(false)
			continue
		}

		if err := apply(ctx, &n); err != nil {
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				b.logger.Error("failed to requeue message",
					"queue", queue,
					"error", nackErr)
			}
			return drained, fmt.Errorf("failed to apply drained notification %d: %w", n.ID, err)
		}

		if err := delivery.Ack(false); err != nil {
			return drained, fmt.Errorf("failed to ack message: %w", err)
		}

		drained = append(drained, &n)
	}

	return drained, nil
}

// ConsumeNotifications runs a long-lived push consumer on the recipient's
// queue, invoking apply for each delivery and acknowledging only after apply
// succeeds. Failed applies are requeued. The call blocks until the context
// is cancelled or the broker closes the channel.
func (b *Broker) ConsumeNotifications(
	ctx context.Context,
	userID uuid.UUID,
	apply func(ctx context.Context, n *domain.Notification) error,
) error {
	ch, err := b.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	queue := NotificationQueueName(userID)
	if err := b.declareAndBind(ch, queue, NotificationRoutingKey(userID)); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		queue,
		fmt.Sprintf("consumer_%s", userID), // consumer tag; one consumer per user
		false,                              // manual ack
		false,                              // exclusive
		false,                              // noLocal
		false,                              // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer on %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consumer channel for %s closed", queue)
			}

			var n domain.Notification
			if err := json.Unmarshal(delivery.Body, &n); err != nil {
				b.logger.Error("dropping undecodable broker message",
					"queue", queue,
					"error", err)
				_ = delivery.Ack(false)
				continue
			}

			if err := apply(ctx, &n); err != nil {
				b.logger.Warn("failed to apply consumed notification, requeueing",
					"queue", queue,
					"notification_id", n.ID,
					"error", err)
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					b.logger.Error("failed to requeue message",
						"queue", queue,
						"error", nackErr)
				}
				continue
			}

			if err := delivery.Ack(false); err != nil {
				b.logger.Error("failed to ack message",
					"queue", queue,
					"notification_id", n.ID,
					"error", err)
			}
		}
	}
}

// Close shuts down the broker connection. In-flight channels are closed by
// the connection teardown.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}
