package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var _ Consumer = (*RabbitMQConsumer)(nil)

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *RabbitMQConsumer) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// Consume delivers messages to handler until ctx is cancelled, reopening the
// channel with backoff when the broker drops it.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		c.logger.Warn("dispatch consumer interrupted",
			zap.String("queue", queue),
			zap.Duration("retryIn", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	c.logger.Info("dispatch consumer attached", zap.String("queue", queue), zap.Int("prefetch", c.prefetch))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	var msg DispatchMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("rejecting message: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
		)
		return c.reject(d)
	}

	if msg.MessageID == "" {
		msg.MessageID = d.MessageId
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = d.CorrelationId
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("rejecting message: validation failed",
			zap.Error(err),
			zap.String("messageId", msg.MessageID),
		)
		return c.reject(d)
	}

	msgCtx := ctx
	if msg.CorrelationID != "" {
		msgCtx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	if err := handler(msgCtx, msg); err != nil {
		if errors.Is(err, ErrReject) {
			c.logger.Warn("rejecting message: handler refused it",
				zap.Error(err),
				zap.String("messageId", msg.MessageID),
			)
			return c.reject(d)
		}

		c.metrics.IncQueueMessage("requeue")
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	c.metrics.IncQueueMessage("ack")
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}

	return nil
}

func (c *RabbitMQConsumer) reject(d amqp.Delivery) error {
	c.metrics.IncQueueMessage("reject")
	if err := d.Reject(false); err != nil {
		return fmt.Errorf("failed to reject message: %w", err)
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
