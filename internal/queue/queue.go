package queue

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultDispatchQueue is the work queue fed by the rule engine.
	DefaultDispatchQueue = "sms.dispatch"

	// queueMaxPriority is the RabbitMQ x-max-priority value for the work queue.
	queueMaxPriority int32 = 2
)

// ErrReject marks a handler failure that must not be retried. The delivery is
// dead-lettered instead of requeued.
var ErrReject = errors.New("message rejected")

// Publisher publishes dispatch messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DispatchMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message. nil acks, an error wrapping
// ErrReject dead-letters, any other error requeues.
type MessageHandler func(ctx context.Context, msg DispatchMessage) error

// Consumer consumes dispatch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.sms.dispatch.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// PriorityValue maps a message to its RabbitMQ priority. Alarm-triggered
// dispatches jump ahead of plain batches.
func PriorityValue(msg DispatchMessage) uint8 {
	if msg.Trigger != nil {
		return 2
	}
	return 1
}
