package service

import "go.uber.org/zap"

// Event names broadcast to realtime subscribers
const (
	EventStockChanged   = "stock.changed"
	EventBatchStarted   = "batch.started"
	EventBatchUpdated   = "batch.updated"
	EventBatchCompleted = "batch.completed"
	EventBatchCancelled = "batch.cancelled"
	EventBatchFailed    = "batch.failed"
	EventOrderCreated   = "order.created"
	EventOrderUpdated   = "order.updated"
	EventOrderCancelled = "order.cancelled"
)

// EventPublisher delivers notifications after a transaction has committed.
// Delivery is best effort and never affects the outcome of the operation.
type EventPublisher interface {
	Publish(event string, data any) error
}

func publish(p EventPublisher, log *zap.Logger, event string, data any) {
	if p == nil {
		return
	}
	if err := p.Publish(event, data); err != nil {
		log.Warn("failed to publish event", zap.String("event", event), zap.Error(err))
	}
}
