package order

import (
	"context"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// recorder writes order changes and forwards the events they raised
type recorder struct {
	orders    order.Repository
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// save conditionally updates the order and, on success, publishes its
// pending events
func (r recorder) save(ctx context.Context, o *order.Order, expected order.Status) error {
	if err := r.orders.Update(ctx, o, expected); err != nil {
		return err
	}
	r.publish(ctx, o)
	return nil
}

// publish drains the aggregate's events. Delivery failures are logged; the
// order state is already committed.
func (r recorder) publish(ctx context.Context, o *order.Order) {
	events := o.GetDomainEvents()
	o.ClearDomainEvents()
	if r.publisher == nil || len(events) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		r.logger.Warn("Failed to publish order events",
			zap.String("order_id", o.ID.String()),
			zap.Int("events", len(events)),
			zap.Error(err))
	}
}
