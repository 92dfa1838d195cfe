package order

import "time"

// OrderPlacedEvent is emitted once an order is durably stored with its stock reserved.
type OrderPlacedEvent struct {
	Order      Order
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		Order:      *o.Clone(),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted after a lifecycle transition is persisted.
type OrderStatusChangedEvent struct {
	Order      Order
	From       Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		Order:      *o.Clone(),
		From:       from,
		OccurredAt: time.Now().UTC(),
	}
}
