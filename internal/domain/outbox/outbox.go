package outbox

import "context"

// Event is a fact other parts of the checkout react to after it happened, such
// as an order being placed. The name is the routing key.
type Event interface {
	EventName() string
}

// Handler reacts to one event. Its error is logged by the bus and never reaches
// the publisher.
type Handler func(ctx context.Context, e Event) error

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(Handler) Handler

// Chain wraps h so that mws[0] runs first.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// Publisher hands an event to the bus without waiting for handlers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers by event name. Several handlers may share a name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
