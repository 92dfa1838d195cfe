package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type named string

func (n named) EventName() string { return string(n) }

func TestChainRunsFirstMiddlewareOutermost(t *testing.T) {
	var trail []string
	tag := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, e Event) error {
				trail = append(trail, name)
				return next(ctx, e)
			}
		}
	}
	h := Chain(func(context.Context, Event) error {
		trail = append(trail, "handler")
		return nil
	}, tag("outer"), nil, tag("inner"))

	assert.NoError(t, h(context.Background(), named("order.placed")))
	assert.Equal(t, []string{"outer", "inner", "handler"}, trail)
}
