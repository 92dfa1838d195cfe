package lognotify

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	domnotify "github.com/Zhima-Mochi/minishop-checkout/internal/domain/notification"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
)

func TestNotifyLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := New(zaplogger.Wrap(zap.New(core)))

	err := n.Notify(context.Background(), domnotify.Notification{
		Kind:          domnotify.KindOrderStatusChanged,
		OrderID:       "o-1",
		Status:        "Cancelled",
		PreviousState: "Processing",
		Total:         decimal.RequireFromString("450"),
	})
	require.NoError(t, err)
	require.NoError(t, n.Close())

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "o-1", fields["order_id"])
	assert.Equal(t, "450.00", fields["total"])
	assert.Equal(t, "Processing", fields["previous_status"])
	assert.Equal(t, "notifier", fields["component"])
}
