package zaplogger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

func TestWrapCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core))

	l.With(observability.F("use_case", "order.create")).
		Info("use_case_done",
			observability.F("outcome", "error"),
			observability.F("error", errors.New("boom")),
		)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "use_case_done", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "order.create", ctx["use_case"])
	assert.Equal(t, "error", ctx["outcome"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestWrapNil(t *testing.T) {
	l := Wrap(nil)
	assert.NotPanics(t, func() { l.Warn("ignored") })
}
