package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	const secret = "s3cret"
	good := Sign(secret, "order_1", "pay_1")

	require.NoError(t, VerifySignature(secret, "order_1", "pay_1", good))

	cases := map[string][3]string{
		"tampered payment id": {"order_1", "pay_2", good},
		"tampered order id":   {"order_2", "pay_1", good},
		"wrong signature":     {"order_1", "pay_1", Sign("other", "order_1", "pay_1")},
		"empty signature":     {"order_1", "pay_1", ""},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, VerifySignature(secret, c[0], c[1], c[2]), ErrSignatureMismatch)
		})
	}
}

func TestStatusSuccessful(t *testing.T) {
	assert.True(t, StatusCaptured.Successful())
	assert.True(t, StatusAuthorized.Successful())
	assert.False(t, StatusCreated.Successful())
	assert.False(t, StatusFailed.Successful())
	assert.False(t, StatusRefunded.Successful())
}
