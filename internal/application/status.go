package application

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// StatusFor maps a domain error to the upper-snake status used in spans and logs.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, catalog.ErrInvalidProduct), errors.Is(err, dominv.ErrProductUnavailable):
		return "PRODUCT_INVALID"
	case errors.Is(err, catalog.ErrInvalidQuantity):
		return "QUANTITY_INVALID"
	case errors.Is(err, catalog.ErrInvalidSize):
		return "SIZE_INVALID"
	case errors.Is(err, catalog.ErrInvalidColor):
		return "COLOR_INVALID"
	case errors.Is(err, dominv.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, dompay.ErrSignatureMismatch):
		return "SIGNATURE_MISMATCH"
	case errors.Is(err, dompay.ErrGateway):
		return "GATEWAY_FAILED"
	case errors.Is(err, dompay.ErrPaymentNotSuccessful):
		return "PAYMENT_NOT_SUCCESSFUL"
	case errors.Is(err, dompay.ErrCheckoutNotFound):
		return "CHECKOUT_NOT_FOUND"
	case errors.Is(err, domorder.ErrNotFound):
		return "ORDER_NOT_FOUND"
	case errors.Is(err, domorder.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, domorder.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, domorder.ErrInvalidStateTransition), errors.Is(err, domorder.ErrInvalidStatus):
		return "STATE_TRANSITION_INVALID"
	case errors.Is(err, domorder.ErrNotDeletable):
		return "NOT_DELETABLE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "REPO_FAILED"
	}
}
