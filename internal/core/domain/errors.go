package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPaymentMethod rejects any payment method other than COD.
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

	// ErrCouponExhausted is raised inside the checkout transaction when the
	// usage-cap increment finds the cap already reached.
	ErrCouponExhausted = errors.New("coupon usage limit reached")

	// ErrTxConflict marks a transient transaction conflict eligible for retry.
	ErrTxConflict = errors.New("transaction conflict")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientStockError names the variant that could not be reserved.
// The whole order is rejected; partial fulfillment is not allowed.
type InsufficientStockError struct {
	ProductID string
	Size      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s", e.ProductID, e.Size)
}

// PriceMismatchError is raised when the caller-declared unit price
// diverges from the catalog price read inside the transaction.
type PriceMismatchError struct {
	ProductID string
	Declared  int
	Actual    int
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch for product %s: declared %d, catalog %d", e.ProductID, e.Declared, e.Actual)
}
