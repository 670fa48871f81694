package port

import (
	"context"

	"github.com/mavex/checkout/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists the order and reserves variant stock as one
	// transaction: re-price check, conditional per-size decrements,
	// aggregate stock resync, coupon usage increment when the order
	// carries a coupon code, then the order rows. Any failure rolls the
	// whole unit back.
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetVariantStock reads the current stock of a (product, size) pair.
	GetVariantStock(ctx context.Context, productID, size string) (int, error)
}
