package port

import (
	"context"

	"github.com/mavex/checkout/internal/core/domain"
)

type Notifier interface {
	// NotifyOrderCreated emits a best-effort order-created event. Errors
	// are for the caller to log; they never affect the checkout outcome.
	NotifyOrderCreated(ctx context.Context, order domain.Order) error
}
