package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/mavex/checkout/internal/core/domain"
)

// LogNotifier stands in when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyOrderCreated(ctx context.Context, order domain.Order) error {
	n.logger.Info("order created notification",
		zap.String("order_id", order.ID),
		zap.String("customer", order.Customer.Name),
		zap.Int("total", order.TotalAmount))
	return nil
}
