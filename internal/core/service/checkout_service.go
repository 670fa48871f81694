package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mavex/checkout/internal/core/domain"
	"github.com/mavex/checkout/internal/core/pricing"
	"github.com/mavex/checkout/internal/port"
)

const (
	// checkoutTimeout bounds the whole reservation transaction so an
	// abandoned checkout cannot hold a row lock on a hot variant.
	checkoutTimeout = 10 * time.Second

	maxTxRetries = 3
	retryBackoff = 25 * time.Millisecond
)

type CheckoutService struct {
	orders      port.OrderRepository
	settings    port.SettingsRepository
	coupons     *CouponValidator
	logger      *zap.Logger
	notifyQueue chan domain.Order
}

func NewCheckoutService(orders port.OrderRepository, settings port.SettingsRepository, coupons port.CouponRepository, logger *zap.Logger, queueSize int) *CheckoutService {
	return &CheckoutService{
		orders:      orders,
		settings:    settings,
		coupons:     NewCouponValidator(coupons),
		logger:      logger,
		notifyQueue: make(chan domain.Order, queueSize),
	}
}

// Checkout runs the full checkout: validation, coupon eligibility,
// pricing, then the atomic reservation + order write. Stock, coupon
// usage and the order rows change together or not at all.
func (s *CheckoutService) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.PaymentMethod != domain.PaymentCOD {
		return nil, domain.ErrUnsupportedPaymentMethod
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	// The server is the source of truth for discounts: only the code is
	// taken from the request, never a caller-declared amount.
	decision, err := s.coupons.Validate(ctx, req.CouponCode, pricing.Subtotal(req.Items), time.Now())
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(req, decision, settings)
	err = s.createWithRetry(ctx, order)

	if errors.Is(err, domain.ErrCouponExhausted) {
		// A concurrent checkout took the last usage slot between the
		// read-time check and the transaction. Re-price without the
		// coupon and try once more rather than failing the buyer.
		s.logger.Info("coupon exhausted under transaction, retrying without discount",
			zap.String("order_id", order.ID),
			zap.String("coupon", decision.Code))
		decision = CouponDecision{Reason: domain.CouponExhausted}
		order = s.buildOrder(req, decision, settings)
		err = s.createWithRetry(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int("total", order.TotalAmount),
		zap.Int("items", len(order.Items)))

	// Fire-and-forget: a full queue drops the event, never blocks or
	// fails the checkout.
	select {
	case s.notifyQueue <- order:
	default:
		s.logger.Warn("notification queue full, dropping event", zap.String("order_id", order.ID))
	}

	return &domain.CheckoutResult{
		OrderID:         order.ID,
		TotalAmount:     order.TotalAmount,
		PaymentMethod:   order.PaymentMethod,
		CouponRejection: decision.Reason,
	}, nil
}

func (s *CheckoutService) buildOrder(req domain.CheckoutRequest, decision CouponDecision, settings domain.SiteSettings) domain.Order {
	breakdown := pricing.Compute(req.Items, decision.Discount, req.ShippingMethod, settings)

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	now := time.Now()
	return domain.Order{
		ID:             uuid.New().String(),
		Customer:       req.Customer,
		Billing:        req.Billing,
		Items:          items,
		Subtotal:       breakdown.Subtotal,
		Discount:       breakdown.Discount,
		ShippingCost:   breakdown.ShippingCost,
		TaxAmount:      breakdown.TaxAmount,
		TotalAmount:    breakdown.Total,
		CouponCode:     decision.Code,
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// createWithRetry runs the reservation transaction under the checkout
// time budget, retrying transient conflicts a bounded number of times
// with backoff. Concurrent checkouts on the same popular size are the
// primary source of such conflicts.
func (s *CheckoutService) createWithRetry(ctx context.Context, order domain.Order) error {
	txCtx, cancel := context.WithTimeout(ctx, checkoutTimeout)
	defer cancel()

	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-txCtx.Done():
				return fmt.Errorf("checkout timed out: %w", txCtx.Err())
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
			s.logger.Warn("retrying checkout transaction",
				zap.String("order_id", order.ID),
				zap.Int("attempt", attempt+1))
		}

		err = s.orders.CreateOrder(txCtx, order)
		if err == nil || !errors.Is(err, domain.ErrTxConflict) {
			return err
		}
	}
	return err
}

// NotificationQueue exposes committed orders for the notifier workers.
func (s *CheckoutService) NotificationQueue() <-chan domain.Order {
	return s.notifyQueue
}

func (s *CheckoutService) Close() {
	close(s.notifyQueue)
}

func validateRequest(req domain.CheckoutRequest) error {
	if len(req.Items) == 0 {
		return &domain.ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}
	for _, it := range req.Items {
		if it.ProductID == "" {
			return &domain.ValidationError{Field: "items.productId", Reason: "missing product id"}
		}
		if it.Size == "" {
			return &domain.ValidationError{Field: "items.size", Reason: "missing size"}
		}
		if it.Quantity <= 0 {
			return &domain.ValidationError{Field: "items.quantity", Reason: "quantity must be positive"}
		}
		if it.UnitPrice < 0 {
			return &domain.ValidationError{Field: "items.price", Reason: "price must not be negative"}
		}
	}
	if req.Customer.Name == "" {
		return &domain.ValidationError{Field: "customerName", Reason: "missing customer name"}
	}
	if req.ShippingMethod != domain.ShippingStandard && req.ShippingMethod != domain.ShippingExpress {
		return &domain.ValidationError{Field: "shippingMethod", Reason: "must be standard or express"}
	}
	return nil
}
