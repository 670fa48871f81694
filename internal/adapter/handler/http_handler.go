package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mavex/checkout/internal/core/domain"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error)
}

type HTTPHandler struct {
	checkout CheckoutService
	logger   *zap.Logger
}

func NewHTTPHandler(checkout CheckoutService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{checkout: checkout, logger: logger}
}

type checkoutItem struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Price     int    `json:"price" binding:"gte=0"`
}

type checkoutRequest struct {
	Items               []checkoutItem `json:"items" binding:"required,min=1,dive"`
	CustomerName        string         `json:"customerName" binding:"required"`
	CustomerEmail       string         `json:"customerEmail"`
	CustomerPhone       string         `json:"customerPhone"`
	CustomerAddress     string         `json:"customerAddress"`
	CustomerCity        string         `json:"customerCity"`
	CustomerGovernorate string         `json:"customerGovernorate"`
	CustomerPostalCode  string         `json:"customerPostalCode"`
	PaymentMethod       string         `json:"paymentMethod" binding:"required"`
	ShippingMethod      string         `json:"shippingMethod" binding:"required"`
	CouponCode          string         `json:"couponCode"`
	BillingAddress      string         `json:"billingAddress"`
	BillingCity         string         `json:"billingCity"`
	BillingGovernorate  string         `json:"billingGovernorate"`
	BillingPostalCode   string         `json:"billingPostalCode"`
}

type checkoutResponse struct {
	OrderID         string `json:"orderId"`
	TotalAmount     int    `json:"totalAmount"`
	PaymentMethod   string `json:"paymentMethod"`
	CouponRejection string `json:"couponRejection,omitempty"`
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RecordCheckout("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": err.Error()})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), toDomain(req))
	if err != nil {
		h.writeError(c, err)
		return
	}

	RecordCheckout("success")
	c.JSON(http.StatusCreated, checkoutResponse{
		OrderID:         result.OrderID,
		TotalAmount:     result.TotalAmount,
		PaymentMethod:   string(result.PaymentMethod),
		CouponRejection: string(result.CouponRejection),
	})
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	var (
		ve  *domain.ValidationError
		ise *domain.InsufficientStockError
		pme *domain.PriceMismatchError
	)

	switch {
	case errors.As(err, &ve):
		RecordCheckout("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": ve.Error()})
	case errors.Is(err, domain.ErrUnsupportedPaymentMethod):
		RecordCheckout("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_payment_method",
			"message": "only cash on delivery is supported"})
	case errors.As(err, &ise):
		RecordCheckout("out_of_stock")
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_stock",
			"message": ise.Error(), "productId": ise.ProductID, "size": ise.Size})
	case errors.As(err, &pme):
		RecordCheckout("price_mismatch")
		c.JSON(http.StatusConflict, gin.H{"error": "price_mismatch",
			"message": "catalog prices changed, refresh your cart", "productId": pme.ProductID})
	case errors.Is(err, domain.ErrTxConflict):
		RecordCheckout("conflict")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient",
			"message": "checkout is busy, please retry"})
	default:
		RecordCheckout("error")
		h.logger.Error("checkout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal",
			"message": "checkout failed"})
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func toDomain(req checkoutRequest) domain.CheckoutRequest {
	items := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.LineItem{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
	}

	var billing *domain.CustomerInfo
	if req.BillingAddress != "" || req.BillingCity != "" {
		billing = &domain.CustomerInfo{
			Name:        req.CustomerName,
			Address:     req.BillingAddress,
			City:        req.BillingCity,
			Governorate: req.BillingGovernorate,
			PostalCode:  req.BillingPostalCode,
		}
	}

	return domain.CheckoutRequest{
		Items: items,
		Customer: domain.CustomerInfo{
			Name:        req.CustomerName,
			Email:       req.CustomerEmail,
			Phone:       req.CustomerPhone,
			Address:     req.CustomerAddress,
			City:        req.CustomerCity,
			Governorate: req.CustomerGovernorate,
			PostalCode:  req.CustomerPostalCode,
		},
		Billing:        billing,
		PaymentMethod:  domain.PaymentMethod(strings.ToLower(req.PaymentMethod)),
		ShippingMethod: domain.ShippingMethod(strings.ToLower(req.ShippingMethod)),
		CouponCode:     req.CouponCode,
	}
}
