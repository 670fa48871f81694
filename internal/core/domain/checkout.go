package domain

// LineItem is a cart line as submitted by the caller. The declared
// UnitPrice is re-checked against the catalog inside the checkout
// transaction before anything is persisted.
type LineItem struct {
	ProductID string
	Size      string
	Quantity  int
	UnitPrice int
}

type CheckoutRequest struct {
	Items          []LineItem
	Customer       CustomerInfo
	Billing        *CustomerInfo
	PaymentMethod  PaymentMethod
	ShippingMethod ShippingMethod
	CouponCode     string
}

// PriceBreakdown holds whole-currency-unit amounts. Invariant:
// Total = max(0, Subtotal-Discount) + ShippingCost + TaxAmount.
type PriceBreakdown struct {
	Subtotal     int
	Discount     int
	ShippingCost int
	TaxAmount    int
	Total        int
}

type CheckoutResult struct {
	OrderID       string
	TotalAmount   int
	PaymentMethod PaymentMethod
	// CouponRejection is set when a coupon code was supplied but did not
	// apply; the order still went through with zero discount.
	CouponRejection CouponRejection
}
