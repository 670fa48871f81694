package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	// PaymentCOD is the only payment method the engine accepts.
	PaymentCOD PaymentMethod = "cod"
)

type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

type CustomerInfo struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	City        string
	Governorate string
	PostalCode  string
}

type OrderItem struct {
	ProductID string
	Size      string
	Quantity  int
	// UnitPrice is the catalog price locked in at order creation.
	UnitPrice int
}

type Order struct {
	ID             string
	Customer       CustomerInfo
	Billing        *CustomerInfo
	Items          []OrderItem
	Subtotal       int
	Discount       int
	ShippingCost   int
	TaxAmount      int
	TotalAmount    int
	CouponCode     string
	PaymentMethod  PaymentMethod
	ShippingMethod ShippingMethod
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
