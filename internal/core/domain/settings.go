package domain

// SiteSettings is the admin-controlled pricing policy. It is read fresh
// for every checkout so admin changes take effect immediately.
type SiteSettings struct {
	ShippingStandard int
	ShippingExpress  int
	// FreeShippingMin waives shipping when the discounted subtotal
	// reaches it. Nil disables the waiver.
	FreeShippingMin *int
	// TaxPercent is applied to the discounted subtotal. Nil means no tax.
	TaxPercent *float64
}
