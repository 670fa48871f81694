package pricing

import (
	"math"

	"github.com/mavex/checkout/internal/core/domain"
)

// Subtotal sums the declared line prices. Malformed lines contribute
// nothing rather than failing.
func Subtotal(items []domain.LineItem) int {
	total := 0
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitPrice < 0 {
			continue
		}
		total += it.UnitPrice * it.Quantity
	}
	return total
}

// Compute derives the full price breakdown from the cart, an already
// validated discount, the shipping method and the current site settings.
// Pure and deterministic; it never fails.
func Compute(items []domain.LineItem, discount int, method domain.ShippingMethod, settings domain.SiteSettings) domain.PriceBreakdown {
	subtotal := Subtotal(items)

	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	afterDiscount := subtotal - discount

	baseShipping := settings.ShippingStandard
	if method == domain.ShippingExpress {
		baseShipping = settings.ShippingExpress
	}
	shippingCost := baseShipping
	if settings.FreeShippingMin != nil && afterDiscount >= *settings.FreeShippingMin {
		shippingCost = 0
	}

	taxAmount := 0
	if settings.TaxPercent != nil {
		// round half-up to whole currency units
		taxAmount = int(math.Floor(float64(afterDiscount)*(*settings.TaxPercent)/100 + 0.5))
	}

	return domain.PriceBreakdown{
		Subtotal:     subtotal,
		Discount:     discount,
		ShippingCost: shippingCost,
		TaxAmount:    taxAmount,
		Total:        afterDiscount + shippingCost + taxAmount,
	}
}
