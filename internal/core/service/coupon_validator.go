package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mavex/checkout/internal/core/domain"
	"github.com/mavex/checkout/internal/port"
)

// CouponDecision is the outcome of validating a coupon code against a
// subtotal. An ineligible coupon is not an error: checkout proceeds
// with zero discount and the rejection reason is reported back.
type CouponDecision struct {
	Eligible bool
	Discount int
	// Code is the normalized coupon code, set only when eligible.
	Code   string
	Reason domain.CouponRejection
}

type CouponValidator struct {
	coupons port.CouponRepository
}

func NewCouponValidator(coupons port.CouponRepository) *CouponValidator {
	return &CouponValidator{coupons: coupons}
}

// Validate decides eligibility at read time. The usage cap is checked
// again, and the usage count incremented, inside the order transaction;
// two concurrent checkouts may both pass here but only one can take the
// last slot of a capped coupon.
func (v *CouponValidator) Validate(ctx context.Context, code string, subtotal int, now time.Time) (CouponDecision, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return CouponDecision{}, nil
	}

	coupon, err := v.coupons.FindByCode(ctx, code)
	if err != nil {
		return CouponDecision{}, fmt.Errorf("coupon lookup: %w", err)
	}
	if coupon == nil {
		return CouponDecision{Reason: domain.CouponNotFound}, nil
	}

	switch {
	case !coupon.Active:
		return CouponDecision{Reason: domain.CouponInactive}, nil
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return CouponDecision{Reason: domain.CouponNotStarted}, nil
	case coupon.EndsAt != nil && now.After(*coupon.EndsAt):
		return CouponDecision{Reason: domain.CouponExpired}, nil
	case coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit:
		return CouponDecision{Reason: domain.CouponExhausted}, nil
	case coupon.MinSubtotal != nil && subtotal < *coupon.MinSubtotal:
		return CouponDecision{Reason: domain.CouponBelowMinimum}, nil
	}

	discount := coupon.Value
	if coupon.Type == domain.CouponPercent {
		discount = subtotal * coupon.Value / 100
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}

	return CouponDecision{Eligible: true, Discount: discount, Code: coupon.Code}, nil
}
