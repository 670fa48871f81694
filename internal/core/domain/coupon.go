package domain

import "time"

type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

type Coupon struct {
	Code        string
	Type        CouponType
	Value       int
	MinSubtotal *int
	UsageLimit  *int
	UsageCount  int
	StartsAt    *time.Time
	EndsAt      *time.Time
	Active      bool
}

// CouponRejection explains why a coupon did not apply. Rejections are
// soft: checkout proceeds with zero discount.
type CouponRejection string

const (
	CouponNotFound     CouponRejection = "not_found"
	CouponInactive     CouponRejection = "inactive"
	CouponNotStarted   CouponRejection = "not_started"
	CouponExpired      CouponRejection = "expired"
	CouponExhausted    CouponRejection = "exhausted"
	CouponBelowMinimum CouponRejection = "below_minimum"
)
