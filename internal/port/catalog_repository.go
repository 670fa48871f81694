package port

import (
	"context"

	"github.com/mavex/checkout/internal/core/domain"
)

type CouponRepository interface {
	// FindByCode looks a coupon up case-insensitively. Returns nil when
	// no such coupon exists.
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type SettingsRepository interface {
	// GetSettings reads the current site-wide pricing policy. Called
	// fresh per checkout, never cached across requests.
	GetSettings(ctx context.Context) (domain.SiteSettings, error)
}
