package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mavex/checkout/internal/core/domain"
)

// settingsRowID is the fixed key of the site_settings singleton row.
const settingsRowID = 1

// FindByCode looks a coupon up case-insensitively. Nil when absent.
func (m *MySQLAdapter) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var (
		coupon      domain.Coupon
		minSubtotal sql.NullInt64
		usageLimit  sql.NullInt64
		startsAt    sql.NullTime
		endsAt      sql.NullTime
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT code, type, value, min_subtotal, usage_limit, usage_count, starts_at, ends_at, active
		FROM coupons WHERE LOWER(code) = LOWER(?)`, code,
	).Scan(&coupon.Code, &coupon.Type, &coupon.Value, &minSubtotal, &usageLimit,
		&coupon.UsageCount, &startsAt, &endsAt, &coupon.Active)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query coupon: %w", err)
	}

	if minSubtotal.Valid {
		v := int(minSubtotal.Int64)
		coupon.MinSubtotal = &v
	}
	if usageLimit.Valid {
		v := int(usageLimit.Int64)
		coupon.UsageLimit = &v
	}
	if startsAt.Valid {
		coupon.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		coupon.EndsAt = &endsAt.Time
	}
	return &coupon, nil
}

// GetSettings reads the singleton pricing policy row. Callers read it
// fresh per checkout so admin changes apply immediately.
func (m *MySQLAdapter) GetSettings(ctx context.Context) (domain.SiteSettings, error) {
	var (
		settings        domain.SiteSettings
		freeShippingMin sql.NullInt64
		taxPercent      sql.NullFloat64
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT shipping_standard, shipping_express, free_shipping_min, tax_percent
		FROM site_settings WHERE id = ?`, settingsRowID,
	).Scan(&settings.ShippingStandard, &settings.ShippingExpress, &freeShippingMin, &taxPercent)
	if err != nil {
		return domain.SiteSettings{}, fmt.Errorf("query site settings: %w", err)
	}

	if freeShippingMin.Valid {
		v := int(freeShippingMin.Int64)
		settings.FreeShippingMin = &v
	}
	if taxPercent.Valid {
		settings.TaxPercent = &taxPercent.Float64
	}
	return settings, nil
}
