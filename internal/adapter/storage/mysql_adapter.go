package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-sql-driver/mysql"

	"github.com/mavex/checkout/internal/core/domain"
)

const (
	erLockDeadlock    = 1213
	erLockWaitTimeout = 1205
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// CreateOrder reserves stock and persists the order as one transaction:
// catalog re-price check, conditional per-variant decrements, aggregate
// stock resync, coupon usage increment, then the order rows. Variants
// are touched in stable (product, size) order so overlapping checkouts
// cannot deadlock on lock ordering.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback()

	lines := sortedLines(order.Items)

	if err := m.verifyPrices(ctx, tx, lines); err != nil {
		return err
	}

	for _, it := range lines {
		result, err := tx.ExecContext(ctx, `
			UPDATE product_variants
			SET stock = stock - ?, updated_at = NOW()
			WHERE product_id = ? AND size = ? AND stock >= ?`,
			it.Quantity, it.ProductID, it.Size, it.Quantity,
		)
		if err != nil {
			return classify("reserve variant", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return &domain.InsufficientStockError{ProductID: it.ProductID, Size: it.Size}
		}
	}

	// keep the denormalized per-product aggregate in sync with its variants
	for _, productID := range distinctProducts(lines) {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = (SELECT COALESCE(SUM(stock), 0) FROM product_variants WHERE product_id = ?)
			WHERE id = ?`,
			productID, productID,
		)
		if err != nil {
			return classify("resync product stock", err)
		}
	}

	if order.CouponCode != "" {
		result, err := tx.ExecContext(ctx, `
			UPDATE coupons
			SET usage_count = usage_count + 1
			WHERE code = ? AND (usage_limit IS NULL OR usage_count < usage_limit)`,
			order.CouponCode,
		)
		if err != nil {
			return classify("increment coupon usage", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return domain.ErrCouponExhausted
		}
	}

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (m *MySQLAdapter) verifyPrices(ctx context.Context, tx *sql.Tx, lines []domain.OrderItem) error {
	prices := make(map[string]int)
	for _, it := range lines {
		actual, seen := prices[it.ProductID]
		if !seen {
			err := tx.QueryRowContext(ctx,
				`SELECT price FROM products WHERE id = ?`, it.ProductID,
			).Scan(&actual)
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.InsufficientStockError{ProductID: it.ProductID, Size: it.Size}
			}
			if err != nil {
				return classify("read catalog price", err)
			}
			prices[it.ProductID] = actual
		}
		if actual != it.UnitPrice {
			return &domain.PriceMismatchError{ProductID: it.ProductID, Declared: it.UnitPrice, Actual: actual}
		}
	}
	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	var billingAddress, billingCity, billingGovernorate, billingPostalCode any
	if order.Billing != nil {
		billingAddress = order.Billing.Address
		billingCity = order.Billing.City
		billingGovernorate = order.Billing.Governorate
		billingPostalCode = order.Billing.PostalCode
	}
	var couponCode any
	if order.CouponCode != "" {
		couponCode = order.CouponCode
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_name, customer_email, customer_phone, customer_address,
			customer_city, customer_governorate, customer_postal_code,
			billing_address, billing_city, billing_governorate, billing_postal_code,
			subtotal, discount, shipping_cost, tax_amount, total_amount,
			coupon_code, payment_method, shipping_method, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Customer.Name, order.Customer.Email, order.Customer.Phone,
		order.Customer.Address, order.Customer.City, order.Customer.Governorate,
		order.Customer.PostalCode,
		billingAddress, billingCity, billingGovernorate, billingPostalCode,
		order.Subtotal, order.Discount, order.ShippingCost, order.TaxAmount, order.TotalAmount,
		couponCode, order.PaymentMethod, order.ShippingMethod, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return classify("insert order", err)
	}

	for _, it := range order.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, size, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, it.ProductID, it.Size, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return classify("insert order item", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetVariantStock(ctx context.Context, productID, size string) (int, error) {
	var stock int
	err := m.db.QueryRowContext(ctx, `
		SELECT stock FROM product_variants WHERE product_id = ? AND size = ?`,
		productID, size,
	).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query variant stock: %w", err)
	}
	return stock, nil
}

func sortedLines(items []domain.OrderItem) []domain.OrderItem {
	lines := make([]domain.OrderItem, len(items))
	copy(lines, items)
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ProductID != lines[j].ProductID {
			return lines[i].ProductID < lines[j].ProductID
		}
		return lines[i].Size < lines[j].Size
	})
	return lines
}

func distinctProducts(lines []domain.OrderItem) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, it := range lines {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// classify maps MySQL deadlock and lock-wait errors onto ErrTxConflict
// so the orchestrator can retry them; everything else surfaces as-is.
func classify(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case erLockDeadlock, erLockWaitTimeout:
			return fmt.Errorf("%s: %w", op, domain.ErrTxConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
