package domain

import "time"

// ProductVariant is a (product, size) pair with its own stock count.
// The product row also carries a denormalized aggregate stock equal to
// the sum of its variant stocks; the checkout transaction keeps the two
// in sync.
type ProductVariant struct {
	ProductID string
	Size      string
	Stock     int
	UpdatedAt time.Time
}
