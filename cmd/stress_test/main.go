package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mavex/checkout/internal/adapter/storage"
	"github.com/mavex/checkout/internal/core/domain"
	"github.com/mavex/checkout/internal/core/service"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/mavex?parseTime=true"
	productID     = "stress-test-product"
	unitPrice     = 100
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	// Seed a hot variant and the pricing policy
	db.ExecContext(ctx, `DELETE o FROM orders o JOIN order_items oi ON o.id = oi.order_id WHERE oi.product_id = ?`, productID)
	db.ExecContext(ctx, `DELETE FROM order_items WHERE product_id = ?`, productID)
	if _, err := db.ExecContext(ctx, `
		INSERT INTO products (id, price, stock) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE price = ?, stock = ?`,
		productID, unitPrice, initialStock, unitPrice, initialStock); err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO product_variants (product_id, size, stock) VALUES (?, 'M', ?)
		ON DUPLICATE KEY UPDATE stock = ?`,
		productID, initialStock, initialStock); err != nil {
		log.Fatalf("failed to seed variant: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO site_settings (id, shipping_standard, shipping_express) VALUES (1, 75, 150)
		ON DUPLICATE KEY UPDATE shipping_standard = 75, shipping_express = 150`); err != nil {
		log.Fatalf("failed to seed settings: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	checkoutService := service.NewCheckoutService(adapter, adapter, adapter, zap.NewNop(), queueSize)
	defer checkoutService.Close()

	go func() {
		for range checkoutService.NotificationQueue() {
		}
	}()

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(buyerID int) {
			defer wg.Done()

			req := domain.CheckoutRequest{
				Items:          []domain.LineItem{{ProductID: productID, Size: "M", Quantity: 1, UnitPrice: unitPrice}},
				Customer:       domain.CustomerInfo{Name: fmt.Sprintf("buyer-%d", buyerID)},
				PaymentMethod:  domain.PaymentCOD,
				ShippingMethod: domain.ShippingStandard,
			}
			if _, err := checkoutService.Checkout(ctx, req); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d checkouts succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	finalStock, _ := adapter.GetVariantStock(ctx, productID, "M")
	fmt.Printf("Final Variant Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0, never negative")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}
