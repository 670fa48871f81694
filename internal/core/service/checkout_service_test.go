package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/mavex/checkout/internal/core/domain"
)

// Mock OrderRepository with real reservation semantics: all-or-nothing
// stock decrement and coupon cap enforcement under a mutex.
type mockOrderRepo struct {
	mu     sync.Mutex
	stock  map[string]int // "productID/size"
	uses   map[string]int // coupon code -> remaining uses, -1 unlimited
	orders []domain.Order
	errs   []error // popped per CreateOrder call before normal logic
	calls  int
}

func newMockOrderRepo(stock map[string]int) *mockOrderRepo {
	return &mockOrderRepo{stock: stock, uses: make(map[string]int)}
}

func variantKey(productID, size string) string { return productID + "/" + size }

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}

	for _, it := range order.Items {
		if m.stock[variantKey(it.ProductID, it.Size)] < it.Quantity {
			return &domain.InsufficientStockError{ProductID: it.ProductID, Size: it.Size}
		}
	}
	if order.CouponCode != "" {
		remaining, ok := m.uses[order.CouponCode]
		if !ok || remaining == 0 {
			return domain.ErrCouponExhausted
		}
	}

	for _, it := range order.Items {
		m.stock[variantKey(it.ProductID, it.Size)] -= it.Quantity
	}
	if order.CouponCode != "" && m.uses[order.CouponCode] > 0 {
		m.uses[order.CouponCode]--
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockOrderRepo) GetVariantStock(ctx context.Context, productID, size string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[variantKey(productID, size)], nil
}

func (m *mockOrderRepo) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepo) lastOrder() domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[len(m.orders)-1]
}

type mockSettingsRepo struct {
	mu       sync.Mutex
	settings domain.SiteSettings
	calls    int
}

func (m *mockSettingsRepo) GetSettings(ctx context.Context) (domain.SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.settings, nil
}

func (m *mockSettingsRepo) set(s domain.SiteSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
}

func validRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Items: []domain.LineItem{
			{ProductID: "p1", Size: "M", Quantity: 2, UnitPrice: 150},
			{ProductID: "p2", Size: "L", Quantity: 1, UnitPrice: 200},
		},
		Customer:       domain.CustomerInfo{Name: "Test Buyer", Phone: "0100000000", City: "Cairo"},
		PaymentMethod:  domain.PaymentCOD,
		ShippingMethod: domain.ShippingStandard,
	}
}

func newTestService(orders *mockOrderRepo, settings *mockSettingsRepo, coupons *mockCouponRepo, queueSize int) *CheckoutService {
	return NewCheckoutService(orders, settings, coupons, zap.NewNop(), queueSize)
}

func TestCheckout_Success(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75, ShippingExpress: 150}}
	svc := newTestService(orders, settings, &mockCouponRepo{}, 100)
	defer svc.Close()

	result, err := svc.Checkout(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if result.OrderID == "" {
		t.Error("expected non-empty order ID")
	}
	// subtotal 500 + shipping 75
	if result.TotalAmount != 575 {
		t.Errorf("expected total 575, got %d", result.TotalAmount)
	}
	if result.PaymentMethod != domain.PaymentCOD {
		t.Errorf("expected cod, got %s", result.PaymentMethod)
	}

	if stock, _ := orders.GetVariantStock(context.Background(), "p1", "M"); stock != 8 {
		t.Errorf("expected p1/M stock 8, got %d", stock)
	}
	if stock, _ := orders.GetVariantStock(context.Background(), "p2", "L"); stock != 4 {
		t.Errorf("expected p2/L stock 4, got %d", stock)
	}

	order := <-svc.NotificationQueue()
	if order.ID != result.OrderID {
		t.Errorf("expected notification for order %s, got %s", result.OrderID, order.ID)
	}
}

func TestCheckout_ValidationFailsBeforeStores(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{})
	settings := &mockSettingsRepo{}
	svc := newTestService(orders, settings, &mockCouponRepo{}, 100)
	defer svc.Close()

	req := validRequest()
	req.Items = nil

	_, err := svc.Checkout(context.Background(), req)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got: %v", err)
	}
	if settings.calls != 0 {
		t.Error("settings store touched before validation passed")
	}
	if orders.calls != 0 {
		t.Error("order store touched before validation passed")
	}
}

func TestCheckout_RejectsNonCODPayment(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	svc := newTestService(orders, &mockSettingsRepo{}, &mockCouponRepo{}, 100)
	defer svc.Close()

	req := validRequest()
	req.PaymentMethod = "credit_card"

	_, err := svc.Checkout(context.Background(), req)
	if !errors.Is(err, domain.ErrUnsupportedPaymentMethod) {
		t.Errorf("expected ErrUnsupportedPaymentMethod, got: %v", err)
	}
	if orders.calls != 0 {
		t.Error("order store touched for rejected payment method")
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 3, "p2/L": 5})
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	svc := newTestService(orders, settings, &mockCouponRepo{}, 100)
	defer svc.Close()

	req := validRequest()
	req.Items[0].Quantity = 5 // only 3 in stock

	_, err := svc.Checkout(context.Background(), req)
	var ise *domain.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	if ise.ProductID != "p1" || ise.Size != "M" {
		t.Errorf("expected failing variant p1/M, got %s/%s", ise.ProductID, ise.Size)
	}

	// zero state change
	if stock, _ := orders.GetVariantStock(context.Background(), "p1", "M"); stock != 3 {
		t.Errorf("expected p1/M stock unchanged at 3, got %d", stock)
	}
	if stock, _ := orders.GetVariantStock(context.Background(), "p2", "L"); stock != 5 {
		t.Errorf("expected p2/L stock unchanged at 5, got %d", stock)
	}
	if orders.orderCount() != 0 {
		t.Errorf("expected no orders, got %d", orders.orderCount())
	}
}

func TestCheckout_TransientConflictRetried(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	orders.errs = []error{domain.ErrTxConflict, domain.ErrTxConflict}
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	svc := newTestService(orders, settings, &mockCouponRepo{}, 100)
	defer svc.Close()

	result, err := svc.Checkout(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("expected retry to recover, got: %v", err)
	}
	if result.OrderID == "" {
		t.Error("expected order ID after retries")
	}
	if orders.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", orders.calls)
	}
}

func TestCheckout_TransientConflictExhaustsRetryBudget(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	orders.errs = []error{domain.ErrTxConflict, domain.ErrTxConflict, domain.ErrTxConflict}
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	svc := newTestService(orders, settings, &mockCouponRepo{}, 100)
	defer svc.Close()

	_, err := svc.Checkout(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("expected surfaced ErrTxConflict, got: %v", err)
	}
	if orders.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", orders.calls)
	}
	if orders.orderCount() != 0 {
		t.Error("expected no order after exhausted retries")
	}
}

func TestCheckout_CouponApplied(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	orders.uses["save10"] = 1
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	coupons := &mockCouponRepo{coupons: map[string]*domain.Coupon{
		"save10": {Code: "save10", Type: domain.CouponPercent, Value: 10, Active: true},
	}}
	svc := newTestService(orders, settings, coupons, 100)
	defer svc.Close()

	result, err := svc.Checkout(context.Background(), func() domain.CheckoutRequest {
		r := validRequest()
		r.CouponCode = "SAVE10"
		return r
	}())
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// subtotal 500 - 50 + shipping 75
	if result.TotalAmount != 525 {
		t.Errorf("expected total 525, got %d", result.TotalAmount)
	}
	if result.CouponRejection != "" {
		t.Errorf("expected no rejection, got %s", result.CouponRejection)
	}
	order := orders.lastOrder()
	if order.Discount != 50 || order.CouponCode != "save10" {
		t.Errorf("expected discount 50 with coupon save10, got %d / %q", order.Discount, order.CouponCode)
	}
	if orders.uses["save10"] != 0 {
		t.Errorf("expected coupon usage consumed, remaining %d", orders.uses["save10"])
	}
}

func TestCheckout_CouponExhaustedFallsBackWithoutDiscount(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	// read-time validation sees a free slot, but the transaction finds
	// the cap taken
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	coupons := &mockCouponRepo{coupons: map[string]*domain.Coupon{
		"last1": {Code: "last1", Type: domain.CouponFixed, Value: 100, Active: true, UsageLimit: intPtr(1)},
	}}
	svc := newTestService(orders, settings, coupons, 100)
	defer svc.Close()

	req := validRequest()
	req.CouponCode = "last1"

	result, err := svc.Checkout(context.Background(), req)
	if err != nil {
		t.Fatalf("expected fallback checkout to succeed, got: %v", err)
	}
	if result.CouponRejection != domain.CouponExhausted {
		t.Errorf("expected exhausted rejection, got %q", result.CouponRejection)
	}
	// full price: subtotal 500 + shipping 75, no discount
	if result.TotalAmount != 575 {
		t.Errorf("expected undiscounted total 575, got %d", result.TotalAmount)
	}
	order := orders.lastOrder()
	if order.Discount != 0 || order.CouponCode != "" {
		t.Errorf("expected order without discount, got %d / %q", order.Discount, order.CouponCode)
	}
}

func TestCheckout_ConcurrentNeverOversells(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	orders := newMockOrderRepo(map[string]int{"hot/M": initialStock})
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	svc := newTestService(orders, settings, &mockCouponRepo{}, totalRequests)
	defer svc.Close()

	go func() {
		for range svc.NotificationQueue() {
		}
	}()

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			req := domain.CheckoutRequest{
				Items:          []domain.LineItem{{ProductID: "hot", Size: "M", Quantity: 1, UnitPrice: 100}},
				Customer:       domain.CustomerInfo{Name: fmt.Sprintf("buyer-%d", id)},
				PaymentMethod:  domain.PaymentCOD,
				ShippingMethod: domain.ShippingStandard,
			}
			if _, err := svc.Checkout(context.Background(), req); err == nil {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful checkouts, got %d", initialStock, successCount.Load())
	}
	if stock, _ := orders.GetVariantStock(context.Background(), "hot", "M"); stock != 0 {
		t.Errorf("expected final stock 0, got %d", stock)
	}
	if orders.orderCount() != initialStock {
		t.Errorf("expected %d orders, got %d", initialStock, orders.orderCount())
	}
}

func TestCheckout_ConcurrentCouponCapNeverOverApplied(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"hot/M": 10})
	orders.uses["once"] = 1
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 0}}
	coupons := &mockCouponRepo{coupons: map[string]*domain.Coupon{
		"once": {Code: "once", Type: domain.CouponFixed, Value: 50, Active: true, UsageLimit: intPtr(1)},
	}}
	svc := newTestService(orders, settings, coupons, 100)
	defer svc.Close()

	go func() {
		for range svc.NotificationQueue() {
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			req := domain.CheckoutRequest{
				Items:          []domain.LineItem{{ProductID: "hot", Size: "M", Quantity: 1, UnitPrice: 100}},
				Customer:       domain.CustomerInfo{Name: fmt.Sprintf("buyer-%d", id)},
				PaymentMethod:  domain.PaymentCOD,
				ShippingMethod: domain.ShippingStandard,
				CouponCode:     "once",
			}
			svc.Checkout(context.Background(), req)
		}(i)
	}
	wg.Wait()

	discounted := 0
	orders.mu.Lock()
	for _, o := range orders.orders {
		if o.Discount > 0 {
			discounted++
		}
	}
	orders.mu.Unlock()

	if discounted != 1 {
		t.Errorf("expected exactly one discounted order, got %d", discounted)
	}
}

func TestCheckout_SettingsReadFreshPerRequest(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	svc := newTestService(orders, settings, &mockCouponRepo{}, 100)
	defer svc.Close()

	go func() {
		for range svc.NotificationQueue() {
		}
	}()

	first, err := svc.Checkout(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	if first.TotalAmount != 575 {
		t.Errorf("expected total 575, got %d", first.TotalAmount)
	}

	// admin raises the standard shipping rate mid-session
	settings.set(domain.SiteSettings{ShippingStandard: 100})

	second, err := svc.Checkout(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}
	if second.TotalAmount != 600 {
		t.Errorf("expected new rate applied, total 600, got %d", second.TotalAmount)
	}
}

func TestCheckout_FullNotificationQueueDoesNotBlock(t *testing.T) {
	orders := newMockOrderRepo(map[string]int{"p1/M": 10, "p2/L": 5})
	settings := &mockSettingsRepo{settings: domain.SiteSettings{ShippingStandard: 75}}
	// zero-capacity queue with no consumer: every enqueue would block
	svc := newTestService(orders, settings, &mockCouponRepo{}, 0)
	defer svc.Close()

	if _, err := svc.Checkout(context.Background(), validRequest()); err != nil {
		t.Fatalf("checkout must not fail on a full notification queue: %v", err)
	}
}
