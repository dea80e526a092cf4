package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/media"
	"posgo/backend/internal/notify"
	"posgo/backend/internal/store/memory"
	"posgo/backend/internal/xid"
)

var testClock = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []notify.Payload
}

func (r *recordingNotifier) Dispatch(p notify.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

// failingStore rejects every sale write.
type failingStore struct {
	*memory.Store
}

func (failingStore) RecordSale(context.Context, string, domain.Transaction, []domain.Product, domain.CashShift) error {
	return errors.New("connection reset")
}

func newMemoryStore(t *testing.T) *memory.Store {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass")
	return memory.NewSeeded(zap.NewNop(),
		memory.WithClock(func() time.Time { return testClock }),
		memory.WithIDs(xid.Sequence("mem")),
	)
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	data := newMemoryStore(t)
	base := []Option{
		WithClock(func() time.Time { return testClock }),
		WithIDs(xid.Sequence("svc")),
	}
	return New(data, append(base, opts...)...), data
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID:  domain.DemoUserID,
		Name:    "Demo Admin",
		Role:    domain.RoleAdmin,
		StoreID: memory.DemoStoreID,
	})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID:  "demo-cashier",
		Name:    "Demo Cashier",
		Role:    domain.RoleCashier,
		StoreID: memory.DemoStoreID,
	})
}

func stockOf(t *testing.T, svc *Service, ctx context.Context, productID string) int {
	t.Helper()
	product, err := svc.data.GetProduct(ctx, storeOf(ctx), productID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	return product.Stock
}

func openShift(t *testing.T, svc *Service, ctx context.Context, amount float64) domain.CashShift {
	t.Helper()
	shift, err := svc.OpenShift(ctx, domain.ShiftOpenRequest{StartAmount: amount})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	return shift
}

func TestCheckoutRequiresActiveShift(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 10},
	})
	if !errors.Is(err, domain.ErrNoActiveShift) {
		t.Fatalf("expected ErrNoActiveShift, got %v", err)
	}
	if got := stockOf(t, svc, ctx, "1"); got != 50 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	txs, _ := svc.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestCheckoutCashWithChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	shift := openShift(t, svc, ctx, 100)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 10},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Change != 3 || resp.Transaction.Total != 7 {
		t.Fatalf("expected total 7 and change 3, got %+v", resp)
	}
	if resp.Transaction.PaymentMethod != domain.PaymentCash {
		t.Fatalf("expected cash label, got %s", resp.Transaction.PaymentMethod)
	}
	if len(resp.Transaction.Payments) != 1 || resp.Transaction.Payments[0].Amount != 7 {
		t.Fatalf("cash tender must be reduced by change, got %+v", resp.Transaction.Payments)
	}
	if resp.Transaction.ShiftID != shift.ID || resp.Transaction.Cashier != "Demo Cashier" {
		t.Fatalf("unexpected attribution %+v", resp.Transaction)
	}
	if got := stockOf(t, svc, ctx, "1"); got != 48 {
		t.Fatalf("expected stock 48, got %d", got)
	}

	active, err := svc.ActiveShift(ctx)
	if err != nil || active == nil {
		t.Fatalf("expected active shift, got %v %v", active, err)
	}
	if active.TotalSalesCash != 7 || active.TotalSalesDigital != 0 {
		t.Fatalf("unexpected running totals %+v", active)
	}
}

func TestCheckoutSplitPaymentIsMixed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	openShift(t, svc, ctx, 0)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartLine{{ProductID: "5", Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{
			domain.PaymentCash: 5,
			domain.PaymentYape: 4,
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.Transaction.PaymentMethod != domain.PaymentMixed {
		t.Fatalf("expected mixed, got %s", resp.Transaction.PaymentMethod)
	}

	active, _ := svc.ActiveShift(ctx)
	if active.TotalSalesCash != 5 || active.TotalSalesDigital != 4 {
		t.Fatalf("expected cash 5 digital 4, got %+v", active)
	}
}

func TestCheckoutInsufficientPaymentWritesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	openShift(t, svc, ctx, 0)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 5},
	})
	if !errors.Is(err, domain.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if got := stockOf(t, svc, ctx, "1"); got != 50 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	active, _ := svc.ActiveShift(ctx)
	if active.TotalSalesCash != 0 {
		t.Fatalf("shift totals must be untouched, got %+v", active)
	}
}

func TestCheckoutOversellIsReported(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	openShift(t, svc, ctx, 0)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "5", Quantity: 12}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCard: 54},
	})
	if err != nil {
		t.Fatalf("oversell must not block the sale: %v", err)
	}
	if len(resp.Oversold) != 1 || resp.Oversold[0].Stock != -2 {
		t.Fatalf("expected one shortfall at -2, got %+v", resp.Oversold)
	}
	if got := stockOf(t, svc, ctx, "5"); got != -2 {
		t.Fatalf("expected stock -2, got %d", got)
	}
}

func TestCheckoutPersistenceFailure(t *testing.T) {
	data := failingStore{Store: newMemoryStore(t)}
	svc := New(data, WithClock(func() time.Time { return testClock }))
	ctx := cashierCtx()
	openShift(t, svc, ctx, 0)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 1}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 5},
	})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestShiftLifecycleReport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	openShift(t, svc, ctx, 100)

	if _, err := svc.OpenShift(ctx, domain.ShiftOpenRequest{StartAmount: 10}); !errors.Is(err, domain.ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got %v", err)
	}
	if _, err := svc.CashIn(ctx, domain.CashMovementRequest{Amount: 20, Description: "float"}); err != nil {
		t.Fatalf("cash in failed: %v", err)
	}
	if _, err := svc.CashOut(ctx, domain.CashMovementRequest{Amount: 5, Description: "ice"}); err != nil {
		t.Fatalf("cash out failed: %v", err)
	}
	if _, err := svc.CashOut(ctx, domain.CashMovementRequest{Amount: 0}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected zero amount to be rejected, got %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 7},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	report, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{EndAmount: 122})
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if report.ExpectedCash != 122 || report.Difference != 0 {
		t.Fatalf("expected 122 with no difference, got %+v", report)
	}
	if report.CashIn != 20 || report.CashOut != 5 || len(report.Transactions) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Movements) != 4 {
		t.Fatalf("expected OPEN, IN, OUT, CLOSE movements, got %d", len(report.Movements))
	}

	active, err := svc.ActiveShift(ctx)
	if err != nil || active != nil {
		t.Fatalf("expected no active shift after close, got %v %v", active, err)
	}
	if _, err := svc.CashIn(ctx, domain.CashMovementRequest{Amount: 1}); !errors.Is(err, domain.ErrNoActiveShift) {
		t.Fatalf("expected ErrNoActiveShift, got %v", err)
	}
}

func TestReconcileShiftRebuildsDriftedTotals(t *testing.T) {
	svc, data := newTestService(t)
	ctx := adminCtx()
	shift := openShift(t, svc, ctx, 0)
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 7},
	}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	tampered, _ := data.GetShift(ctx, "", shift.ID)
	tampered.TotalSalesCash = 0
	if err := data.UpdateShift(ctx, "", *tampered); err != nil {
		t.Fatalf("update shift: %v", err)
	}

	drift, err := svc.ReconcileShift(ctx, shift.ID, false)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if drift.StoredCash != 0 || drift.ComputedCash != 7 || drift.Transactions != 1 {
		t.Fatalf("unexpected drift %+v", drift)
	}

	if _, err := svc.ReconcileShift(ctx, shift.ID, true); err != nil {
		t.Fatalf("reconcile with fix failed: %v", err)
	}
	fixed, _ := data.GetShift(ctx, "", shift.ID)
	if fixed.TotalSalesCash != 7 {
		t.Fatalf("expected rebuilt cash total 7, got %v", fixed.TotalSalesCash)
	}

	if _, err := svc.ReconcileShift(cashierCtx(), shift.ID, true); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("cashier must not reconcile, got %v", err)
	}
}

func TestCommitPurchaseRaisesStockAndPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	supplier, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Name: "Distribuidora Lima"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	margin := 50.0
	purchase, err := svc.CommitPurchase(ctx, domain.PurchaseRequest{
		SupplierID: supplier.ID,
		Items:      []domain.PurchaseLine{{ProductID: "3", Quantity: 10, Cost: 1, Margin: &margin}},
	})
	if err != nil {
		t.Fatalf("commit purchase: %v", err)
	}
	if purchase.Total != 10 || purchase.Items[0].NewPrice != 1.5 {
		t.Fatalf("unexpected purchase %+v", purchase)
	}

	product, _ := svc.data.GetProduct(ctx, "", "3")
	if product.Stock != 25 || product.Price != 1.5 {
		t.Fatalf("expected stock 25 price 1.5, got %d %v", product.Stock, product.Price)
	}

	_, err = svc.CommitPurchase(ctx, domain.PurchaseRequest{
		SupplierID: "ghost",
		Items:      []domain.PurchaseLine{{ProductID: "3", Quantity: 1, Cost: 1}},
	})
	if !errors.Is(err, domain.ErrInvalidPurchase) {
		t.Fatalf("expected ErrInvalidPurchase for unknown supplier, got %v", err)
	}
	_, err = svc.CommitPurchase(cashierCtx(), domain.PurchaseRequest{SupplierID: supplier.ID})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for cashier, got %v", err)
	}
}

func TestQuotePurchaseLineDefaultsToSeventyPercentCost(t *testing.T) {
	svc, _ := newTestService(t)

	quote, err := svc.QuotePurchaseLine(adminCtx(), domain.PurchaseQuoteRequest{ProductID: "4"})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.Price != 2 || quote.Cost < 1.39 || quote.Cost > 1.41 {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestCreateProductNormalizesVariants(t *testing.T) {
	svc, _ := newTestService(t)

	product, err := svc.CreateProduct(adminCtx(), domain.ProductInput{
		Name:        "Polo Basico",
		Price:       25,
		Category:    "Ropa",
		HasVariants: true,
		Variants: []domain.Variant{
			{Name: "S", Price: 25, Stock: 3},
			{Name: "M", Price: 27, Stock: 4},
		},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("expected aggregate stock 7, got %d", product.Stock)
	}
	for _, v := range product.Variants {
		if v.ID == "" {
			t.Fatalf("variant id must be assigned: %+v", v)
		}
	}

	if _, err := svc.CreateProduct(cashierCtx(), domain.ProductInput{Name: "x"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.UpdateProduct(adminCtx(), "missing", domain.ProductInput{Name: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckoutVariantProductRequiresVariant(t *testing.T) {
	svc, _ := newTestService(t)
	product, err := svc.CreateProduct(adminCtx(), domain.ProductInput{
		Name:        "Polo Basico",
		Price:       25,
		HasVariants: true,
		Variants:    []domain.Variant{{Name: "S", Price: 25, Stock: 3}, {Name: "M", Price: 27, Stock: 4}},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	ctx := cashierCtx()
	openShift(t, svc, ctx, 50)

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 100},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := stockOf(t, svc, ctx, product.ID); got != 7 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	if txs, _ := svc.ListTransactions(ctx); len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: product.ID, VariantID: product.Variants[1].ID, Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 100},
	})
	if err != nil {
		t.Fatalf("checkout with variant: %v", err)
	}
	if resp.Transaction.Total != 54 {
		t.Fatalf("expected total 54, got %v", resp.Transaction.Total)
	}
	if got := stockOf(t, svc, ctx, product.ID); got != 5 {
		t.Fatalf("expected aggregate stock 5, got %d", got)
	}
}

func TestLookupBarcodeAndSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()

	product, err := svc.LookupBarcode(ctx, " 77501000 ")
	if err != nil || product.ID != "1" {
		t.Fatalf("expected product 1, got %+v %v", product, err)
	}
	if _, err := svc.LookupBarcode(ctx, "000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	found, err := svc.SearchProducts(ctx, "", "Bebidas")
	if err != nil || len(found) != 2 {
		t.Fatalf("expected two drinks, got %d %v", len(found), err)
	}
}

func TestAttachProductImageLimits(t *testing.T) {
	objects := media.NewMemory("http://cdn.test")
	svc, _ := newTestService(t, WithObjectStore(objects))
	ctx := adminCtx()
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

	for i := 0; i < media.MaxProductImages; i++ {
		resp, err := svc.AttachProductImage(ctx, "1", png)
		if err != nil {
			t.Fatalf("upload %d failed: %v", i, err)
		}
		if len(resp.Product.Images) != i+1 {
			t.Fatalf("expected %d images, got %d", i+1, len(resp.Product.Images))
		}
	}
	if _, err := svc.AttachProductImage(ctx, "1", png); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected third image to be rejected, got %v", err)
	}
	if _, err := svc.AttachProductImage(ctx, "2", []byte("plain text")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected unsupported type to be rejected, got %v", err)
	}
}

func TestSendReceiptQueuesWebhook(t *testing.T) {
	objects := media.NewMemory("http://cdn.test")
	notifier := &recordingNotifier{}
	svc, _ := newTestService(t, WithObjectStore(objects), WithNotifier(notifier))
	ctx := cashierCtx()
	openShift(t, svc, ctx, 0)
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 2}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 7},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	ack, err := svc.SendReceipt(ctx, resp.Transaction.ID, "+51 999 888 777")
	if err != nil {
		t.Fatalf("send receipt: %v", err)
	}
	wantURL := "http://cdn.test/stores/demo/receipts/" + resp.Transaction.ID + ".html"
	if !ack.Queued || ack.DocumentURL != wantURL {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if _, ok := objects.Get("stores/demo/receipts/" + resp.Transaction.ID + ".html"); !ok {
		t.Fatalf("receipt document was not stored")
	}
	if len(notifier.payloads) != 1 || notifier.payloads[0].Phone != "51999888777" {
		t.Fatalf("unexpected payloads %+v", notifier.payloads)
	}

	if _, err := svc.SendReceipt(ctx, resp.Transaction.ID, "12"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected short phone to be rejected, got %v", err)
	}
}

func TestRenderDocuments(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	shift := openShift(t, svc, ctx, 0)
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items:   []domain.CartLine{{ProductID: "1", Quantity: 1}},
		Tenders: map[domain.PaymentMethod]float64{domain.PaymentCash: 3.5},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	doc, err := svc.RenderReceipt(ctx, resp.Transaction.ID, "")
	if err != nil || doc.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected receipt %+v %v", doc.FileName, err)
	}
	if _, err := svc.RenderReceipt(ctx, resp.Transaction.ID, "pdf"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected unsupported format to be rejected, got %v", err)
	}
	report, err := svc.RenderShiftReport(ctx, shift.ID, "xlsx")
	if err != nil || len(report.Body) == 0 {
		t.Fatalf("expected xlsx report, got %v", err)
	}
}

func TestBootstrapReturnsEverySection(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := cashierCtx()
	shift := openShift(t, svc, ctx, 10)

	snap, err := svc.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if len(snap.Products) != 5 || snap.Settings.Currency != "S/" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Suppliers == nil || snap.Customers == nil || snap.Purchases == nil || snap.Transactions == nil {
		t.Fatalf("empty collections must not be nil")
	}
	if snap.ActiveShiftID != shift.ID || len(snap.Movements) != 1 {
		t.Fatalf("expected active shift %s with its OPEN movement, got %+v", shift.ID, snap)
	}
}

func TestUpdateSettingsValidatesTaxRate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	settings := domain.DefaultSettings()
	settings.TaxRate = 1
	if _, err := svc.UpdateSettings(ctx, settings); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected tax rate 1 to be rejected, got %v", err)
	}
	settings.TaxRate = 0
	saved, err := svc.UpdateSettings(ctx, settings)
	if err != nil || saved.TaxRate != 0 {
		t.Fatalf("expected zero tax to be accepted, got %+v %v", saved, err)
	}
}

func TestResetDemoRestoresSeed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	openShift(t, svc, ctx, 10)

	if err := svc.ResetDemo(cashierCtx()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.ResetDemo(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	active, err := svc.ActiveShift(ctx)
	if err != nil || active != nil {
		t.Fatalf("expected no active shift after reset, got %v %v", active, err)
	}
}
