package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"posgo/backend/internal/cart"
	"posgo/backend/internal/catalog"
	"posgo/backend/internal/domain"
	"posgo/backend/internal/inventory"
	"posgo/backend/internal/ledger"
	"posgo/backend/internal/media"
	"posgo/backend/internal/metrics"
	"posgo/backend/internal/notify"
	"posgo/backend/internal/pricing"
	"posgo/backend/internal/purchasing"
	"posgo/backend/internal/store"
	"posgo/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	data      store.DataStore
	ledger    *ledger.Ledger
	purchases purchasing.Committer
	objects   media.ObjectStore
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     xid.Generator

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type Option func(*Service)

func WithObjectStore(objects media.ObjectStore) Option {
	return func(s *Service) { s.objects = objects }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(gen xid.Generator) Option {
	return func(s *Service) { s.newID = gen }
}

func New(data store.DataStore, opts ...Option) *Service {
	s := &Service{
		data:   data,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  xid.New,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")
	if s.notifier == nil {
		s.notifier = notify.Noop{Logger: s.logger}
	}
	s.ledger = ledger.New(ledger.WithClock(s.now), ledger.WithIDs(s.newID))
	s.purchases = purchasing.Committer{Now: s.now, NewID: s.newID}
	return s
}

// lockStore serializes read-modify-write sequences of one tenant.
func (s *Service) lockStore(storeID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[storeID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[storeID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func storeOf(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.StoreID
}

func actorName(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	if actor.Name != "" {
		return actor.Name
	}
	return actor.UserID
}

func requireRole(ctx context.Context, roles ...string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: no authenticated user", domain.ErrForbidden)
	}
	if actor.Role == domain.RoleSuperAdmin || slices.Contains(roles, actor.Role) {
		return nil
	}
	return fmt.Errorf("%w: %s role required", domain.ErrForbidden, strings.Join(roles, " or "))
}

// persistErr marks a storage failure that happened after the core accepted
// the operation.
func (s *Service) persistErr(op string, err error) error {
	if errors.Is(err, domain.ErrShiftAlreadyOpen) || errors.Is(err, domain.ErrShiftClosed) {
		return err
	}
	s.logger.Warn("persistence failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

// Bootstrap loads every collection of the caller's store in parallel.
func (s *Service) Bootstrap(ctx context.Context) (domain.Snapshot, error) {
	storeID := storeOf(ctx)
	var snap domain.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { snap.Products, err = s.data.ListProducts(gctx, storeID); return })
	g.Go(func() (err error) { snap.Transactions, err = s.data.ListTransactions(gctx, storeID); return })
	g.Go(func() (err error) { snap.Purchases, err = s.data.ListPurchases(gctx, storeID); return })
	g.Go(func() (err error) { snap.Settings, err = s.data.GetSettings(gctx, storeID); return })
	g.Go(func() (err error) { snap.Customers, err = s.data.ListCustomers(gctx, storeID); return })
	g.Go(func() (err error) { snap.Suppliers, err = s.data.ListSuppliers(gctx, storeID); return })
	g.Go(func() (err error) { snap.Shifts, err = s.data.ListShifts(gctx, storeID); return })
	g.Go(func() (err error) { snap.Movements, err = s.data.ListMovements(gctx, storeID); return })
	g.Go(func() (err error) { snap.ActiveShiftID, err = s.data.ActiveShiftID(gctx, storeID); return })
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("bootstrap store %q: %w", storeID, err)
	}

	snap.Products = nonNil(snap.Products)
	snap.Transactions = nonNil(snap.Transactions)
	snap.Purchases = nonNil(snap.Purchases)
	snap.Customers = nonNil(snap.Customers)
	snap.Suppliers = nonNil(snap.Suppliers)
	snap.Shifts = nonNil(snap.Shifts)
	snap.Movements = nonNil(snap.Movements)
	return snap, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.data.ListProducts(ctx, storeOf(ctx))
	return nonNil(products), err
}

func (s *Service) SearchProducts(ctx context.Context, query string, category string) ([]domain.Product, error) {
	products, err := s.data.ListProducts(ctx, storeOf(ctx))
	if err != nil {
		return nil, err
	}
	return nonNil(catalog.Search(products, query, category)), nil
}

func (s *Service) LookupBarcode(ctx context.Context, code string) (domain.Product, error) {
	products, err := s.data.ListProducts(ctx, storeOf(ctx))
	if err != nil {
		return domain.Product{}, err
	}
	product, ok := catalog.FindByBarcode(products, code)
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: barcode %q", domain.ErrNotFound, strings.TrimSpace(code))
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductInput) (domain.Product, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Product{}, err
	}
	product, err := s.productFromInput(req, domain.Product{})
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.data.CreateProduct(ctx, storeOf(ctx), product)
	if err != nil {
		return domain.Product{}, mapStoreErr(err)
	}
	s.logger.Info("product created", zap.String("product_id", created.ID), zap.String("name", created.Name))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductInput) (domain.Product, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Product{}, err
	}
	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	existing, err := s.data.GetProduct(ctx, storeID, id)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.productFromInput(req, *existing)
	if err != nil {
		return domain.Product{}, err
	}
	product.UpdatedAt = s.now()

	saved, err := s.data.UpdateProduct(ctx, storeID, product)
	if err != nil {
		return domain.Product{}, mapStoreErr(err)
	}
	return *saved, nil
}

func (s *Service) productFromInput(req domain.ProductInput, base domain.Product) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Price < 0 || req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: product needs a name, price >= 0 and stock >= 0", domain.ErrInvalidInput)
	}

	product := base
	product.Name = name
	product.Price = req.Price
	product.Category = strings.TrimSpace(req.Category)
	product.Stock = req.Stock
	product.Barcode = strings.TrimSpace(req.Barcode)
	product.HasVariants = req.HasVariants
	product.Variants = nil
	if req.HasVariants {
		if len(req.Variants) == 0 {
			return domain.Product{}, fmt.Errorf("%w: variant product needs at least one variant", domain.ErrInvalidInput)
		}
		product.Variants = make([]domain.Variant, 0, len(req.Variants))
		for _, v := range req.Variants {
			v.Name = strings.TrimSpace(v.Name)
			if v.Name == "" || v.Price < 0 || v.Stock < 0 {
				return domain.Product{}, fmt.Errorf("%w: variant needs a name, price >= 0 and stock >= 0", domain.ErrInvalidInput)
			}
			if v.ID == "" {
				v.ID = s.newID()
			}
			product.Variants = append(product.Variants, v)
		}
	}
	return inventory.Normalize(product), nil
}

// AttachProductImage stores an uploaded image and appends its URL to the product.
func (s *Service) AttachProductImage(ctx context.Context, productID string, body []byte) (domain.ImageUploadResponse, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.ImageUploadResponse{}, err
	}
	if s.objects == nil {
		return domain.ImageUploadResponse{}, fmt.Errorf("%w: object storage is not configured", domain.ErrInvalidInput)
	}
	contentType, ext, err := media.DetectImage(body)
	if err != nil {
		return domain.ImageUploadResponse{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	product, err := s.data.GetProduct(ctx, storeID, productID)
	if err != nil {
		return domain.ImageUploadResponse{}, err
	}
	if len(product.Images) >= media.MaxProductImages {
		return domain.ImageUploadResponse{}, fmt.Errorf("%w: a product holds at most %d images", domain.ErrInvalidInput, media.MaxProductImages)
	}

	url, err := s.objects.Put(ctx, media.ProductImageKey(storeID, product.ID, s.newID(), ext), body, contentType)
	if err != nil {
		return domain.ImageUploadResponse{}, s.persistErr("store image", err)
	}
	product.Images = append(product.Images, url)
	product.UpdatedAt = s.now()
	saved, err := s.data.UpdateProduct(ctx, storeID, *product)
	if err != nil {
		return domain.ImageUploadResponse{}, s.persistErr("update product images", err)
	}
	return domain.ImageUploadResponse{URL: url, Product: *saved}, nil
}

// CartQuote prices request lines without touching stock or shifts.
func (s *Service) CartQuote(ctx context.Context, lines []domain.CartLine) (domain.CartQuoteResponse, error) {
	storeID := storeOf(ctx)
	products, err := s.data.ListProducts(ctx, storeID)
	if err != nil {
		return domain.CartQuoteResponse{}, err
	}
	settings, err := s.data.GetSettings(ctx, storeID)
	if err != nil {
		return domain.CartQuoteResponse{}, err
	}
	items, err := cart.FromLines(products, lines)
	if err != nil {
		return domain.CartQuoteResponse{}, err
	}
	return domain.CartQuoteResponse{Items: items, Totals: pricing.Calculate(items, settings)}, nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := s.data.ListTransactions(ctx, storeOf(ctx))
	return nonNil(txs), err
}

func (s *Service) QuotePurchaseLine(ctx context.Context, req domain.PurchaseQuoteRequest) (domain.PurchaseQuote, error) {
	product, err := s.data.GetProduct(ctx, storeOf(ctx), req.ProductID)
	if err != nil {
		return domain.PurchaseQuote{}, err
	}
	q := purchasing.NewQuote(product.Price)
	if req.Cost != nil {
		if *req.Cost < 0 {
			return domain.PurchaseQuote{}, fmt.Errorf("%w: cost must be zero or more", domain.ErrInvalidPurchase)
		}
		q = q.WithCost(*req.Cost)
	}
	if req.Margin != nil {
		q = q.WithMargin(*req.Margin)
	}
	if req.Price != nil {
		q = q.WithPrice(*req.Price)
	}
	return domain.PurchaseQuote{Cost: q.Cost, Margin: q.Margin, Price: q.Price}, nil
}

// CommitPurchase records a supplier purchase, raising stock and resale prices.
func (s *Service) CommitPurchase(ctx context.Context, req domain.PurchaseRequest) (domain.Purchase, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Purchase{}, err
	}
	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	if strings.TrimSpace(req.SupplierID) == "" {
		return domain.Purchase{}, fmt.Errorf("%w: supplier is required", domain.ErrInvalidPurchase)
	}
	if _, err := s.data.GetSupplier(ctx, storeID, req.SupplierID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Purchase{}, fmt.Errorf("%w: unknown supplier %s", domain.ErrInvalidPurchase, req.SupplierID)
		}
		return domain.Purchase{}, err
	}
	products, err := s.data.ListProducts(ctx, storeID)
	if err != nil {
		return domain.Purchase{}, err
	}

	purchase, _, changed, err := s.purchases.Commit(req.SupplierID, req.Items, products)
	if err != nil {
		return domain.Purchase{}, err
	}
	if err := s.data.RecordPurchase(ctx, storeID, purchase, changed); err != nil {
		return domain.Purchase{}, s.persistErr("record purchase", err)
	}
	s.logger.Info("purchase recorded",
		zap.String("purchase_id", purchase.ID),
		zap.String("supplier_id", purchase.SupplierID),
		zap.Float64("total", purchase.Total))
	return purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	purchases, err := s.data.ListPurchases(ctx, storeOf(ctx))
	return nonNil(purchases), err
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	suppliers, err := s.data.ListSuppliers(ctx, storeOf(ctx))
	return nonNil(suppliers), err
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.Supplier{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier name is required", domain.ErrInvalidInput)
	}
	created, err := s.data.CreateSupplier(ctx, storeOf(ctx), domain.Supplier{
		Name:    name,
		Contact: strings.TrimSpace(req.Contact),
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Supplier{}, mapStoreErr(err)
	}
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.data.ListCustomers(ctx, storeOf(ctx))
	return nonNil(customers), err
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", domain.ErrInvalidInput)
	}
	created, err := s.data.CreateCustomer(ctx, storeOf(ctx), domain.Customer{
		Name:     name,
		Document: strings.TrimSpace(req.Document),
		Phone:    strings.TrimSpace(req.Phone),
		Email:    strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Customer{}, mapStoreErr(err)
	}
	return *created, nil
}

func (s *Service) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	return s.data.GetSettings(ctx, storeOf(ctx))
}

func (s *Service) UpdateSettings(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.StoreSettings{}, err
	}
	settings.Name = strings.TrimSpace(settings.Name)
	settings.Currency = strings.TrimSpace(settings.Currency)
	if settings.Name == "" || settings.Currency == "" {
		return domain.StoreSettings{}, fmt.Errorf("%w: store name and currency are required", domain.ErrInvalidInput)
	}
	if settings.TaxRate < 0 || settings.TaxRate >= 1 {
		return domain.StoreSettings{}, fmt.Errorf("%w: tax rate must be in [0, 1)", domain.ErrInvalidInput)
	}
	if err := s.data.SaveSettings(ctx, storeOf(ctx), settings); err != nil {
		return domain.StoreSettings{}, s.persistErr("save settings", err)
	}
	return settings, nil
}

// ResetDemo restores the seed data. Only strategies with seed data support it.
func (s *Service) ResetDemo(ctx context.Context) error {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return err
	}
	resetter, ok := s.data.(store.Resetter)
	if !ok {
		return fmt.Errorf("%w: reset is only available in demo mode", domain.ErrForbidden)
	}
	if err := resetter.ResetDemo(ctx); err != nil {
		return s.persistErr("reset demo", err)
	}
	s.logger.Warn("demo data reset", zap.String("by", actorName(ctx)))
	return nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalid):
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	default:
		return err
	}
}
