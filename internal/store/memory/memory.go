package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/store"
	"posgo/backend/internal/xid"
)

// Fixed keys of the demo key/value area. Every record set lives as one JSON
// document under its key; the store has a single implicit tenant.
const (
	KeyProducts     = "posgo_products"
	KeyTransactions = "posgo_transactions"
	KeyPurchases    = "posgo_purchases"
	KeySettings     = "posgo_settings"
	KeyCustomers    = "posgo_customers"
	KeySuppliers    = "posgo_suppliers"
	KeyShifts       = "posgo_shifts"
	KeyMovements    = "posgo_movements"
	KeyActiveShift  = "posgo_active_shift"
	KeyLeads        = "posgo_leads"
	KeyCreatedAt    = "posgo_created_at"
)

// DemoStoreID is reported for the implicit tenant.
const DemoStoreID = "demo"

type Store struct {
	mu           sync.RWMutex
	kv           map[string][]byte
	users        map[string]domain.UserAccount
	now          func() time.Time
	newID        xid.Generator
	logger       *zap.Logger
	snapshotPath string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDs(gen xid.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// WithSnapshot keeps the key/value area and the accounts in a JSON file at
// path, rewritten after every change and loaded on start. An empty path keeps
// everything in memory.
func WithSnapshot(path string) Option {
	return func(s *Store) { s.snapshotPath = path }
}

// NewSeeded builds a demo store holding the sample catalog, default settings
// and the seed accounts. With a snapshot file present its contents replace the
// seed.
func NewSeeded(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:     make(map[string][]byte),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  xid.New,
		logger: logger.Named("memory-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loadSnapshot() {
		return s
	}
	s.users = s.seedUsers()
	s.seed()
	s.saveSnapshotLocked()
	return s
}

// seedUsers builds the demo accounts. Passwords come from SEED_ADMIN_PASSWORD
// and SEED_CASHIER_PASSWORD; dev defaults are used with a warning otherwise.
func (s *Store) seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		s.logger.Warn("using default demo credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := s.now()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		id       string
		username string
		name     string
		password string
		role     string
	}{
		{domain.DemoUserID, "admin", "Demo Admin", adminPwd, domain.RoleAdmin},
		{"demo-cashier", "cashier", "Demo Cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			ID:        u.id,
			Username:  u.username,
			Password:  string(hash),
			Name:      u.name,
			Role:      u.role,
			StoreID:   DemoStoreID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func seedProducts(now time.Time) []domain.Product {
	products := []domain.Product{
		{ID: "1", Name: "Inca Kola 600ml", Price: 3.50, Category: "Bebidas", Stock: 50, Barcode: "77501000"},
		{ID: "2", Name: "Papas Lays 45g", Price: 2.50, Category: "Alimentos", Stock: 32, Barcode: "75010001"},
		{ID: "3", Name: "Galleta Casino", Price: 1.20, Category: "Alimentos", Stock: 15, Barcode: "75010002"},
		{ID: "4", Name: "Agua San Mateo", Price: 2.00, Category: "Bebidas", Stock: 100, Barcode: "77502000"},
		{ID: "5", Name: "Detergente Bolivar", Price: 4.50, Category: "Limpieza", Stock: 10, Barcode: "77503000"},
	}
	for i := range products {
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
	}
	return products
}

// seed resets the key/value area. Leads are platform records and survive.
// Callers must hold the write lock or own s.
func (s *Store) seed() {
	s.wipe()
	mustPut(s, KeyProducts, seedProducts(s.now()))
}

// wipe leaves an empty tenant with default settings.
func (s *Store) wipe() {
	leads, ok := s.kv[KeyLeads]
	if !ok {
		leads = []byte("[]")
	}
	s.kv = map[string][]byte{KeyLeads: leads}
	mustPut(s, KeySettings, domain.DefaultSettings())
	mustPut(s, KeyCreatedAt, s.now())
	for _, key := range []string{KeyProducts, KeyTransactions, KeyPurchases, KeyCustomers, KeySuppliers, KeyShifts, KeyMovements} {
		s.kv[key] = []byte("[]")
	}
}

func (s *Store) ResetDemo(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()
	s.seed()
	s.logger.Info("demo data restored")
	return nil
}

// Raw returns the JSON document stored under key.
func (s *Store) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.kv[key]
	return slices.Clone(raw), ok
}

func (s *Store) ListProducts(_ context.Context, _ string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products, err := get[[]domain.Product](s, KeyProducts)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, _ string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products, err := get[[]domain.Product](s, KeyProducts)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, _ string, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return nil, store.ErrInvalid
	}
	products, err := get[[]domain.Product](s, KeyProducts)
	if err != nil {
		return nil, err
	}
	product.ID = s.newID()
	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	products = append(products, product)
	if err := put(s, KeyProducts, products); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, _ string, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	products, err := get[[]domain.Product](s, KeyProducts)
	if err != nil {
		return nil, err
	}
	if !replaceProducts(products, []domain.Product{product}, s.now()) {
		return nil, store.ErrNotFound
	}
	if err := put(s, KeyProducts, products); err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.ID == product.ID {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, _ string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := get[[]domain.Transaction](s, KeyTransactions)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(txs, func(a, b domain.Transaction) int { return b.Date.Compare(a.Date) })
	return txs, nil
}

func (s *Store) GetTransaction(_ context.Context, _ string, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := get[[]domain.Transaction](s, KeyTransactions)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if tx.ID == id {
			return &tx, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListPurchases(_ context.Context, _ string) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases, err := get[[]domain.Purchase](s, KeyPurchases)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int { return b.Date.Compare(a.Date) })
	return purchases, nil
}

func (s *Store) GetSettings(_ context.Context, _ string) (domain.StoreSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.kv[KeySettings]; !ok {
		return domain.DefaultSettings(), nil
	}
	return get[domain.StoreSettings](s, KeySettings)
}

func (s *Store) SaveSettings(_ context.Context, _ string, settings domain.StoreSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()
	return put(s, KeySettings, settings)
}

func (s *Store) ListCustomers(_ context.Context, _ string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers, err := get[[]domain.Customer](s, KeyCustomers)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int { return cmpString(a.Name, b.Name) })
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, _ string, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalid
	}
	customers, err := get[[]domain.Customer](s, KeyCustomers)
	if err != nil {
		return nil, err
	}
	customer.ID = s.newID()
	customer.CreatedAt = s.now()
	if err := put(s, KeyCustomers, append(customers, customer)); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListSuppliers(_ context.Context, _ string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers, err := get[[]domain.Supplier](s, KeySuppliers)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.Name, b.Name)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return suppliers, nil
}

func (s *Store) GetSupplier(_ context.Context, _ string, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers, err := get[[]domain.Supplier](s, KeySuppliers)
	if err != nil {
		return nil, err
	}
	for _, sup := range suppliers {
		if sup.ID == id {
			return &sup, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateSupplier(_ context.Context, _ string, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalid
	}
	suppliers, err := get[[]domain.Supplier](s, KeySuppliers)
	if err != nil {
		return nil, err
	}
	supplier.ID = s.newID()
	supplier.CreatedAt = s.now()
	if err := put(s, KeySuppliers, append(suppliers, supplier)); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) ListShifts(_ context.Context, _ string) ([]domain.CashShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts, err := get[[]domain.CashShift](s, KeyShifts)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(shifts, func(a, b domain.CashShift) int { return b.StartTime.Compare(a.StartTime) })
	return shifts, nil
}

func (s *Store) GetShift(_ context.Context, _ string, id string) (*domain.CashShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts, err := get[[]domain.CashShift](s, KeyShifts)
	if err != nil {
		return nil, err
	}
	if i := shiftIndex(shifts, id); i >= 0 {
		return &shifts[i], nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateShift(_ context.Context, _ string, shift domain.CashShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()
	return s.updateShiftLocked(shift)
}

func (s *Store) ActiveShiftID(_ context.Context, _ string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.kv[KeyActiveShift]), nil
}

func (s *Store) ListMovements(_ context.Context, _ string) ([]domain.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	moves, err := get[[]domain.CashMovement](s, KeyMovements)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(moves, func(a, b domain.CashMovement) int { return a.Timestamp.Compare(b.Timestamp) })
	return moves, nil
}

func (s *Store) AppendMovement(_ context.Context, _ string, move domain.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()
	return s.appendLocked(KeyMovements, move)
}

func (s *Store) OpenShift(_ context.Context, _ string, shift domain.CashShift, move domain.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	if active := string(s.kv[KeyActiveShift]); active != "" {
		return fmt.Errorf("%w: %s", domain.ErrShiftAlreadyOpen, active)
	}
	shifts, err := get[[]domain.CashShift](s, KeyShifts)
	if err != nil {
		return err
	}
	if shiftIndex(shifts, shift.ID) >= 0 {
		return store.ErrConflict
	}
	if err := put(s, KeyShifts, append(shifts, shift)); err != nil {
		return err
	}
	if err := s.appendLocked(KeyMovements, move); err != nil {
		return err
	}
	s.kv[KeyActiveShift] = []byte(shift.ID)
	return nil
}

func (s *Store) CloseShift(_ context.Context, _ string, shift domain.CashShift, move domain.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	if err := s.updateShiftLocked(shift); err != nil {
		return err
	}
	if err := s.appendLocked(KeyMovements, move); err != nil {
		return err
	}
	if string(s.kv[KeyActiveShift]) == shift.ID {
		delete(s.kv, KeyActiveShift)
	}
	return nil
}

func (s *Store) RecordSale(_ context.Context, _ string, tx domain.Transaction, changed []domain.Product, shift domain.CashShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	products, err := get[[]domain.Product](s, KeyProducts)
	if err != nil {
		return err
	}
	if !replaceProducts(products, changed, s.now()) {
		return store.ErrNotFound
	}
	shifts, err := get[[]domain.CashShift](s, KeyShifts)
	if err != nil {
		return err
	}
	i := shiftIndex(shifts, shift.ID)
	if i < 0 {
		return store.ErrNotFound
	}
	shifts[i] = shift

	if err := s.appendLocked(KeyTransactions, tx); err != nil {
		return err
	}
	if err := put(s, KeyProducts, products); err != nil {
		return err
	}
	return put(s, KeyShifts, shifts)
}

func (s *Store) RecordPurchase(_ context.Context, _ string, purchase domain.Purchase, changed []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	products, err := get[[]domain.Product](s, KeyProducts)
	if err != nil {
		return err
	}
	if !replaceProducts(products, changed, s.now()) {
		return store.ErrNotFound
	}
	if err := s.appendLocked(KeyPurchases, purchase); err != nil {
		return err
	}
	return put(s, KeyProducts, products)
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalid
	}
	if _, exists := s.users[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.ID == "" {
		user.ID = s.newID()
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.StoreID == "" {
		user.StoreID = DemoStoreID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.Active = true
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalid
	}
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func (s *Store) ProfileStoreID(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ID == userID {
			return user.StoreID, nil
		}
	}
	return "", nil
}

func (s *Store) updateShiftLocked(shift domain.CashShift) error {
	shifts, err := get[[]domain.CashShift](s, KeyShifts)
	if err != nil {
		return err
	}
	i := shiftIndex(shifts, shift.ID)
	if i < 0 {
		return store.ErrNotFound
	}
	shifts[i] = shift
	return put(s, KeyShifts, shifts)
}

func (s *Store) appendLocked(key string, record any) error {
	var list []json.RawMessage
	if raw, ok := s.kv[key]; ok {
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return put(s, key, append(list, encoded))
}

// replaceProducts swaps in the changed products by id. It reports false if any
// of them is missing.
func replaceProducts(products []domain.Product, changed []domain.Product, now time.Time) bool {
	index := make(map[string]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}
	for _, c := range changed {
		i, ok := index[c.ID]
		if !ok {
			return false
		}
		c.CreatedAt = products[i].CreatedAt
		c.UpdatedAt = now
		products[i] = c
	}
	return true
}

func shiftIndex(shifts []domain.CashShift, id string) int {
	return slices.IndexFunc(shifts, func(s domain.CashShift) bool { return s.ID == id })
}

func get[T any](s *Store, key string) (T, error) {
	var out T
	raw, ok := s.kv[key]
	if !ok {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func put(s *Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.kv[key] = raw
	return nil
}

func mustPut(s *Store, key string, value any) {
	if err := put(s, key, value); err != nil {
		panic(err)
	}
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
