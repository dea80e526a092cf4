package store

import (
	"context"
	"errors"

	"posgo/backend/internal/domain"
)

var (
	ErrNotFound = domain.ErrNotFound
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid record")
)

// DataStore is the storage strategy the service runs against. Every call is
// scoped by a store id; single-tenant strategies may ignore it. Create methods
// assign identifiers, update methods require an existing record.
type DataStore interface {
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, storeID string, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, storeID string, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, storeID string, product domain.Product) (*domain.Product, error)

	ListTransactions(ctx context.Context, storeID string) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, storeID string, id string) (*domain.Transaction, error)

	ListPurchases(ctx context.Context, storeID string) ([]domain.Purchase, error)

	GetSettings(ctx context.Context, storeID string) (domain.StoreSettings, error)
	SaveSettings(ctx context.Context, storeID string, settings domain.StoreSettings) error

	ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, storeID string, customer domain.Customer) (*domain.Customer, error)

	ListSuppliers(ctx context.Context, storeID string) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, storeID string, id string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, storeID string, supplier domain.Supplier) (*domain.Supplier, error)

	ListShifts(ctx context.Context, storeID string) ([]domain.CashShift, error)
	GetShift(ctx context.Context, storeID string, id string) (*domain.CashShift, error)
	UpdateShift(ctx context.Context, storeID string, shift domain.CashShift) error
	ActiveShiftID(ctx context.Context, storeID string) (string, error)

	ListMovements(ctx context.Context, storeID string) ([]domain.CashMovement, error)
	AppendMovement(ctx context.Context, storeID string, move domain.CashMovement) error

	// OpenShift stores the shift with its OPEN movement and marks it active.
	// It fails with domain.ErrShiftAlreadyOpen if another shift is active.
	OpenShift(ctx context.Context, storeID string, shift domain.CashShift, move domain.CashMovement) error
	// CloseShift stores the closed shift with its CLOSE movement and clears
	// the active pointer.
	CloseShift(ctx context.Context, storeID string, shift domain.CashShift, move domain.CashMovement) error

	// RecordSale appends the transaction, writes the touched products and the
	// shift's new running totals as one unit.
	RecordSale(ctx context.Context, storeID string, tx domain.Transaction, products []domain.Product, shift domain.CashShift) error
	// RecordPurchase appends the purchase and writes the touched products as one unit.
	RecordPurchase(ctx context.Context, storeID string, purchase domain.Purchase, products []domain.Product) error

	UserStore
	TenantAdmin
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	// ProfileStoreID returns the store a user belongs to, or "" if unassigned.
	ProfileStoreID(ctx context.Context, userID string) (string, error)
}

// TenantAdmin covers the platform-wide records that sit above a single store.
type TenantAdmin interface {
	// ListStores returns every tenant, newest first.
	ListStores(ctx context.Context) ([]domain.StoreSummary, error)
	// DeleteStore removes the tenant and every record scoped to it, including
	// its profiles. It returns ErrNotFound for an unknown id.
	DeleteStore(ctx context.Context, storeID string) error

	ListLeads(ctx context.Context) ([]domain.Lead, error)
	CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
}

// Resetter is implemented by strategies that can restore their seed data.
type Resetter interface {
	ResetDemo(ctx context.Context) error
}
