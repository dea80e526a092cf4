package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/store"
	"posgo/backend/internal/xid"
)

var _ store.DataStore = (*Store)(nil)
var _ store.Resetter = (*Store)(nil)

func newStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass")
	clock := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return NewSeeded(zap.NewNop(),
		WithClock(func() time.Time { return clock }),
		WithIDs(xid.Sequence("mem")),
	)
}

func TestSeededCatalogAndSettings(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	products, err := s.ListProducts(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 5)
	assert.Equal(t, "Agua San Mateo", products[0].Name)

	settings, err := s.GetSettings(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), settings)

	raw, ok := s.Raw(KeyProducts)
	require.True(t, ok)
	var stored []domain.Product
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Len(t, stored, 5)
}

func TestCreateAssignsIDAndUpdateRequiresExisting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, "", domain.Product{ID: "ignored", Name: " Polo ", Price: 20})
	require.NoError(t, err)
	assert.Equal(t, "mem-2", created.ID)
	assert.Equal(t, "Polo", created.Name)

	created.Price = 25
	updated, err := s.UpdateProduct(ctx, "", *created)
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Price)

	_, err = s.UpdateProduct(ctx, "", domain.Product{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateProduct(ctx, "", domain.Product{Name: "  "})
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func TestShiftLifecycleKeepsSingleActivePointer(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	shift := domain.CashShift{ID: "s1", Status: domain.ShiftOpen, StartAmount: 50}
	require.NoError(t, s.OpenShift(ctx, "", shift, domain.CashMovement{ID: "m1", ShiftID: "s1", Type: domain.MovementOpen, Amount: 50}))

	active, err := s.ActiveShiftID(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "s1", active)

	err = s.OpenShift(ctx, "", domain.CashShift{ID: "s2", Status: domain.ShiftOpen}, domain.CashMovement{ID: "m2", ShiftID: "s2"})
	assert.ErrorIs(t, err, domain.ErrShiftAlreadyOpen)

	end := 70.0
	shift.Status = domain.ShiftClosed
	shift.EndAmount = &end
	require.NoError(t, s.CloseShift(ctx, "", shift, domain.CashMovement{ID: "m3", ShiftID: "s1", Type: domain.MovementClose, Amount: 70}))

	active, err = s.ActiveShiftID(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, active)

	moves, err := s.ListMovements(ctx, "")
	require.NoError(t, err)
	assert.Len(t, moves, 2)

	got, err := s.GetShift(ctx, "", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftClosed, got.Status)
}

func TestRecordSaleWritesAllParts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	shift := domain.CashShift{ID: "s1", Status: domain.ShiftOpen}
	require.NoError(t, s.OpenShift(ctx, "", shift, domain.CashMovement{ID: "m1", ShiftID: "s1", Type: domain.MovementOpen}))

	product, err := s.GetProduct(ctx, "", "1")
	require.NoError(t, err)
	product.Stock = 48
	shift.TotalSalesCash = 7

	tx := domain.Transaction{ID: "t1", ShiftID: "s1", Total: 7}
	require.NoError(t, s.RecordSale(ctx, "", tx, []domain.Product{*product}, shift))

	got, err := s.GetTransaction(ctx, "", "t1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.Total)

	product, err = s.GetProduct(ctx, "", "1")
	require.NoError(t, err)
	assert.Equal(t, 48, product.Stock)

	stored, err := s.GetShift(ctx, "", "s1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, stored.TotalSalesCash)
}

func TestRecordSaleUnknownProductWritesNothing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.OpenShift(ctx, "", domain.CashShift{ID: "s1", Status: domain.ShiftOpen}, domain.CashMovement{ID: "m1", ShiftID: "s1"}))

	err := s.RecordSale(ctx, "", domain.Transaction{ID: "t1"}, []domain.Product{{ID: "ghost"}}, domain.CashShift{ID: "s1"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	txs, err := s.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestResetDemoRestoresSeed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CreateSupplier(ctx, "", domain.Supplier{Name: "Backus"})
	require.NoError(t, err)
	require.NoError(t, s.SaveSettings(ctx, "", domain.StoreSettings{Name: "Changed"}))

	require.NoError(t, s.ResetDemo(ctx))

	suppliers, err := s.ListSuppliers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, suppliers)
	settings, err := s.GetSettings(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "PosGo! Store", settings.Name)
}

func TestSeedUsersAndProfileStore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, domain.DemoUserID, users[0].ID)

	storeID, err := s.ProfileStoreID(ctx, domain.DemoUserID)
	require.NoError(t, err)
	assert.Equal(t, DemoStoreID, storeID)

	assert.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "ADMIN", Password: "x"}), store.ErrConflict)
	assert.ErrorIs(t, s.UpdateUserPassword(ctx, "nobody", "x"), store.ErrNotFound)
}

func TestListStoresAndDeleteEmptiesTenant(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	stores, err := s.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, DemoStoreID, stores[0].ID)
	assert.Equal(t, "PosGo! Store", stores[0].Name)
	assert.False(t, stores[0].CreatedAt.IsZero())

	_, err = s.CreateLead(ctx, domain.Lead{Name: "Rosa", Phone: "51999888777"})
	require.NoError(t, err)
	_, err = s.CreateSupplier(ctx, "", domain.Supplier{Name: "Backus"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteStore(ctx, "other"), store.ErrNotFound)
	require.NoError(t, s.DeleteStore(ctx, DemoStoreID))

	products, err := s.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, products)
	suppliers, err := s.ListSuppliers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, suppliers)
	active, err := s.ActiveShiftID(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, active)

	leads, err := s.ListLeads(ctx)
	require.NoError(t, err)
	assert.Len(t, leads, 1, "leads are not tenant data")
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestLeadsNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	_, err := s.CreateLead(ctx, domain.Lead{Name: "Rosa", Phone: "51999888777", CreatedAt: base})
	require.NoError(t, err)
	created, err := s.CreateLead(ctx, domain.Lead{Name: "Luis", Phone: "51999111222", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "mem-2", created.ID)

	leads, err := s.ListLeads(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Luis", leads[0].Name)

	require.NoError(t, s.ResetDemo(ctx))
	leads, err = s.ListLeads(ctx)
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass")
	path := filepath.Join(t.TempDir(), "demo.json")
	ctx := context.Background()

	first := NewSeeded(zap.NewNop(), WithSnapshot(path))
	_, err := os.Stat(path)
	require.NoError(t, err, "seed must be written on first start")

	supplier, err := first.CreateSupplier(ctx, "", domain.Supplier{Name: "Backus"})
	require.NoError(t, err)
	require.NoError(t, first.OpenShift(ctx, "",
		domain.CashShift{ID: "shift-1", Status: domain.ShiftOpen, StartAmount: 50},
		domain.CashMovement{ID: "mv-1", ShiftID: "shift-1", Type: domain.MovementOpen, Amount: 50}))
	require.NoError(t, first.CreateUser(ctx, domain.UserAccount{Username: "maria", Password: "hash-1", Role: domain.RoleCashier}))

	second := NewSeeded(zap.NewNop(), WithSnapshot(path))
	got, err := second.GetSupplier(ctx, "", supplier.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backus", got.Name)
	active, err := second.ActiveShiftID(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "shift-1", active)

	users, err := second.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "maria", users[2].Username)
	assert.Equal(t, "hash-1", users[2].Password)
	assert.NotEmpty(t, users[0].Password)
}

func TestSnapshotInvalidFileFallsBackToSeed(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-pass")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass")
	path := filepath.Join(t.TempDir(), "demo.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewSeeded(zap.NewNop(), WithSnapshot(path))
	products, err := s.ListProducts(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, products, 5)
}
