package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/store"
	"posgo/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// jsonColumn maps a JSONB column onto a Go value.
type jsonColumn[T any] struct {
	V T
}

func (j jsonColumn[T]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (j *jsonColumn[T]) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		var zero T
		j.V = zero
		return nil
	case []byte:
		return json.Unmarshal(v, &j.V)
	case string:
		return json.Unmarshal([]byte(v), &j.V)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
}

const productColumns = `id, store_id, name, price, category, stock, barcode, has_variants, variants, images, created_at, updated_at`

type productRow struct {
	ID          string                      `db:"id"`
	StoreID     string                      `db:"store_id"`
	Name        string                      `db:"name"`
	Price       float64                     `db:"price"`
	Category    string                      `db:"category"`
	Stock       int                         `db:"stock"`
	Barcode     sql.NullString              `db:"barcode"`
	HasVariants bool                        `db:"has_variants"`
	Variants    jsonColumn[[]domain.Variant] `db:"variants"`
	Images      jsonColumn[[]string]        `db:"images"`
	CreatedAt   time.Time                   `db:"created_at"`
	UpdatedAt   time.Time                   `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Category:    r.Category,
		Stock:       r.Stock,
		Barcode:     r.Barcode.String,
		HasVariants: r.HasVariants,
		Variants:    r.Variants.V,
		Images:      r.Images.V,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func productToRow(storeID string, p domain.Product) productRow {
	variants := p.Variants
	if variants == nil {
		variants = []domain.Variant{}
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productRow{
		ID:          p.ID,
		StoreID:     storeID,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Stock:       p.Stock,
		Barcode:     sql.NullString{String: p.Barcode, Valid: p.Barcode != ""},
		HasVariants: p.HasVariants,
		Variants:    jsonColumn[[]domain.Variant]{V: variants},
		Images:      jsonColumn[[]string]{V: images},
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1
		ORDER BY lower(name)
	`, storeID); err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, storeID string, id string) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE store_id = $1 AND id = $2`, storeID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	product := row.toDomain()
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, storeID string, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || storeID == "" {
		return nil, store.ErrInvalid
	}
	now := time.Now().UTC()
	product.ID = xid.New()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :store_id, :name, :price, :category, :stock, :barcode, :has_variants, :variants, :images, :created_at, :updated_at)
	`, productToRow(storeID, product))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, storeID string, product domain.Product) (*domain.Product, error) {
	row := productToRow(storeID, product)
	var saved productRow
	err := s.db.GetContext(ctx, &saved, `
		UPDATE products
		SET name = $3, price = $4, category = $5, stock = $6, barcode = $7,
			has_variants = $8, variants = $9, images = $10, updated_at = now()
		WHERE store_id = $1 AND id = $2
		RETURNING `+productColumns,
		storeID, row.ID, row.Name, row.Price, row.Category, row.Stock, row.Barcode,
		row.HasVariants, row.Variants, row.Images)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	updated := saved.toDomain()
	return &updated, nil
}

const transactionColumns = `id, store_id, date, items, subtotal, tax, discount, total, payment_method, payments, change_amount, shift_id, cashier`

type transactionRow struct {
	ID            string                            `db:"id"`
	StoreID       string                            `db:"store_id"`
	Date          time.Time                         `db:"date"`
	Items         jsonColumn[[]domain.CartItem]      `db:"items"`
	Subtotal      float64                           `db:"subtotal"`
	Tax           float64                           `db:"tax"`
	Discount      float64                           `db:"discount"`
	Total         float64                           `db:"total"`
	PaymentMethod string                            `db:"payment_method"`
	Payments      jsonColumn[[]domain.PaymentDetail] `db:"payments"`
	Change        float64                           `db:"change_amount"`
	ShiftID       string                            `db:"shift_id"`
	Cashier       string                            `db:"cashier"`
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:            r.ID,
		Date:          r.Date.UTC(),
		Items:         r.Items.V,
		Subtotal:      r.Subtotal,
		Tax:           r.Tax,
		Discount:      r.Discount,
		Total:         r.Total,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		Payments:      r.Payments.V,
		Change:        r.Change,
		ShiftID:       r.ShiftID,
		Cashier:       r.Cashier,
	}
}

func (s *Store) ListTransactions(ctx context.Context, storeID string) ([]domain.Transaction, error) {
	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE store_id = $1
		ORDER BY date DESC
	`, storeID); err != nil {
		return nil, err
	}
	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.toDomain())
	}
	return txs, nil
}

func (s *Store) GetTransaction(ctx context.Context, storeID string, id string) (*domain.Transaction, error) {
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+transactionColumns+` FROM transactions WHERE store_id = $1 AND id = $2`, storeID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx := row.toDomain()
	return &tx, nil
}

type purchaseRow struct {
	ID         string                           `db:"id"`
	StoreID    string                           `db:"store_id"`
	Date       time.Time                        `db:"date"`
	SupplierID string                           `db:"supplier_id"`
	Total      float64                          `db:"total"`
	Items      jsonColumn[[]domain.PurchaseItem] `db:"items"`
}

func (s *Store) ListPurchases(ctx context.Context, storeID string) ([]domain.Purchase, error) {
	var rows []purchaseRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, store_id, date, supplier_id, total, items
		FROM purchases
		WHERE store_id = $1
		ORDER BY date DESC
	`, storeID); err != nil {
		return nil, err
	}
	purchases := make([]domain.Purchase, 0, len(rows))
	for _, row := range rows {
		purchases = append(purchases, domain.Purchase{
			ID:         row.ID,
			Date:       row.Date.UTC(),
			SupplierID: row.SupplierID,
			Total:      row.Total,
			Items:      row.Items.V,
		})
	}
	return purchases, nil
}

func (s *Store) GetSettings(ctx context.Context, storeID string) (domain.StoreSettings, error) {
	var settings jsonColumn[domain.StoreSettings]
	settings.V = domain.DefaultSettings()
	err := s.db.GetContext(ctx, &settings, `SELECT settings FROM stores WHERE id = $1`, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return domain.StoreSettings{}, err
	}
	return settings.V, nil
}

func (s *Store) SaveSettings(ctx context.Context, storeID string, settings domain.StoreSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, settings)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, settings = EXCLUDED.settings
	`, storeID, settings.Name, jsonColumn[domain.StoreSettings]{V: settings})
	return err
}

type customerRow struct {
	ID        string    `db:"id"`
	StoreID   string    `db:"store_id"`
	Name      string    `db:"name"`
	Document  string    `db:"document"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	var rows []customerRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, store_id, name, document, phone, email, created_at
		FROM customers
		WHERE store_id = $1
		ORDER BY name
	`, storeID); err != nil {
		return nil, err
	}
	customers := make([]domain.Customer, 0, len(rows))
	for _, r := range rows {
		customers = append(customers, domain.Customer{
			ID: r.ID, Name: r.Name, Document: r.Document, Phone: r.Phone, Email: r.Email, CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, storeID string, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalid
	}
	customer.ID = xid.New()
	customer.CreatedAt = time.Now().UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO customers (id, store_id, name, document, phone, email, created_at)
		VALUES (:id, :store_id, :name, :document, :phone, :email, :created_at)
	`, customerRow{
		ID: customer.ID, StoreID: storeID, Name: customer.Name, Document: customer.Document,
		Phone: customer.Phone, Email: customer.Email, CreatedAt: customer.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

type supplierRow struct {
	ID        string    `db:"id"`
	StoreID   string    `db:"store_id"`
	Name      string    `db:"name"`
	Contact   string    `db:"contact"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

func (r supplierRow) toDomain() domain.Supplier {
	return domain.Supplier{
		ID: r.ID, Name: r.Name, Contact: r.Contact, Phone: r.Phone, Email: r.Email, CreatedAt: r.CreatedAt.UTC(),
	}
}

func (s *Store) ListSuppliers(ctx context.Context, storeID string) ([]domain.Supplier, error) {
	var rows []supplierRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, store_id, name, contact, phone, email, created_at
		FROM suppliers
		WHERE store_id = $1
		ORDER BY created_at, name
	`, storeID); err != nil {
		return nil, err
	}
	suppliers := make([]domain.Supplier, 0, len(rows))
	for _, r := range rows {
		suppliers = append(suppliers, r.toDomain())
	}
	return suppliers, nil
}

func (s *Store) GetSupplier(ctx context.Context, storeID string, id string) (*domain.Supplier, error) {
	var row supplierRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, store_id, name, contact, phone, email, created_at
		FROM suppliers
		WHERE store_id = $1 AND id = $2
	`, storeID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	supplier := row.toDomain()
	return &supplier, nil
}

func (s *Store) CreateSupplier(ctx context.Context, storeID string, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalid
	}
	supplier.ID = xid.New()
	supplier.CreatedAt = time.Now().UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO suppliers (id, store_id, name, contact, phone, email, created_at)
		VALUES (:id, :store_id, :name, :contact, :phone, :email, :created_at)
	`, supplierRow{
		ID: supplier.ID, StoreID: storeID, Name: supplier.Name, Contact: supplier.Contact,
		Phone: supplier.Phone, Email: supplier.Email, CreatedAt: supplier.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &supplier, nil
}

const shiftColumns = `id, store_id, start_time, start_amount, status, end_time, end_amount, total_sales_cash, total_sales_digital, opened_by`

type shiftRow struct {
	ID                string          `db:"id"`
	StoreID           string          `db:"store_id"`
	StartTime         time.Time       `db:"start_time"`
	StartAmount       float64         `db:"start_amount"`
	Status            string          `db:"status"`
	EndTime           sql.NullTime    `db:"end_time"`
	EndAmount         sql.NullFloat64 `db:"end_amount"`
	TotalSalesCash    float64         `db:"total_sales_cash"`
	TotalSalesDigital float64         `db:"total_sales_digital"`
	OpenedBy          string          `db:"opened_by"`
}

func (r shiftRow) toDomain() domain.CashShift {
	shift := domain.CashShift{
		ID:                r.ID,
		StartTime:         r.StartTime.UTC(),
		StartAmount:       r.StartAmount,
		Status:            domain.ShiftStatus(r.Status),
		TotalSalesCash:    r.TotalSalesCash,
		TotalSalesDigital: r.TotalSalesDigital,
		OpenedBy:          r.OpenedBy,
	}
	if r.EndTime.Valid {
		at := r.EndTime.Time.UTC()
		shift.EndTime = &at
	}
	if r.EndAmount.Valid {
		amount := r.EndAmount.Float64
		shift.EndAmount = &amount
	}
	return shift
}

func (s *Store) ListShifts(ctx context.Context, storeID string) ([]domain.CashShift, error) {
	var rows []shiftRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+shiftColumns+`
		FROM cash_shifts
		WHERE store_id = $1
		ORDER BY start_time DESC
	`, storeID); err != nil {
		return nil, err
	}
	shifts := make([]domain.CashShift, 0, len(rows))
	for _, r := range rows {
		shifts = append(shifts, r.toDomain())
	}
	return shifts, nil
}

func (s *Store) GetShift(ctx context.Context, storeID string, id string) (*domain.CashShift, error) {
	var row shiftRow
	err := s.db.GetContext(ctx, &row, `SELECT `+shiftColumns+` FROM cash_shifts WHERE store_id = $1 AND id = $2`, storeID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift := row.toDomain()
	return &shift, nil
}

func (s *Store) UpdateShift(ctx context.Context, storeID string, shift domain.CashShift) error {
	return updateShift(ctx, s.db, storeID, shift, false)
}

func (s *Store) ActiveShiftID(ctx context.Context, storeID string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `SELECT id FROM cash_shifts WHERE store_id = $1 AND status = 'OPEN'`, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

type movementRow struct {
	ID          string    `db:"id"`
	StoreID     string    `db:"store_id"`
	ShiftID     string    `db:"shift_id"`
	Type        string    `db:"type"`
	Amount      float64   `db:"amount"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	CreatedBy   string    `db:"created_by"`
}

func (s *Store) ListMovements(ctx context.Context, storeID string) ([]domain.CashMovement, error) {
	var rows []movementRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, store_id, shift_id, type, amount, description, created_at, created_by
		FROM cash_movements
		WHERE store_id = $1
		ORDER BY created_at
	`, storeID); err != nil {
		return nil, err
	}
	moves := make([]domain.CashMovement, 0, len(rows))
	for _, r := range rows {
		moves = append(moves, domain.CashMovement{
			ID:          r.ID,
			ShiftID:     r.ShiftID,
			Type:        domain.MovementType(r.Type),
			Amount:      r.Amount,
			Description: r.Description,
			Timestamp:   r.CreatedAt.UTC(),
			CreatedBy:   r.CreatedBy,
		})
	}
	return moves, nil
}

func (s *Store) AppendMovement(ctx context.Context, storeID string, move domain.CashMovement) error {
	return insertMovement(ctx, s.db, storeID, move)
}

func (s *Store) OpenShift(ctx context.Context, storeID string, shift domain.CashShift, move domain.CashMovement) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_shifts (`+shiftColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, shift.ID, storeID, shift.StartTime, shift.StartAmount, shift.Status,
		nullTime(shift.EndTime), nullFloat(shift.EndAmount), shift.TotalSalesCash, shift.TotalSalesDigital, shift.OpenedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrShiftAlreadyOpen
		}
		return err
	}
	if err := insertMovement(ctx, tx, storeID, move); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CloseShift(ctx context.Context, storeID string, shift domain.CashShift, move domain.CashMovement) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateShift(ctx, tx, storeID, shift, true); err != nil {
		return err
	}
	if err := insertMovement(ctx, tx, storeID, move); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RecordSale(ctx context.Context, storeID string, sale domain.Transaction, products []domain.Product, shift domain.CashShift) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:id, :store_id, :date, :items, :subtotal, :tax, :discount, :total, :payment_method, :payments, :change_amount, :shift_id, :cashier)
	`, transactionRow{
		ID:            sale.ID,
		StoreID:       storeID,
		Date:          sale.Date,
		Items:         jsonColumn[[]domain.CartItem]{V: sale.Items},
		Subtotal:      sale.Subtotal,
		Tax:           sale.Tax,
		Discount:      sale.Discount,
		Total:         sale.Total,
		PaymentMethod: string(sale.PaymentMethod),
		Payments:      jsonColumn[[]domain.PaymentDetail]{V: sale.Payments},
		Change:        sale.Change,
		ShiftID:       sale.ShiftID,
		Cashier:       sale.Cashier,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if err := writeStock(ctx, tx, storeID, products); err != nil {
		return err
	}
	if err := updateShift(ctx, tx, storeID, shift, true); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RecordPurchase(ctx context.Context, storeID string, purchase domain.Purchase, products []domain.Product) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO purchases (id, store_id, date, supplier_id, total, items)
		VALUES (:id, :store_id, :date, :supplier_id, :total, :items)
	`, purchaseRow{
		ID:         purchase.ID,
		StoreID:    storeID,
		Date:       purchase.Date,
		SupplierID: purchase.SupplierID,
		Total:      purchase.Total,
		Items:      jsonColumn[[]domain.PurchaseItem]{V: purchase.Items},
	})
	if err != nil {
		return err
	}
	if err := writeStock(ctx, tx, storeID, products); err != nil {
		return err
	}
	return tx.Commit()
}

type profileRow struct {
	ID        string         `db:"id"`
	Username  string         `db:"username"`
	Password  string         `db:"password_hash"`
	FullName  string         `db:"full_name"`
	Role      string         `db:"role"`
	StoreID   sql.NullString `db:"store_id"`
	Active    bool           `db:"active"`
	CreatedAt time.Time      `db:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalid
	}
	if user.ID == "" {
		user.ID = xid.New()
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, password_hash, full_name, role, store_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,true,$7)
	`, user.ID, username, user.Password, user.Name, user.Role, nullIfEmpty(user.StoreID), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, username, password_hash, full_name, role, store_id, active, created_at
		FROM profiles
		ORDER BY username
	`); err != nil {
		return nil, err
	}
	users := make([]domain.UserAccount, 0, len(rows))
	for _, r := range rows {
		users = append(users, domain.UserAccount{
			ID:        r.ID,
			Username:  r.Username,
			Password:  r.Password,
			Name:      r.FullName,
			Role:      r.Role,
			StoreID:   r.StoreID.String,
			Active:    r.Active,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalid
	}
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET password_hash = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ProfileStoreID(ctx context.Context, userID string) (string, error) {
	var storeID sql.NullString
	err := s.db.GetContext(ctx, &storeID, `SELECT store_id FROM profiles WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return storeID.String, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMovement(ctx context.Context, db execer, storeID string, move domain.CashMovement) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cash_movements (id, store_id, shift_id, type, amount, description, created_at, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, move.ID, storeID, move.ShiftID, move.Type, move.Amount, move.Description, move.Timestamp, move.CreatedBy)
	return err
}

// updateShift writes the mutable shift columns. With requireOpen the row must
// still be OPEN, so a concurrent close is detected instead of overwritten.
func updateShift(ctx context.Context, db execer, storeID string, shift domain.CashShift, requireOpen bool) error {
	query := `
		UPDATE cash_shifts
		SET status = $3, end_time = $4, end_amount = $5, total_sales_cash = $6, total_sales_digital = $7
		WHERE store_id = $1 AND id = $2`
	if requireOpen {
		query += ` AND status = 'OPEN'`
	}
	res, err := db.ExecContext(ctx, query, storeID, shift.ID, shift.Status,
		nullTime(shift.EndTime), nullFloat(shift.EndAmount), shift.TotalSalesCash, shift.TotalSalesDigital)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if requireOpen {
			return fmt.Errorf("%w: %s", domain.ErrShiftClosed, shift.ID)
		}
		return store.ErrNotFound
	}
	return nil
}

func writeStock(ctx context.Context, db execer, storeID string, products []domain.Product) error {
	for _, p := range products {
		row := productToRow(storeID, p)
		res, err := db.ExecContext(ctx, `
			UPDATE products
			SET stock = $3, price = $4, variants = $5, updated_at = now()
			WHERE store_id = $1 AND id = $2
		`, storeID, p.ID, row.Stock, row.Price, row.Variants)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, p.ID)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullFloat(val *float64) any {
	if val == nil {
		return nil
	}
	return *val
}
