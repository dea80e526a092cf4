package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/store"
	"posgo/backend/internal/xid"
)

type storeRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) ListStores(ctx context.Context) ([]domain.StoreSummary, error) {
	var rows []storeRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, COALESCE(NULLIF(name, ''), settings->>'name', '') AS name, created_at
		FROM stores
		ORDER BY created_at DESC
	`); err != nil {
		return nil, err
	}
	stores := make([]domain.StoreSummary, 0, len(rows))
	for _, row := range rows {
		stores = append(stores, domain.StoreSummary{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt.UTC()})
	}
	return stores, nil
}

// tenantTables are cleared child-first so foreign keys never block the delete.
var tenantTables = []string{
	"purchases",
	"transactions",
	"cash_movements",
	"cash_shifts",
	"suppliers",
	"customers",
	"products",
	"profiles",
}

func (s *Store) DeleteStore(ctx context.Context, storeID string) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	if err := tx.GetContext(ctx, &id, `SELECT id FROM stores WHERE id = $1 FOR UPDATE`, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	for _, table := range tenantTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE store_id = $1`, storeID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, storeID); err != nil {
		return err
	}
	return tx.Commit()
}

type leadRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	BusinessName string    `db:"business_name"`
	Phone        string    `db:"phone"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *Store) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	var rows []leadRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, business_name, phone, created_at
		FROM leads
		ORDER BY created_at DESC
	`); err != nil {
		return nil, err
	}
	leads := make([]domain.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, domain.Lead{
			ID:           row.ID,
			Name:         row.Name,
			BusinessName: row.BusinessName,
			Phone:        row.Phone,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return leads, nil
}

func (s *Store) CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	if lead.ID == "" {
		lead.ID = xid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO leads (id, name, business_name, phone, created_at)
		VALUES (:id, :name, :business_name, :phone, :created_at)
	`, leadRow{
		ID:           lead.ID,
		Name:         lead.Name,
		BusinessName: lead.BusinessName,
		Phone:        lead.Phone,
		CreatedAt:    lead.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &lead, nil
}
