package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/notify"
)

// ListStores returns every tenant of the platform. Super admin only.
func (s *Service) ListStores(ctx context.Context) ([]domain.StoreSummary, error) {
	if err := requireRole(ctx, domain.RoleSuperAdmin); err != nil {
		return nil, err
	}
	stores, err := s.data.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(stores), nil
}

// DeleteStore removes a tenant with all of its data. The caller's own store
// cannot be deleted.
func (s *Service) DeleteStore(ctx context.Context, storeID string) error {
	if err := requireRole(ctx, domain.RoleSuperAdmin); err != nil {
		return err
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return fmt.Errorf("%w: store id is required", domain.ErrInvalidInput)
	}
	if storeID == storeOf(ctx) {
		return fmt.Errorf("%w: cannot delete your own store", domain.ErrInvalidInput)
	}

	unlock := s.lockStore(storeID)
	defer unlock()

	if err := s.data.DeleteStore(ctx, storeID); err != nil {
		return err
	}
	s.logger.Warn("store deleted", zap.String("store_id", storeID), zap.String("by", actorName(ctx)))
	return nil
}

func (s *Service) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	if err := requireRole(ctx, domain.RoleSuperAdmin); err != nil {
		return nil, err
	}
	leads, err := s.data.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(leads), nil
}

// CreateLead records a contact request from the public sign-up form.
func (s *Service) CreateLead(ctx context.Context, req domain.LeadCreateRequest) (domain.Lead, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Lead{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	phone, err := notify.NormalizePhone(req.Phone)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	lead, err := s.data.CreateLead(ctx, domain.Lead{
		ID:           s.newID(),
		Name:         name,
		BusinessName: strings.TrimSpace(req.BusinessName),
		Phone:        phone,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return domain.Lead{}, s.persistErr("create lead", mapStoreErr(err))
	}
	s.logger.Info("lead created", zap.String("lead_id", lead.ID))
	return *lead, nil
}
