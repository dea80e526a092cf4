package service

import (
	"context"

	"go.uber.org/zap"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/ledger"
)

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.CashShift, error) {
	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	activeID, err := s.data.ActiveShiftID(ctx, storeID)
	if err != nil {
		return domain.CashShift{}, err
	}
	shift, move, err := s.ledger.Open(activeID, req.StartAmount, actorName(ctx))
	if err != nil {
		return domain.CashShift{}, err
	}
	if err := s.data.OpenShift(ctx, storeID, shift, move); err != nil {
		return domain.CashShift{}, s.persistErr("open shift", err)
	}

	s.metrics.ShiftEvent("open")
	s.logger.Info("shift opened",
		zap.String("store_id", storeID),
		zap.String("shift_id", shift.ID),
		zap.Float64("start_amount", shift.StartAmount))
	return shift, nil
}

func (s *Service) CashIn(ctx context.Context, req domain.CashMovementRequest) (domain.CashMovement, error) {
	return s.move(ctx, domain.MovementIn, req)
}

func (s *Service) CashOut(ctx context.Context, req domain.CashMovementRequest) (domain.CashMovement, error) {
	return s.move(ctx, domain.MovementOut, req)
}

func (s *Service) move(ctx context.Context, kind domain.MovementType, req domain.CashMovementRequest) (domain.CashMovement, error) {
	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	shift, activeID, err := s.activeShift(ctx, storeID)
	if err != nil {
		return domain.CashMovement{}, err
	}
	move, err := s.ledger.Move(*shift, activeID, kind, req.Amount, req.Description, actorName(ctx))
	if err != nil {
		return domain.CashMovement{}, err
	}
	if err := s.data.AppendMovement(ctx, storeID, move); err != nil {
		return domain.CashMovement{}, s.persistErr("append movement", err)
	}
	s.metrics.ShiftEvent(string(kind))
	return move, nil
}

// CloseShift closes the active shift and returns its closing report.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftReport, error) {
	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	shift, activeID, err := s.activeShift(ctx, storeID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	closed, move, err := s.ledger.Close(*shift, activeID, req.EndAmount, actorName(ctx))
	if err != nil {
		return domain.ShiftReport{}, err
	}
	if err := s.data.CloseShift(ctx, storeID, closed, move); err != nil {
		return domain.ShiftReport{}, s.persistErr("close shift", err)
	}
	s.metrics.ShiftEvent("close")

	report, err := s.report(ctx, storeID, closed)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	s.logger.Info("shift closed",
		zap.String("store_id", storeID),
		zap.String("shift_id", closed.ID),
		zap.Float64("expected_cash", report.ExpectedCash),
		zap.Float64("difference", report.Difference))
	return report, nil
}

// ActiveShift returns the open shift, or nil when the drawer is closed.
func (s *Service) ActiveShift(ctx context.Context) (*domain.CashShift, error) {
	storeID := storeOf(ctx)
	activeID, err := s.data.ActiveShiftID(ctx, storeID)
	if err != nil || activeID == "" {
		return nil, err
	}
	return s.data.GetShift(ctx, storeID, activeID)
}

func (s *Service) ListShifts(ctx context.Context) ([]domain.CashShift, error) {
	shifts, err := s.data.ListShifts(ctx, storeOf(ctx))
	return nonNil(shifts), err
}

func (s *Service) ShiftReport(ctx context.Context, shiftID string) (domain.ShiftReport, error) {
	storeID := storeOf(ctx)
	shift, err := s.data.GetShift(ctx, storeID, shiftID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	return s.report(ctx, storeID, *shift)
}

// ReconcileShift compares a shift's running totals with its transaction log.
// With fix set, drifted totals are rewritten from the log.
func (s *Service) ReconcileShift(ctx context.Context, shiftID string, fix bool) (domain.ShiftDrift, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.ShiftDrift{}, err
	}
	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	shift, err := s.data.GetShift(ctx, storeID, shiftID)
	if err != nil {
		return domain.ShiftDrift{}, err
	}
	txs, err := s.data.ListTransactions(ctx, storeID)
	if err != nil {
		return domain.ShiftDrift{}, err
	}

	drift := ledger.Reconcile(*shift, txs)
	if ledger.Balanced(drift) {
		return drift, nil
	}
	s.logger.Warn("shift totals drifted from transaction log",
		zap.String("store_id", storeID),
		zap.String("shift_id", shift.ID),
		zap.Float64("stored_cash", drift.StoredCash),
		zap.Float64("computed_cash", drift.ComputedCash),
		zap.Float64("stored_digital", drift.StoredDigital),
		zap.Float64("computed_digital", drift.ComputedDigital))
	if fix {
		if err := s.data.UpdateShift(ctx, storeID, ledger.Rebuild(*shift, drift)); err != nil {
			return drift, s.persistErr("rebuild shift totals", err)
		}
	}
	return drift, nil
}

func (s *Service) activeShift(ctx context.Context, storeID string) (*domain.CashShift, string, error) {
	activeID, err := s.data.ActiveShiftID(ctx, storeID)
	if err != nil {
		return nil, "", err
	}
	if activeID == "" {
		return nil, "", domain.ErrNoActiveShift
	}
	shift, err := s.data.GetShift(ctx, storeID, activeID)
	if err != nil {
		return nil, "", err
	}
	return shift, activeID, nil
}

func (s *Service) report(ctx context.Context, storeID string, shift domain.CashShift) (domain.ShiftReport, error) {
	moves, err := s.data.ListMovements(ctx, storeID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	txs, err := s.data.ListTransactions(ctx, storeID)
	if err != nil {
		return domain.ShiftReport{}, err
	}
	return ledger.Report(shift, moves, txs), nil
}
