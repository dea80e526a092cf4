package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"posgo/backend/internal/cart"
	"posgo/backend/internal/domain"
	"posgo/backend/internal/inventory"
	"posgo/backend/internal/ledger"
	"posgo/backend/internal/payment"
	"posgo/backend/internal/pricing"
)

// Checkout turns a cart into a recorded sale: stock is decremented, the active
// shift's running totals grow and the transaction is appended, all as one
// persisted unit. Nothing is written when any step rejects the sale.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	storeID := storeOf(ctx)
	unlock := s.lockStore(storeID)
	defer unlock()

	activeID, err := s.data.ActiveShiftID(ctx, storeID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if activeID == "" {
		s.metrics.CheckoutRejected("no_active_shift")
		return domain.CheckoutResponse{}, domain.ErrNoActiveShift
	}
	shift, err := s.data.GetShift(ctx, storeID, activeID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	products, err := s.data.ListProducts(ctx, storeID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	settings, err := s.data.GetSettings(ctx, storeID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	items, err := cart.FromLines(products, req.Items)
	if err != nil {
		s.metrics.CheckoutRejected("invalid_cart")
		return domain.CheckoutResponse{}, err
	}
	totals := pricing.Calculate(items, settings)

	settlement, err := payment.Settle(totals.FinalTotal, req.Tenders)
	if err != nil {
		s.metrics.CheckoutRejected(rejectReason(err))
		return domain.CheckoutResponse{}, err
	}

	_, changed, oversold, err := inventory.ApplySale(products, items)
	if err != nil {
		s.metrics.CheckoutRejected("invalid_cart")
		return domain.CheckoutResponse{}, err
	}

	tx := domain.Transaction{
		ID:            s.newID(),
		Date:          s.now(),
		Items:         items,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Discount:      totals.Discount,
		Total:         totals.FinalTotal,
		PaymentMethod: settlement.Method,
		Payments:      settlement.Payments,
		Change:        settlement.Change,
		ShiftID:       shift.ID,
		Cashier:       actorName(ctx),
	}
	attributed, err := ledger.AttributeSale(*shift, activeID, tx)
	if err != nil {
		s.metrics.CheckoutRejected(rejectReason(err))
		return domain.CheckoutResponse{}, err
	}

	if err := s.data.RecordSale(ctx, storeID, tx, changed, attributed); err != nil {
		return domain.CheckoutResponse{}, s.persistErr("record sale", err)
	}

	for _, short := range oversold {
		s.logger.Warn("stock oversold",
			zap.String("store_id", storeID),
			zap.String("transaction_id", tx.ID),
			zap.String("product_id", short.ProductID),
			zap.String("variant_id", short.VariantID),
			zap.Int("stock", short.Stock))
	}
	s.metrics.CheckoutCompleted(string(tx.PaymentMethod), tx.Total, len(oversold))
	s.logger.Info("checkout completed",
		zap.String("transaction_id", tx.ID),
		zap.String("shift_id", tx.ShiftID),
		zap.String("method", string(tx.PaymentMethod)),
		zap.Float64("total", tx.Total))

	return domain.CheckoutResponse{
		Transaction: tx,
		Change:      settlement.Change,
		Oversold:    oversold,
	}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, domain.ErrUnsupportedPayment):
		return "unsupported_payment"
	case errors.Is(err, domain.ErrShiftClosed):
		return "shift_closed"
	case errors.Is(err, domain.ErrNoActiveShift):
		return "no_active_shift"
	default:
		return "other"
	}
}
