package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/media"
	"posgo/backend/internal/notify"
	"posgo/backend/internal/receipt"
)

func (s *Service) RenderReceipt(ctx context.Context, txID string, format string) (domain.Document, error) {
	f, err := receipt.ParseFormat(format)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	storeID := storeOf(ctx)
	tx, err := s.data.GetTransaction(ctx, storeID, txID)
	if err != nil {
		return domain.Document{}, err
	}
	settings, err := s.data.GetSettings(ctx, storeID)
	if err != nil {
		return domain.Document{}, err
	}
	return receipt.Sale(*tx, settings, f)
}

func (s *Service) RenderShiftReport(ctx context.Context, shiftID string, format string) (domain.Document, error) {
	f, err := receipt.ParseFormat(format)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	report, err := s.ShiftReport(ctx, shiftID)
	if err != nil {
		return domain.Document{}, err
	}
	settings, err := s.data.GetSettings(ctx, storeOf(ctx))
	if err != nil {
		return domain.Document{}, err
	}
	return receipt.ShiftReport(report, settings, f)
}

// SendReceipt publishes the HTML receipt and queues the webhook delivery.
// It returns before the webhook is called; delivery failures are only logged.
func (s *Service) SendReceipt(ctx context.Context, txID string, phone string) (domain.SendReceiptResponse, error) {
	normalized, err := notify.NormalizePhone(phone)
	if err != nil {
		return domain.SendReceiptResponse{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	storeID := storeOf(ctx)
	tx, err := s.data.GetTransaction(ctx, storeID, txID)
	if err != nil {
		return domain.SendReceiptResponse{}, err
	}
	settings, err := s.data.GetSettings(ctx, storeID)
	if err != nil {
		return domain.SendReceiptResponse{}, err
	}

	var url string
	if s.objects != nil {
		doc, err := receipt.Sale(*tx, settings, receipt.FormatHTML)
		if err != nil {
			return domain.SendReceiptResponse{}, err
		}
		url, err = s.objects.Put(ctx, media.ReceiptKey(storeID, tx.ID), doc.Body, doc.ContentType)
		if err != nil {
			s.logger.Warn("receipt upload failed; sending without document url",
				zap.String("transaction_id", tx.ID), zap.Error(err))
			url = ""
		}
	}

	s.notifier.Dispatch(notify.NewReceiptPayload(normalized, *tx, settings, url))
	return domain.SendReceiptResponse{DocumentRef: tx.ID, DocumentURL: url, Queued: true}, nil
}
