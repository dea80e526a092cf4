// Package notify delivers customer receipts to the messaging webhook.
// Delivery is fire-and-forget: failures are logged and counted, never retried
// and never returned to the sale flow.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"posgo/backend/internal/domain"
)

const TypeSaleTicket = "SALE_TICKET_PDF"

const minPhoneDigits = 5

var ErrInvalidPhone = errors.New("phone number needs at least 5 digits")

type StoreInfo struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Phone    string  `json:"phone"`
	Currency string  `json:"currency"`
	TaxRate  float64 `json:"taxRate"`
}

type TicketItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

type TicketTransaction struct {
	ID       string                 `json:"id"`
	Date     time.Time              `json:"date"`
	Total    float64                `json:"total"`
	Subtotal float64                `json:"subtotal"`
	Discount float64                `json:"discount"`
	Items    []TicketItem           `json:"items"`
	Payments []domain.PaymentDetail `json:"payments"`
}

type Payload struct {
	Phone       string            `json:"phone"`
	Type        string            `json:"type"`
	DocumentRef string            `json:"documentRef"`
	Total       float64           `json:"total"`
	DocumentURL string            `json:"documentUrl,omitempty"`
	Store       StoreInfo         `json:"store"`
	Transaction TicketTransaction `json:"transaction"`
}

// NormalizePhone strips everything but digits.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < minPhoneDigits {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}

func NewReceiptPayload(phone string, tx domain.Transaction, settings domain.StoreSettings, documentURL string) Payload {
	items := make([]TicketItem, 0, len(tx.Items))
	for _, item := range tx.Items {
		name := item.Name
		if item.VariantName != "" {
			name += " (" + item.VariantName + ")"
		}
		items = append(items, TicketItem{
			Name:     name,
			Quantity: item.Quantity,
			Price:    item.Price,
			Total:    item.Price * float64(item.Quantity),
		})
	}
	return Payload{
		Phone:       phone,
		Type:        TypeSaleTicket,
		DocumentRef: tx.ID,
		Total:       tx.Total,
		DocumentURL: documentURL,
		Store: StoreInfo{
			Name:     settings.Name,
			Address:  settings.Address,
			Phone:    settings.Phone,
			Currency: settings.Currency,
			TaxRate:  settings.TaxRate,
		},
		Transaction: TicketTransaction{
			ID:       tx.ID,
			Date:     tx.Date,
			Total:    tx.Total,
			Subtotal: tx.Subtotal,
			Discount: tx.Discount,
			Items:    items,
			Payments: tx.Payments,
		},
	}
}

// Observer is told about each delivery outcome.
type Observer interface {
	WebhookDelivered(ok bool)
}

type Notifier interface {
	Dispatch(payload Payload)
}

// Noop drops every payload. It is used when no webhook URL is configured.
type Noop struct {
	Logger *zap.Logger
}

func (n Noop) Dispatch(payload Payload) {
	if n.Logger != nil {
		n.Logger.Info("receipt webhook not configured; dropping payload", zap.String("document_ref", payload.DocumentRef))
	}
}

type Webhook struct {
	url      string
	client   *http.Client
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
	wg       sync.WaitGroup
}

func NewWebhook(url string, timeout time.Duration, logger *zap.Logger, observer Observer) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		logger:   logger.Named("notify"),
		observer: observer,
	}
}

// Dispatch posts the payload in the background and returns immediately.
func (w *Webhook) Dispatch(payload Payload) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		err := w.Send(ctx, payload)
		if w.observer != nil {
			w.observer.WebhookDelivered(err == nil)
		}
		if err != nil {
			w.logger.Warn("receipt webhook delivery failed",
				zap.String("document_ref", payload.DocumentRef),
				zap.Error(err))
			return
		}
		w.logger.Info("receipt webhook delivered", zap.String("document_ref", payload.DocumentRef))
	}()
}

// Send posts the payload and waits for the response.
func (w *Webhook) Send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (w *Webhook) Wait() {
	w.wg.Wait()
}
