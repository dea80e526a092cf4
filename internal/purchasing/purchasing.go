package purchasing

import (
	"fmt"
	"strings"
	"time"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/inventory"
)

// ZeroCostMargin is reported when cost is zero and the margin is undefined.
const ZeroCostMargin = 100

// DefaultCostRatio estimates a purchase cost from the current resale price.
const DefaultCostRatio = 0.7

// Quote keeps cost, margin (percent) and resale price consistent under
// price = cost × (1 + margin/100).
type Quote struct {
	Cost   float64
	Margin float64
	Price  float64
}

// NewQuote starts a quote for a product currently sold at price.
func NewQuote(price float64) Quote {
	q := Quote{Cost: price * DefaultCostRatio, Price: price}
	q.Margin = marginOf(q.Cost, q.Price)
	return q
}

// WithCost keeps the price and recomputes the margin.
func (q Quote) WithCost(cost float64) Quote {
	q.Cost = cost
	q.Margin = marginOf(q.Cost, q.Price)
	return q
}

// WithMargin keeps the cost and recomputes the price.
func (q Quote) WithMargin(margin float64) Quote {
	q.Margin = margin
	q.Price = q.Cost * (1 + margin/100)
	return q
}

// WithPrice keeps the cost and recomputes the margin.
func (q Quote) WithPrice(price float64) Quote {
	q.Price = price
	q.Margin = marginOf(q.Cost, q.Price)
	return q
}

func marginOf(cost, price float64) float64 {
	if cost <= 0 {
		return ZeroCostMargin
	}
	return (price - cost) / cost * 100
}

// Resolve turns a request line into a quote. An explicit price wins over a
// margin; with neither the current price is kept.
func Resolve(line domain.PurchaseLine, currentPrice float64) Quote {
	q := Quote{Cost: line.Cost, Price: currentPrice}
	switch {
	case line.Price != nil:
		return q.WithPrice(*line.Price)
	case line.Margin != nil:
		return q.WithMargin(*line.Margin)
	default:
		return q.WithCost(line.Cost)
	}
}

// Committer builds purchase records.
type Committer struct {
	Now   func() time.Time
	NewID func() string
}

// Commit validates the purchase, builds the immutable record and returns the
// product list with stock incremented and prices overwritten.
func (c Committer) Commit(supplierID string, lines []domain.PurchaseLine, products []domain.Product) (domain.Purchase, []domain.Product, []domain.Product, error) {
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return domain.Purchase{}, nil, nil, fmt.Errorf("%w: supplier is required", domain.ErrInvalidPurchase)
	}
	if len(lines) == 0 {
		return domain.Purchase{}, nil, nil, fmt.Errorf("%w: no items", domain.ErrInvalidPurchase)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	purchase := domain.Purchase{
		ID:         c.NewID(),
		Date:       c.Now(),
		SupplierID: supplierID,
		Items:      make([]domain.PurchaseItem, 0, len(lines)),
	}
	receipts := make([]inventory.Receipt, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 || line.Cost < 0 {
			return domain.Purchase{}, nil, nil, fmt.Errorf("%w: line %s needs quantity >= 1 and cost >= 0", domain.ErrInvalidPurchase, line.ProductID)
		}
		product, ok := byID[line.ProductID]
		if !ok {
			return domain.Purchase{}, nil, nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, line.ProductID)
		}
		current := product.Price
		if line.VariantID != "" {
			if vi := product.VariantByID(line.VariantID); vi >= 0 {
				current = product.Variants[vi].Price
			}
		}
		quote := Resolve(line, current)

		purchase.Items = append(purchase.Items, domain.PurchaseItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			VariantID:   line.VariantID,
			Quantity:    line.Quantity,
			Cost:        line.Cost,
			NewPrice:    quote.Price,
		})
		purchase.Total += line.Cost * float64(line.Quantity)
		receipts = append(receipts, inventory.Receipt{
			ProductID: product.ID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Price:     quote.Price,
		})
	}

	updated, changed, err := inventory.ApplyReceipt(products, receipts)
	if err != nil {
		return domain.Purchase{}, nil, nil, err
	}
	return purchase, updated, changed, nil
}
