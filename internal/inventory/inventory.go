package inventory

import (
	"fmt"

	"posgo/backend/internal/domain"
)

// Receipt is an incoming quantity for a product (or one of its variants) with
// the resale price to set. Price always replaces the current price.
type Receipt struct {
	ProductID string
	VariantID string
	Quantity  int
	Price     float64
}

// Normalize enforces the variant aggregate: products with variants carry the
// sum of variant stock as their own stock.
func Normalize(p domain.Product) domain.Product {
	if !p.HasVariants {
		return p
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	p.Stock = total
	return p
}

// ApplySale decrements stock for every cart line. Stock is not clamped: an
// oversold product or variant goes negative and is reported as a shortfall.
// It returns the full updated list, the touched products in catalog order and
// the shortfalls.
func ApplySale(products []domain.Product, items []domain.CartItem) ([]domain.Product, []domain.Product, []domain.StockShortfall, error) {
	updated := cloneAll(products)
	index := indexByID(updated)

	touched := make(map[string]bool, len(items))
	for _, item := range items {
		pi, ok := index[item.ProductID]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, item.ProductID)
		}
		p := &updated[pi]
		switch {
		case item.VariantID != "":
			vi := p.VariantByID(item.VariantID)
			if vi < 0 {
				return nil, nil, nil, fmt.Errorf("%w: variant %s of product %s", domain.ErrNotFound, item.VariantID, p.ID)
			}
			p.Variants[vi].Stock -= item.Quantity
		case p.HasVariants:
			return nil, nil, nil, fmt.Errorf("%w: product %s requires a variant", domain.ErrInvalidInput, p.ID)
		default:
			p.Stock -= item.Quantity
		}
		touched[p.ID] = true
	}

	changed := make([]domain.Product, 0, len(touched))
	var short []domain.StockShortfall
	for i := range updated {
		if !touched[updated[i].ID] {
			continue
		}
		updated[i] = Normalize(updated[i])
		changed = append(changed, updated[i])
		short = append(short, shortfalls(updated[i])...)
	}
	return updated, changed, short, nil
}

// ApplyReceipt increments stock and overwrites the resale price for each line.
func ApplyReceipt(products []domain.Product, receipts []Receipt) ([]domain.Product, []domain.Product, error) {
	updated := cloneAll(products)
	index := indexByID(updated)

	touched := make(map[string]bool, len(receipts))
	for _, r := range receipts {
		pi, ok := index[r.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, r.ProductID)
		}
		p := &updated[pi]
		switch {
		case r.VariantID != "":
			vi := p.VariantByID(r.VariantID)
			if vi < 0 {
				return nil, nil, fmt.Errorf("%w: variant %s of product %s", domain.ErrNotFound, r.VariantID, p.ID)
			}
			p.Variants[vi].Stock += r.Quantity
			p.Variants[vi].Price = r.Price
		case p.HasVariants:
			return nil, nil, fmt.Errorf("%w: product %s requires a variant", domain.ErrInvalidPurchase, p.ID)
		default:
			p.Stock += r.Quantity
			p.Price = r.Price
		}
		touched[p.ID] = true
	}

	changed := make([]domain.Product, 0, len(touched))
	for i := range updated {
		if touched[updated[i].ID] {
			updated[i] = Normalize(updated[i])
			changed = append(changed, updated[i])
		}
	}
	return updated, changed, nil
}

// Consistent reports whether the variant aggregate holds for p.
func Consistent(p domain.Product) bool {
	return !p.HasVariants || Normalize(p).Stock == p.Stock
}

func shortfalls(p domain.Product) []domain.StockShortfall {
	var out []domain.StockShortfall
	for _, v := range p.Variants {
		if v.Stock < 0 {
			out = append(out, domain.StockShortfall{ProductID: p.ID, VariantID: v.ID, Stock: v.Stock})
		}
	}
	if !p.HasVariants && p.Stock < 0 {
		out = append(out, domain.StockShortfall{ProductID: p.ID, Stock: p.Stock})
	}
	return out
}

func indexByID(products []domain.Product) map[string]int {
	index := make(map[string]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}
	return index
}

func cloneAll(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = Clone(p)
	}
	return out
}

// Clone deep-copies the variant and image slices.
func Clone(p domain.Product) domain.Product {
	if p.Variants != nil {
		p.Variants = append([]domain.Variant(nil), p.Variants...)
	}
	if p.Images != nil {
		p.Images = append([]string(nil), p.Images...)
	}
	return p
}
