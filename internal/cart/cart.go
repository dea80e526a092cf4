package cart

import (
	"fmt"

	"posgo/backend/internal/domain"
)

// Cart holds the lines of a sale being built. Lines are keyed by product and
// selected variant; adding the same pair again bumps the quantity.
type Cart struct {
	items []domain.CartItem
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) Add(product domain.Product, variantID string) error {
	if idx := c.find(product.ID, variantID); idx >= 0 {
		c.items[idx].Quantity++
		return nil
	}

	item := domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Category:  product.Category,
		Price:     product.Price,
		Quantity:  1,
	}
	if variantID != "" {
		vi := product.VariantByID(variantID)
		if vi < 0 {
			return fmt.Errorf("%w: variant %s of product %s", domain.ErrNotFound, variantID, product.ID)
		}
		item.VariantID = variantID
		item.VariantName = product.Variants[vi].Name
		item.Price = product.Variants[vi].Price
	}
	if variantID == "" && product.HasVariants {
		return fmt.Errorf("%w: product %s requires a variant", domain.ErrInvalidInput, product.ID)
	}
	c.items = append(c.items, item)
	return nil
}

// UpdateQuantity applies delta to a line; quantity never drops below one.
func (c *Cart) UpdateQuantity(productID, variantID string, delta int) {
	if idx := c.find(productID, variantID); idx >= 0 {
		c.items[idx].Quantity = max(1, c.items[idx].Quantity+delta)
	}
}

func (c *Cart) SetQuantity(productID, variantID string, qty int) {
	if idx := c.find(productID, variantID); idx >= 0 {
		c.items[idx].Quantity = max(1, qty)
	}
}

// SetDiscount sets the per-unit discount of a line. Negative values become zero.
func (c *Cart) SetDiscount(productID, variantID string, discount float64) {
	if idx := c.find(productID, variantID); idx >= 0 {
		c.items[idx].Discount = max(0, discount)
	}
}

func (c *Cart) Remove(productID, variantID string) {
	if idx := c.find(productID, variantID); idx >= 0 {
		c.items = append(c.items[:idx], c.items[idx+1:]...)
	}
}

func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) Len() int {
	return len(c.items)
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []domain.CartItem {
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) find(productID, variantID string) int {
	for i, item := range c.items {
		if item.ProductID == productID && item.VariantID == variantID {
			return i
		}
	}
	return -1
}

// FromLines builds a cart snapshot from request lines against the current
// catalog. Duplicate product+variant lines are merged.
func FromLines(products []domain.Product, lines []domain.CartLine) ([]domain.CartItem, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrInvalidInput)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	c := New()
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, line.ProductID)
		}
		qty := max(1, line.Quantity)
		existing := c.find(product.ID, line.VariantID)
		if err := c.Add(product, line.VariantID); err != nil {
			return nil, err
		}
		if existing >= 0 {
			c.UpdateQuantity(product.ID, line.VariantID, qty-1)
		} else {
			c.SetQuantity(product.ID, line.VariantID, qty)
		}
		if line.Discount != 0 {
			c.SetDiscount(product.ID, line.VariantID, line.Discount)
		}
	}
	return c.Items(), nil
}
