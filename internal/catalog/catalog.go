package catalog

import (
	"slices"
	"strings"

	"posgo/backend/internal/domain"
)

// AllCategories matches every product in Search.
const AllCategories = "All"

func Categories() []string {
	return []string{"General", "Bebidas", "Alimentos", "Limpieza", "Electrónica", "Hogar", "Otros"}
}

// FindByBarcode matches a scanned code against product barcodes, ignoring case
// and surrounding whitespace.
func FindByBarcode(products []domain.Product, code string) (domain.Product, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, false
	}
	for _, p := range products {
		if p.Barcode != "" && strings.EqualFold(strings.TrimSpace(p.Barcode), code) {
			return p, true
		}
	}
	return domain.Product{}, false
}

// Search filters by category and by a case-insensitive substring of the name or
// barcode. Results keep the catalog order sorted by name.
func Search(products []domain.Product, query string, category string) []domain.Product {
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if category != "" && category != AllCategories && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Barcode), query) {
			continue
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b domain.Product) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

// LowStock returns products at or below threshold.
func LowStock(products []domain.Product, threshold int) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.Stock <= threshold {
			out = append(out, p)
		}
	}
	return out
}
