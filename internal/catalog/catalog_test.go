package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"posgo/backend/internal/domain"
)

var products = []domain.Product{
	{ID: "1", Name: "Inca Kola 600ml", Category: "Bebidas", Stock: 50, Barcode: "77501000"},
	{ID: "2", Name: "Papas Lays 45g", Category: "Alimentos", Stock: 32, Barcode: "75010001"},
	{ID: "3", Name: "Galleta Casino", Category: "Alimentos", Stock: 15, Barcode: "ab-123"},
	{ID: "4", Name: "Agua San Mateo", Category: "Bebidas", Stock: 100},
}

func TestFindByBarcodeIgnoresCase(t *testing.T) {
	p, ok := FindByBarcode(products, "  AB-123 ")
	assert.True(t, ok)
	assert.Equal(t, "3", p.ID)

	_, ok = FindByBarcode(products, "")
	assert.False(t, ok)
	_, ok = FindByBarcode(products, "000")
	assert.False(t, ok)
}

func TestSearchByNameOrBarcode(t *testing.T) {
	got := Search(products, "kola", "")
	assert.Len(t, got, 1)

	got = Search(products, "7501", AllCategories)
	assert.Len(t, got, 2)
}

func TestSearchByCategory(t *testing.T) {
	got := Search(products, "", "bebidas")
	if assert.Len(t, got, 2) {
		assert.Equal(t, "Agua San Mateo", got[0].Name)
	}
}

func TestLowStock(t *testing.T) {
	assert.Len(t, LowStock(products, 15), 1)
}
