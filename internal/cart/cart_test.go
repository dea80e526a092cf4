package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posgo/backend/internal/domain"
)

var (
	soda = domain.Product{ID: "p1", Name: "Inca Kola 600ml", Price: 3.5, Category: "Bebidas", Stock: 50}
	tee  = domain.Product{
		ID: "p2", Name: "Polo", Price: 20, HasVariants: true, Stock: 8,
		Variants: []domain.Variant{{ID: "v-s", Name: "S", Price: 18, Stock: 5}, {ID: "v-m", Name: "M", Price: 22, Stock: 3}},
	}
)

func TestAddMergesSameProductAndVariant(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(soda, ""))
	require.NoError(t, c.Add(soda, ""))
	require.NoError(t, c.Add(tee, "v-s"))
	require.NoError(t, c.Add(tee, "v-m"))

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 18.0, items[1].Price)
	assert.Equal(t, "S", items[1].VariantName)
	assert.Equal(t, 22.0, items[2].Price)
}

func TestAddUnknownVariant(t *testing.T) {
	err := New().Add(tee, "v-xl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuantityNeverBelowOne(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(soda, ""))
	c.UpdateQuantity(soda.ID, "", -5)
	assert.Equal(t, 1, c.Items()[0].Quantity)
}

func TestDiscountAndRemove(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(soda, ""))
	require.NoError(t, c.Add(tee, "v-m"))

	c.SetDiscount(soda.ID, "", -2)
	assert.Equal(t, 0.0, c.Items()[0].Discount)
	c.SetDiscount(soda.ID, "", 0.5)
	assert.Equal(t, 0.5, c.Items()[0].Discount)

	c.Remove(tee.ID, "v-m")
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestFromLines(t *testing.T) {
	items, err := FromLines([]domain.Product{soda, tee}, []domain.CartLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", VariantID: "v-s", Quantity: 1, Discount: 1},
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", VariantID: "v-s", Quantity: 0},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 2, items[1].Quantity)
	assert.Equal(t, 1.0, items[1].Discount)
}

func TestFromLinesErrors(t *testing.T) {
	_, err := FromLines([]domain.Product{soda}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = FromLines([]domain.Product{soda}, []domain.CartLine{{ProductID: "missing", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddVariantProductNeedsVariant(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Add(tee, ""), domain.ErrInvalidInput)
	assert.Equal(t, 0, c.Len())

	_, err := FromLines([]domain.Product{soda, tee}, []domain.CartLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 2},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
