package purchasing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/xid"
)

func ptr(v float64) *float64 { return &v }

func committer() Committer {
	return Committer{
		Now:   func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) },
		NewID: xid.Sequence("pur"),
	}
}

func TestQuoteFormula(t *testing.T) {
	q := Quote{Cost: 2}.WithMargin(50)
	assert.InDelta(t, 3.0, q.Price, 1e-9)

	q = q.WithPrice(4)
	assert.InDelta(t, 100, q.Margin, 1e-9)

	q = q.WithCost(1)
	assert.InDelta(t, 4, q.Price, 1e-9)
	assert.InDelta(t, 300, q.Margin, 1e-9)
}

func TestQuoteZeroCostMargin(t *testing.T) {
	q := Quote{Price: 5}.WithCost(0)
	assert.Equal(t, float64(ZeroCostMargin), q.Margin)

	q = q.WithPrice(9)
	assert.Equal(t, float64(ZeroCostMargin), q.Margin)
}

func TestNewQuoteEstimatesCost(t *testing.T) {
	q := NewQuote(10)
	assert.InDelta(t, 7, q.Cost, 1e-9)
	assert.InDelta(t, 10, q.Price, 1e-9)
	assert.InDelta(t, 42.857, q.Margin, 1e-3)
}

func TestCommitAppliesMarginPrice(t *testing.T) {
	products := []domain.Product{{ID: "p", Name: "Agua", Price: 2.5, Stock: 4}}
	purchase, updated, changed, err := committer().Commit("sup-1", []domain.PurchaseLine{
		{ProductID: "p", Quantity: 10, Cost: 2, Margin: ptr(50)},
	}, products)
	require.NoError(t, err)

	assert.Equal(t, "pur-1", purchase.ID)
	assert.Equal(t, "sup-1", purchase.SupplierID)
	assert.InDelta(t, 20, purchase.Total, 1e-9)
	require.Len(t, purchase.Items, 1)
	assert.InDelta(t, 3, purchase.Items[0].NewPrice, 1e-9)
	assert.Equal(t, 14, updated[0].Stock)
	assert.InDelta(t, 3, updated[0].Price, 1e-9)
	assert.Len(t, changed, 1)
	assert.Equal(t, 2.5, products[0].Price)
}

func TestCommitExplicitPriceWins(t *testing.T) {
	products := []domain.Product{{ID: "p", Price: 2}}
	purchase, updated, _, err := committer().Commit("s", []domain.PurchaseLine{
		{ProductID: "p", Quantity: 1, Cost: 1, Price: ptr(1.8), Margin: ptr(500)},
	}, products)
	require.NoError(t, err)

	assert.Equal(t, 1.8, purchase.Items[0].NewPrice)
	assert.Equal(t, 1.8, updated[0].Price)
}

func TestCommitKeepsPriceWithoutTarget(t *testing.T) {
	products := []domain.Product{{ID: "p", Price: 2}}
	_, updated, _, err := committer().Commit("s", []domain.PurchaseLine{{ProductID: "p", Quantity: 3, Cost: 1}}, products)
	require.NoError(t, err)
	assert.Equal(t, 2.0, updated[0].Price)
	assert.Equal(t, 3, updated[0].Stock)
}

func TestCommitValidation(t *testing.T) {
	products := []domain.Product{{ID: "p", Price: 2}}

	_, _, _, err := committer().Commit(" ", []domain.PurchaseLine{{ProductID: "p", Quantity: 1}}, products)
	assert.ErrorIs(t, err, domain.ErrInvalidPurchase)

	_, _, _, err = committer().Commit("s", nil, products)
	assert.ErrorIs(t, err, domain.ErrInvalidPurchase)

	_, _, _, err = committer().Commit("s", []domain.PurchaseLine{{ProductID: "p", Quantity: 0}}, products)
	assert.ErrorIs(t, err, domain.ErrInvalidPurchase)

	_, _, _, err = committer().Commit("s", []domain.PurchaseLine{{ProductID: "nope", Quantity: 1}}, products)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCommitVariantLine(t *testing.T) {
	products := []domain.Product{{
		ID: "polo", HasVariants: true, Stock: 2,
		Variants: []domain.Variant{{ID: "s", Price: 10, Stock: 1}, {ID: "m", Price: 12, Stock: 1}},
	}}
	_, updated, _, err := committer().Commit("s", []domain.PurchaseLine{
		{ProductID: "polo", VariantID: "m", Quantity: 5, Cost: 6, Margin: ptr(100)},
	}, products)
	require.NoError(t, err)

	assert.Equal(t, 6, updated[0].Variants[1].Stock)
	assert.Equal(t, 12.0, updated[0].Variants[1].Price)
	assert.Equal(t, 7, updated[0].Stock)
}

// A free item with a margin resolves to a zero price; stock and record agree.
func TestCommitZeroCostMarginOverwritesPrice(t *testing.T) {
	products := []domain.Product{{ID: "p1", Price: 5, Stock: 1}}
	purchase, updated, _, err := committer().Commit("sup-1", []domain.PurchaseLine{
		{ProductID: "p1", Quantity: 10, Cost: 0, Margin: ptr(50)},
	}, products)
	require.NoError(t, err)

	assert.Equal(t, 0.0, purchase.Items[0].NewPrice)
	assert.Equal(t, 0.0, updated[0].Price)
	assert.Equal(t, 11, updated[0].Stock)
	assert.Equal(t, purchase.Items[0].NewPrice, updated[0].Price)
}
