package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/xid"
)

var fixed = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newLedger() *Ledger {
	return New(WithClock(func() time.Time { return fixed }), WithIDs(xid.Sequence("id")))
}

func sale(shiftID string, payments ...domain.PaymentDetail) domain.Transaction {
	return domain.Transaction{ShiftID: shiftID, Payments: payments}
}

func TestOpenCreatesShiftAndMovement(t *testing.T) {
	shift, move, err := newLedger().Open("", 100, "ana")
	require.NoError(t, err)

	assert.Equal(t, domain.ShiftOpen, shift.Status)
	assert.Equal(t, 100.0, shift.StartAmount)
	assert.Zero(t, shift.TotalSalesCash)
	assert.Zero(t, shift.TotalSalesDigital)
	assert.Equal(t, fixed, shift.StartTime)
	assert.Equal(t, domain.MovementOpen, move.Type)
	assert.Equal(t, shift.ID, move.ShiftID)
	assert.Equal(t, 100.0, move.Amount)
}

func TestOpenRejectsWhenShiftActive(t *testing.T) {
	_, _, err := newLedger().Open("id-1", 0, "ana")
	assert.ErrorIs(t, err, domain.ErrShiftAlreadyOpen)
}

func TestOpenRejectsNegativeStart(t *testing.T) {
	_, _, err := newLedger().Open("", -1, "ana")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMoveRequiresActiveShift(t *testing.T) {
	l := newLedger()
	shift, _, err := l.Open("", 50, "ana")
	require.NoError(t, err)

	_, err = l.Move(shift, "", domain.MovementIn, 10, "change", "ana")
	assert.ErrorIs(t, err, domain.ErrNoActiveShift)

	_, err = l.Move(shift, "other", domain.MovementIn, 10, "change", "ana")
	assert.ErrorIs(t, err, domain.ErrNoActiveShift)

	_, err = l.Move(shift, shift.ID, domain.MovementOut, 0, "nothing", "ana")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = l.Move(shift, shift.ID, domain.MovementClose, 5, "", "ana")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	move, err := l.Move(shift, shift.ID, domain.MovementOut, 12.5, "supplier", "ana")
	require.NoError(t, err)
	assert.Equal(t, domain.MovementOut, move.Type)
	assert.Equal(t, "supplier", move.Description)
}

func TestCloseIsTerminal(t *testing.T) {
	l := newLedger()
	shift, _, err := l.Open("", 50, "ana")
	require.NoError(t, err)

	closed, move, err := l.Close(shift, shift.ID, 80, "ana")
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftClosed, closed.Status)
	require.NotNil(t, closed.EndAmount)
	assert.Equal(t, 80.0, *closed.EndAmount)
	assert.Equal(t, fixed, *closed.EndTime)
	assert.Equal(t, domain.MovementClose, move.Type)

	_, _, err = l.Close(closed, closed.ID, 80, "ana")
	assert.ErrorIs(t, err, domain.ErrShiftClosed)
	_, err = l.Move(closed, closed.ID, domain.MovementIn, 1, "", "ana")
	assert.ErrorIs(t, err, domain.ErrShiftClosed)
	_, err = AttributeSale(closed, closed.ID, sale(closed.ID))
	assert.ErrorIs(t, err, domain.ErrShiftClosed)
}

func TestAttributeSaleSplitsCashAndDigital(t *testing.T) {
	shift, _, err := newLedger().Open("", 0, "ana")
	require.NoError(t, err)

	shift, err = AttributeSale(shift, shift.ID, sale(shift.ID,
		domain.PaymentDetail{Method: domain.PaymentCash, Amount: 10},
		domain.PaymentDetail{Method: domain.PaymentYape, Amount: 5},
	))
	require.NoError(t, err)
	shift, err = AttributeSale(shift, shift.ID, sale(shift.ID, domain.PaymentDetail{Method: domain.PaymentCard, Amount: 7}))
	require.NoError(t, err)

	assert.InDelta(t, 10, shift.TotalSalesCash, 1e-9)
	assert.InDelta(t, 12, shift.TotalSalesDigital, 1e-9)

	_, err = AttributeSale(shift, shift.ID, sale("someone-else"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRunningTotalsMatchReconciliation(t *testing.T) {
	shift, _, err := newLedger().Open("", 0, "ana")
	require.NoError(t, err)

	var log []domain.Transaction
	for i := 0; i < 25; i++ {
		tx := sale(shift.ID,
			domain.PaymentDetail{Method: domain.PaymentCash, Amount: 0.1},
			domain.PaymentDetail{Method: domain.PaymentPlin, Amount: 0.35},
		)
		log = append(log, tx)
		shift, err = AttributeSale(shift, shift.ID, tx)
		require.NoError(t, err)
	}
	log = append(log, sale("other-shift", domain.PaymentDetail{Method: domain.PaymentCash, Amount: 99}))

	drift := Reconcile(shift, log)
	assert.Equal(t, 25, drift.Transactions)
	assert.Equal(t, 2.5, drift.ComputedCash)
	assert.Equal(t, 8.75, drift.ComputedDigital)
	assert.True(t, Balanced(drift))
}

func TestRebuildFixesDrift(t *testing.T) {
	shift := domain.CashShift{ID: "s", Status: domain.ShiftOpen, TotalSalesCash: 3}
	drift := Reconcile(shift, []domain.Transaction{sale("s", domain.PaymentDetail{Method: domain.PaymentCash, Amount: 5})})
	assert.False(t, Balanced(drift))

	shift = Rebuild(shift, drift)
	assert.True(t, Balanced(Reconcile(shift, []domain.Transaction{sale("s", domain.PaymentDetail{Method: domain.PaymentCash, Amount: 5})})))
}

func TestReportFiltersByShiftAndComputesExpectedCash(t *testing.T) {
	l := newLedger()
	shift, open, err := l.Open("", 100, "ana")
	require.NoError(t, err)
	in, err := l.Move(shift, shift.ID, domain.MovementIn, 20, "float", "ana")
	require.NoError(t, err)
	out, err := l.Move(shift, shift.ID, domain.MovementOut, 15, "ice", "ana")
	require.NoError(t, err)

	tx := sale(shift.ID, domain.PaymentDetail{Method: domain.PaymentCash, Amount: 30})
	shift, err = AttributeSale(shift, shift.ID, tx)
	require.NoError(t, err)
	closed, closeMove, err := l.Close(shift, shift.ID, 130, "ana")
	require.NoError(t, err)

	foreign := domain.CashMovement{ShiftID: "other", Type: domain.MovementIn, Amount: 999}
	report := Report(closed,
		[]domain.CashMovement{open, in, foreign, out, closeMove},
		[]domain.Transaction{tx, sale("other")},
	)

	assert.Len(t, report.Movements, 4)
	assert.Len(t, report.Transactions, 1)
	assert.Equal(t, 20.0, report.CashIn)
	assert.Equal(t, 15.0, report.CashOut)
	assert.Equal(t, 135.0, report.ExpectedCash)
	assert.Equal(t, -5.0, report.Difference)
}
