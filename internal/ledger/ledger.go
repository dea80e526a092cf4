// Package ledger implements the cash shift state machine. A shift goes from
// OPEN to CLOSED exactly once; every drawer event, including the shift's own
// open and close, is recorded as an append-only movement.
//
// The ledger holds no "active shift" state of its own. Callers pass the id of
// the currently active shift, resolved from their single source of truth, into
// every operation.
package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/payment"
	"posgo/backend/internal/xid"
)

type Ledger struct {
	now   func() time.Time
	newID xid.Generator
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDs(gen xid.Generator) Option {
	return func(l *Ledger) { l.newID = gen }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		now:   func() time.Time { return time.Now().UTC() },
		newID: xid.New,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open starts a shift. It fails if another shift is active.
func (l *Ledger) Open(currentShiftID string, startAmount float64, actor string) (domain.CashShift, domain.CashMovement, error) {
	if currentShiftID != "" {
		return domain.CashShift{}, domain.CashMovement{}, fmt.Errorf("%w: %s", domain.ErrShiftAlreadyOpen, currentShiftID)
	}
	if !validAmount(startAmount) {
		return domain.CashShift{}, domain.CashMovement{}, fmt.Errorf("%w: start amount must be zero or more", domain.ErrInvalidInput)
	}

	now := l.now()
	shift := domain.CashShift{
		ID:          l.newID(),
		StartTime:   now,
		StartAmount: startAmount,
		Status:      domain.ShiftOpen,
		OpenedBy:    actor,
	}
	move := l.movement(shift.ID, domain.MovementOpen, startAmount, "shift opened", actor, now)
	return shift, move, nil
}

// Move records a cash-in or cash-out against the active shift.
func (l *Ledger) Move(shift domain.CashShift, currentShiftID string, kind domain.MovementType, amount float64, description string, actor string) (domain.CashMovement, error) {
	if err := requireActive(shift, currentShiftID); err != nil {
		return domain.CashMovement{}, err
	}
	if kind != domain.MovementIn && kind != domain.MovementOut {
		return domain.CashMovement{}, fmt.Errorf("%w: movement type %s", domain.ErrInvalidInput, kind)
	}
	if !validAmount(amount) || amount == 0 {
		return domain.CashMovement{}, fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidInput)
	}
	return l.movement(shift.ID, kind, amount, description, actor, l.now()), nil
}

// Close finalizes the active shift with the counted drawer amount.
func (l *Ledger) Close(shift domain.CashShift, currentShiftID string, endAmount float64, actor string) (domain.CashShift, domain.CashMovement, error) {
	if err := requireActive(shift, currentShiftID); err != nil {
		return domain.CashShift{}, domain.CashMovement{}, err
	}
	if !validAmount(endAmount) {
		return domain.CashShift{}, domain.CashMovement{}, fmt.Errorf("%w: end amount must be zero or more", domain.ErrInvalidInput)
	}

	now := l.now()
	closed := shift
	closed.Status = domain.ShiftClosed
	closed.EndTime = &now
	closed.EndAmount = &endAmount
	move := l.movement(shift.ID, domain.MovementClose, endAmount, "shift closed", actor, now)
	return closed, move, nil
}

// AttributeSale adds the transaction's payments to the shift's running totals.
func AttributeSale(shift domain.CashShift, currentShiftID string, tx domain.Transaction) (domain.CashShift, error) {
	if err := requireActive(shift, currentShiftID); err != nil {
		return domain.CashShift{}, err
	}
	if tx.ShiftID != shift.ID {
		return domain.CashShift{}, fmt.Errorf("%w: transaction belongs to shift %q", domain.ErrInvalidInput, tx.ShiftID)
	}
	cash, digital := payment.Split(tx.Payments)
	shift.TotalSalesCash += cash
	shift.TotalSalesDigital += digital
	return shift, nil
}

// Report assembles the closing report for a shift from the full movement and
// transaction logs.
func Report(shift domain.CashShift, movements []domain.CashMovement, txs []domain.Transaction) domain.ShiftReport {
	report := domain.ShiftReport{
		Shift:        shift,
		Movements:    make([]domain.CashMovement, 0),
		Transactions: make([]domain.Transaction, 0),
	}
	in, out := decimal.Zero, decimal.Zero
	for _, m := range movements {
		if m.ShiftID != shift.ID {
			continue
		}
		report.Movements = append(report.Movements, m)
		switch m.Type {
		case domain.MovementIn:
			in = in.Add(decimal.NewFromFloat(m.Amount))
		case domain.MovementOut:
			out = out.Add(decimal.NewFromFloat(m.Amount))
		}
	}
	for _, tx := range txs {
		if tx.ShiftID == shift.ID {
			report.Transactions = append(report.Transactions, tx)
		}
	}

	expected := decimal.NewFromFloat(shift.StartAmount).
		Add(decimal.NewFromFloat(shift.TotalSalesCash)).
		Add(in).
		Sub(out)
	report.CashIn = in.InexactFloat64()
	report.CashOut = out.InexactFloat64()
	report.ExpectedCash = expected.InexactFloat64()
	if shift.EndAmount != nil {
		report.Difference = decimal.NewFromFloat(*shift.EndAmount).Sub(expected).InexactFloat64()
	}
	return report
}

// Reconcile sums the transaction log for a shift and compares it with the
// stored running totals.
func Reconcile(shift domain.CashShift, txs []domain.Transaction) domain.ShiftDrift {
	cash, digital := decimal.Zero, decimal.Zero
	count := 0
	for _, tx := range txs {
		if tx.ShiftID != shift.ID {
			continue
		}
		count++
		for _, p := range tx.Payments {
			if p.Method.IsCash() {
				cash = cash.Add(decimal.NewFromFloat(p.Amount))
			} else {
				digital = digital.Add(decimal.NewFromFloat(p.Amount))
			}
		}
	}
	return domain.ShiftDrift{
		ShiftID:         shift.ID,
		StoredCash:      shift.TotalSalesCash,
		StoredDigital:   shift.TotalSalesDigital,
		ComputedCash:    cash.InexactFloat64(),
		ComputedDigital: digital.InexactFloat64(),
		Transactions:    count,
	}
}

// Balanced reports whether stored and computed totals agree within a cent.
func Balanced(d domain.ShiftDrift) bool {
	return math.Abs(d.StoredCash-d.ComputedCash) <= payment.Epsilon &&
		math.Abs(d.StoredDigital-d.ComputedDigital) <= payment.Epsilon
}

// Rebuild overwrites the running totals with the values computed from the log.
func Rebuild(shift domain.CashShift, d domain.ShiftDrift) domain.CashShift {
	shift.TotalSalesCash = d.ComputedCash
	shift.TotalSalesDigital = d.ComputedDigital
	return shift
}

func requireActive(shift domain.CashShift, currentShiftID string) error {
	if currentShiftID == "" || shift.ID != currentShiftID {
		return domain.ErrNoActiveShift
	}
	if shift.Status != domain.ShiftOpen {
		return fmt.Errorf("%w: %s", domain.ErrShiftClosed, shift.ID)
	}
	return nil
}

func (l *Ledger) movement(shiftID string, kind domain.MovementType, amount float64, description, actor string, at time.Time) domain.CashMovement {
	return domain.CashMovement{
		ID:          l.newID(),
		ShiftID:     shiftID,
		Type:        kind,
		Amount:      amount,
		Description: description,
		Timestamp:   at,
		CreatedBy:   actor,
	}
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
