package payment

import (
	"fmt"
	"math"

	"posgo/backend/internal/domain"
)

// Epsilon absorbs floating point noise when comparing tendered and due amounts.
const Epsilon = 0.01

// tolerance keeps a tender of exactly total-Epsilon on the accepted side.
const tolerance = 1e-9

// Methods lists the accepted tender methods in recording order.
var Methods = []domain.PaymentMethod{
	domain.PaymentCash,
	domain.PaymentCard,
	domain.PaymentYape,
	domain.PaymentPlin,
}

type Settlement struct {
	TotalPaid float64                `json:"total_paid"`
	Remaining float64                `json:"remaining"`
	Change    float64                `json:"change"`
	Payments  []domain.PaymentDetail `json:"payments"`
	Method    domain.PaymentMethod   `json:"method"`
}

func IsSupported(method domain.PaymentMethod) bool {
	for _, m := range Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Summarize computes paid, remaining and change without validating sufficiency.
func Summarize(total float64, tenders map[domain.PaymentMethod]float64) (paid, remaining, change float64) {
	for _, method := range Methods {
		paid += sanitize(tenders[method])
	}
	remaining = math.Max(0, total-paid)
	change = math.Max(0, paid-total)
	return paid, remaining, change
}

// Settle validates tenders against the amount due and normalizes them into the
// recorded payment list. Cash is reduced by the change handed back; tenders that
// end up zero or negative are dropped.
func Settle(total float64, tenders map[domain.PaymentMethod]float64) (Settlement, error) {
	for method := range tenders {
		if !IsSupported(method) {
			return Settlement{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPayment, method)
		}
	}

	paid, remaining, change := Summarize(total, tenders)
	if remaining-Epsilon > tolerance {
		return Settlement{}, fmt.Errorf("%w: remaining %.2f", domain.ErrInsufficientPayment, remaining)
	}

	payments := make([]domain.PaymentDetail, 0, len(Methods))
	for _, method := range Methods {
		amount := sanitize(tenders[method])
		if method.IsCash() {
			amount -= change
		}
		if amount <= 0 {
			continue
		}
		payments = append(payments, domain.PaymentDetail{Method: method, Amount: amount})
	}

	label := domain.PaymentMixed
	if len(payments) == 1 {
		label = payments[0].Method
	}

	return Settlement{
		TotalPaid: paid,
		Remaining: remaining,
		Change:    change,
		Payments:  payments,
		Method:    label,
	}, nil
}

// Split attributes a payment list to the cash and digital buckets.
func Split(payments []domain.PaymentDetail) (cash, digital float64) {
	for _, p := range payments {
		if p.Method.IsCash() {
			cash += p.Amount
		} else {
			digital += p.Amount
		}
	}
	return cash, digital
}

func sanitize(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
