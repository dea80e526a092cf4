package domain

import "errors"

var (
	ErrNoActiveShift       = errors.New("no active shift")
	ErrShiftAlreadyOpen    = errors.New("a shift is already open")
	ErrShiftClosed         = errors.New("shift is closed")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrUnsupportedPayment  = errors.New("unsupported payment method")
	ErrInvalidPurchase     = errors.New("invalid purchase")
	ErrInvalidInput        = errors.New("invalid input")
	ErrPersistence         = errors.New("persistence failure")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
)
