package repositories

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrOperatorNotFound = errors.New("operator not found")

	// ErrInvoiceConflict means the invoice reference cannot be attached: the order is unknown,
	// is paid on delivery, already carries a reference, or the reference belongs to another order.
	ErrInvoiceConflict = errors.New("invoice reference cannot be attached")
)

// StoreError is an I/O failure of the underlying database. Callers must not assume
// that any part of the failed operation was written.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
