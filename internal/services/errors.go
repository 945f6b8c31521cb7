package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrPaymentNotStarted is matched by every failure of the payment step of a card order.
// The order itself exists when this error is returned.
var ErrPaymentNotStarted = errors.New("payment could not be started")

// ValidationError lists the request fields that are missing or invalid. Nothing was written.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// GatewayUnavailableError means the invoice for OrderID could not be issued.
type GatewayUnavailableError struct {
	OrderID uint
	Err     error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("payment gateway unavailable for order %d: %v", e.OrderID, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

func (e *GatewayUnavailableError) Is(target error) bool { return target == ErrPaymentNotStarted }
