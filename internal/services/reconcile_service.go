package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"toko-pay/internal/models"
	"toko-pay/internal/notify"
	"toko-pay/internal/repositories"
)

// PaidStatus is the callback status the gateway sends once an invoice is paid.
const PaidStatus = "success"

// Outcome is the internal result of reconciling one callback. It is logged, never sent to the gateway.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomePaid      Outcome = "paid"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeDropped   Outcome = "dropped"
)

// CallbackDeferrer parks a callback that hit a store failure so it can be reconciled later.
type CallbackDeferrer interface {
	DeferCallback(ctx context.Context, payload []byte, attempt int) error
}

// Callback is the part of the gateway webhook body the reconciler reads. Other fields are not decoded.
type Callback struct {
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
}

// ReconcileService matches payment callbacks to orders and applies the New -> Paid transition.
type ReconcileService struct {
	orderRepo   repositories.OrderRepository
	notifier    Notifier
	deferrer    CallbackDeferrer
	maxAttempts int
}

// NewReconcileService creates a new ReconcileService. deferrer may be nil, in which case a
// callback that hits a store failure is dropped.
func NewReconcileService(orderRepo repositories.OrderRepository, notifier Notifier, deferrer CallbackDeferrer, maxAttempts int) *ReconcileService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ReconcileService{
		orderRepo:   orderRepo,
		notifier:    notifier,
		deferrer:    deferrer,
		maxAttempts: maxAttempts,
	}
}

// HandleCallback reconciles a webhook body received from the gateway.
func (s *ReconcileService) HandleCallback(ctx context.Context, payload []byte) Outcome {
	return s.reconcile(ctx, payload, 1)
}

// Redeliver reconciles a previously deferred callback. attempt counts deliveries so far, starting at 1.
func (s *ReconcileService) Redeliver(ctx context.Context, payload []byte, attempt int) Outcome {
	return s.reconcile(ctx, payload, attempt)
}

func (s *ReconcileService) reconcile(ctx context.Context, payload []byte, attempt int) Outcome {
	var cb Callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		log.Printf("Webhook: ignoring undecodable payload: %v", err)
		return OutcomeIgnored
	}
	if cb.Status != PaidStatus {
		log.Printf("Webhook: invoice %s status %q, nothing to do", cb.InvoiceID, cb.Status)
		return OutcomeIgnored
	}
	if cb.InvoiceID == "" {
		log.Printf("Webhook: paid callback without invoiceId ignored")
		return OutcomeIgnored
	}

	order, err := s.orderRepo.FindByInvoiceReference(ctx, cb.InvoiceID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			log.Printf("Webhook: reconciliation miss, no order for invoice %s", cb.InvoiceID)
			return OutcomeUnmatched
		}
		return s.deferOrDrop(ctx, payload, cb, attempt, err)
	}
	if order.PaymentMethod != models.PaymentMethodCard {
		log.Printf("Webhook: order %d is %s, invoice %s ignored", order.ID, order.PaymentMethod, cb.InvoiceID)
		return OutcomeIgnored
	}

	transitioned, err := s.orderRepo.MarkPaidIfNew(ctx, order.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			log.Printf("Webhook: order %d disappeared before invoice %s was applied", order.ID, cb.InvoiceID)
			return OutcomeUnmatched
		}
		return s.deferOrDrop(ctx, payload, cb, attempt, err)
	}
	if !transitioned {
		log.Printf("Webhook: order %d already paid, duplicate invoice %s callback", order.ID, cb.InvoiceID)
		return OutcomeDuplicate
	}

	now := time.Now()
	order.Status = models.OrderStatusPaid
	order.PaidAt = &now
	log.Printf("Webhook: order %d paid by invoice %s", order.ID, cb.InvoiceID)

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Event{Kind: notify.PaymentConfirmed, Order: *order, At: now})
	}
	return OutcomePaid
}

func (s *ReconcileService) deferOrDrop(ctx context.Context, payload []byte, cb Callback, attempt int, cause error) Outcome {
	if s.deferrer == nil || attempt >= s.maxAttempts {
		log.Printf("Error: dropping payment confirmation for invoice %s after %d attempt(s): %v", cb.InvoiceID, attempt, cause)
		return OutcomeDropped
	}
	if err := s.deferrer.DeferCallback(ctx, payload, attempt+1); err != nil {
		log.Printf("Error: dropping payment confirmation for invoice %s, store failed (%v) and deferral failed: %v", cb.InvoiceID, cause, err)
		return OutcomeDropped
	}
	log.Printf("Warning: payment confirmation for invoice %s deferred (attempt %d): %v", cb.InvoiceID, attempt, cause)
	return OutcomeDeferred
}
