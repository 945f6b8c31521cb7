package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"toko-pay/internal/models"

	"github.com/samber/lo"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
// A single mutex serializes every status transition.
type MemoryOrderRepository struct {
	mu        sync.RWMutex
	orders    map[uint]models.Order
	byInvoice map[string]uint
	nextID    uint
	now       func() time.Time
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders:    make(map[uint]models.Order),
		byInvoice: make(map[string]uint),
		now:       time.Now,
	}
}

// Create adds a new order with status New.
func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	order.Status = models.OrderStatusNew
	order.InvoiceReference = nil
	order.PaidAt = nil
	order.CreatedAt = r.now()
	r.orders[order.ID] = *order
	return order.ID, nil
}

// AttachInvoiceReference sets the invoice reference of a card order that has none yet.
func (r *MemoryOrderRepository) AttachInvoiceReference(_ context.Context, id uint, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	switch {
	case ref == "", !ok, order.InvoiceReference != nil, order.PaymentMethod != models.PaymentMethodCard:
		return fmt.Errorf("attach invoice %s to order %d: %w", ref, id, ErrInvoiceConflict)
	}
	if _, taken := r.byInvoice[ref]; taken {
		return fmt.Errorf("attach invoice %s to order %d: %w", ref, id, ErrInvoiceConflict)
	}

	order.InvoiceReference = lo.ToPtr(ref)
	r.orders[id] = order
	r.byInvoice[ref] = id
	return nil
}

// FindByInvoiceReference returns the order owning the invoice reference.
func (r *MemoryOrderRepository) FindByInvoiceReference(_ context.Context, ref string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byInvoice[ref]
	if !ok {
		return nil, fmt.Errorf("order with invoice %s: %w", ref, ErrOrderNotFound)
	}
	order := r.orders[id]
	return &order, nil
}

// MarkPaidIfNew moves the order to Paid if it is not paid yet.
func (r *MemoryOrderRepository) MarkPaidIfNew(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, fmt.Errorf("mark order %d paid: %w", id, ErrOrderNotFound)
	}
	if order.IsPaid() {
		return false, nil
	}
	order.Status = models.OrderStatusPaid
	order.PaidAt = lo.ToPtr(r.now())
	r.orders[id] = order
	return true, nil
}

// GetByID returns an order by its ID.
func (r *MemoryOrderRepository) GetByID(_ context.Context, id uint) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %d: %w", id, ErrOrderNotFound)
	}
	return &order, nil
}

// List returns orders newest first.
func (r *MemoryOrderRepository) List(_ context.Context, limit, offset int) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := lo.Values(r.orders)
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })

	if offset >= len(orders) {
		return []models.Order{}, nil
	}
	end := len(orders)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return orders[offset:end], nil
}
