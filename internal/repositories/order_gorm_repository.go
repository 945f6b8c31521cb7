package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toko-pay/internal/models"

	"gorm.io/gorm"
)

var unpaidStatuses = []string{string(models.OrderStatusNew), string(models.OrderStatusPending)}

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db:  db,
		now: time.Now,
	}
}

// Create inserts a new order with status New and returns the id assigned by the database.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) (uint, error) {
	order.ID = 0
	order.Status = models.OrderStatusNew
	order.InvoiceReference = nil
	order.PaidAt = nil
	order.CreatedAt = r.now()

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return 0, storeErr("create order", err)
	}
	return order.ID, nil
}

// AttachInvoiceReference sets the invoice reference of a card order that has none yet.
func (r *GORMOrderRepository) AttachInvoiceReference(ctx context.Context, id uint, ref string) error {
	if ref == "" {
		return fmt.Errorf("attach invoice to order %d: empty reference: %w", id, ErrInvoiceConflict)
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND invoice_reference IS NULL AND payment_method = ?", id, models.PaymentMethodCard).
		Update("invoice_reference", ref)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("attach invoice %s to order %d: %w", ref, id, ErrInvoiceConflict)
		}
		return storeErr(fmt.Sprintf("attach invoice to order %d", id), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("attach invoice %s to order %d: %w", ref, id, ErrInvoiceConflict)
	}
	return nil
}

// FindByInvoiceReference retrieves the order owning the invoice reference.
func (r *GORMOrderRepository) FindByInvoiceReference(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "invoice_reference = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with invoice %s: %w", ref, ErrOrderNotFound)
		}
		return nil, storeErr(fmt.Sprintf("find order by invoice %s", ref), err)
	}
	return &order, nil
}

// MarkPaidIfNew moves the order to Paid with a single conditional UPDATE.
func (r *GORMOrderRepository) MarkPaidIfNew(ctx context.Context, id uint) (bool, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, unpaidStatuses).
		Updates(map[string]any{
			"status":  models.OrderStatusPaid,
			"paid_at": r.now(),
		})
	if res.Error != nil {
		return false, storeErr(fmt.Sprintf("mark order %d paid", id), res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Nothing changed: either already paid or the order does not exist.
	var count int64
	if err := db.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, storeErr(fmt.Sprintf("check order %d", id), err)
	}
	if count == 0 {
		return false, fmt.Errorf("mark order %d paid: %w", id, ErrOrderNotFound)
	}
	return false, nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %d: %w", id, ErrOrderNotFound)
		}
		return nil, storeErr(fmt.Sprintf("get order %d", id), err)
	}
	return &order, nil
}

// List returns orders newest first.
func (r *GORMOrderRepository) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}
