package repositories

import (
	"context"

	"toko-pay/internal/models"
)

// OrderRepository defines the interface for order data access.
//
// MarkPaidIfNew is the only status write and must be a single atomic conditional update:
// it reports true when this call moved the order from New to Paid, false when the order
// was already Paid (no write happens in that case).
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) (uint, error)
	AttachInvoiceReference(ctx context.Context, id uint, ref string) error
	FindByInvoiceReference(ctx context.Context, ref string) (*models.Order, error)
	MarkPaidIfNew(ctx context.Context, id uint) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	List(ctx context.Context, limit, offset int) ([]models.Order, error)
}
