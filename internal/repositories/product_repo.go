package repositories

import (
	"context"

	"toko-pay/internal/models"
)

// ProductRepository defines the product lookup the order core relies on.
type ProductRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
}
