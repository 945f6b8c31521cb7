package repositories

import (
	"context"

	"toko-pay/internal/models"
)

// OperatorRepository defines the interface for operator account data access.
type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) error
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
}
