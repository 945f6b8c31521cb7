package repositories

import (
	"context"
	"errors"
	"fmt"

	"toko-pay/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOperatorRepository is a GORM implementation of OperatorRepository.
type GORMOperatorRepository struct {
	db *gorm.DB
}

// NewGORMOperatorRepository creates a new instance of GORMOperatorRepository.
func NewGORMOperatorRepository(db *gorm.DB) *GORMOperatorRepository {
	return &GORMOperatorRepository{
		db: db,
	}
}

// Create creates a new operator in the database.
func (r *GORMOperatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	if operator.ID == "" {
		operator.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(operator).Error; err != nil {
		return storeErr("create operator", err)
	}
	return nil
}

// GetByUsername retrieves an operator by username from the database.
func (r *GORMOperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.WithContext(ctx).First(&operator, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("operator %s: %w", username, ErrOperatorNotFound)
		}
		return nil, storeErr(fmt.Sprintf("get operator %s", username), err)
	}
	return &operator, nil
}
