package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"toko-pay/internal/models"

	"github.com/google/uuid"
)

// MemoryOperatorRepository is an in-memory implementation of OperatorRepository.
type MemoryOperatorRepository struct {
	mu         sync.RWMutex
	byUsername map[string]models.Operator
}

// NewMemoryOperatorRepository creates a new instance of MemoryOperatorRepository.
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	return &MemoryOperatorRepository{
		byUsername: make(map[string]models.Operator),
	}
}

// Create adds an operator. Usernames are unique.
func (r *MemoryOperatorRepository) Create(_ context.Context, operator *models.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[operator.Username]; exists {
		return storeErr("create operator", errors.New("username already taken"))
	}
	if operator.ID == "" {
		operator.ID = uuid.New().String()
	}
	operator.CreatedAt = time.Now()
	r.byUsername[operator.Username] = *operator
	return nil
}

// GetByUsername returns an operator by username.
func (r *MemoryOperatorRepository) GetByUsername(_ context.Context, username string) (*models.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	operator, ok := r.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("operator %s: %w", username, ErrOperatorNotFound)
	}
	return &operator, nil
}
