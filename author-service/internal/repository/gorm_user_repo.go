package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// GetByID retrieves a user by ID. Soft-deleted users are not found.
func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	if id == 0 {
		return nil, ErrUserNotFound
	}

	var model domain.UserModel
	if err := r.db.WithContext(ctx).Take(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ UserRepository = (*GormUserRepository)(nil)
