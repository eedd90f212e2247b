package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
)

// GormFollowRepository implements FollowRepository using GORM.
type GormFollowRepository struct {
	db *gorm.DB
}

// NewGormFollowRepository creates a new GORM-backed follow repository.
func NewGormFollowRepository(db *gorm.DB) *GormFollowRepository {
	return &GormFollowRepository{db: db}
}

// Toggle flips the follow state of the pair inside one transaction.
// If another transaction inserts the same pair first (the insert hits
// uidx_follow_pair) or deletes it first (our delete affects no row),
// ErrConcurrentToggle is returned and nothing is written.
func (r *GormFollowRepository) Toggle(ctx context.Context, userID, authorID uint) (bool, error) {
	var followed bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.FollowModel
		err := tx.Where("user_id = ? AND author_id = ?", userID, authorID).
			Limit(1).Find(&existing).Error
		if err != nil {
			return err
		}

		if existing.ID != 0 {
			followed = false
			res := tx.Delete(&existing)
			if res.Error != nil {
				return res.Error
			}
			// Another transaction removed the row after our read.
			if res.RowsAffected == 0 {
				return ErrConcurrentToggle
			}
			return nil
		}

		followed = true
		if err := tx.Create(&domain.FollowModel{UserID: userID, AuthorID: authorID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConcurrentToggle
			}
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return followed, nil
}

// Exists checks if userID follows authorID.
func (r *GormFollowRepository) Exists(ctx context.Context, userID, authorID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.FollowModel{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountFollowers returns the number of followers of authorID.
func (r *GormFollowRepository) CountFollowers(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.FollowModel{}).
		Where("author_id = ?", authorID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

var _ FollowRepository = (*GormFollowRepository)(nil)
