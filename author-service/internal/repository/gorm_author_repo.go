package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
)

// GormAuthorRepository implements AuthorRepository using GORM.
type GormAuthorRepository struct {
	db *gorm.DB
}

// NewGormAuthorRepository creates a new GORM-backed author repository.
func NewGormAuthorRepository(db *gorm.DB) *GormAuthorRepository {
	return &GormAuthorRepository{db: db}
}

func orderClause(order domain.AuthorOrder) string {
	if order == domain.OrderByFollowCount {
		return "follower_count DESC, users.name ASC, users.id ASC"
	}
	return "users.name ASC, users.id ASC"
}

// ListAuthors returns every author with its follower count in the requested order.
func (r *GormAuthorRepository) ListAuthors(ctx context.Context, order domain.AuthorOrder) ([]domain.AuthorRow, error) {
	rows := make([]domain.AuthorRow, 0)
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Select("users.id, users.name, users.introduction, users.profile_image_key, COUNT(follows.id) AS follower_count").
		Joins("LEFT JOIN follows ON follows.author_id = users.id").
		Where("users.is_author = ?", true).
		Group("users.id, users.name, users.introduction, users.profile_image_key").
		Order(orderClause(order)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RecentPictures returns up to limit pictures of authorID, newest first.
func (r *GormAuthorRepository) RecentPictures(ctx context.Context, authorID uint, limit int) ([]domain.Picture, error) {
	var models []domain.PictureModel
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	pictures := make([]domain.Picture, 0, len(models))
	for i := range models {
		pictures = append(pictures, models[i].ToDomain())
	}
	return pictures, nil
}

var _ AuthorRepository = (*GormAuthorRepository)(nil)
