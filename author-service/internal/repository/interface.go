package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrConcurrentToggle = errors.New("follow pair changed concurrently")
)

// UserRepository reads user records.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*domain.User, error)
}

// FollowRepository defines persistence operations for follow relationships.
type FollowRepository interface {
	// Toggle deletes the (userID, authorID) row if present, otherwise creates it,
	// in a single transaction. It reports whether the pair is followed afterwards.
	Toggle(ctx context.Context, userID, authorID uint) (bool, error)
	Exists(ctx context.Context, userID, authorID uint) (bool, error)
	CountFollowers(ctx context.Context, authorID uint) (int64, error)
}

// AuthorRepository runs author-specific read queries.
type AuthorRepository interface {
	ListAuthors(ctx context.Context, order domain.AuthorOrder) ([]domain.AuthorRow, error)
	RecentPictures(ctx context.Context, authorID uint, limit int) ([]domain.Picture, error)
}
