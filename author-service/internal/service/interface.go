package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-auction/author-service/internal/consumer"
	"github.com/weiawesome/wes-auction/author-service/internal/domain"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrAuthorNotFound = errors.New("author not found")
	ErrNotAuthor      = errors.New("target user is not an author")
)

// Follow event types and the channel they are published on.
const (
	EventAuthorFollowed   = "author.followed"
	EventAuthorUnfollowed = "author.unfollowed"
	FollowEventsChannel   = "author:follow:events"
)

// RecentPictureLimit is the number of pictures in an author detail.
const RecentPictureLimit = 5

// AuthorService defines the business logic for following and browsing authors.
type AuthorService interface {
	ToggleFollow(ctx context.Context, followerID, authorID uint) (*domain.FollowResult, error)
	ListAuthors(ctx context.Context, sortByFollowCount bool) ([]domain.AuthorView, error)
	GetAuthorDetail(ctx context.Context, authorID uint) (*domain.AuthorDetail, error)
	IsFollowing(ctx context.Context, userID, authorID uint) (bool, error)
	HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error
}

// FollowEvent is the payload of follow events.
type FollowEvent struct {
	UserID   uint `json:"user_id"`
	AuthorID uint `json:"author_id"`
}
