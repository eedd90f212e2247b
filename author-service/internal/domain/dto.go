package domain

import "time"

const (
	MessageFollowed   = "followed"
	MessageUnfollowed = "unfollowed"
)

// FollowRequest is the body of a follow toggle.
type FollowRequest struct {
	UserID   uint `json:"user_id" binding:"required"`
	AuthorID uint `json:"author_id" binding:"required"`
}

// FollowResult reports the state after a toggle.
type FollowResult struct {
	Followed bool   `json:"followed"`
	Message  string `json:"message"`
}

// NewFollowResult builds the result for the resulting follow state.
func NewFollowResult(followed bool) *FollowResult {
	if followed {
		return &FollowResult{Followed: true, Message: MessageFollowed}
	}
	return &FollowResult{Followed: false, Message: MessageUnfollowed}
}

// FollowStatus reports whether a user follows an author.
type FollowStatus struct {
	UserID    uint `json:"user_id"`
	AuthorID  uint `json:"author_id"`
	Following bool `json:"following"`
}

// AuthorView is an author entry in listings.
type AuthorView struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	Introduction    string `json:"introduction,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	FollowerCount   int64  `json:"follower_count"`
}

// PictureView is a picture in an author detail.
type PictureView struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthorDetail is an author with follower count and most recent pictures.
type AuthorDetail struct {
	AuthorView
	RecentPictures []PictureView `json:"recent_pictures"`
}
