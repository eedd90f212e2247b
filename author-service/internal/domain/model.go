package domain

import (
	"time"

	"gorm.io/gorm"
)

// UserModel is the GORM model for the users table.
// Rows are owned by the user service; this service only reads them.
type UserModel struct {
	ID              uint           `gorm:"primaryKey;autoIncrement"`
	Name            string         `gorm:"type:varchar(100);not null;index"`
	Email           string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	IsAuthor        bool           `gorm:"column:is_author;not null;default:false;index"`
	Introduction    string         `gorm:"type:text"`
	ProfileImageKey string         `gorm:"column:profile_image_key;type:varchar(512)"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (UserModel) TableName() string { return "users" }

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:              m.ID,
		Name:            m.Name,
		Email:           m.Email,
		IsAuthor:        m.IsAuthor,
		Introduction:    m.Introduction,
		ProfileImageKey: m.ProfileImageKey,
		CreatedAt:       m.CreatedAt,
	}
}

// FollowModel is the GORM model for the follows table.
// At most one row exists per (user_id, author_id).
type FollowModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"column:user_id;not null;uniqueIndex:uidx_follow_pair,priority:1"`
	AuthorID  uint      `gorm:"column:author_id;not null;uniqueIndex:uidx_follow_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (FollowModel) TableName() string { return "follows" }

// PictureModel is the GORM model for the pictures table.
type PictureModel struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	AuthorID    uint           `gorm:"column:author_id;not null;index:idx_picture_author_recent,priority:1"`
	Title       string         `gorm:"type:varchar(200);not null"`
	Description string         `gorm:"type:text"`
	ImageKey    string         `gorm:"column:image_key;type:varchar(512)"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index:idx_picture_author_recent,priority:2,sort:desc"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (PictureModel) TableName() string { return "pictures" }

// ToDomain converts PictureModel to domain Picture.
func (m *PictureModel) ToDomain() Picture {
	return Picture{
		ID:          m.ID,
		AuthorID:    m.AuthorID,
		Title:       m.Title,
		Description: m.Description,
		ImageKey:    m.ImageKey,
		CreatedAt:   m.CreatedAt,
	}
}

// User is an account; an author is a user with IsAuthor set.
type User struct {
	ID              uint
	Name            string
	Email           string
	IsAuthor        bool
	Introduction    string
	ProfileImageKey string
	CreatedAt       time.Time
}

// Picture is an artwork owned by an author.
type Picture struct {
	ID          uint
	AuthorID    uint
	Title       string
	Description string
	ImageKey    string
	CreatedAt   time.Time
}

// AuthorRow is one author with its follower count, as returned by list queries.
type AuthorRow struct {
	ID              uint
	Name            string
	Introduction    string
	ProfileImageKey string
	FollowerCount   int64
}

// AuthorOrder selects the ordering of author listings.
type AuthorOrder int

const (
	// OrderByName sorts by name, then id.
	OrderByName AuthorOrder = iota
	// OrderByFollowCount sorts by follower count descending, then name, then id.
	OrderByFollowCount
)

func (o AuthorOrder) String() string {
	if o == OrderByFollowCount {
		return "follow"
	}
	return "name"
}
