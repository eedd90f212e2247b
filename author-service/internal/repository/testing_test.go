package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
	"github.com/weiawesome/wes-auction/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     "file::memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.AutoMigrate(db, &domain.UserModel{}, &domain.FollowModel{}, &domain.PictureModel{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id uint, name string, author bool) {
	t.Helper()
	require.NoError(t, db.Create(&domain.UserModel{
		ID:       id,
		Name:     name,
		Email:    fmt.Sprintf("%s.%d@example.com", name, id),
		IsAuthor: author,
	}).Error)
}

func seedFollow(t *testing.T, db *gorm.DB, userID, authorID uint) {
	t.Helper()
	require.NoError(t, db.Create(&domain.FollowModel{UserID: userID, AuthorID: authorID}).Error)
}

func seedPicture(t *testing.T, db *gorm.DB, authorID uint, title string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&domain.PictureModel{
		AuthorID:  authorID,
		Title:     title,
		ImageKey:  "pictures/" + title + ".png",
		CreatedAt: at,
	}).Error)
}
