package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-auction/author-service/internal/consumer"
	"github.com/weiawesome/wes-auction/author-service/internal/domain"
	"github.com/weiawesome/wes-auction/author-service/internal/repository"
	"github.com/weiawesome/wes-auction/author-service/internal/store"
	"github.com/weiawesome/wes-auction/pkg/database"
	"github.com/weiawesome/wes-auction/pkg/metrics"
	"github.com/weiawesome/wes-auction/pkg/pubsub"
	"github.com/weiawesome/wes-auction/pkg/storage"
)

type fixture struct {
	db        *gorm.DB
	store     *store.RedisAuthorStore
	publisher *pubsub.RedisPublisher
	svc       AuthorService
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
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

	mr := miniredis.RunT(t)
	st, err := store.NewRedisAuthorStore(mr.Addr(), "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	pub, err := pubsub.NewRedisPublisher(pubsub.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	files, err := storage.NewLocalStorage(storage.LocalConfig{PublicURL: "http://cdn.test"})
	require.NoError(t, err)

	deps := Deps{
		Users:     repository.NewGormUserRepository(db),
		Follows:   repository.NewGormFollowRepository(db),
		Authors:   repository.NewGormAuthorRepository(db),
		Store:     st,
		Publisher: pub,
		Storage:   files,
		Metrics:   metrics.New("test"),
	}
	return &fixture{db: db, store: st, publisher: pub, svc: NewAuthorService(deps), deps: deps}
}

func (f *fixture) user(t *testing.T, id uint, name string, author bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.UserModel{
		ID:              id,
		Name:            name,
		Email:           fmt.Sprintf("%s.%d@example.com", name, id),
		IsAuthor:        author,
		ProfileImageKey: fmt.Sprintf("profiles/%d.png", id),
	}).Error)
}

func (f *fixture) followRows(t *testing.T, userID, authorID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.FollowModel{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).Count(&n).Error)
	return n
}

func TestToggleFollow_FollowThenUnfollow(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "follower", false)
	f.user(t, 2, "author", true)
	ctx := context.Background()

	res, err := f.svc.ToggleFollow(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Followed)
	assert.Equal(t, domain.MessageFollowed, res.Message)
	assert.EqualValues(t, 1, f.followRows(t, 1, 2))

	res, err = f.svc.ToggleFollow(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Followed)
	assert.Equal(t, domain.MessageUnfollowed, res.Message)
	assert.EqualValues(t, 0, f.followRows(t, 1, 2))
}

func TestToggleFollow_Errors(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "follower", false)
	f.user(t, 2, "author", true)
	f.user(t, 3, "plain", false)
	ctx := context.Background()

	_, err := f.svc.ToggleFollow(ctx, 99, 2)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.ToggleFollow(ctx, 1, 99)
	assert.ErrorIs(t, err, ErrAuthorNotFound)

	_, err = f.svc.ToggleFollow(ctx, 1, 3)
	assert.ErrorIs(t, err, ErrNotAuthor)

	assert.EqualValues(t, 0, f.followRows(t, 1, 3))
}

func TestToggleFollow_InvalidatesCachesAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "follower", false)
	f.user(t, 2, "author", true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := f.publisher.Subscribe(ctx, FollowEventsChannel)
	require.NoError(t, err)

	require.NoError(t, f.store.SetFollowersCount(ctx, 2, 10))
	require.NoError(t, f.store.SetAuthorList(ctx, domain.OrderByName, []domain.AuthorView{{ID: 2}}))

	_, err = f.svc.ToggleFollow(ctx, 1, 2)
	require.NoError(t, err)

	_, found, err := f.store.GetFollowersCount(ctx, 2)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = f.store.GetAuthorList(ctx, domain.OrderByName)
	require.NoError(t, err)
	assert.False(t, found)

	select {
	case e := <-events:
		assert.Equal(t, EventAuthorFollowed, e.Type)
		assert.Equal(t, "2", e.Key)
		var payload FollowEvent
		require.NoError(t, e.UnmarshalPayload(&payload))
		assert.Equal(t, FollowEvent{UserID: 1, AuthorID: 2}, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no follow event published")
	}
}

// racingFollows fails the first n toggles as if a concurrent insert won.
type racingFollows struct {
	repository.FollowRepository
	failures int
	calls    int
}

func (r *racingFollows) Toggle(ctx context.Context, userID, authorID uint) (bool, error) {
	r.calls++
	if r.calls <= r.failures {
		return false, repository.ErrConcurrentToggle
	}
	return r.FollowRepository.Toggle(ctx, userID, authorID)
}

func TestToggleFollow_RetriesConcurrentToggle(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "follower", false)
	f.user(t, 2, "author", true)

	racing := &racingFollows{FollowRepository: f.deps.Follows, failures: 2}
	deps := f.deps
	deps.Follows = racing
	svc := NewAuthorService(deps)

	res, err := svc.ToggleFollow(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Followed)
	assert.Equal(t, 3, racing.calls)

	racing.calls, racing.failures = 0, 5
	_, err = svc.ToggleFollow(context.Background(), 1, 2)
	assert.ErrorIs(t, err, repository.ErrConcurrentToggle)
	assert.Equal(t, maxToggleAttempts, racing.calls)
}

func TestListAuthors_Ordering(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "carol", true)
	f.user(t, 2, "alice", true)
	f.user(t, 3, "bob", true)
	f.user(t, 4, "fan1", false)
	f.user(t, 5, "fan2", false)
	ctx := context.Background()

	for _, pair := range [][2]uint{{4, 1}, {5, 1}, {4, 3}} {
		_, err := f.svc.ToggleFollow(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	byName, err := f.svc.ListAuthors(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, names(byName))

	byFollow, err := f.svc.ListAuthors(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "alice"}, names(byFollow))
	assert.Equal(t, []int64{2, 1, 0}, counts(byFollow))
	assert.Equal(t, "http://cdn.test/profiles/1.png", byFollow[0].ProfileImageURL)
}

func TestListAuthors_CachedUntilToggle(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "alice", true)
	f.user(t, 2, "bob", true)
	f.user(t, 3, "fan", false)
	ctx := context.Background()

	first, err := f.svc.ListAuthors(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names(first))

	// A write that bypasses the service is not visible while cached.
	require.NoError(t, f.db.Create(&domain.FollowModel{UserID: 3, AuthorID: 2}).Error)
	cached, err := f.svc.ListAuthors(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	// A toggle invalidates the cache.
	_, err = f.svc.ToggleFollow(ctx, 3, 1)
	require.NoError(t, err)
	_, err = f.svc.ToggleFollow(ctx, 3, 1)
	require.NoError(t, err)

	fresh, err := f.svc.ListAuthors(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, names(fresh))
}

func TestGetAuthorDetail(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "follower", false)
	f.user(t, 2, "author", true)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		require.NoError(t, f.db.Create(&domain.PictureModel{
			AuthorID:  2,
			Title:     fmt.Sprintf("p%d", i),
			ImageKey:  fmt.Sprintf("pictures/%d.png", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	_, err := f.svc.ToggleFollow(ctx, 1, 2)
	require.NoError(t, err)

	detail, err := f.svc.GetAuthorDetail(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "author", detail.Name)
	assert.EqualValues(t, 1, detail.FollowerCount)
	require.Len(t, detail.RecentPictures, RecentPictureLimit)
	assert.Equal(t, "p7", detail.RecentPictures[0].Title)
	assert.Equal(t, "http://cdn.test/pictures/7.png", detail.RecentPictures[0].ImageURL)
	for i := 1; i < len(detail.RecentPictures); i++ {
		assert.True(t, detail.RecentPictures[i-1].CreatedAt.After(detail.RecentPictures[i].CreatedAt))
	}

	// The count is now cached and the author recorded as a hot key.
	count, found, err := f.store.GetFollowersCount(ctx, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 1, count)
	top, err := f.store.GetTopHotKeys(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, top)
}

func TestGetAuthorDetail_Errors(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "plain", false)

	_, err := f.svc.GetAuthorDetail(context.Background(), 42)
	assert.ErrorIs(t, err, ErrAuthorNotFound)

	_, err = f.svc.GetAuthorDetail(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotAuthor)
}

func TestGetAuthorDetail_NoPictures(t *testing.T) {
	f := newFixture(t)
	f.user(t, 2, "author", true)

	detail, err := f.svc.GetAuthorDetail(context.Background(), 2)
	require.NoError(t, err)
	assert.NotNil(t, detail.RecentPictures)
	assert.Empty(t, detail.RecentPictures)
	assert.Zero(t, detail.FollowerCount)
}

func TestHandleCDCEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cached := func(authorID uint) bool {
		t.Helper()
		_, found, err := f.store.GetFollowersCount(ctx, authorID)
		require.NoError(t, err)
		return found
	}
	warm := func(authorIDs ...uint) {
		t.Helper()
		for _, id := range authorIDs {
			require.NoError(t, f.store.SetFollowersCount(ctx, id, 5))
		}
		require.NoError(t, f.store.SetAuthorList(ctx, domain.OrderByName, []domain.AuthorView{}))
	}

	warm(2)
	require.NoError(t, f.svc.HandleCDCEvent(ctx, &consumer.DebeziumMessage{Payload: consumer.DebeziumPayload{
		Op:    consumer.OpCreate,
		After: &consumer.DebeziumFollowRecord{UserID: 1, AuthorID: 2},
	}}))
	assert.False(t, cached(2))
	_, found, err := f.store.GetAuthorList(ctx, domain.OrderByName)
	require.NoError(t, err)
	assert.False(t, found)

	warm(2)
	del := &consumer.DebeziumMessage{Payload: consumer.DebeziumPayload{
		Op:     consumer.OpDelete,
		Before: &consumer.DebeziumFollowRecord{UserID: 1, AuthorID: 2},
	}}
	require.NoError(t, f.svc.HandleCDCEvent(ctx, del))
	require.NoError(t, f.svc.HandleCDCEvent(ctx, del))
	assert.False(t, cached(2))

	warm(2, 3)
	require.NoError(t, f.svc.HandleCDCEvent(ctx, &consumer.DebeziumMessage{Payload: consumer.DebeziumPayload{
		Op:     consumer.OpUpdate,
		Before: &consumer.DebeziumFollowRecord{UserID: 1, AuthorID: 2},
		After:  &consumer.DebeziumFollowRecord{UserID: 1, AuthorID: 3},
	}}))
	assert.False(t, cached(2))
	assert.False(t, cached(3))

	// Snapshots and unknown ops leave the cache alone.
	warm(2)
	assert.NoError(t, f.svc.HandleCDCEvent(ctx, &consumer.DebeziumMessage{Payload: consumer.DebeziumPayload{
		Op: consumer.OpSnapshot, After: &consumer.DebeziumFollowRecord{AuthorID: 2},
	}}))
	assert.NoError(t, f.svc.HandleCDCEvent(ctx, &consumer.DebeziumMessage{Payload: consumer.DebeziumPayload{Op: "x"}}))
	assert.NoError(t, f.svc.HandleCDCEvent(ctx, &consumer.DebeziumMessage{Payload: consumer.DebeziumPayload{Op: consumer.OpCreate}}))
	assert.True(t, cached(2))
}

func TestFollowerCount_CDCAfterRefillCountsOnce(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "follower", false)
	f.user(t, 2, "author", true)
	ctx := context.Background()

	_, err := f.svc.ToggleFollow(ctx, 1, 2)
	require.NoError(t, err)

	detail, err := f.svc.GetAuthorDetail(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, detail.FollowerCount)

	// The change feed delivers the same insert after the cache was refilled.
	require.NoError(t, f.svc.HandleCDCEvent(ctx, &consumer.DebeziumMessage{Payload: consumer.DebeziumPayload{
		Op:    consumer.OpCreate,
		After: &consumer.DebeziumFollowRecord{UserID: 1, AuthorID: 2},
	}}))

	detail, err = f.svc.GetAuthorDetail(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, detail.FollowerCount)
	assert.EqualValues(t, 1, f.followRows(t, 1, 2))
}

func TestIsFollowing(t *testing.T) {
	f := newFixture(t)
	f.user(t, 1, "follower", false)
	f.user(t, 2, "author", true)
	ctx := context.Background()

	following, err := f.svc.IsFollowing(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, following)

	_, err = f.svc.ToggleFollow(ctx, 1, 2)
	require.NoError(t, err)
	following, err = f.svc.IsFollowing(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, following)

	_, err = f.svc.IsFollowing(ctx, 9, 2)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.svc.IsFollowing(ctx, 1, 9)
	assert.ErrorIs(t, err, ErrAuthorNotFound)
	_, err = f.svc.IsFollowing(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrNotAuthor)
}

type failingUsers struct{}

func (failingUsers) GetByID(context.Context, uint) (*domain.User, error) {
	return nil, errors.New("db down")
}

func TestToggleFollow_PropagatesInfrastructureErrors(t *testing.T) {
	f := newFixture(t)
	deps := f.deps
	deps.Users = failingUsers{}

	_, err := NewAuthorService(deps).ToggleFollow(context.Background(), 1, 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func names(views []domain.AuthorView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Name)
	}
	return out
}

func counts(views []domain.AuthorView) []int64 {
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.FollowerCount)
	}
	return out
}
