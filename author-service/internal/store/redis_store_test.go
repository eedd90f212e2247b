package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
)

func newTestStore(t *testing.T) (*RedisAuthorStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisAuthorStore(mr.Addr(), "", 0, 30*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestFollowersCount(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.GetFollowersCount(ctx, 2)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetFollowersCount(ctx, 2, 3))
	count, found, err := s.GetFollowersCount(ctx, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 3, count)

	require.NoError(t, s.InvalidateFollowersCount(ctx, 2))
	_, found, err = s.GetFollowersCount(ctx, 2)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHotKeys(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordAccess(ctx, 7))
	}
	require.NoError(t, s.RecordAccess(ctx, 8))
	require.NoError(t, s.RecordAccess(ctx, 8))
	require.NoError(t, s.RecordAccess(ctx, 9))

	top, err := s.GetTopHotKeys(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint{7, 8}, top)

	require.NoError(t, s.ResetHotKeyScores(ctx))
	top, err = s.GetTopHotKeys(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestAuthorListCache(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.GetAuthorList(ctx, domain.OrderByName)
	require.NoError(t, err)
	assert.False(t, found)

	views := []domain.AuthorView{{ID: 1, Name: "alice", FollowerCount: 3}}
	require.NoError(t, s.SetAuthorList(ctx, domain.OrderByName, views))
	require.NoError(t, s.SetAuthorList(ctx, domain.OrderByFollowCount, views))

	got, found, err := s.GetAuthorList(ctx, domain.OrderByName)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, views, got)
	assert.Equal(t, 30*time.Second, mr.TTL("author:list:name"))

	require.NoError(t, s.InvalidateAuthorLists(ctx))
	_, found, err = s.GetAuthorList(ctx, domain.OrderByFollowCount)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAuthorListCache_Expires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetAuthorList(ctx, domain.OrderByName, []domain.AuthorView{}))
	mr.FastForward(31 * time.Second)

	_, found, err := s.GetAuthorList(ctx, domain.OrderByName)
	require.NoError(t, err)
	assert.False(t, found)
}
