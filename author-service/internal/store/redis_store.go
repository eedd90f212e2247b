package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-auction/author-service/internal/domain"
)

const (
	followersCountKeyPrefix = "author:followers:"
	hotKeyScoresKey         = "author:hotkey:scores"
	authorListKeyPrefix     = "author:list:"
)

// AuthorStore defines Redis operations for follower-count caching,
// hot key tracking and the author list cache.
type AuthorStore interface {
	GetFollowersCount(ctx context.Context, authorID uint) (int64, bool, error)
	SetFollowersCount(ctx context.Context, authorID uint, count int64) error
	InvalidateFollowersCount(ctx context.Context, authorID uint) error
	RecordAccess(ctx context.Context, authorID uint) error
	GetTopHotKeys(ctx context.Context, n int64) ([]uint, error)
	ResetHotKeyScores(ctx context.Context) error
	GetAuthorList(ctx context.Context, order domain.AuthorOrder) ([]domain.AuthorView, bool, error)
	SetAuthorList(ctx context.Context, order domain.AuthorOrder, authors []domain.AuthorView) error
	InvalidateAuthorLists(ctx context.Context) error
	Close() error
}

// RedisAuthorStore implements AuthorStore backed by Redis.
type RedisAuthorStore struct {
	client  *redis.Client
	listTTL time.Duration
}

// NewRedisAuthorStore connects to Redis and returns a store.
// Cached author lists expire after listTTL.
func NewRedisAuthorStore(address, password string, db int, listTTL time.Duration) (*RedisAuthorStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if listTTL <= 0 {
		listTTL = time.Minute
	}
	return &RedisAuthorStore{client: client, listTTL: listTTL}, nil
}

func followersCountKey(authorID uint) string {
	return followersCountKeyPrefix + strconv.FormatUint(uint64(authorID), 10)
}

func authorListKey(order domain.AuthorOrder) string {
	return authorListKeyPrefix + order.String()
}

// GetFollowersCount returns the cached followers count for an author.
// Returns (count, true, nil) on hit, (0, false, nil) on miss, (0, false, err) on error.
func (s *RedisAuthorStore) GetFollowersCount(ctx context.Context, authorID uint) (int64, bool, error) {
	val, err := s.client.Get(ctx, followersCountKey(authorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get followers count: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse followers count: %w", err)
	}
	return count, true, nil
}

// SetFollowersCount sets the followers count for an author.
func (s *RedisAuthorStore) SetFollowersCount(ctx context.Context, authorID uint, count int64) error {
	if err := s.client.Set(ctx, followersCountKey(authorID), count, 0).Err(); err != nil {
		return fmt.Errorf("redis set followers count: %w", err)
	}
	return nil
}

// InvalidateFollowersCount drops the cached count so the next read recounts.
func (s *RedisAuthorStore) InvalidateFollowersCount(ctx context.Context, authorID uint) error {
	if err := s.client.Del(ctx, followersCountKey(authorID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate followers count: %w", err)
	}
	return nil
}

// RecordAccess increments the access score for an author in the hot key sorted set.
func (s *RedisAuthorStore) RecordAccess(ctx context.Context, authorID uint) error {
	member := strconv.FormatUint(uint64(authorID), 10)
	if err := s.client.ZIncrBy(ctx, hotKeyScoresKey, 1, member).Err(); err != nil {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the top-n most accessed author IDs.
func (s *RedisAuthorStore) GetTopHotKeys(ctx context.Context, n int64) ([]uint, error) {
	members, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// ResetHotKeyScores deletes the hot key scores sorted set.
func (s *RedisAuthorStore) ResetHotKeyScores(ctx context.Context) error {
	if err := s.client.Del(ctx, hotKeyScoresKey).Err(); err != nil {
		return fmt.Errorf("redis reset hot key scores: %w", err)
	}
	return nil
}

// GetAuthorList returns the cached author list for order.
func (s *RedisAuthorStore) GetAuthorList(ctx context.Context, order domain.AuthorOrder) ([]domain.AuthorView, bool, error) {
	data, err := s.client.Get(ctx, authorListKey(order)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get author list: %w", err)
	}

	var authors []domain.AuthorView
	if err := json.Unmarshal(data, &authors); err != nil {
		return nil, false, fmt.Errorf("unmarshal author list: %w", err)
	}
	return authors, true, nil
}

// SetAuthorList caches the author list for order with the store's list TTL.
func (s *RedisAuthorStore) SetAuthorList(ctx context.Context, order domain.AuthorOrder, authors []domain.AuthorView) error {
	data, err := json.Marshal(authors)
	if err != nil {
		return fmt.Errorf("marshal author list: %w", err)
	}
	if err := s.client.Set(ctx, authorListKey(order), data, s.listTTL).Err(); err != nil {
		return fmt.Errorf("redis set author list: %w", err)
	}
	return nil
}

// InvalidateAuthorLists drops the cached lists for every ordering.
func (s *RedisAuthorStore) InvalidateAuthorLists(ctx context.Context) error {
	keys := []string{authorListKey(domain.OrderByName), authorListKey(domain.OrderByFollowCount)}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate author lists: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisAuthorStore) Close() error {
	return s.client.Close()
}

var _ AuthorStore = (*RedisAuthorStore)(nil)
