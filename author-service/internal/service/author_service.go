package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/weiawesome/wes-auction/author-service/internal/audit"
	"github.com/weiawesome/wes-auction/author-service/internal/consumer"
	"github.com/weiawesome/wes-auction/author-service/internal/domain"
	"github.com/weiawesome/wes-auction/author-service/internal/repository"
	"github.com/weiawesome/wes-auction/author-service/internal/store"
	pkglog "github.com/weiawesome/wes-auction/pkg/log"
	"github.com/weiawesome/wes-auction/pkg/metrics"
	"github.com/weiawesome/wes-auction/pkg/pubsub"
	"github.com/weiawesome/wes-auction/pkg/storage"
)

const (
	maxToggleAttempts = 3
	defaultURLExpiry  = 15 * time.Minute
)

// Deps are the collaborators of the author service.
// Publisher, Storage and Metrics are optional.
type Deps struct {
	Users     repository.UserRepository
	Follows   repository.FollowRepository
	Authors   repository.AuthorRepository
	Store     store.AuthorStore
	Publisher pubsub.Publisher
	Storage   storage.URLResolver
	Metrics   *metrics.Metrics
	URLExpiry time.Duration
}

// authorService implements AuthorService.
type authorService struct {
	users     repository.UserRepository
	follows   repository.FollowRepository
	authors   repository.AuthorRepository
	store     store.AuthorStore
	publisher pubsub.Publisher
	storage   storage.URLResolver
	metrics   *metrics.Metrics
	urlExpiry time.Duration
}

// NewAuthorService creates a new AuthorService instance.
func NewAuthorService(deps Deps) AuthorService {
	s := &authorService{
		users:     deps.Users,
		follows:   deps.Follows,
		authors:   deps.Authors,
		store:     deps.Store,
		publisher: deps.Publisher,
		storage:   deps.Storage,
		metrics:   deps.Metrics,
		urlExpiry: deps.URLExpiry,
	}
	if s.publisher == nil {
		s.publisher = pubsub.Nop()
	}
	if s.urlExpiry <= 0 {
		s.urlExpiry = defaultURLExpiry
	}
	return s
}

// ToggleFollow follows authorID on behalf of followerID, or unfollows if already following.
func (s *authorService) ToggleFollow(ctx context.Context, followerID, authorID uint) (*domain.FollowResult, error) {
	ctx = pkglog.WithAuthor(ctx, authorID)
	l := pkglog.Ctx(ctx)

	if _, err := s.users.GetByID(ctx, followerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error().Err(err).Uint(pkglog.FieldUserID, followerID).Msg("failed to load follower")
		return nil, err
	}

	author, err := s.lookupAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	var followed bool
	for attempt := 1; ; attempt++ {
		followed, err = s.follows.Toggle(ctx, followerID, author.ID)
		if errors.Is(err, repository.ErrConcurrentToggle) && attempt < maxToggleAttempts {
			l.Warn().Int("attempt", attempt).Uint(pkglog.FieldUserID, followerID).Msg("concurrent follow toggle, retrying")
			continue
		}
		break
	}
	if err != nil {
		l.Error().Err(err).Uint(pkglog.FieldUserID, followerID).Msg("failed to toggle follow")
		return nil, err
	}

	s.afterToggle(ctx, followerID, author.ID, followed)
	return domain.NewFollowResult(followed), nil
}

// afterToggle refreshes caches and emits side effects. Failures are logged only.
func (s *authorService) afterToggle(ctx context.Context, followerID, authorID uint, followed bool) {
	l := pkglog.Ctx(ctx)

	if err := s.store.InvalidateFollowersCount(ctx, authorID); err != nil {
		l.Warn().Err(err).Msg("failed to invalidate followers count")
	}
	if err := s.store.InvalidateAuthorLists(ctx); err != nil {
		l.Warn().Err(err).Msg("failed to invalidate author lists")
	}

	eventType, action, msg := EventAuthorUnfollowed, audit.ActionUnfollow, "author unfollowed"
	if followed {
		eventType, action, msg = EventAuthorFollowed, audit.ActionFollow, "author followed"
	}

	event, err := pubsub.NewEvent(eventType, strconv.FormatUint(uint64(authorID), 10), FollowEvent{
		UserID:   followerID,
		AuthorID: authorID,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, FollowEventsChannel, event)
	}
	if err != nil {
		l.Warn().Err(err).Str("event", eventType).Msg("failed to publish follow event")
	}

	s.metrics.FollowToggled(followed)
	audit.Log(ctx, action, followerID, msg)
}

// lookupAuthor loads authorID and checks the author flag.
func (s *authorService) lookupAuthor(ctx context.Context, authorID uint) (*domain.User, error) {
	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAuthorNotFound
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to load author")
		return nil, err
	}
	if !author.IsAuthor {
		return nil, ErrNotAuthor
	}
	return author, nil
}

// ListAuthors returns all authors ordered by name, or by follower count when sortByFollowCount is set.
func (s *authorService) ListAuthors(ctx context.Context, sortByFollowCount bool) ([]domain.AuthorView, error) {
	l := pkglog.Ctx(ctx)

	order := domain.OrderByName
	if sortByFollowCount {
		order = domain.OrderByFollowCount
	}

	cached, found, err := s.store.GetAuthorList(ctx, order)
	if err != nil {
		l.Warn().Err(err).Str("order", order.String()).Msg("redis get author list failed, falling back to db")
	}
	s.metrics.CacheLookup("author_list", found)
	if found {
		return cached, nil
	}

	rows, err := s.authors.ListAuthors(ctx, order)
	if err != nil {
		l.Error().Err(err).Str("order", order.String()).Msg("failed to list authors")
		return nil, err
	}

	views := make([]domain.AuthorView, 0, len(rows))
	for _, row := range rows {
		views = append(views, domain.AuthorView{
			ID:              row.ID,
			Name:            row.Name,
			Introduction:    row.Introduction,
			ProfileImageURL: s.resolveURL(ctx, row.ProfileImageKey),
			FollowerCount:   row.FollowerCount,
		})
	}

	if err := s.store.SetAuthorList(ctx, order, views); err != nil {
		l.Warn().Err(err).Str("order", order.String()).Msg("failed to cache author list")
	}
	return views, nil
}

// GetAuthorDetail returns an author with follower count and most recent pictures.
func (s *authorService) GetAuthorDetail(ctx context.Context, authorID uint) (*domain.AuthorDetail, error) {
	ctx = pkglog.WithAuthor(ctx, authorID)
	l := pkglog.Ctx(ctx)

	author, err := s.lookupAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	count, err := s.followersCount(ctx, author.ID)
	if err != nil {
		return nil, err
	}

	pictures, err := s.authors.RecentPictures(ctx, author.ID, RecentPictureLimit)
	if err != nil {
		l.Error().Err(err).Msg("failed to load recent pictures")
		return nil, err
	}

	views := make([]domain.PictureView, 0, len(pictures))
	for _, p := range pictures {
		views = append(views, domain.PictureView{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			ImageURL:    s.resolveURL(ctx, p.ImageKey),
			CreatedAt:   p.CreatedAt,
		})
	}

	return &domain.AuthorDetail{
		AuthorView: domain.AuthorView{
			ID:              author.ID,
			Name:            author.Name,
			Introduction:    author.Introduction,
			ProfileImageURL: s.resolveURL(ctx, author.ProfileImageKey),
			FollowerCount:   count,
		},
		RecentPictures: views,
	}, nil
}

// IsFollowing reports whether userID currently follows authorID.
func (s *authorService) IsFollowing(ctx context.Context, userID, authorID uint) (bool, error) {
	ctx = pkglog.WithAuthor(ctx, authorID)
	l := pkglog.Ctx(ctx)

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, ErrUserNotFound
		}
		l.Error().Err(err).Uint(pkglog.FieldUserID, userID).Msg("failed to load follower")
		return false, err
	}
	if _, err := s.lookupAuthor(ctx, authorID); err != nil {
		return false, err
	}

	following, err := s.follows.Exists(ctx, userID, authorID)
	if err != nil {
		l.Error().Err(err).Uint(pkglog.FieldUserID, userID).Msg("failed to check follow")
		return false, err
	}
	return following, nil
}

// followersCount checks Redis first; on miss it counts in the DB and populates Redis.
// Every call records a hot key access.
func (s *authorService) followersCount(ctx context.Context, authorID uint) (int64, error) {
	l := pkglog.Ctx(ctx)

	if err := s.store.RecordAccess(ctx, authorID); err != nil {
		l.Warn().Err(err).Msg("failed to record hot key access")
	}

	count, found, err := s.store.GetFollowersCount(ctx, authorID)
	if err != nil {
		l.Warn().Err(err).Msg("redis get followers count failed, falling back to db")
	}
	s.metrics.CacheLookup("followers_count", found)
	if found {
		return count, nil
	}

	count, err = s.follows.CountFollowers(ctx, authorID)
	if err != nil {
		l.Error().Err(err).Msg("failed to count followers")
		return 0, err
	}

	if err := s.store.SetFollowersCount(ctx, authorID, count); err != nil {
		l.Warn().Err(err).Msg("failed to set followers count in redis")
	}
	return count, nil
}

func (s *authorService) resolveURL(ctx context.Context, key string) string {
	if key == "" || s.storage == nil {
		return ""
	}
	url, err := s.storage.GetURL(ctx, key, s.urlExpiry)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("failed to resolve image url")
		return ""
	}
	return url
}

// HandleCDCEvent drops the cached counts of every author a follows-table change touches,
// plus the cached lists. Counts are only ever rebuilt from the database, so a change that
// arrives after the cache was refilled is never applied twice.
func (s *authorService) HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error {
	l := pkglog.Ctx(ctx)
	p := event.Payload

	var authorIDs []uint
	switch p.Op {
	case consumer.OpSnapshot:
		return nil

	case consumer.OpCreate:
		if p.After == nil {
			l.Warn().Msg("CDC create event missing 'after' field")
			return nil
		}
		authorIDs = append(authorIDs, p.After.AuthorID)

	case consumer.OpUpdate:
		if p.Before != nil {
			authorIDs = append(authorIDs, p.Before.AuthorID)
		}
		if p.After != nil && (p.Before == nil || p.After.AuthorID != p.Before.AuthorID) {
			authorIDs = append(authorIDs, p.After.AuthorID)
		}

	case consumer.OpDelete:
		// Needs REPLICA IDENTITY FULL so 'before' carries author_id.
		if p.Before == nil {
			l.Warn().Msg("CDC delete event missing 'before' field")
			return nil
		}
		authorIDs = append(authorIDs, p.Before.AuthorID)

	default:
		l.Warn().Str("op", p.Op).Msg("unknown CDC operation, skipping")
		return nil
	}

	for _, authorID := range authorIDs {
		if err := s.store.InvalidateFollowersCount(ctx, authorID); err != nil {
			l.Error().Err(err).Uint(pkglog.FieldAuthorID, authorID).Msg("failed to invalidate followers count")
			return err
		}
	}

	if err := s.store.InvalidateAuthorLists(ctx); err != nil {
		l.Warn().Err(err).Msg("failed to invalidate author lists")
	}
	return nil
}

var _ AuthorService = (*authorService)(nil)
