package reconciler

import (
	"context"
	"time"

	"github.com/weiawesome/wes-auction/author-service/internal/config"
	"github.com/weiawesome/wes-auction/author-service/internal/repository"
	"github.com/weiawesome/wes-auction/author-service/internal/store"
	pkglog "github.com/weiawesome/wes-auction/pkg/log"
)

const (
	defaultInterval = 60 * time.Second
	defaultTopN     = 100
)

// Reconciler periodically rewrites the cached follower counts of the most
// read authors from the database.
type Reconciler struct {
	store  store.AuthorStore
	repo   repository.FollowRepository
	cfg    config.ReconcilerConfig
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a new Reconciler.
func New(store store.AuthorStore, repo repository.FollowRepository, cfg config.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		store:  store,
		repo:   repo,
		cfg:    cfg,
		quit:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the reconciler in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile runs one pass and returns the number of authors refreshed.
func (r *Reconciler) Reconcile(ctx context.Context) int {
	l := pkglog.L()

	topN := int64(r.cfg.TopN)
	if topN <= 0 {
		topN = defaultTopN
	}

	authorIDs, err := r.store.GetTopHotKeys(ctx, topN)
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to get top hot keys")
		return 0
	}
	if len(authorIDs) == 0 {
		l.Debug().Msg("reconciler: no hot keys to reconcile")
		return 0
	}

	refreshed := 0
	for _, authorID := range authorIDs {
		count, err := r.repo.CountFollowers(ctx, authorID)
		if err != nil {
			l.Error().Err(err).Uint(pkglog.FieldAuthorID, authorID).Msg("reconciler: failed to count followers")
			continue
		}
		if err := r.store.SetFollowersCount(ctx, authorID, count); err != nil {
			l.Error().Err(err).Uint(pkglog.FieldAuthorID, authorID).Msg("reconciler: failed to set followers count")
			continue
		}
		refreshed++
	}

	// Scores restart each cycle so the set tracks recent demand.
	if err := r.store.ResetHotKeyScores(ctx); err != nil {
		l.Error().Err(err).Msg("reconciler: failed to reset hot key scores")
	}

	l.Info().Int("count", refreshed).Msg("reconciler: hot-key reconciliation complete")
	return refreshed
}
