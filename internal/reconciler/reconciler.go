package reconciler

import (
	"context"
	"time"

	"github.com/poornimax/crushline/internal/config"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/store"
	pkglog "github.com/poornimax/crushline/pkg/log"
)

// StatsSource computes authoritative counters from the database.
type StatsSource interface {
	Stats(ctx context.Context, userID string) (domain.RelationshipStats, error)
}

// Reconciler periodically rewrites the cached stats of the most-read users
// from the database, so a missed invalidation cannot stay wrong for long.
type Reconciler struct {
	store  store.StatsStore
	source StatsSource
	cfg    config.ReconcilerConfig
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a new Reconciler.
func New(store store.StatsStore, source StatsSource, cfg config.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		store:  store,
		source: source,
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
		interval = 60 * time.Second
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

// Reconcile runs one pass and returns how many users were refreshed.
func (r *Reconciler) Reconcile(ctx context.Context) int {
	l := pkglog.Ctx(ctx)

	topN := int64(r.cfg.TopN)
	if topN <= 0 {
		topN = 100
	}

	userIDs, err := r.store.GetTopHotKeys(ctx, topN)
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to get top hot keys")
		return 0
	}
	if len(userIDs) == 0 {
		l.Debug().Msg("reconciler: no hot keys to reconcile")
		return 0
	}

	refreshed := 0
	for _, userID := range userIDs {
		stats, err := r.source.Stats(ctx, userID)
		if err != nil {
			l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("reconciler: failed to load stats from db")
			continue
		}
		if err := r.store.SetStats(ctx, userID, stats); err != nil {
			l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("reconciler: failed to write stats to redis")
			continue
		}
		refreshed++
	}

	// Scores restart each cycle so the set follows current traffic.
	if err := r.store.ResetHotKeyScores(ctx); err != nil {
		l.Error().Err(err).Msg("reconciler: failed to reset hot key scores")
	}

	l.Info().Int("count", refreshed).Msg("reconciler: hot-key reconciliation complete")
	return refreshed
}
