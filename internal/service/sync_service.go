package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/repository"
	pkglog "github.com/poornimax/crushline/pkg/log"
)

type syncService struct {
	repo  repository.MessageRepository
	users repository.UserRepository
	opts  options
}

// NewSyncService creates a new SyncService instance.
func NewSyncService(repo repository.MessageRepository, users repository.UserRepository, opts ...Option) SyncService {
	return &syncService{repo: repo, users: users, opts: buildOptions(opts)}
}

// ChangesSince runs the three existence checks concurrently.
func (s *syncService) ChangesSince(ctx context.Context, owner string, cursor time.Time) (domain.Changes, error) {
	var (
		changes domain.Changes
		since   = domain.UnixNano(cursor)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.repo.HasMessageSince(gctx, owner, since)
		changes.NewMessageExists = ok
		return err
	})
	g.Go(func() error {
		ok, err := s.repo.HasDeletionSince(gctx, owner, since)
		changes.DeletionExists = ok
		return err
	})
	g.Go(func() error {
		ok, err := s.repo.HasReadSince(gctx, owner, since)
		changes.ReadStateChanged = ok
		return err
	})

	if err := g.Wait(); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str(pkglog.FieldUserID, owner).Msg("failed to check for changes")
		return domain.Changes{}, storeError("failed to check for changes", err)
	}
	return changes, nil
}

// MessagesSince returns peer's messages to owner newer than both the
// cursor and owner's watermark, marking exactly those read.
func (s *syncService) MessagesSince(ctx context.Context, owner, peer string, cursor time.Time) ([]domain.Message, error) {
	if owner == peer {
		return nil, ErrSelfReference
	}
	if err := requireUser(ctx, s.users, peer); err != nil {
		return nil, err
	}

	models, err := s.repo.ReceiveSince(ctx, owner, peer, domain.UnixNano(cursor), domain.UnixNano(s.opts.now()))
	if err != nil {
		return nil, storeError("failed to poll messages", err)
	}
	return toMessages(models), nil
}

var _ SyncService = (*syncService)(nil)
