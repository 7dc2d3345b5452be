package service

import (
	"context"
	"errors"

	"github.com/poornimax/crushline/internal/audit"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/events"
	"github.com/poornimax/crushline/internal/pairlock"
	"github.com/poornimax/crushline/internal/repository"
	"github.com/poornimax/crushline/internal/store"
	"github.com/poornimax/crushline/pkg/apperr"
	pkglog "github.com/poornimax/crushline/pkg/log"
)

// relationshipService implements RelationshipService.
type relationshipService struct {
	repo     repository.RelationshipRepository
	users    repository.UserRepository
	locker   pairlock.Locker
	stats    store.StatsStore
	producer events.Producer
	opts     options
}

// NewRelationshipService creates a new RelationshipService instance.
func NewRelationshipService(
	repo repository.RelationshipRepository,
	users repository.UserRepository,
	locker pairlock.Locker,
	stats store.StatsStore,
	producer events.Producer,
	opts ...Option,
) RelationshipService {
	return &relationshipService{
		repo:     repo,
		users:    users,
		locker:   locker,
		stats:    stats,
		producer: producer,
		opts:     buildOptions(opts),
	}
}

// ExpressInterest records from's interest in to. When to already showed
// interest in from, both edges become mutual and the friendship is created
// before this returns. The state is re-read after every commit and the
// whole sequence is re-run until it satisfies the mutuality invariant.
func (s *relationshipService) ExpressInterest(ctx context.Context, from, to string) (domain.RelationshipStatus, error) {
	l := pkglog.Ctx(ctx)

	if err := s.checkTarget(ctx, from, to); err != nil {
		return "", err
	}

	var (
		created, becameMutual bool
		lastErr               error
	)

	for attempt := 0; attempt <= s.opts.maxRetries; attempt++ {
		res, state, err := s.expressOnce(ctx, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return "", apperr.Transient("request cancelled", ctx.Err())
			}
			lastErr = err
			l.Warn().Err(err).Int("attempt", attempt).
				Str(pkglog.FieldPeerID, to).
				Msg("express interest attempt failed")
			continue
		}

		created = created || res.Created
		becameMutual = becameMutual || res.BecameMutual

		if state.Consistent() {
			s.afterChange(ctx, from, to, created || becameMutual)
			if created {
				audit.Log(ctx, audit.ActionCrushSend, from, to, "crush sent")
			}
			if becameMutual {
				s.emit(ctx, events.TypeCrushMutual, from, to)
			}
			return state.Status(), nil
		}

		lastErr = nil
		l.Warn().Int("attempt", attempt).
			Str(pkglog.FieldPeerID, to).
			Str("status", string(state.Status())).
			Msg("pair state inconsistent after commit, retrying")
	}

	if created || becameMutual {
		s.afterChange(ctx, from, to, true)
	}
	if lastErr != nil {
		return "", apperr.Wrap(apperr.CodeTransient, "relationship state did not settle, try again", lastErr)
	}
	return "", ErrInconsistentPair
}

func (s *relationshipService) expressOnce(ctx context.Context, from, to string) (repository.InterestResult, domain.PairState, error) {
	unlock, err := s.locker.Lock(ctx, domain.PairKey(from, to))
	if err != nil {
		return repository.InterestResult{}, domain.PairState{}, err
	}
	defer unlock()

	res, err := s.repo.ExpressInterest(ctx, from, to, s.opts.now())
	if err != nil {
		return res, domain.PairState{}, err
	}

	state, err := s.repo.PairState(ctx, from, to)
	return res, state, err
}

// WithdrawInterest removes from's interest in to, demoting to's interest
// back to pending and ending the friendship.
func (s *relationshipService) WithdrawInterest(ctx context.Context, from, to string) error {
	l := pkglog.Ctx(ctx)

	if err := s.checkTarget(ctx, from, to); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, domain.PairKey(from, to))
	if err != nil {
		if errors.Is(err, pairlock.ErrLockTimeout) || ctx.Err() != nil {
			return apperr.Transient("relationship is busy, try again", err)
		}
		return storeError("failed to lock pair", err)
	}
	res, err := s.repo.WithdrawInterest(ctx, from, to)
	unlock()
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldPeerID, to).Msg("failed to withdraw interest")
		return storeError("failed to withdraw interest", err)
	}

	s.afterChange(ctx, from, to, res.Removed || res.BrokeMutual)
	if res.Removed {
		audit.Log(ctx, audit.ActionCrushWithdraw, from, to, "crush withdrawn")
	}
	if res.BrokeMutual {
		s.emit(ctx, events.TypeCrushWithdrawn, from, to)
	}
	return nil
}

func (s *relationshipService) Status(ctx context.Context, a, b string) (domain.RelationshipStatus, error) {
	if err := s.checkTarget(ctx, a, b); err != nil {
		return "", err
	}

	state, err := s.repo.PairState(ctx, a, b)
	if err != nil {
		return "", storeError("failed to read relationship", err)
	}
	return state.Status(), nil
}

func (s *relationshipService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if err := s.checkTarget(ctx, a, b); err != nil {
		return false, err
	}

	ok, err := s.repo.FriendshipExists(ctx, a, b)
	if err != nil {
		return false, storeError("failed to read friendship", err)
	}
	return ok, nil
}

// Stats checks Redis first; on miss it queries the DB and populates Redis.
// Every read is recorded for hot-key reconciliation.
func (s *relationshipService) Stats(ctx context.Context, userID string) (domain.RelationshipStats, error) {
	l := pkglog.Ctx(ctx)

	if err := s.stats.RecordAccess(ctx, userID); err != nil {
		l.Warn().Err(err).Str(pkglog.FieldUserID, userID).Msg("failed to record hot key access")
	}

	stats, found, err := s.stats.GetStats(ctx, userID)
	if err != nil {
		l.Warn().Err(err).Str(pkglog.FieldUserID, userID).Msg("redis get stats failed, falling back to db")
	}
	if found {
		return stats, nil
	}

	stats, err = s.repo.Stats(ctx, userID)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("failed to count relationships")
		return domain.RelationshipStats{}, storeError("failed to count relationships", err)
	}

	if err := s.stats.SetStats(ctx, userID, stats); err != nil {
		l.Warn().Err(err).Str(pkglog.FieldUserID, userID).Msg("failed to cache stats")
	}
	return stats, nil
}

func (s *relationshipService) HeartsSent(ctx context.Context, userID string) ([]domain.CrushEdge, error) {
	edges, err := s.repo.PendingSent(ctx, userID)
	if err != nil {
		return nil, storeError("failed to list sent hearts", err)
	}
	return edges, nil
}

func (s *relationshipService) HeartsReceived(ctx context.Context, userID string) ([]domain.CrushEdge, error) {
	edges, err := s.repo.PendingReceived(ctx, userID)
	if err != nil {
		return nil, storeError("failed to list received hearts", err)
	}
	return edges, nil
}

func (s *relationshipService) Friends(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.repo.FriendIDs(ctx, userID)
	if err != nil {
		return nil, storeError("failed to list friends", err)
	}
	return ids, nil
}

func (s *relationshipService) checkTarget(ctx context.Context, from, to string) error {
	if from == to {
		return ErrSelfReference
	}
	return requireUser(ctx, s.users, to)
}

// afterChange drops both users' cached counters.
func (s *relationshipService) afterChange(ctx context.Context, from, to string, changed bool) {
	if !changed {
		return
	}
	if err := s.stats.InvalidateStats(ctx, from, to); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str(pkglog.FieldPeerID, to).Msg("failed to invalidate cached stats")
	}
}

func (s *relationshipService) emit(ctx context.Context, eventType, actor, peer string) {
	evt := &events.RelationshipEvent{
		Type:       eventType,
		ActorID:    actor,
		PeerID:     peer,
		PairKey:    domain.PairKey(actor, peer),
		OccurredAt: s.opts.now(),
	}
	if err := s.producer.Produce(ctx, evt); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str("event_type", eventType).Str(pkglog.FieldPeerID, peer).Msg("failed to produce relationship event")
	}
}

func requireUser(ctx context.Context, users repository.UserRepository, userID string) error {
	ok, err := users.Exists(ctx, userID)
	if err != nil {
		return storeError("failed to look up user", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// Ensure interface is satisfied at compile time.
var _ RelationshipService = (*relationshipService)(nil)
