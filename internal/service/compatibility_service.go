package service

import (
	"context"
	"sort"

	"github.com/poornimax/crushline/internal/compat"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/repository"
	pkglog "github.com/poornimax/crushline/pkg/log"
)

type compatibilityService struct {
	users repository.UserRepository
}

// NewCompatibilityService creates a new CompatibilityService instance.
func NewCompatibilityService(users repository.UserRepository) CompatibilityService {
	return &compatibilityService{users: users}
}

func (s *compatibilityService) Score(ctx context.Context, a, b string) (int, bool, error) {
	if a == b {
		return 0, false, ErrSelfReference
	}
	if err := requireUser(ctx, s.users, b); err != nil {
		return 0, false, err
	}

	qa, err := s.users.GetQuestionnaire(ctx, a)
	if err != nil {
		return 0, false, storeError("failed to load questionnaire", err)
	}
	qb, err := s.users.GetQuestionnaire(ctx, b)
	if err != nil {
		return 0, false, storeError("failed to load questionnaire", err)
	}

	score, ok := compat.Score(toQuestionnaire(qa), toQuestionnaire(qb))
	return score, ok, nil
}

// RankCandidates scores every other user with a questionnaire against
// userID, best first. A caller without a questionnaire gets no candidates.
func (s *compatibilityService) RankCandidates(ctx context.Context, userID string) ([]domain.Candidate, error) {
	l := pkglog.Ctx(ctx)

	own, err := s.users.GetQuestionnaire(ctx, userID)
	if err != nil {
		return nil, storeError("failed to load questionnaire", err)
	}
	if own == nil {
		return []domain.Candidate{}, nil
	}

	profiles, err := s.users.ListProfiles(ctx, userID)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("failed to list profiles")
		return nil, storeError("failed to list profiles", err)
	}

	me := toQuestionnaire(own)
	candidates := make([]domain.Candidate, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		score, ok := compat.Score(me, toQuestionnaire(&p.Questionnaire))
		if !ok {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			UserID:   p.User.ID,
			Username: p.User.Username,
			Score:    score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].UserID < candidates[j].UserID
	})
	return candidates, nil
}

func toQuestionnaire(m *domain.QuestionnaireModel) *compat.Questionnaire {
	if m == nil {
		return nil
	}
	return &compat.Questionnaire{
		Personality:        m.Personality,
		CommunicationStyle: m.CommunicationStyle,
		Hobbies:            []string(m.Hobbies),
		Year:               m.Year,
		RelationshipStatus: m.RelationshipStatus,
		LookingFor:         m.LookingFor,
	}
}

var _ CompatibilityService = (*compatibilityService)(nil)
