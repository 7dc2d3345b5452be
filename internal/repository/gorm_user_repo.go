package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/poornimax/crushline/internal/domain"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-backed user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Where("id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return count > 0, nil
}

// GetQuestionnaire returns nil without error when the user has not
// answered the questionnaire.
func (r *GormUserRepository) GetQuestionnaire(ctx context.Context, userID string) (*domain.QuestionnaireModel, error) {
	var q domain.QuestionnaireModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&q).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get questionnaire: %w", err)
	}
	return &q, nil
}

// ListProfiles returns every user except excludeUserID that has a
// questionnaire.
func (r *GormUserRepository) ListProfiles(ctx context.Context, excludeUserID string) ([]Profile, error) {
	var qs []domain.QuestionnaireModel
	err := r.db.WithContext(ctx).
		Where("user_id <> ?", excludeUserID).
		Order("user_id").
		Find(&qs).Error
	if err != nil {
		return nil, fmt.Errorf("list questionnaires: %w", err)
	}
	if len(qs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.UserID
	}

	var users []domain.UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	byID := make(map[string]domain.UserModel, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	profiles := make([]Profile, 0, len(qs))
	for _, q := range qs {
		u, ok := byID[q.UserID]
		if !ok {
			continue
		}
		profiles = append(profiles, Profile{User: u, Questionnaire: q})
	}
	return profiles, nil
}

var _ UserRepository = (*GormUserRepository)(nil)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
