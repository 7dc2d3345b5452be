package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poornimax/crushline/internal/domain"
)

var (
	crushConflict      = clause.OnConflict{Columns: []clause.Column{{Name: "sender_id"}, {Name: "receiver_id"}}, DoNothing: true}
	friendshipConflict = clause.OnConflict{Columns: []clause.Column{{Name: "user_low"}, {Name: "user_high"}}, DoNothing: true}
)

// GormRelationshipRepository implements RelationshipRepository using GORM.
type GormRelationshipRepository struct {
	db *gorm.DB
}

// NewGormRelationshipRepository creates a new GORM-backed relationship repository.
func NewGormRelationshipRepository(db *gorm.DB) *GormRelationshipRepository {
	return &GormRelationshipRepository{db: db}
}

// ExpressInterest inserts the edge from→to if absent, then, whether or
// not the insert happened, looks for the reverse edge. When it exists both
// edges are flipped to mutual and the friendship is created in the same
// transaction, so a failure anywhere rolls the flip back.
func (r *GormRelationshipRepository) ExpressInterest(ctx context.Context, from, to string, now time.Time) (InterestResult, error) {
	var result InterestResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edge := domain.CrushModel{SenderID: from, ReceiverID: to, CreatedAt: now}
		res := tx.Clauses(crushConflict).Create(&edge)
		if res.Error != nil {
			return fmt.Errorf("insert crush: %w", res.Error)
		}
		result.Created = res.RowsAffected > 0

		reverse, err := findEdge(tx, to, from)
		if err != nil {
			return err
		}

		if reverse != nil {
			upd := tx.Model(&domain.CrushModel{}).
				Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND is_mutual = ?",
					from, to, to, from, false).
				Update("is_mutual", true)
			if upd.Error != nil {
				return fmt.Errorf("flip mutual: %w", upd.Error)
			}
			result.BecameMutual = upd.RowsAffected > 0

			low, high := domain.CanonicalPair(from, to)
			friendship := domain.FriendshipModel{UserLow: low, UserHigh: high, CreatedAt: now, ConfirmedAt: now}
			if err := tx.Clauses(friendshipConflict).Create(&friendship).Error; err != nil {
				return fmt.Errorf("create friendship: %w", err)
			}
		}

		result.State, err = pairState(tx, from, to)
		return err
	})
	if err != nil {
		return InterestResult{}, err
	}
	return result, nil
}

// WithdrawInterest deletes from→to, demotes to→from and removes the
// friendship.
func (r *GormRelationshipRepository) WithdrawInterest(ctx context.Context, from, to string) (WithdrawResult, error) {
	var result WithdrawResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("sender_id = ? AND receiver_id = ?", from, to).Delete(&domain.CrushModel{})
		if del.Error != nil {
			return fmt.Errorf("delete crush: %w", del.Error)
		}
		result.Removed = del.RowsAffected > 0

		demote := tx.Model(&domain.CrushModel{}).
			Where("sender_id = ? AND receiver_id = ? AND is_mutual = ?", to, from, true).
			Update("is_mutual", false)
		if demote.Error != nil {
			return fmt.Errorf("demote crush: %w", demote.Error)
		}

		low, high := domain.CanonicalPair(from, to)
		unfriend := tx.Where("user_low = ? AND user_high = ?", low, high).Delete(&domain.FriendshipModel{})
		if unfriend.Error != nil {
			return fmt.Errorf("delete friendship: %w", unfriend.Error)
		}

		result.BrokeMutual = demote.RowsAffected > 0 || unfriend.RowsAffected > 0
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	return result, nil
}

// PairState reads both edges and the friendship, oriented from "from".
func (r *GormRelationshipRepository) PairState(ctx context.Context, from, to string) (domain.PairState, error) {
	return pairState(r.db.WithContext(ctx), from, to)
}

func (r *GormRelationshipRepository) FriendshipExists(ctx context.Context, a, b string) (bool, error) {
	return friendshipExists(r.db.WithContext(ctx), a, b)
}

// Stats counts pending sent, pending received and mutual edges.
func (r *GormRelationshipRepository) Stats(ctx context.Context, userID string) (domain.RelationshipStats, error) {
	var stats domain.RelationshipStats
	db := r.db.WithContext(ctx).Model(&domain.CrushModel{})

	if err := db.Session(&gorm.Session{}).
		Where("sender_id = ? AND is_mutual = ?", userID, false).
		Count(&stats.HeartsSent).Error; err != nil {
		return stats, fmt.Errorf("count sent: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("receiver_id = ? AND is_mutual = ?", userID, false).
		Count(&stats.HeartsReceived).Error; err != nil {
		return stats, fmt.Errorf("count received: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("sender_id = ? AND is_mutual = ?", userID, true).
		Count(&stats.Friends).Error; err != nil {
		return stats, fmt.Errorf("count friends: %w", err)
	}
	return stats, nil
}

func (r *GormRelationshipRepository) PendingSent(ctx context.Context, userID string) ([]domain.CrushEdge, error) {
	return r.pending(ctx, "sender_id = ? AND is_mutual = ?", userID)
}

func (r *GormRelationshipRepository) PendingReceived(ctx context.Context, userID string) ([]domain.CrushEdge, error) {
	return r.pending(ctx, "receiver_id = ? AND is_mutual = ?", userID)
}

func (r *GormRelationshipRepository) pending(ctx context.Context, where, userID string) ([]domain.CrushEdge, error) {
	var models []domain.CrushModel
	err := r.db.WithContext(ctx).
		Where(where, userID, false).
		Order("created_at DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list crushes: %w", err)
	}

	edges := make([]domain.CrushEdge, len(models))
	for i := range models {
		edges[i] = toEdge(&models[i])
	}
	return edges, nil
}

// FriendIDs lists the user's friends, most recently confirmed first.
func (r *GormRelationshipRepository) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	var models []domain.FriendshipModel
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Order("confirmed_at DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	ids := make([]string, len(models))
	for i, m := range models {
		if m.UserLow == userID {
			ids[i] = m.UserHigh
		} else {
			ids[i] = m.UserLow
		}
	}
	return ids, nil
}

func findEdge(tx *gorm.DB, sender, receiver string) (*domain.CrushModel, error) {
	var models []domain.CrushModel
	err := tx.Where("sender_id = ? AND receiver_id = ?", sender, receiver).
		Limit(1).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("find crush: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return &models[0], nil
}

func pairState(tx *gorm.DB, from, to string) (domain.PairState, error) {
	var state domain.PairState

	var models []domain.CrushModel
	err := tx.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", from, to, to, from).
		Find(&models).Error
	if err != nil {
		return state, fmt.Errorf("read pair: %w", err)
	}
	for i := range models {
		edge := toEdge(&models[i])
		if edge.SenderID == from {
			state.Outgoing = &edge
		} else {
			state.Incoming = &edge
		}
	}

	state.Friendship, err = friendshipExists(tx, from, to)
	return state, err
}

func friendshipExists(tx *gorm.DB, a, b string) (bool, error) {
	low, high := domain.CanonicalPair(a, b)
	var count int64
	err := tx.Model(&domain.FriendshipModel{}).
		Where("user_low = ? AND user_high = ?", low, high).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return count > 0, nil
}

func toEdge(m *domain.CrushModel) domain.CrushEdge {
	return domain.CrushEdge{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		IsMutual:   m.IsMutual,
		CreatedAt:  m.CreatedAt,
	}
}

var _ RelationshipRepository = (*GormRelationshipRepository)(nil)
