package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poornimax/crushline/internal/domain"
)

// activeConversationsSQL derives the peer of every message the owner took
// part in, aggregates last activity and unread existence per peer in one
// pass, and hides peers whose watermark is newer than all their messages.
const activeConversationsSQL = `
SELECT m.peer_id AS peer_id,
       MAX(m.sent_at) AS last_message_at,
       MAX(CASE WHEN m.receiver_id = ? AND m.is_read = ?
                 AND (w.deleted_at IS NULL OR m.sent_at > w.deleted_at)
            THEN 1 ELSE 0 END) AS has_unread
FROM (
    SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id,
           receiver_id, sent_at, is_read
    FROM messages
    WHERE sender_id = ? OR receiver_id = ?
) m
LEFT JOIN deletion_watermarks w ON w.owner_id = ? AND w.peer_id = m.peer_id
GROUP BY m.peer_id, w.deleted_at
HAVING w.deleted_at IS NULL OR MAX(m.sent_at) > w.deleted_at
ORDER BY last_message_at DESC, m.peer_id ASC`

var watermarkConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "owner_id"}, {Name: "peer_id"}},
	DoUpdates: clause.AssignmentColumns([]string{"deleted_at"}),
}

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-backed message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.MessageModel) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MarkRead flips every unread peer→owner message and returns how many
// changed.
func (r *GormMessageRepository) MarkRead(ctx context.Context, owner, peer string, readAt int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", peer, owner, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt})
	if res.Error != nil {
		return 0, fmt.Errorf("mark read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Watermark returns owner's deletion watermark for peer, if any.
func (r *GormMessageRepository) Watermark(ctx context.Context, owner, peer string) (int64, bool, error) {
	return watermark(r.db.WithContext(ctx), owner, peer)
}

// UpsertWatermark sets the watermark; the last writer wins.
func (r *GormMessageRepository) UpsertWatermark(ctx context.Context, owner, peer string, deletedAt int64) error {
	w := domain.DeletionWatermarkModel{OwnerID: owner, PeerID: peer, DeletedAt: deletedAt}
	if err := r.db.WithContext(ctx).Clauses(watermarkConflict).Create(&w).Error; err != nil {
		return fmt.Errorf("upsert watermark: %w", err)
	}
	return nil
}

func (r *GormMessageRepository) MessagesBetween(ctx context.Context, owner, peer string, after, upTo int64) ([]domain.MessageModel, error) {
	var msgs []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("pair_key = ? AND sent_at > ? AND sent_at <= ?", domain.PairKey(owner, peer), after, upTo).
		Order("sent_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (r *GormMessageRepository) VisibleMessages(ctx context.Context, owner, peer string) ([]domain.MessageModel, error) {
	var msgs []domain.MessageModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wm, ok, err := watermark(tx, owner, peer)
		if err != nil {
			return err
		}

		q := tx.Where("pair_key = ?", domain.PairKey(owner, peer))
		if ok {
			q = q.Where("sent_at > ?", wm)
		}
		if err := q.Order("sent_at ASC, id ASC").Find(&msgs).Error; err != nil {
			return fmt.Errorf("list conversation: %w", err)
		}
		return nil
	})
	return msgs, err
}

func (r *GormMessageRepository) ActiveConversations(ctx context.Context, owner string) ([]ConversationRow, error) {
	var rows []ConversationRow
	err := r.db.WithContext(ctx).
		Raw(activeConversationsSQL, owner, false, owner, owner, owner, owner).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("active conversations: %w", err)
	}
	return rows, nil
}

func (r *GormMessageRepository) ReceiveSince(ctx context.Context, owner, peer string, cursor, readAt int64) ([]domain.MessageModel, error) {
	var msgs []domain.MessageModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		floor := cursor
		if wm, ok, err := watermark(tx, owner, peer); err != nil {
			return err
		} else if ok && wm > floor {
			floor = wm
		}

		err := tx.Where("sender_id = ? AND receiver_id = ? AND sent_at > ?", peer, owner, floor).
			Order("sent_at ASC, id ASC").
			Find(&msgs).Error
		if err != nil {
			return fmt.Errorf("list incoming: %w", err)
		}

		var unread []string
		for i := range msgs {
			if !msgs[i].IsRead {
				unread = append(unread, msgs[i].ID)
				msgs[i].IsRead = true
				msgs[i].ReadAt = &readAt
			}
		}
		if len(unread) == 0 {
			return nil
		}

		err = tx.Model(&domain.MessageModel{}).
			Where("id IN ? AND is_read = ?", unread, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": readAt}).Error
		if err != nil {
			return fmt.Errorf("mark polled read: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *GormMessageRepository) HasMessageSince(ctx context.Context, owner string, cursor int64) (bool, error) {
	return r.exists(ctx, "messages", "(sender_id = ? OR receiver_id = ?) AND sent_at > ?", owner, owner, cursor)
}

func (r *GormMessageRepository) HasDeletionSince(ctx context.Context, owner string, cursor int64) (bool, error) {
	return r.exists(ctx, "deletion_watermarks", "owner_id = ? AND deleted_at > ?", owner, cursor)
}

func (r *GormMessageRepository) HasReadSince(ctx context.Context, owner string, cursor int64) (bool, error) {
	return r.exists(ctx, "messages", "receiver_id = ? AND is_read = ? AND read_at > ?", owner, true, cursor)
}

func (r *GormMessageRepository) exists(ctx context.Context, table, where string, args ...interface{}) (bool, error) {
	var found bool
	err := r.db.WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM "+table+" WHERE "+where+")", args...).
		Scan(&found).Error
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", table, err)
	}
	return found, nil
}

func watermark(tx *gorm.DB, owner, peer string) (int64, bool, error) {
	var ws []domain.DeletionWatermarkModel
	err := tx.Where("owner_id = ? AND peer_id = ?", owner, peer).Limit(1).Find(&ws).Error
	if err != nil {
		return 0, false, fmt.Errorf("read watermark: %w", err)
	}
	if len(ws) == 0 {
		return 0, false, nil
	}
	return ws[0].DeletedAt, true, nil
}

var _ MessageRepository = (*GormMessageRepository)(nil)
