package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/utils/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errConcurrentCreate aborts a creation transaction when another request
// created the same conversation first; the caller refetches the winner.
var errConcurrentCreate = errors.New("conversation created concurrently")

// ConversationRepository provides data access for conversations and their
// ordered message logs.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new repository bound to the given DB connection.
func NewConversationRepository(database *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: database}
}

// ParticipantKey canonicalizes a participant set: sorted ids joined with ":".
// The unique index on this key is what makes create-or-get idempotent.
func ParticipantKey(ids []uint64) string {
	sorted := make([]uint64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ":")
}

// GetByID loads a conversation with its participant set, and optionally the
// full message log ordered by timestamp ascending.
func (r *ConversationRepository) GetByID(ctx context.Context, id uint64, withMessages bool) (*db.Conversation, error) {
	query := r.db.WithContext(ctx).Preload("Participants")
	if withMessages {
		query = query.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		})
	}

	var conv db.Conversation
	if err := query.First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("chat not found")
		}
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) findByKey(ctx context.Context, tx *gorm.DB, key string) (*db.Conversation, error) {
	var conv db.Conversation
	err := tx.WithContext(ctx).
		Preload("Participants").
		Preload("Messages", func(q *gorm.DB) *gorm.DB {
			return q.Order("created_at ASC, id ASC")
		}).
		Where("participant_key = ?", key).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateOrGet returns the conversation for the exact participant set, creating
// it if absent. onCreate runs inside the creation transaction only — the quota
// charge for opening a conversation lives there, so a rejected charge rolls
// back the insert and a lost creation race rolls back the charge.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	participantIDs []uint64,
	onCreate func(tx *gorm.DB) error,
) (*db.Conversation, bool, error) {
	if len(participantIDs) < 2 {
		return nil, false, apperrors.Validation("a conversation needs at least two participants")
	}
	key := ParticipantKey(participantIDs)

	if conv, err := r.findByKey(ctx, r.db, key); err != nil || conv != nil {
		return conv, false, err
	}

	var created *db.Conversation
	wasCreated := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// re-check inside the transaction
		existing, err := r.findByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			created = existing
			return nil
		}

		if onCreate != nil {
			if err := onCreate(tx); err != nil {
				return err
			}
		}

		conv := db.Conversation{ParticipantKey: key, UpdatedAt: time.Now().UTC()}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "participant_key"}},
			DoNothing: true,
		}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// another request won the race; roll back our charge
			return errConcurrentCreate
		}

		members := make([]db.ConversationParticipant, 0, len(participantIDs))
		for _, id := range participantIDs {
			members = append(members, db.ConversationParticipant{ConversationID: conv.ID, UserID: id})
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}

		conv.Participants = members
		created = &conv
		wasCreated = true
		return nil
	})
	if errors.Is(err, errConcurrentCreate) {
		conv, ferr := r.findByKey(ctx, r.db, key)
		if ferr != nil {
			return nil, false, ferr
		}
		return conv, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return created, wasCreated, nil
}

// AppendMessage durably appends msg and refreshes the conversation's
// last-message cache. charge runs first inside the same transaction; if
// persistence fails nothing — quota included — takes effect. The guarded
// update keeps lastMessage pointing at the most recently appended message
// even when a slower concurrent writer commits later.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *db.Message, charge func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if charge != nil {
			if err := charge(tx); err != nil {
				return err
			}
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		return tx.Model(&db.Conversation{}).
			Where("id = ? AND updated_at <= ?", msg.ConversationID, msg.CreatedAt).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"updated_at":      msg.CreatedAt,
			}).Error
	})
}

// MarkRead flips the read flag on every unread message in the conversation not
// authored by userID. Returns how many rows changed; zero means the caller
// should skip notification entirely.
func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&db.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// ListForUser returns every conversation containing userID, most recently
// updated first, messages ascending within each.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Conversation, error) {
	sub := r.db.Model(&db.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var convs []db.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Messages", func(q *gorm.DB) *gorm.DB {
			return q.Order("created_at ASC, id ASC")
		}).
		Where("id IN (?)", sub).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

// Messages returns one page of a conversation's history, newest first, with
// an opaque cursor for the next page.
func (r *ConversationRepository) Messages(
	ctx context.Context,
	conversationID uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	token := ""
	if paginationToken != nil {
		token = *paginationToken
	}
	cursor, err := pagination.Decode(token)
	if err != nil {
		return nil, nil, apperrors.Validation(err.Error())
	}

	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor.MessageID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.MessageID,
		)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			MessageID:   last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}
