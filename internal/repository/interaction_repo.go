package repository

import (
	"context"
	"errors"

	apperrors "github.com/idater/idater-backend/internal/errors"

	"github.com/idater/idater-backend/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InteractionRepository provides data access for the Interaction model: the
// like/dislike/match edges between users.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new repository bound to the given DB connection.
func NewInteractionRepository(database *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// upsert writes the edge from -> to, overwriting any previous type for the
// pair. The composite PK gives the overwrite guarantee.
func upsert(tx *gorm.DB, from, to uint64, kind string) error {
	interaction := db.Interaction{
		FromUserID: from,
		ToUserID:   to,
		Type:       kind,
	}
	return tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
		}).
		Create(&interaction).Error
}

// Like records userID liking targetID and reports whether that completed a
// mutual like.
//
// Behavior:
//   - Conflict if the target is already liked or matched.
//   - A prior dislike is overwritten.
//   - When the reciprocal like exists, both edges are promoted to "match"
//     in the same transaction. On MySQL the reciprocity check is a locking
//     read, so of two concurrent mutual likes one blocks (or loses a
//     deadlock retry) until the other commits, then sees its like and
//     promotes the pair; a plain snapshot read would let both commit with
//     no match written.
func (r *InteractionRepository) Like(ctx context.Context, userID, targetID uint64) (bool, error) {
	matched := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.Interaction
		err := tx.Where("from_user_id = ? AND to_user_id = ?", userID, targetID).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Type == db.InteractionLike || existing.Type == db.InteractionMatch {
				return apperrors.Conflict("already liked or matched with this user")
			}
			// prior dislike is replaced below
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := upsert(tx, userID, targetID, db.InteractionLike); err != nil {
			return err
		}

		reciprocalQuery := tx.Model(&db.Interaction{}).
			Where("from_user_id = ? AND to_user_id = ? AND type = ?", targetID, userID, db.InteractionLike)
		if tx.Dialector.Name() == "mysql" {
			// FOR UPDATE gap-locks the reciprocal edge's key range even when
			// the row is absent, serializing the concurrent mutual like.
			// sqlite has no row locks; its single-writer model covers this.
			reciprocalQuery = reciprocalQuery.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var reciprocal int64
		if err := reciprocalQuery.Count(&reciprocal).Error; err != nil {
			return err
		}
		if reciprocal == 0 {
			return nil
		}

		if err := upsert(tx, userID, targetID, db.InteractionMatch); err != nil {
			return err
		}
		if err := upsert(tx, targetID, userID, db.InteractionMatch); err != nil {
			return err
		}
		matched = true
		return nil
	})
	return matched, err
}

// Dislike records userID passing on targetID and returns the edge type the
// dislike replaced, "" when there was none.
//
// Behavior:
//   - Conflict if the target is already disliked.
//   - A prior like is overwritten.
//   - A prior match is unwound symmetrically: the reciprocal edge is deleted
//     and this side becomes a dislike, inside one transaction.
func (r *InteractionRepository) Dislike(ctx context.Context, userID, targetID uint64) (string, error) {
	prior := ""
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.Interaction
		err := tx.Where("from_user_id = ? AND to_user_id = ?", userID, targetID).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Type == db.InteractionDislike {
				return apperrors.Conflict("already disliked this user")
			}
			prior = existing.Type
			if existing.Type == db.InteractionMatch {
				if err := tx.
					Where("from_user_id = ? AND to_user_id = ? AND type = ?", targetID, userID, db.InteractionMatch).
					Delete(&db.Interaction{}).Error; err != nil {
					return err
				}
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		return upsert(tx, userID, targetID, db.InteractionDislike)
	})
	return prior, err
}

// MatchedIDs returns the ids of every user matched with userID.
func (r *InteractionRepository) MatchedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.Interaction{}).
		Where("from_user_id = ? AND type = ?", userID, db.InteractionMatch).
		Order("updated_at DESC").
		Pluck("to_user_id", &ids).Error
	return ids, err
}

// InteractedIDs returns every id userID has a live edge toward, regardless of
// type. Used to exclude already-processed users from candidate discovery.
func (r *InteractionRepository) InteractedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.Interaction{}).
		Where("from_user_id = ?", userID).
		Pluck("to_user_id", &ids).Error
	return ids, err
}

// HasMatch reports whether a and b currently hold each other in their match sets.
func (r *InteractionRepository) HasMatch(ctx context.Context, a, b uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Interaction{}).
		Where("from_user_id = ? AND to_user_id = ? AND type = ?", a, b, db.InteractionMatch).
		Count(&count).Error
	return count > 0, err
}

// CountLikedYou returns how many users currently like userID (matches no
// longer count as likes; the edge type moved on).
func (r *InteractionRepository) CountLikedYou(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Interaction{}).
		Where("to_user_id = ? AND type = ?", userID, db.InteractionLike).
		Count(&count).Error
	return count, err
}
