package repository

import (
	"context"
	"errors"
	"time"

	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuotaRepository provides data access for the per-user, per-period message
// quota ledger. Methods accept an optional transaction handle so quota
// consumption can share a transaction with the write it gates.
type QuotaRepository struct {
	db *gorm.DB
}

// NewQuotaRepository creates a new repository bound to the given DB connection.
func NewQuotaRepository(database *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: database}
}

func (r *QuotaRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// TryConsume lazily creates the (user, period) row and increments its count,
// but only while count < cap. The conditional UPDATE is the whole point:
// concurrent senders race on the database, not on a stale read-modify-write.
// Returns QuotaExceeded once the cap is reached.
func (r *QuotaRepository) TryConsume(ctx context.Context, tx *gorm.DB, userID uint64, period string, cap int) error {
	h := r.handle(tx).WithContext(ctx)

	row := db.MessageQuota{UserID: userID, Period: period, Count: 0}
	if err := h.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return err
	}

	res := h.Model(&db.MessageQuota{}).
		Where("user_id = ? AND period = ? AND count < ?", userID, period, cap).
		Updates(map[string]interface{}{
			"count":      gorm.Expr("count + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.QuotaExceeded("message limit reached for this period, add coins to your account to send more messages")
	}
	return nil
}

// Count returns the consumed count for (user, period); missing rows count as 0.
func (r *QuotaRepository) Count(ctx context.Context, userID uint64, period string) (int, error) {
	var row db.MessageQuota
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND period = ?", userID, period).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}
