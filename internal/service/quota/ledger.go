// Package quota enforces the free-tier message allowance: calendar-day
// periods keyed by UTC date, cap of 5 accepted messages per period.
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/idater/idater-backend/internal/app"
	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/repository"
	"gorm.io/gorm"
)

// DefaultCap is the number of free messages a non-premium, non-admin user may
// send per period.
const DefaultCap = 5

// PeriodKey buckets a wall-clock instant into its quota period (UTC day).
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Ledger tracks per-user, per-period message counts and enforces the cap.
type Ledger struct {
	appCtx *app.AppContext
	repo   *repository.QuotaRepository
	cap    int
}

// NewLedger creates a Ledger with the default policy.
func NewLedger(appCtx *app.AppContext) *Ledger {
	return &Ledger{
		appCtx: appCtx,
		repo:   repository.NewQuotaRepository(appCtx.DB),
		cap:    DefaultCap,
	}
}

// Consume charges one message against the user's current period. Admins and
// premium users bypass the ledger entirely. On exhaustion the user gets a
// chat:error notification on their private channel and QuotaExceeded is
// returned. When tx is non-nil the charge joins that transaction, so a failed
// enclosing write rolls the increment back.
func (l *Ledger) Consume(ctx context.Context, tx *gorm.DB, user *db.User) error {
	if user.Exempt() {
		return nil
	}

	err := l.repo.TryConsume(ctx, tx, user.ID, PeriodKey(time.Now()), l.cap)
	var domain *apperrors.Error
	if errors.As(err, &domain) && domain.Code == "quota_exceeded" {
		l.appCtx.Notifier.EmitToUser(user.ID, "chat:error", map[string]interface{}{
			"message": domain.Message,
		})
	}
	return err
}

// Used returns the consumed count for the user's current period.
func (l *Ledger) Used(ctx context.Context, userID uint64) (int, error) {
	return l.repo.Count(ctx, userID, PeriodKey(time.Now()))
}

// Cap returns the configured per-period cap.
func (l *Ledger) Cap() int { return l.cap }
