package repository

import (
	"context"
	"errors"
	"time"

	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"gorm.io/gorm"
)

// UserRepository provides data access for the User model plus the append-only
// profile view log.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// GetByID fetches a single user.
func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var user db.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDs fetches users preserving no particular order.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint64) ([]db.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []db.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// FindAnyAdmin returns an admin user, used when opening support conversations.
func (r *UserRepository) FindAnyAdmin(ctx context.Context) (*db.User, error) {
	var admin db.User
	err := r.db.WithContext(ctx).Where("role = ?", db.RoleAdmin).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("admin user not found")
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// FindCandidates returns up to limit users suitable for the discovery feed:
// not self, not admin, not already interacted with, and with a complete-enough
// profile (gender, photo, birth date, name, interest all present). Rows come
// back in random order, so repeated calls may repeat or omit candidates.
func (r *UserRepository) FindCandidates(ctx context.Context, userID uint64, exclude []uint64, limit int) ([]db.User, error) {
	randFn := "RAND()"
	if r.db.Dialector.Name() == "sqlite" {
		randFn = "RANDOM()"
	}

	query := r.db.WithContext(ctx).
		Where("id <> ?", userID).
		Where("role <> ?", db.RoleAdmin).
		Where("gender <> ''").
		Where("interest <> ''").
		Where("first_name <> ''").
		Where("last_name <> ''").
		Where("profile_image IS NOT NULL").
		Where("date_of_birth IS NOT NULL").
		Order(randFn).
		Limit(limit)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}

	var users []db.User
	err := query.Find(&users).Error
	return users, err
}

// SetOnline flips the presence flag. lastSeen is stamped only when going
// offline, matching what clients display as "last seen".
func (r *UserRepository) SetOnline(ctx context.Context, userID uint64, online bool) error {
	updates := map[string]interface{}{"is_online": online}
	if !online {
		updates["last_seen"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Model(&db.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// AdjustCoins applies delta to the balance with a conditional update so the
// balance can never go negative and concurrent spends cannot lose updates.
func (r *UserRepository) AdjustCoins(ctx context.Context, userID uint64, delta int64) error {
	res := r.db.WithContext(ctx).Model(&db.User{}).
		Where("id = ? AND coins + ? >= 0", userID, delta).
		Update("coins", gorm.Expr("coins + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.InsufficientCoins("insufficient coins")
	}
	return nil
}

// UpdateProfile applies the given column updates. Identity fields (email,
// phone) are stripped by the service layer before this is called.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID uint64, updates map[string]interface{}) (*db.User, error) {
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&db.User{}).
			Where("id = ?", userID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, apperrors.NotFound("user not found")
		}
	}
	return r.GetByID(ctx, userID)
}

// RecordProfileView appends to the view log of the viewed user.
func (r *UserRepository) RecordProfileView(ctx context.Context, viewedID, viewerID uint64) error {
	view := db.ProfileView{UserID: viewedID, ViewerID: viewerID}
	return r.db.WithContext(ctx).Create(&view).Error
}

// RecentProfileViews returns the latest views against userID, newest first.
func (r *UserRepository) RecentProfileViews(ctx context.Context, userID uint64, limit int) ([]db.ProfileView, error) {
	var views []db.ProfileView
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&views).Error
	return views, err
}
