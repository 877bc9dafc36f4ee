// Package user implements the profile directory: own and public profiles,
// profile updates, view history, presence and coin balances.
package user

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/idater/idater-backend/internal/app"
	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/repository"
)

const profileViewLimit = 10

// ImageStore persists an uploaded profile image and returns its public URL.
// Deployments back this with their blob storage; when nil, profile updates
// accept image URLs only.
type ImageStore interface {
	Store(ctx context.Context, userID uint64, data []byte, contentType string) (string, error)
}

// Service exposes the user directory operations.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	images ImageStore
}

// NewService creates a user service. images may be nil.
func NewService(appCtx *app.AppContext, images ImageStore) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		images: images,
	}
}

// ProfileStatus reports how complete a profile is, with the fields still
// missing so clients can prompt for them.
type ProfileStatus struct {
	Complete      bool     `json:"complete"`
	Percentage    int      `json:"percentage"`
	MissingFields []string `json:"missingFields"`
}

// Me bundles the caller's own profile with its completeness status.
type Me struct {
	User          *db.User       `json:"user"`
	ProfileStatus *ProfileStatus `json:"profileStatus"`
}

func status(u *db.User) *ProfileStatus {
	checks := []struct {
		name string
		ok   bool
	}{
		{"firstName", u.FirstName != ""},
		{"lastName", u.LastName != ""},
		{"dateOfBirth", u.DateOfBirth != nil},
		{"gender", u.Gender != ""},
		{"interest", u.Interest != ""},
		{"profileImage", u.ProfileImage != nil && *u.ProfileImage != ""},
		{"bio", u.Bio != ""},
	}

	st := &ProfileStatus{MissingFields: []string{}}
	done := 0
	for _, c := range checks {
		if c.ok {
			done++
		} else {
			st.MissingFields = append(st.MissingFields, c.name)
		}
	}
	st.Percentage = done * 100 / len(checks)
	st.Complete = done == len(checks)
	return st
}

// GetMe returns the caller's profile with completeness status.
func (s *Service) GetMe(ctx context.Context, userID uint64) (*Me, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Me{User: u, ProfileStatus: status(u)}, nil
}

// GetProfile returns another user's profile and logs the view against them.
// The viewed user gets a profile:viewed event.
func (s *Service) GetProfile(ctx context.Context, viewerID, targetID uint64) (*db.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if viewerID == targetID {
		return target, nil
	}
	if err := s.RecordProfileView(ctx, targetID, viewerID); err != nil {
		s.appCtx.Logger.Warn("profile view log failed", "user_id", targetID, "error", err)
	}
	public := target.Public()
	return &public, nil
}

// ProfileUpdate carries the editable profile fields. Nil means "leave as is".
// Identity fields (email, phone) are not editable through this path.
type ProfileUpdate struct {
	FirstName   *string    `json:"firstName"`
	LastName    *string    `json:"lastName"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      *string    `json:"gender"`
	Interest    *string    `json:"interest"`
	Bio         *string    `json:"bio"`
	About       *string    `json:"about"`

	ProfileImage *string `json:"profileImage"`
	// ImageData is a base64 payload uploaded through the configured ImageStore.
	ImageData        *string `json:"imageData"`
	ImageContentType *string `json:"imageContentType"`
}

// UpdateProfile applies the update and returns the fresh profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, upd ProfileUpdate) (*db.User, error) {
	updates := map[string]interface{}{}
	if upd.FirstName != nil {
		updates["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		updates["last_name"] = *upd.LastName
	}
	if upd.DateOfBirth != nil {
		updates["date_of_birth"] = *upd.DateOfBirth
	}
	if upd.Gender != nil {
		updates["gender"] = *upd.Gender
	}
	if upd.Interest != nil {
		updates["interest"] = *upd.Interest
	}
	if upd.Bio != nil {
		updates["bio"] = *upd.Bio
	}
	if upd.About != nil {
		updates["about"] = *upd.About
	}
	if upd.ProfileImage != nil {
		updates["profile_image"] = *upd.ProfileImage
	}

	if upd.ImageData != nil && *upd.ImageData != "" {
		if s.images == nil {
			return nil, apperrors.Validation("image upload is not enabled, provide profileImage as a URL")
		}
		raw, err := base64.StdEncoding.DecodeString(*upd.ImageData)
		if err != nil {
			return nil, apperrors.Validation("imageData is not valid base64")
		}
		contentType := "image/jpeg"
		if upd.ImageContentType != nil && *upd.ImageContentType != "" {
			contentType = *upd.ImageContentType
		}
		url, err := s.images.Store(ctx, userID, raw, contentType)
		if err != nil {
			return nil, apperrors.External("image upload failed", err)
		}
		updates["profile_image"] = url
	}

	if len(updates) == 0 {
		return nil, apperrors.Validation("no profile fields to update")
	}
	return s.users.UpdateProfile(ctx, userID, updates)
}

// ProfileViewEntry is one row of the caller's view history with the viewer
// profile attached when it still exists.
type ProfileViewEntry struct {
	Viewer    *db.User  `json:"viewer,omitempty"`
	ViewerID  uint64    `json:"viewerId"`
	Timestamp time.Time `json:"timestamp"`
}

// ProfileViews returns who viewed the caller recently, newest first.
func (s *Service) ProfileViews(ctx context.Context, userID uint64) ([]ProfileViewEntry, error) {
	views, err := s.users.RecentProfileViews(ctx, userID, profileViewLimit)
	if err != nil {
		return nil, err
	}

	viewerIDs := make([]uint64, 0, len(views))
	seen := map[uint64]bool{}
	for _, v := range views {
		if !seen[v.ViewerID] {
			seen[v.ViewerID] = true
			viewerIDs = append(viewerIDs, v.ViewerID)
		}
	}
	viewers, err := s.users.GetByIDs(ctx, viewerIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*db.User, len(viewers))
	for i := range viewers {
		public := viewers[i].Public()
		byID[public.ID] = &public
	}

	entries := make([]ProfileViewEntry, 0, len(views))
	for _, v := range views {
		entries = append(entries, ProfileViewEntry{
			Viewer:    byID[v.ViewerID],
			ViewerID:  v.ViewerID,
			Timestamp: v.CreatedAt,
		})
	}
	return entries, nil
}

// RecordProfileView logs a view against viewedID and notifies them.
func (s *Service) RecordProfileView(ctx context.Context, viewedID, viewerID uint64) error {
	if viewedID == viewerID {
		return nil
	}
	if err := s.users.RecordProfileView(ctx, viewedID, viewerID); err != nil {
		return err
	}
	s.appCtx.Notifier.EmitToUser(viewedID, "profile:viewed", map[string]interface{}{
		"viewerId":  viewerID,
		"timestamp": time.Now().UnixMilli(),
	})
	return nil
}

// SetPresence flips the caller's online flag. Going offline stamps lastSeen.
func (s *Service) SetPresence(ctx context.Context, userID uint64, online bool) error {
	return s.users.SetOnline(ctx, userID, online)
}

// AddCoins credits (or with a negative delta, debits) the user's balance.
// The balance can never go below zero.
func (s *Service) AddCoins(ctx context.Context, userID uint64, delta int64) (*db.User, error) {
	if delta == 0 {
		return nil, apperrors.Validation("amount must be non-zero")
	}
	if err := s.users.AdjustCoins(ctx, userID, delta); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Info("coin balance adjusted",
		"user_id", userID,
		"delta", delta,
		"balance", u.Coins,
	)
	return u, nil
}
