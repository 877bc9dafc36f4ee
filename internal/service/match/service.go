// Package match implements discovery and the like/dislike/match lifecycle.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/idater/idater-backend/internal/app"
	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/repository"
)

const candidateLimit = 10

// Service exposes the matching operations backed by the interaction edges.
type Service struct {
	appCtx       *app.AppContext
	users        *repository.UserRepository
	interactions *repository.InteractionRepository
}

// NewService creates a match service on top of the shared app context.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:       appCtx,
		users:        repository.NewUserRepository(appCtx.DB),
		interactions: repository.NewInteractionRepository(appCtx.DB),
	}
}

// MatchPayload is the match:created event body delivered to both users.
type MatchPayload struct {
	MatchID   string `json:"matchId"`
	UserID    uint64 `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// FindCandidates returns up to 10 discoverable users for the caller: complete
// profiles only, never self or admins, never someone already swiped on.
func (s *Service) FindCandidates(ctx context.Context, userID uint64) ([]db.User, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	exclude, err := s.interactions.InteractedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.users.FindCandidates(ctx, userID, exclude, candidateLimit)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i] = candidates[i].Public()
	}
	return candidates, nil
}

// Like records the caller liking target and reports whether that created a
// match. On a match both users get a match:created event; the target's
// liked-you counters are kept in step with the edge change.
func (s *Service) Like(ctx context.Context, userID, targetID uint64) (bool, error) {
	if userID == targetID {
		return false, apperrors.Validation("you cannot like yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return false, err
	}

	matched, err := s.interactions.Like(ctx, userID, targetID)
	if err != nil {
		return false, err
	}

	if !matched {
		// one more pending like against the target
		if _, err := s.appCtx.RedisCache.Incr(ctx, s.appCtx.RedisCache.KeyForLikedYouCount(targetID)); err != nil {
			s.appCtx.Logger.Warn("liked-you cache incr failed", "user_id", targetID, "error", err)
		}
		return false, nil
	}

	// both pending likes just became a match; drop the stale counters
	for _, id := range []uint64{userID, targetID} {
		if err := s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikedYouCount(id)); err != nil {
			s.appCtx.Logger.Warn("liked-you cache invalidation failed", "user_id", id, "error", err)
		}
	}

	payload := MatchPayload{
		MatchID:   fmt.Sprintf("%d-%d", userID, targetID),
		Timestamp: time.Now().UnixMilli(),
	}
	notify := payload
	notify.UserID = targetID
	s.appCtx.Notifier.EmitToUser(userID, "match:created", notify)
	notify.UserID = userID
	s.appCtx.Notifier.EmitToUser(targetID, "match:created", notify)

	return true, nil
}

// Dislike records the caller passing on target. An existing match is unwound
// for both sides; a withdrawn pending like decrements the target's warm
// liked-you counter.
func (s *Service) Dislike(ctx context.Context, userID, targetID uint64) error {
	if userID == targetID {
		return apperrors.Validation("you cannot dislike yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}

	prior, err := s.interactions.Dislike(ctx, userID, targetID)
	if err != nil {
		return err
	}

	if prior == db.InteractionLike {
		// only touch a warm counter; DECR on a missing key would seed it at -1
		if _, ok, err := s.appCtx.RedisCache.GetLikedYouCount(ctx, targetID); err == nil && ok {
			if _, err := s.appCtx.RedisCache.Decr(ctx, s.appCtx.RedisCache.KeyForLikedYouCount(targetID)); err != nil {
				s.appCtx.Logger.Warn("liked-you cache decr failed", "user_id", targetID, "error", err)
			}
		}
	}
	return nil
}

// MutualMatches returns the profiles of every user matched with the caller,
// most recent match first.
func (s *Service) MutualMatches(ctx context.Context, userID uint64) ([]db.User, error) {
	ids, err := s.interactions.MatchedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []db.User{}, nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// preserve recency ordering from the edge table
	byID := make(map[uint64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]db.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u.Public())
		}
	}
	return ordered, nil
}

// LikedYouCount returns how many users currently like the caller, serving
// from the Redis counter when warm and falling back to the edge table.
func (s *Service) LikedYouCount(ctx context.Context, userID uint64) (int64, error) {
	count, ok, err := s.appCtx.RedisCache.GetLikedYouCount(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Warn("liked-you cache read failed", "user_id", userID, "error", err)
	}
	if ok {
		return count, nil
	}

	count, err = s.interactions.CountLikedYou(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.appCtx.RedisCache.SetLikedYouCount(ctx, userID, count); err != nil {
		s.appCtx.Logger.Warn("liked-you cache write failed", "user_id", userID, "error", err)
	}
	return count, nil
}
