package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMessage(convID, senderID uint64, content string, at time.Time) *db.Message {
	return &db.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		Type:           db.MessageText,
		CreatedAt:      at,
	}
}

func TestParticipantKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ParticipantKey([]uint64{7, 3}), ParticipantKey([]uint64{3, 7}))
	assert.Equal(t, "3:7", ParticipantKey([]uint64{7, 3}))
}

func TestCreateOrGetIsIdempotent(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	first, created, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)
	assert.True(t, created)

	// both orderings resolve to the same conversation
	second, created, err := repo.CreateOrGet(ctx, []uint64{2, 1}, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, database.Model(&db.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateOrGetRejectsTooFewParticipants(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)

	_, _, err := repo.CreateOrGet(context.Background(), []uint64{1}, nil)
	var domain *apperrors.Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, "validation_error", domain.Code)
}

func TestCreateOrGetRollsBackOnCreateHook(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	boom := apperrors.QuotaExceeded("no more chats today")
	_, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, func(tx *gorm.DB) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, database.Model(&db.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestCreateOrGetSkipsHookForExisting(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	_, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)

	called := false
	_, created, err := repo.CreateOrGet(ctx, []uint64{1, 2}, func(tx *gorm.DB) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, called)
}

func TestAppendMessageUpdatesLastMessage(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	conv, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	first := newMessage(conv.ID, 1, "hello", base)
	require.NoError(t, repo.AppendMessage(ctx, first, nil))
	second := newMessage(conv.ID, 2, "hi", base.Add(time.Second))
	require.NoError(t, repo.AppendMessage(ctx, second, nil))

	reloaded, err := repo.GetByID(ctx, conv.ID, true)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastMessageID)
	assert.Equal(t, second.ID, *reloaded.LastMessageID)
	require.Len(t, reloaded.Messages, 2)
	assert.Equal(t, "hello", reloaded.Messages[0].Content)
	assert.Equal(t, "hi", reloaded.Messages[1].Content)
}

func TestAppendMessageLastMessageGuard(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	conv, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	newer := newMessage(conv.ID, 1, "newer", base.Add(2*time.Second))
	require.NoError(t, repo.AppendMessage(ctx, newer, nil))

	// a slower writer commits an older message afterwards
	older := newMessage(conv.ID, 2, "older", base)
	require.NoError(t, repo.AppendMessage(ctx, older, nil))

	reloaded, err := repo.GetByID(ctx, conv.ID, false)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastMessageID)
	assert.Equal(t, newer.ID, *reloaded.LastMessageID)
}

func TestAppendMessageChargeFailureRollsBack(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	conv, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)

	boom := apperrors.QuotaExceeded("limit reached")
	msg := newMessage(conv.ID, 1, "never lands", time.Now().UTC())
	err = repo.AppendMessage(ctx, msg, func(tx *gorm.DB) error { return boom })
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, database.Model(&db.Message{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestMarkReadOnlyFlipsOthersMessages(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	conv, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)

	base := time.Now().UTC()
	require.NoError(t, repo.AppendMessage(ctx, newMessage(conv.ID, 1, "from me", base), nil))
	require.NoError(t, repo.AppendMessage(ctx, newMessage(conv.ID, 2, "from them", base.Add(time.Second)), nil))
	require.NoError(t, repo.AppendMessage(ctx, newMessage(conv.ID, 2, "also them", base.Add(2*time.Second)), nil))

	changed, err := repo.MarkRead(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	// own message stays unread, repeat call changes nothing
	var ownUnread int64
	require.NoError(t, database.Model(&db.Message{}).
		Where("sender_id = ? AND is_read = ?", 1, false).
		Count(&ownUnread).Error)
	assert.EqualValues(t, 1, ownUnread)

	changed, err = repo.MarkRead(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, changed)
}

func TestListForUserOrdersByActivity(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	stale, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)
	fresh, _, err := repo.CreateOrGet(ctx, []uint64{1, 3}, nil)
	require.NoError(t, err)
	_, _, err = repo.CreateOrGet(ctx, []uint64{2, 3}, nil)
	require.NoError(t, err)

	require.NoError(t, repo.AppendMessage(ctx,
		newMessage(fresh.ID, 3, "ping", time.Now().UTC().Add(time.Minute)), nil))

	convs, err := repo.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, fresh.ID, convs[0].ID)
	assert.Equal(t, stale.ID, convs[1].ID)
}

func TestMessagesPagination(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)
	ctx := context.Background()

	conv, _, err := repo.CreateOrGet(ctx, []uint64{1, 2}, nil)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		msg := newMessage(conv.ID, 1, "msg", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.AppendMessage(ctx, msg, nil))
	}

	page, next, err := repo.Messages(ctx, conv.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	page2, next2, err := repo.Messages(ctx, conv.ID, next, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotNil(t, next2)
	assert.True(t, page[1].CreatedAt.After(page2[0].CreatedAt))

	page3, next3, err := repo.Messages(ctx, conv.ID, next2, 2)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
	assert.Nil(t, next3)
}

func TestMessagesRejectsBadToken(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)

	bad := "not-a-token"
	_, _, err := repo.Messages(context.Background(), 1, &bad, 10)
	var domain *apperrors.Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, "validation_error", domain.Code)
}

func TestGetByIDMissing(t *testing.T) {
	database := newTestDB(t)
	repo := NewConversationRepository(database)

	_, err := repo.GetByID(context.Background(), 42, false)
	var domain *apperrors.Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, "not_found", domain.Code)
}
