// Package chat implements conversations: idempotent creation, the message
// append pipeline, read receipts and history paging.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/idater/idater-backend/internal/app"
	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/repository"
	"github.com/idater/idater-backend/internal/service/quota"
	"gorm.io/gorm"
)

const (
	// MessageCoinCost is the advertised coin price per message. Coin charging
	// on the send path is currently disabled; balances are informational.
	MessageCoinCost = 1

	maxContentLength   = 2000
	defaultMessagePage = 50
	maxMessagePage     = 100
)

// Alerter forwards a notification about support traffic to an operator
// channel. Delivery is best effort.
type Alerter interface {
	Notify(ctx context.Context, text string) error
}

// Service exposes the conversation operations.
type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	convs   *repository.ConversationRepository
	ledger  *quota.Ledger
	alerter Alerter
}

// NewService creates a chat service. alerter may be nil when admin alerting
// is not configured.
func NewService(appCtx *app.AppContext, ledger *quota.Ledger, alerter Alerter) *Service {
	return &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		convs:   repository.NewConversationRepository(appCtx.DB),
		ledger:  ledger,
		alerter: alerter,
	}
}

// ConversationView is a conversation shaped for clients: participant profiles
// inline, messages in chronological order, last message surfaced.
type ConversationView struct {
	ID           uint64       `json:"id"`
	Participants []db.User    `json:"participants"`
	Messages     []db.Message `json:"messages"`
	LastMessage  *db.Message  `json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (s *Service) view(ctx context.Context, conv *db.Conversation) (*ConversationView, error) {
	participants, err := s.users.GetByIDs(ctx, conv.ParticipantIDs())
	if err != nil {
		return nil, err
	}
	for i := range participants {
		participants[i] = participants[i].Public()
	}

	v := &ConversationView{
		ID:           conv.ID,
		Participants: participants,
		Messages:     conv.Messages,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
	if v.Messages == nil {
		v.Messages = []db.Message{}
	}
	if conv.LastMessageID != nil {
		for i := len(v.Messages) - 1; i >= 0; i-- {
			if v.Messages[i].ID == *conv.LastMessageID {
				v.LastMessage = &v.Messages[i]
				break
			}
		}
	}
	return v, nil
}

// CreateOrGet returns the conversation between the caller and otherID,
// creating it if absent. Creation counts against the caller's free-tier
// quota inside the creation transaction, so a lost race never charges.
func (s *Service) CreateOrGet(ctx context.Context, userID, otherID uint64) (*ConversationView, error) {
	if userID == otherID {
		return nil, apperrors.Validation("you cannot chat with yourself")
	}

	requester, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}

	var onCreate func(tx *gorm.DB) error
	if !other.IsAdmin() {
		onCreate = func(tx *gorm.DB) error {
			return s.ledger.Consume(ctx, tx, requester)
		}
	}

	conv, _, err := s.convs.CreateOrGet(ctx, []uint64{userID, otherID}, onCreate)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, conv)
}

// CreateWithAdmin opens (or returns) the caller's support conversation with
// an admin user. Support conversations are always free.
func (s *Service) CreateWithAdmin(ctx context.Context, userID uint64) (*ConversationView, error) {
	admin, err := s.users.FindAnyAdmin(ctx)
	if err != nil {
		return nil, err
	}
	return s.CreateOrGet(ctx, userID, admin.ID)
}

// GetByID returns the conversation with its full message log. The caller must
// be a participant.
func (s *Service) GetByID(ctx context.Context, conversationID, userID uint64) (*ConversationView, error) {
	conv, err := s.convs.GetByID(ctx, conversationID, true)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.Forbidden("you are not a participant of this chat")
	}
	return s.view(ctx, conv)
}

// ListForUser returns every conversation the caller participates in, most
// recently active first.
func (s *Service) ListForUser(ctx context.Context, userID uint64) ([]ConversationView, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		v, err := s.view(ctx, &convs[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// AppendMessage validates, persists and fans out one message.
//
// Pipeline: validate content and type, load the conversation, check
// membership, charge the sender's quota (skipped for admins, premium users
// and any conversation that includes an admin), persist, then notify every
// other participant on their private channel. Support traffic additionally
// pings the operator webhook in the background.
func (s *Service) AppendMessage(ctx context.Context, conversationID, senderID uint64, content, msgType string) (*db.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("message content is required")
	}
	if len(content) > maxContentLength {
		return nil, apperrors.Validation("message content is too long")
	}
	switch msgType {
	case "":
		msgType = db.MessageText
	case db.MessageText, db.MessageImage:
	default:
		return nil, apperrors.Validation("unsupported message type")
	}

	conv, err := s.convs.GetByID(ctx, conversationID, false)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperrors.Forbidden("you are not a participant of this chat")
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	participants, err := s.users.GetByIDs(ctx, conv.ParticipantIDs())
	if err != nil {
		return nil, err
	}
	adminPresent := false
	for _, p := range participants {
		if p.IsAdmin() {
			adminPresent = true
			break
		}
	}

	var charge func(tx *gorm.DB) error
	if !sender.Exempt() && !adminPresent {
		charge = func(tx *gorm.DB) error {
			return s.ledger.Consume(ctx, tx, sender)
		}
	}

	msg := &db.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.convs.AppendMessage(ctx, msg, charge); err != nil {
		return nil, err
	}

	for _, p := range participants {
		if p.ID == senderID {
			continue
		}
		s.appCtx.Notifier.EmitToUser(p.ID, "chat:message", map[string]interface{}{
			"conversationId": conversationID,
			"message":        msg,
		})
	}

	if adminPresent && !sender.IsAdmin() && s.alerter != nil {
		go func(text string) {
			if err := s.alerter.Notify(context.Background(), text); err != nil {
				s.appCtx.Logger.Warn("admin alert failed", "error", err)
			}
		}(content)
	}

	return msg, nil
}

// MarkRead flips every unread message not authored by the caller to read.
// Other participants get a chat:read event only when something changed, so a
// repeat call is a silent no-op.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID uint64) error {
	conv, err := s.convs.GetByID(ctx, conversationID, false)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return apperrors.Forbidden("you are not a participant of this chat")
	}

	changed, err := s.convs.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}

	for _, id := range conv.ParticipantIDs() {
		if id == userID {
			continue
		}
		s.appCtx.Notifier.EmitToUser(id, "chat:read", map[string]interface{}{
			"conversationId": conversationID,
			"userId":         userID,
		})
	}
	return nil
}

// Messages returns one page of history, newest first, plus a token for the
// next page. The caller must be a participant.
func (s *Service) Messages(ctx context.Context, conversationID, userID uint64, token *string, limit int) ([]db.Message, *string, error) {
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}

	conv, err := s.convs.GetByID(ctx, conversationID, false)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, nil, apperrors.Forbidden("you are not a participant of this chat")
	}

	return s.convs.Messages(ctx, conversationID, token, limit)
}

// CostInfo describes message pricing for the caller.
type CostInfo struct {
	CoinsPerMessage int   `json:"coinsPerMessage"`
	Coins           int64 `json:"coins"`
	CanSendMessages bool  `json:"canSendMessages"`
}

// MessageCost returns the coin price per message and whether the caller's
// balance (or exemption) covers it.
func (s *Service) MessageCost(ctx context.Context, userID uint64) (*CostInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CostInfo{
		CoinsPerMessage: MessageCoinCost,
		Coins:           user.Coins,
		CanSendMessages: user.Exempt() || user.Coins >= MessageCoinCost,
	}, nil
}
