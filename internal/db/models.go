package db

import (
	"time"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Interaction types. A user id appears in at most one live interaction per
// ordered pair, so the like/dislike/match "sets" are the rows of one table.
const (
	InteractionLike    = "like"
	InteractionDislike = "dislike"
	InteractionMatch   = "match"
)

// Message types.
const (
	MessageText  = "text"
	MessageImage = "image"
)

// User table. Email and phone are both optional but at least one is set at
// registration; uniqueness is sparse (NULLs don't collide).
type User struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        *string `gorm:"uniqueIndex;size:128" json:"email,omitempty"`
	Phone        *string `gorm:"uniqueIndex;size:32" json:"phone,omitempty"`
	PasswordHash string  `gorm:"size:255" json:"-"`

	FirstName    string     `gorm:"size:64" json:"firstName"`
	LastName     string     `gorm:"size:64" json:"lastName"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Gender       string     `gorm:"size:16" json:"gender,omitempty"`
	ProfileImage *string    `gorm:"size:512" json:"profileImage,omitempty"`
	Bio          string     `gorm:"size:512" json:"bio,omitempty"`
	About        string     `gorm:"size:1024" json:"about,omitempty"`
	Interest     string     `gorm:"size:16" json:"interest,omitempty"`

	Role      string `gorm:"size:16;not null;default:user" json:"role"`
	Coins     int64  `gorm:"not null;default:0" json:"coins"`
	IsPremium bool   `gorm:"not null;default:false" json:"isPremium"`

	IsOnline bool      `gorm:"not null;default:false" json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Exempt reports whether the user bypasses monetization gates entirely.
func (u *User) Exempt() bool { return u.IsAdmin() || u.IsPremium }

// Public returns a copy safe to show other users: contact identity stripped.
func (u User) Public() User {
	u.Email = nil
	u.Phone = nil
	return u
}

// Interaction represents a directed edge from_user -> to_user.
//
// Composite PK: (FromUserID, ToUserID)
//   - Ensures a single live row per ordered pair (overwrite guarantee).
//
// A mutual like is promoted to two reciprocal rows of type "match", written in
// one transaction so A.matches ⟺ B.matches always holds.
type Interaction struct {
	FromUserID uint64    `gorm:"primaryKey;index:idx_from_type,priority:1" json:"fromUser"`
	ToUserID   uint64    `gorm:"primaryKey;index:idx_to_type,priority:1" json:"toUser"`
	Type       string    `gorm:"size:16;not null;index:idx_from_type,priority:2;index:idx_to_type,priority:2" json:"type"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Conversation is a persistent thread among a fixed participant set.
// ParticipantKey is the sorted ":"-joined participant ids; its unique index is
// what makes create-or-get idempotent under concurrency.
type Conversation struct {
	ID             uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ParticipantKey string  `gorm:"uniqueIndex;size:255;not null" json:"-"`
	LastMessageID  *string `gorm:"size:36" json:"lastMessageId,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"-"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID" json:"-"`
}

// ParticipantIDs returns the loaded participant ids.
func (c *Conversation) ParticipantIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// HasParticipant reports whether userID belongs to the loaded participant set.
func (c *Conversation) HasParticipant(userID uint64) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ConversationParticipant is the membership join row.
type ConversationParticipant struct {
	ConversationID uint64 `gorm:"primaryKey" json:"conversationId"`
	UserID         uint64 `gorm:"primaryKey;index" json:"userId"`
}

// Message is immutable once created except for the read flag, which only
// transitions false -> true.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID uint64    `gorm:"not null;index:idx_conv_created,priority:1" json:"conversationId"`
	SenderID       uint64    `gorm:"not null" json:"sender"`
	Content        string    `gorm:"size:2048;not null" json:"content"`
	Type           string    `gorm:"size:8;not null;default:text" json:"type"`
	Read           bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_conv_created,priority:2" json:"timestamp"`
}

// MessageQuota tracks accepted free-tier messages per user per period.
//
// Composite PK: (UserID, Period)
//   - One row per user per period; rows for old periods are inert.
//
// Count only ever increments, via a conditional UPDATE so concurrent senders
// cannot lose updates.
type MessageQuota struct {
	UserID    uint64    `gorm:"primaryKey" json:"userId"`
	Period    string    `gorm:"primaryKey;size:10" json:"period"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// ProfileView is an append-only view log entry against the viewed user.
type ProfileView struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;index:idx_user_viewed,priority:1" json:"userId"`
	ViewerID  uint64    `gorm:"not null" json:"viewerId"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_user_viewed,priority:2,sort:desc" json:"timestamp"`
}
