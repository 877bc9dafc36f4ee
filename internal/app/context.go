package app

import (
	"log/slog"

	"github.com/idater/idater-backend/internal/cache"
	"gorm.io/gorm"
)

// Notifier delivers server-initiated events to users' private realtime
// channels. The websocket hub implements it; tests inject recorders.
type Notifier interface {
	// EmitToUser delivers an event to every active connection of a user.
	EmitToUser(userID uint64, event string, payload interface{})
	// Broadcast delivers an event to every connected user.
	Broadcast(event string, payload interface{})
}

// NopNotifier drops every event. Used until the realtime hub is wired in and
// in tests that don't care about delivery.
type NopNotifier struct{}

func (NopNotifier) EmitToUser(uint64, string, interface{}) {}
func (NopNotifier) Broadcast(string, interface{})          {}

// AppContext holds shared dependencies (DB, Redis, Logger, Notifier, etc.)
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Notifier   Notifier
}

// New creates a new AppContext. The notifier defaults to a no-op until the
// realtime hub takes over.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Notifier:   NopNotifier{},
	}
}
