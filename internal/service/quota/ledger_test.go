package quota

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/idater/idater-backend/internal/app"
	"github.com/idater/idater-backend/internal/cache"
	"github.com/idater/idater-backend/internal/db"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recordedEvent struct {
	UserID  uint64
	Event   string
	Payload interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) EmitToUser(userID uint64, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{UserID: userID, Event: event, Payload: payload})
}

func (r *recorder) Broadcast(event string, payload interface{}) {
	r.EmitToUser(0, event, payload)
}

func (r *recorder) named(event string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestApp(t *testing.T) (*app.AppContext, *recorder) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(database))

	mr := miniredis.RunT(t)
	rc := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	appCtx := app.New(database, rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recorder{}
	appCtx.Notifier = rec
	return appCtx, rec
}

func TestPeriodKeyIsUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 2am on June 2nd at UTC+5 is still June 1st in UTC
	at := time.Date(2025, 6, 2, 2, 0, 0, 0, loc)
	assert.Equal(t, "2025-06-01", PeriodKey(at))
	assert.Equal(t, "2025-06-02", PeriodKey(at.Add(3*time.Hour)))
}

func TestConsumeEnforcesDailyCap(t *testing.T) {
	appCtx, rec := newTestApp(t)
	ledger := NewLedger(appCtx)
	ctx := context.Background()

	user := &db.User{ID: 1, Role: db.RoleUser}
	for i := 0; i < DefaultCap; i++ {
		require.NoError(t, ledger.Consume(ctx, nil, user))
	}

	err := ledger.Consume(ctx, nil, user)
	var domain *apperrors.Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, "quota_exceeded", domain.Code)

	// the rejected sender was told on their private channel
	errs := rec.named("chat:error")
	require.Len(t, errs, 1)
	assert.EqualValues(t, 1, errs[0].UserID)

	used, err := ledger.Used(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultCap, used)
}

func TestConsumeBypassesAdminsAndPremium(t *testing.T) {
	appCtx, rec := newTestApp(t)
	ledger := NewLedger(appCtx)
	ctx := context.Background()

	admin := &db.User{ID: 1, Role: db.RoleAdmin}
	premium := &db.User{ID: 2, Role: db.RoleUser, IsPremium: true}
	for i := 0; i < DefaultCap*2; i++ {
		require.NoError(t, ledger.Consume(ctx, nil, admin))
		require.NoError(t, ledger.Consume(ctx, nil, premium))
	}

	// nothing written, nothing rejected
	for _, id := range []uint64{1, 2} {
		used, err := ledger.Used(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, used)
	}
	assert.Empty(t, rec.named("chat:error"))
}
