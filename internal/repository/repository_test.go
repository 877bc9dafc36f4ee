package repository

import (
	"testing"

	"github.com/idater/idater-backend/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(database))
	return database
}

func createUser(t *testing.T, database *gorm.DB, u db.User) db.User {
	t.Helper()
	if u.Role == "" {
		u.Role = db.RoleUser
	}
	require.NoError(t, database.Create(&u).Error)
	return u
}
