package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo users and
// interactions.
//
// Behavior:
//  1. Clears existing rows in all core tables.
//  2. Creates one admin plus 20 users (10 men, 10 women) with hashed passwords
//     and complete-enough profiles for candidate discovery.
//  3. Generates likes/dislikes with ~70% likes; every 3rd like becomes a
//     mutual like and is promoted to a match pair.
//
// Compatible with both MySQL and SQLite (sequence reset differs per dialect).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{
		"messages", "conversation_participants", "conversations",
		"message_quotas", "profile_views", "interactions", "users",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE conversations AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('users', 'conversations', 'profile_views')")
	}

	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	adminEmail := "admin@idater.app"
	admin := User{
		Email:        &adminEmail,
		PasswordHash: string(hash),
		FirstName:    "Site",
		LastName:     "Admin",
		Role:         RoleAdmin,
		LastSeen:     time.Now(),
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	interests := []string{"dating", "hookup"}
	var userIDs []uint64
	for i := 1; i <= 20; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		image := fmt.Sprintf("https://cdn.example.com/avatars/%d.jpg", i)
		dob := time.Date(1990+r.Intn(12), time.Month(1+r.Intn(12)), 1+r.Intn(28), 0, 0, 0, 0, time.UTC)

		gender := "man"
		if i > 10 {
			gender = "woman"
		}

		user := User{
			Email:        &email,
			PasswordHash: string(hash),
			FirstName:    fmt.Sprintf("First%d", i),
			LastName:     fmt.Sprintf("Last%d", i),
			DateOfBirth:  &dob,
			Gender:       gender,
			ProfileImage: &image,
			Bio:          "Seeded profile",
			Interest:     interests[r.Intn(len(interests))],
			Coins:        int64(r.Intn(50)),
			IsPremium:    i%7 == 0,
			LastSeen:     time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		userIDs = append(userIDs, user.ID)
	}
	log.Println("Seeded admin and 20 users.")

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
	}

	counter := 0
	for i, fromID := range userIDs {
		for j := 0; j < 8; j++ {
			toID := userIDs[r.Intn(len(userIDs))]
			if fromID == toID {
				continue
			}
			// men decide on women and vice versa
			if (i < 10) == (r.Intn(len(userIDs)) < 10) {
				continue
			}

			kind := InteractionLike
			if r.Intn(100) >= 70 {
				kind = InteractionDislike
			}

			// promote every 3rd like to a mutual match pair
			if kind == InteractionLike && counter%3 == 0 {
				pair := []Interaction{
					{FromUserID: fromID, ToUserID: toID, Type: InteractionMatch},
					{FromUserID: toID, ToUserID: fromID, Type: InteractionMatch},
				}
				if err := db.Clauses(upsert).Create(&pair).Error; err != nil {
					return fmt.Errorf("failed to seed match: %w", err)
				}
			} else {
				interaction := Interaction{FromUserID: fromID, ToUserID: toID, Type: kind}
				if err := db.Clauses(upsert).Create(&interaction).Error; err != nil {
					return fmt.Errorf("failed to seed interaction: %w", err)
				}
			}
			counter++
		}
	}

	return nil
}

// SeedMinimalTestData loads a tiny fixed dataset for tests.
func SeedMinimalTestData(db *gorm.DB) error {
	for _, table := range []string{
		"messages", "conversation_participants", "conversations",
		"message_quotas", "profile_views", "interactions", "users",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	img := "https://cdn.example.com/a.jpg"
	dob := time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC)
	adminEmail := "admin@test.com"
	u1 := "u1@test.com"
	u2 := "u2@test.com"
	u3 := "u3@test.com"

	users := []User{
		{ID: 1, Email: &adminEmail, PasswordHash: "x", FirstName: "Admin", LastName: "User", Role: RoleAdmin},
		{ID: 2, Email: &u1, PasswordHash: "x", FirstName: "Ann", LastName: "One", Gender: "woman", ProfileImage: &img, DateOfBirth: &dob, Interest: "dating"},
		{ID: 3, Email: &u2, PasswordHash: "x", FirstName: "Bob", LastName: "Two", Gender: "man", ProfileImage: &img, DateOfBirth: &dob, Interest: "dating"},
		{ID: 4, Email: &u3, PasswordHash: "x", FirstName: "Cat", LastName: "Three", Gender: "woman", ProfileImage: &img, DateOfBirth: &dob, Interest: "hookup"},
	}
	if err := db.Create(&users).Error; err != nil {
		return err
	}

	interactions := []Interaction{
		{FromUserID: 2, ToUserID: 3, Type: InteractionLike},    // Ann likes Bob
		{FromUserID: 4, ToUserID: 2, Type: InteractionDislike}, // Cat passed on Ann
	}
	return db.Create(&interactions).Error
}
