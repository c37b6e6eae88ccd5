package config

import (
	"fmt"

	"github.com/snap-point/social-api/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB opens the postgres connection and migrates the schema.
func InitDB(cfg *Config) (*gorm.DB, error) {
	level := gormlogger.Info
	if cfg.IsProduction() {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates tables, join tables and the constraints gorm tags can't
// express.
func Migrate(db *gorm.DB) error {
	joins := []struct {
		field string
		model interface{}
	}{
		{"Followers", &models.Follow{}},
		{"Followings", &models.Follow{}},
		{"BlockedUsers", &models.Block{}},
		{"BlockedByUsers", &models.Block{}},
	}
	for _, j := range joins {
		if err := db.SetupJoinTable(&models.User{}, j.field, j.model); err != nil {
			return fmt.Errorf("setup join table %s: %w", j.field, err)
		}
	}

	if err := db.AutoMigrate(&models.User{}, &models.Follow{}, &models.Block{}, &models.Post{}, &models.Comment{}, &models.Notification{}, &models.RefreshToken{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	statements := []string{
		// at most one follow notification per ordered pair
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_follow_notification ON notifications (sender_id, receiver_id) WHERE kind = 'follow'`,
		`DO $$ BEGIN
			ALTER TABLE follows ADD CONSTRAINT chk_follows_not_self CHECK (follower_id <> following_id);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
		`DO $$ BEGIN
			ALTER TABLE blocks ADD CONSTRAINT chk_blocks_not_self CHECK (blocker_id <> blocked_id);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate constraints: %w", err)
		}
	}
	return nil
}
