package database

import (
	"fmt"
	"os"
	"time"

	"github.com/openforum/backend/internal/metrics"
	"github.com/openforum/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection
func Initialize(databaseURL string) error {
	// Configure GORM logger
	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	registerQueryMetrics(db)

	DB = db
	return nil
}

// registerQueryMetrics counts queries per operation through GORM's
// callback chain
func registerQueryMetrics(db *gorm.DB) {
	count := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			status := "ok"
			if tx.Error != nil {
				status = "error"
			}
			metrics.Get().DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
		}
	}
	_ = db.Callback().Create().After("gorm:create").Register("metrics:create", count("create"))
	_ = db.Callback().Query().After("gorm:query").Register("metrics:query", count("query"))
	_ = db.Callback().Update().After("gorm:update").Register("metrics:update", count("update"))
	_ = db.Callback().Delete().After("gorm:delete").Register("metrics:delete", count("delete"))
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Enable UUID generation for PostgreSQL
	if err := DB.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error; err != nil {
		// Non-fatal on managed databases where the extension is preinstalled
		fmt.Fprintf(os.Stderr, "warning: could not create pgcrypto extension: %v\n", err)
	}

	err := DB.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.PostFile{},
		&models.PostLike{},
		&models.Comment{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageAttachment{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return createIndexes()
}

// createIndexes creates performance indexes
func createIndexes() error {
	// Case-insensitive login lookups
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))")

	// Feed queries
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts (user_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_at DESC)")

	// Comment thread retrieval
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments (post_id, created_at)")

	// Conversation history
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_conversation_members_user ON conversation_members (user_id)")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}
