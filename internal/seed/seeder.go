// Package seed populates the database with development fixtures.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/models"
	"github.com/openforum/backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db   *gorm.DB
	repo *repository.Repository
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db, repo: repository.New(db)}
}

var topicPool = []string{
	"general", "introductions", "show-and-tell", "help", "off-topic",
	"announcements", "feedback", "random",
}

var tagPool = []string{
	"golang", "webdev", "databases", "music", "gaming", "books",
	"cooking", "travel", "photography", "diy",
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev() error {
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	logger.SugaredLog.Infof("Created %d users", len(users))

	posts, err := s.seedPosts(users, 200)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}
	logger.SugaredLog.Infof("Created %d posts", len(posts))

	if err := s.seedComments(users, posts, 500); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}
	logger.SugaredLog.Info("Created comments")

	if err := s.seedLikes(users, posts, 800); err != nil {
		return fmt.Errorf("failed to seed likes: %w", err)
	}
	logger.SugaredLog.Info("Created likes")

	if err := s.seedConversations(users, 40); err != nil {
		return fmt.Errorf("failed to seed conversations: %w", err)
	}
	logger.SugaredLog.Info("Created conversations")

	return nil
}

// SeedTest seeds the test database with minimal, predictable data
func (s *Seeder) SeedTest() error {
	users, err := s.seedUsers(3)
	if err != nil {
		return err
	}
	posts, err := s.seedPosts(users, 5)
	if err != nil {
		return err
	}
	if err := s.seedComments(users, posts, 10); err != nil {
		return err
	}
	return s.seedConversations(users, 1)
}

// Clean removes all seeded data. Destructive; development only.
func (s *Seeder) Clean() error {
	tables := []string{
		"message_attachments", "messages", "conversation_members",
		"conversations", "post_likes", "comments", "post_files",
		"posts", "users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	// One shared hash keeps seeding fast; every dev account logs in
	// with "password123"
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		user := models.User{
			Email:          fmt.Sprintf("%d.%s", i, gofakeit.Email()),
			Username:       fmt.Sprintf("%s%d", gofakeit.Username(), i),
			PasswordHash:   string(hash),
			DisplayName:    gofakeit.Name(),
			Bio:            gofakeit.Sentence(10),
			ProfilePicture: fmt.Sprintf("https://i.pravatar.cc/150?u=%d", i),
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedPosts(users []models.User, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]
		post := models.Post{
			UserID:  author.ID,
			Topic:   topicPool[rand.Intn(len(topicPool))],
			Content: gofakeit.Sentence(12),
		}
		post.SetTags(pickTags())
		if err := s.db.Create(&post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Seeder) seedComments(users []models.User, posts []models.Post, count int) error {
	ctx := context.Background()
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		post := posts[rand.Intn(len(posts))]
		if _, err := s.repo.SaveComment(ctx, post.ID, user.ID, gofakeit.Sentence(8), nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedLikes(users []models.User, posts []models.Post, count int) error {
	for i := 0; i < count; i++ {
		like := models.PostLike{
			UserID: users[rand.Intn(len(users))].ID,
			PostID: posts[rand.Intn(len(posts))].ID,
		}
		// Duplicate pairs hit the unique index; skip them
		if err := s.db.Create(&like).Error; err != nil {
			continue
		}
	}
	return nil
}

func (s *Seeder) seedConversations(users []models.User, count int) error {
	if len(users) < 2 {
		return nil
	}
	ctx := context.Background()
	for i := 0; i < count; i++ {
		a := users[rand.Intn(len(users))]
		b := users[rand.Intn(len(users))]
		if a.ID == b.ID {
			continue
		}
		conv, err := s.repo.GetOrCreateConversation(ctx, a.ID, b.ID)
		if err != nil {
			return err
		}
		for m := 0; m < 3+rand.Intn(8); m++ {
			sender := a
			if rand.Intn(2) == 0 {
				sender = b
			}
			if _, err := s.repo.SaveChatMessage(ctx, conv.ID, sender.ID, gofakeit.Sentence(6)); err != nil {
				return err
			}
		}
	}
	return nil
}

func pickTags() []string {
	n := rand.Intn(4)
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, tagPool[rand.Intn(len(tagPool))])
	}
	return tags
}
