package seed

import (
	"context"
	"fmt"
	"log/slog"

	"blogosphere/internal/auth"
	"blogosphere/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account shares.
const DefaultPassword = "password123"

// AdminEmail is the address of the seeded administrator.
const AdminEmail = "admin@example.com"

// Options controls how much demo data is generated.
type Options struct {
	NumUsers int
	NumPosts int
	// DraftRatio is the share of posts left unpublished, between 0 and 1.
	DraftRatio float64
	// MaxLikesPerPost caps the likes given to a single published post.
	MaxLikesPerPost int
	// MaxDays bounds how far back creation timestamps go.
	MaxDays    int
	BcryptCost int
	RandomSeed int64
	Logger     *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.DraftRatio < 0 || o.DraftRatio > 1 {
		o.DraftRatio = 0.2
	}
	if o.MaxLikesPerPost <= 0 {
		o.MaxLikesPerPost = 10
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 90
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Summary reports what a Run created.
type Summary struct {
	Users int
	Posts int
	Likes int
}

// Seeder fills the database with demo users, posts and likes.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	opts = opts.withDefaults()
	return &Seeder{db: db, opts: opts, factory: NewFactory(opts)}
}

// ClearAll removes every like, post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{&models.Like{}, &models.Post{}, &models.User{}} {
			if err := all.Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// Run creates one admin plus NumUsers users, NumPosts posts spread across
// them, and random likes on the published posts. Everything is written in one
// transaction.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	hash, err := auth.HashPassword(DefaultPassword, s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	var summary Summary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, err := s.seedUsers(tx, hash)
		if err != nil {
			return err
		}
		summary.Users = len(users)

		posts, err := s.seedPosts(tx, users)
		if err != nil {
			return err
		}
		summary.Posts = len(posts)

		likes, err := s.seedLikes(tx, users, posts)
		if err != nil {
			return err
		}
		summary.Likes = likes
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("likes", summary.Likes))
	return &summary, nil
}

func (s *Seeder) seedUsers(tx *gorm.DB, hash string) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.NumUsers+1)
	users = append(users, s.factory.BuildUser(hash, func(u *models.User) {
		u.Email = AdminEmail
		u.Username = "admin"
		u.FirstName = "Site"
		u.LastName = "Admin"
		u.Role = models.RoleAdmin
	}))
	for i := 0; i < s.opts.NumUsers; i++ {
		users = append(users, s.factory.BuildUser(hash))
	}

	if err := s.factory.CreateUsersBatch(tx, users); err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	return users, nil
}

func (s *Seeder) seedPosts(tx *gorm.DB, users []*models.User) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, s.opts.NumPosts)
	for i := 0; i < s.opts.NumPosts; i++ {
		author := users[s.factory.rng.Intn(len(users))]
		posts = append(posts, s.factory.BuildPost(author))
	}

	if err := s.factory.CreatePostsBatch(tx, posts); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	return posts, nil
}

// seedLikes gives each published post up to MaxLikesPerPost likes from
// distinct users and stores the matching counter on the post.
func (s *Seeder) seedLikes(tx *gorm.DB, users []*models.User, posts []*models.Post) (int, error) {
	total := 0
	for _, post := range posts {
		if !post.IsPublished() {
			continue
		}

		n := s.factory.rng.Intn(min(s.opts.MaxLikesPerPost, len(users)) + 1)
		if n == 0 {
			continue
		}
		likes := make([]models.Like, 0, n)
		for _, idx := range s.factory.rng.Perm(len(users))[:n] {
			likes = append(likes, models.Like{UserID: users[idx].ID, PostID: post.ID})
		}

		if err := tx.Create(&likes).Error; err != nil {
			return 0, fmt.Errorf("create likes for post %d: %w", post.ID, err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("likes", n).Error; err != nil {
			return 0, fmt.Errorf("update likes for post %d: %w", post.ID, err)
		}
		post.Likes = n
		total += n
	}
	return total, nil
}
