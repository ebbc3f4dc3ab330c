// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"blogosphere/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	opts  Options
	faker *gofakeit.Faker
	rng   *rand.Rand
	now   time.Time
	seq   int
}

// NewFactory creates a Factory. The same Options.RandomSeed always yields the
// same content.
func NewFactory(opts Options) *Factory {
	opts = opts.withDefaults()
	return &Factory{
		opts:  opts,
		faker: gofakeit.New(opts.RandomSeed),
		rng:   rand.New(rand.NewSource(opts.RandomSeed)),
		now:   time.Now().UTC(),
	}
}

// BuildUser returns an unsaved user with a unique username and email.
func (f *Factory) BuildUser(passwordHash string, overrides ...func(*models.User)) *models.User {
	f.seq++
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, f.seq))
	username = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, username)

	user := &models.User{
		Email:        username + "@example.com",
		PasswordHash: passwordHash,
		FirstName:    first,
		LastName:     last,
		Username:     username,
		Role:         models.RoleUser,
		IsActive:     true,
		Profile: models.Profile{
			Bio:      f.faker.Sentence(12),
			Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
			Location: f.faker.City(),
		},
		Settings: models.Settings{
			EmailNotifications: true,
			PublicProfile:      f.rng.Intn(10) > 0,
		},
		CreatedAt: f.pastTime(),
	}
	if f.rng.Intn(3) == 0 {
		user.Profile.Website = f.faker.URL()
	}

	for _, override := range overrides {
		override(user)
	}
	return user
}

// BuildPost returns an unsaved post by author. A DraftRatio share of posts
// stay drafts; the rest are published at their creation time.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	content := f.faker.Paragraph(4, 5, 14, "\n\n")
	created := f.pastTime()

	post := &models.Post{
		Title:       strings.TrimSuffix(f.faker.Sentence(6), "."),
		Content:     content,
		Excerpt:     f.faker.Sentence(16),
		Tags:        f.tags(),
		Category:    models.Categories[f.rng.Intn(len(models.Categories))],
		Status:      models.PostStatusDraft,
		AuthorID:    author.ID,
		AuthorName:  author.DisplayName(),
		AuthorEmail: author.Email,
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/450", f.faker.UUID()),
		RecentViews: datatypes.NewJSONType(models.ViewLog{}),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if f.rng.Float64() >= f.opts.DraftRatio {
		post.Status = models.PostStatusPublished
		post.Published = true
		post.PublishedAt = &created
		post.Views = f.rng.Intn(500)
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

func (f *Factory) tags() datatypes.JSONSlice[string] {
	n := 1 + f.rng.Intn(3)
	seen := make(map[string]bool, n)
	tags := make(datatypes.JSONSlice[string], 0, n)
	for len(tags) < n {
		tag := strings.ToLower(f.faker.Word())
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// pastTime spreads timestamps over the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.rng.Int63n(int64(time.Duration(f.opts.MaxDays) * 24 * time.Hour)))
	return f.now.Add(-back).Truncate(time.Second)
}

// CreateUsersBatch persists users in a single insert.
func (f *Factory) CreateUsersBatch(tx *gorm.DB, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	return tx.Create(&users).Error
}

// CreatePostsBatch persists posts in batches.
func (f *Factory) CreatePostsBatch(tx *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return tx.CreateInBatches(&posts, 100).Error
}
