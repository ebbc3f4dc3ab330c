// Command seed fills the Blogosphere database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"blogosphere/internal/config"
	"blogosphere/internal/database"
	"blogosphere/internal/middleware"
	"blogosphere/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 100, "Number of posts to create")
	drafts := flag.Float64("drafts", 0.2, "Share of posts left as drafts")
	randomSeed := flag.Int64("seed", 1, "Random seed for generated content")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d posts, clean=%v\n", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	s := seed.NewSeeder(db, seed.Options{
		NumUsers:   *numUsers,
		NumPosts:   *numPosts,
		DraftRatio: *drafts,
		BcryptCost: cfg.BcryptCost,
		RandomSeed: *randomSeed,
		Logger:     middleware.Logger,
	})

	ctx := context.Background()
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	summary, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! Created %d users, %d posts and %d likes.\n", summary.Users, summary.Posts, summary.Likes)
	log.Printf("📧 All test users have the password: %s (admin: %s)\n", seed.DefaultPassword, seed.AdminEmail)
}
