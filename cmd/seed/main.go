// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"mobile-chat/server/internal/config"
	"mobile-chat/server/internal/db"
	"mobile-chat/server/internal/security"
	userdomain "mobile-chat/server/internal/user/domain"
	userrepo "mobile-chat/server/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("lookup: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", devUserEmail)
		return
	}

	hashed, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		FirstName:    "Dev",
		LastName:     "User",
		Email:        devUserEmail,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("create: %v", err)
	}
	log.Printf("seed: created %s (password %q)", devUserEmail, devPassword)
}
