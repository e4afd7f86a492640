package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"iuran/internal/auth"
	"iuran/internal/cache"
	"iuran/internal/config"
	"iuran/internal/db"
	"iuran/internal/model"
	"iuran/internal/repository"
	"iuran/internal/service"
)

// SeedMember is one entry of the members file.
type SeedMember struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func main() {
	membersFile := flag.String("members", "", "optional JSON file with an array of members to create")
	flag.Parse()

	log.Println("Starting seed script...")

	cfg := config.Load()
	if cfg.SuperadminPassword == "" {
		log.Fatal("SUPERADMIN_PASSWORD must be set")
	}

	gormDB, err := db.NewPostgres(cfg.DatabaseURL, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	userRepo := repository.NewUserRepository(gormDB)

	superadmin, err := ensureSuperadmin(ctx, userRepo, cfg)
	if err != nil {
		log.Fatalf("Failed to seed superadmin: %v", err)
	}

	if *membersFile == "" {
		log.Println("Seed completed")
		return
	}

	members, err := readMembers(*membersFile)
	if err != nil {
		log.Fatalf("Failed to read members: %v", err)
	}
	log.Printf("Read %d members from %s", len(members), *membersFile)

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	users := service.NewUserService(userRepo, cacheClient, cfg.CacheTTL)
	session := auth.SessionFor(superadmin)

	created, skipped := 0, 0
	for _, m := range members {
		role := model.Role(m.Role)
		if role == "" {
			role = model.RoleJamaah
		}
		result, err := users.Create(ctx, session, service.CreateUserInput{
			Username: m.Username,
			FullName: m.FullName,
			Password: m.Password,
			Role:     role,
		})
		if err != nil {
			log.Printf("Skipping member %q: %v", m.Username, err)
			skipped++
			continue
		}
		if result.Reactivated {
			log.Printf("Reactivated member %q", m.Username)
		}
		created++
	}

	log.Printf("Seed completed: %d created, %d skipped", created, skipped)
}

// ensureSuperadmin creates the superadmin account through the add-user procedure when absent.
func ensureSuperadmin(ctx context.Context, repo repository.UserRepository, cfg *config.Config) (*model.User, error) {
	existing, err := repo.FindByUsername(ctx, cfg.SuperadminUsername)
	if err == nil {
		if existing.Role != model.RoleSuperadmin || !existing.IsActive {
			return nil, fmt.Errorf("account %q exists but is not an active superadmin (role=%s, active=%t)",
				existing.Username, existing.Role, existing.IsActive)
		}
		log.Printf("Superadmin %q already exists", existing.Username)
		return existing, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("look up superadmin: %w", err)
	}

	if err := repo.AddNewUser(ctx, cfg.SuperadminUsername, cfg.SuperadminFullName, cfg.SuperadminPassword, model.RoleSuperadmin); err != nil {
		return nil, fmt.Errorf("add superadmin: %w", err)
	}
	log.Printf("Created superadmin %q", cfg.SuperadminUsername)
	return repo.FindByUsername(ctx, cfg.SuperadminUsername)
}

func readMembers(path string) ([]SeedMember, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var members []SeedMember
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return members, nil
}
