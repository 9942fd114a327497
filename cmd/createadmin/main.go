// Command createadmin creates an administrator, or resets an existing account to admin,
// and prints a temporary password that must be changed on first login.
//
// Usage: go run ./cmd/createadmin -email owner@firm.com -name "Firm Owner"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/bootstrap"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/database"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/persistence"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "administrator email")
	name := flag.String("name", os.Getenv("ADMIN_NAME"), "administrator display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.Server.Env, cfg.Server.LogLevel)

	addr := utils.NormalizeEmail(*email)
	if !auth.IsValidEmail(addr) {
		log.Fatal().Str("email", *email).Msg("A valid -email is required")
	}
	display := strings.TrimSpace(*name)
	if display == "" {
		display = addr
	}

	ctx := context.Background()
	conn, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer conn.Close()

	if err := bootstrap.InitializeSchema(ctx, persistence.NewSchemaRepository(conn.DB())); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize schema")
	}

	temp, err := auth.GenerateTemporaryPassword()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate password")
	}

	users := persistence.NewUserRepository(conn.DB())
	existing, err := users.FindByEmail(ctx, addr)
	if err != nil {
		log.Fatal().Err(err).Msg("Database error")
	}

	now := time.Now().UTC()
	if existing == nil {
		// The operator vouches for the address, so no verification round trip is needed
		user := &models.User{
			ID:                 utils.GenerateID(),
			Email:              addr,
			Name:               display,
			Role:               constants.RoleAdmin,
			Status:             constants.UserStatusActive,
			TemporaryPassword:  temp,
			MustChangePassword: true,
			EmailVerified:      true,
			CreatedDate:        now,
			LastModifiedDate:   now,
		}
		if err := users.Create(ctx, user); err != nil {
			log.Fatal().Err(err).Msg("Failed to create administrator")
		}
		fmt.Printf("✅ Created administrator: %s (ID: %s)\n", addr, user.ID)
	} else {
		err := users.Update(ctx, existing.ID, map[string]interface{}{
			constants.FieldRole:               constants.RoleAdmin,
			constants.FieldStatus:             constants.UserStatusActive,
			constants.FieldTemporaryPassword:  temp,
			constants.FieldMustChangePassword: true,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to update administrator")
		}
		fmt.Printf("✅ Reset existing account to administrator: %s (ID: %s)\n", addr, existing.ID)
	}

	fmt.Println("\nAdministrator credentials:")
	fmt.Printf("  Email: %s\n", addr)
	fmt.Printf("  Temporary password: %s\n", temp)
	fmt.Println("\nA new password is required at first login.")
}
