package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// InitializeSystemUser ensures the automation actor exists.
// It is suspended and has no password, so it can never log in.
func InitializeSystemUser(ctx context.Context, users ports.UserRepository) error {
	existing, err := users.FindByID(ctx, constants.SystemUserID)
	if err != nil {
		return fmt.Errorf("failed to look up system user: %w", err)
	}
	if existing != nil {
		return nil
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:               constants.SystemUserID,
		Email:            "system@localhost",
		Name:             constants.SystemUserName,
		Role:             constants.RoleStaff,
		Status:           constants.UserStatusSuspended,
		EmailVerified:    true,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create system user: %w", err)
	}
	log.Info().Msg("   ✅ System automation user created")
	return nil
}
