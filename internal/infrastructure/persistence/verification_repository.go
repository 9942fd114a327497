package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// VerificationRepository stores hashed email verification tokens
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Insert stores a new token hash
func (r *VerificationRepository) Insert(ctx context.Context, t *models.VerificationToken) error {
	query := fmt.Sprintf("INSERT INTO %s (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)",
		constants.TableVerificationToken)
	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

// Consume atomically marks the token used. Only the first caller sees the user id.
func (r *VerificationRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	update := fmt.Sprintf("UPDATE %s SET consumed_at = ? WHERE token_hash = ? AND consumed_at IS NULL AND expires_at > ?",
		constants.TableVerificationToken)
	res, err := r.db.ExecContext(ctx, update, now, tokenHash, now)
	if err != nil {
		return "", err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}

	var userID string
	query := fmt.Sprintf("SELECT user_id FROM %s WHERE token_hash = ?", constants.TableVerificationToken)
	if err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&userID); err != nil {
		return "", err
	}
	return userID, nil
}

// InvalidateForUser consumes every outstanding token of a user
func (r *VerificationRepository) InvalidateForUser(ctx context.Context, userID string, now time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET consumed_at = ? WHERE user_id = ? AND consumed_at IS NULL", constants.TableVerificationToken)
	_, err := r.db.ExecContext(ctx, query, now, userID)
	return err
}
