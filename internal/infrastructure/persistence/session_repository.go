package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// SessionRepository handles database operations for user sessions
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert creates a new session row
func (r *SessionRepository) Insert(ctx context.Context, s *models.Session) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, token_hash, expires_at, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TableSession)
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.IPAddress, s.UserAgent, s.CreatedAt)
	return err
}

// Get retrieves a session by its id (the JWT jti)
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT id, user_id, token_hash, expires_at, ip_address, user_agent, created_at
		FROM %s WHERE id = ? LIMIT 1`, constants.TableSession)

	var s models.Session
	var ip, ua sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &ip, &ua, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	return &s, nil
}

// Delete removes one session
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableSession)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// DeleteForUser removes every session of a user
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", constants.TableSession)
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

// DeleteExpired removes sessions that expired before the cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", constants.TableSession)
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}
