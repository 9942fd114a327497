package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const userColumns = "id, email, name, role, status, password_hash, temporary_password, must_change_password, email_verified, last_login_at, created_date, last_modified_date"

// UserRepository persists staff accounts
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, email, name, role, status, password_hash, temporary_password, must_change_password, email_verified, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableUser)

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Role, u.Status,
		nullIfEmpty(u.PasswordHash), nullIfEmpty(u.TemporaryPassword),
		u.MustChangePassword, u.EmailVerified, u.CreatedDate, u.LastModifiedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID loads a user by id
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", userColumns, constants.TableUser, constants.FieldID)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByEmail loads a user by (already normalised) email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", userColumns, constants.TableUser, constants.FieldEmail)
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// EmailExists reports whether an account already uses email
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ?)", constants.TableUser, constants.FieldEmail)
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns all users, newest first
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC", userColumns, constants.TableUser, constants.FieldCreatedDate)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update sets the given columns and bumps last_modified_date
func (r *UserRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setClauses := make([]string, 0, len(keys)+1)
	args := make([]interface{}, 0, len(keys)+2)
	for _, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", k))
		args = append(args, updates[k])
	}
	setClauses = append(setClauses, fmt.Sprintf("%s = ?", constants.FieldLastModifiedDate))
	args = append(args, time.Now().UTC(), id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", constants.TableUser, strings.Join(setClauses, ", "), constants.FieldID)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var passwordHash, tempPassword sql.NullString
	var lastLogin sql.NullTime
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Status,
		&passwordHash, &tempPassword, &u.MustChangePassword, &u.EmailVerified,
		&lastLogin, &u.CreatedDate, &u.LastModifiedDate,
	); err != nil {
		return nil, err
	}
	u.PasswordHash = passwordHash.String
	u.TemporaryPassword = tempPassword.String
	u.LastLoginAt = FromNullTime(lastLogin)
	return &u, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
