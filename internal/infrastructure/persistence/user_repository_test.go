package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

var userRowColumns = []string{"id", "email", "name", "role", "status", "password_hash", "temporary_password",
	"must_change_password", "email_verified", "last_login_at", "created_date", "last_modified_date"}

func TestEmailExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = ?)", constants.TableUser, constants.FieldEmail)

	// Test Case 1: User exists
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("test@example.com").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "test@example.com")
	assert.NoError(t, err)
	assert.True(t, exists)

	// Test Case 2: User does not exist
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("nobody@example.com").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err = repo.EmailExists(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	now := time.Now().UTC()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", userColumns, constants.TableUser, constants.FieldEmail)

	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("jane@firm.com").WillReturnRows(
		sqlmock.NewRows(userRowColumns).AddRow("u1", "jane@firm.com", "Jane", "attorney", "active", "hash", nil, true, false, nil, now, now))

	user, err := repo.FindByEmail(context.Background(), "jane@firm.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.Empty(t, user.TemporaryPassword)
	assert.True(t, user.MustChangePassword)
	assert.Nil(t, user.LastLoginAt)

	// Missing rows return nil without error
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("ghost@firm.com").WillReturnRows(sqlmock.NewRows(userRowColumns))
	user, err = repo.FindByEmail(context.Background(), "ghost@firm.com")
	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserOrdersColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	query := fmt.Sprintf("UPDATE %s SET email_verified = ?, must_change_password = ?, last_modified_date = ? WHERE id = ?", constants.TableUser)
	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs(true, false, sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Update(context.Background(), "u1", map[string]interface{}{
		"must_change_password": false,
		"email_verified":       true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, NewUserRepository(db).Update(context.Background(), "u1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
