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

func TestSessionGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM " + constants.TableSession + " WHERE id = ?")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "ip_address", "user_agent", "created_at"}))

	session, err := repo.Get(context.Background(), "s1")
	assert.NoError(t, err)
	assert.Nil(t, session)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionDeleteForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", constants.TableSession)
	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteForUser(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationConsume(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVerificationRepository(db)
	now := time.Now().UTC()
	update := fmt.Sprintf("UPDATE %s SET consumed_at = ? WHERE token_hash = ? AND consumed_at IS NULL AND expires_at > ?",
		constants.TableVerificationToken)
	selectQuery := fmt.Sprintf("SELECT user_id FROM %s WHERE token_hash = ?", constants.TableVerificationToken)

	// First use wins
	mock.ExpectExec(regexp.QuoteMeta(update)).WithArgs(now, "hash", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).WithArgs("hash").WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))

	userID, err := repo.Consume(context.Background(), "hash", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	// Replays see nothing
	mock.ExpectExec(regexp.QuoteMeta(update)).WithArgs(now, "hash", now).WillReturnResult(sqlmock.NewResult(0, 0))

	userID, err = repo.Consume(context.Background(), "hash", now)
	require.NoError(t, err)
	assert.Empty(t, userID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
