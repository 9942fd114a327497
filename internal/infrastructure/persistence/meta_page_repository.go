package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const metaPageColumns = "id, page_id, name, instagram_account_id, encrypted_token, connected_by_id, subscribed, created_date"

// MetaPageRepository persists connected Facebook pages
type MetaPageRepository struct {
	db *sql.DB
}

func NewMetaPageRepository(db *sql.DB) *MetaPageRepository {
	return &MetaPageRepository{db: db}
}

// Upsert stores a page, replacing the token when it is reconnected
func (r *MetaPageRepository) Upsert(ctx context.Context, p *models.MetaPage) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), instagram_account_id = VALUES(instagram_account_id),
		encrypted_token = VALUES(encrypted_token), connected_by_id = VALUES(connected_by_id)`, constants.TableMetaPage, metaPageColumns)
	_, err := r.db.ExecContext(ctx, query, p.ID, p.PageID, p.Name, ToNullString(p.InstagramAccountID), p.EncryptedToken,
		p.ConnectedByID, p.Subscribed, p.CreatedDate)
	return err
}

func (r *MetaPageRepository) List(ctx context.Context) ([]*models.MetaPage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY name ASC", metaPageColumns, constants.TableMetaPage)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := make([]*models.MetaPage, 0)
	for rows.Next() {
		p, err := scanMetaPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *MetaPageRepository) FindByID(ctx context.Context, id string) (*models.MetaPage, error) {
	return r.findBy(ctx, "id", id)
}

func (r *MetaPageRepository) FindByPageID(ctx context.Context, pageID string) (*models.MetaPage, error) {
	return r.findBy(ctx, "page_id", pageID)
}

func (r *MetaPageRepository) FindByInstagramID(ctx context.Context, igID string) (*models.MetaPage, error) {
	return r.findBy(ctx, "instagram_account_id", igID)
}

func (r *MetaPageRepository) findBy(ctx context.Context, column, value string) (*models.MetaPage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", metaPageColumns, constants.TableMetaPage, column)
	p, err := scanMetaPage(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *MetaPageRepository) SetSubscribed(ctx context.Context, id string, subscribed bool) error {
	query := fmt.Sprintf("UPDATE %s SET subscribed = ? WHERE id = ?", constants.TableMetaPage)
	_, err := r.db.ExecContext(ctx, query, subscribed, id)
	return err
}

func (r *MetaPageRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableMetaPage)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func scanMetaPage(row rowScanner) (*models.MetaPage, error) {
	var p models.MetaPage
	var ig sql.NullString
	if err := row.Scan(&p.ID, &p.PageID, &p.Name, &ig, &p.EncryptedToken, &p.ConnectedByID, &p.Subscribed, &p.CreatedDate); err != nil {
		return nil, err
	}
	p.InstagramAccountID = FromNullString(ig)
	return &p, nil
}
