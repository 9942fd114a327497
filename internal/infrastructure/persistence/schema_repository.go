package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/schema"
)

var validTableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SchemaRepository applies table definitions to the database
type SchemaRepository struct {
	db *sql.DB
}

// NewSchemaRepository creates a new SchemaRepository
func NewSchemaRepository(db *sql.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// CreatePhysicalTable runs CREATE TABLE IF NOT EXISTS for def
func (r *SchemaRepository) CreatePhysicalTable(ctx context.Context, def schema.TableDefinition) error {
	ddl, err := BuildCreateTableDDL(def)
	if err != nil {
		return err
	}

	log.Debug().Str("table", def.TableName).Msg("📐 Creating table")
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", def.TableName, err)
	}
	return nil
}

// BuildCreateTableDDL renders def as a MySQL/TiDB CREATE TABLE statement
func BuildCreateTableDDL(def schema.TableDefinition) (string, error) {
	if !validTableName.MatchString(def.TableName) {
		return "", fmt.Errorf("table name '%s' must be snake_case", def.TableName)
	}
	if len(def.Columns) == 0 {
		return "", fmt.Errorf("table '%s' has no columns", def.TableName)
	}

	parts := make([]string, 0, len(def.Columns)+len(def.Indices)+len(def.ForeignKeys))
	for _, col := range def.Columns {
		if col.Name == "" || col.Type == "" {
			return "", fmt.Errorf("table '%s' has a column without name or type", def.TableName)
		}
		parts = append(parts, buildColumnDDL(col))
	}
	for _, idx := range def.Indices {
		parts = append(parts, buildIndexDDL(def.TableName, idx))
	}
	for _, fk := range def.ForeignKeys {
		parts = append(parts, buildForeignKeyDDL(fk))
	}

	var ddl strings.Builder
	ddl.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (\n  ", def.TableName))
	ddl.WriteString(strings.Join(parts, ",\n  "))
	ddl.WriteString("\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci")
	return ddl.String(), nil
}

func buildColumnDDL(col schema.ColumnDefinition) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("`%s` %s", col.Name, col.Type))
	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.Default != "" {
		sb.WriteString(" DEFAULT " + col.Default)
	}
	if col.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if col.Unique {
		sb.WriteString(" UNIQUE")
	}
	return sb.String()
}

func buildIndexDDL(tableName string, idx schema.IndexDefinition) string {
	indexName := idx.Name
	if indexName == "" {
		indexName = fmt.Sprintf("idx_%s_%s", tableName, strings.Join(idx.Columns, "_"))
	}
	columnList := strings.Join(idx.Columns, "`, `")
	if idx.Unique {
		return fmt.Sprintf("UNIQUE KEY `%s` (`%s`)", indexName, columnList)
	}
	return fmt.Sprintf("KEY `%s` (`%s`)", indexName, columnList)
}

func buildForeignKeyDDL(fk schema.ForeignKeyDefinition) string {
	ddl := fmt.Sprintf("FOREIGN KEY (`%s`) REFERENCES %s", fk.Column, fk.References)
	if fk.OnDelete != "" {
		ddl += " ON DELETE " + fk.OnDelete
	}
	return ddl
}
