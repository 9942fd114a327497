package persistence

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/schema"
)

func TestBuildCreateTableDDL(t *testing.T) {
	def := schema.TableDefinition{
		TableName: "workshop_registrations",
		Columns: []schema.ColumnDefinition{
			{Name: "id", Type: "VARCHAR(36)", PrimaryKey: true},
			{Name: "workshop_id", Type: "VARCHAR(36)"},
			{Name: "note", Type: "TEXT", Nullable: true},
			{Name: "status", Type: "VARCHAR(20)", Default: "'registered'"},
		},
		Indices: []schema.IndexDefinition{
			{Columns: []string{"workshop_id"}},
			{Name: "uq_reg", Columns: []string{"workshop_id", "status"}, Unique: true},
		},
		ForeignKeys: []schema.ForeignKeyDefinition{
			{Column: "workshop_id", References: "workshops(id)", OnDelete: "CASCADE"},
		},
	}

	ddl, err := BuildCreateTableDDL(def)
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS `workshop_registrations`")
	assert.Contains(t, ddl, "`id` VARCHAR(36) NOT NULL PRIMARY KEY")
	assert.Contains(t, ddl, "`note` TEXT,")
	assert.Contains(t, ddl, "`status` VARCHAR(20) NOT NULL DEFAULT 'registered'")
	assert.Contains(t, ddl, "KEY `idx_workshop_registrations_workshop_id` (`workshop_id`)")
	assert.Contains(t, ddl, "UNIQUE KEY `uq_reg` (`workshop_id`, `status`)")
	assert.Contains(t, ddl, "FOREIGN KEY (`workshop_id`) REFERENCES workshops(id) ON DELETE CASCADE")
}

func TestBuildCreateTableDDLRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		def  schema.TableDefinition
	}{
		{"camel case name", schema.TableDefinition{TableName: "BadName", Columns: []schema.ColumnDefinition{{Name: "id", Type: "INT"}}}},
		{"no columns", schema.TableDefinition{TableName: "empty"}},
		{"column without type", schema.TableDefinition{TableName: "t", Columns: []schema.ColumnDefinition{{Name: "id"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCreateTableDDL(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestCreatePhysicalTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	def := schema.TableDefinition{TableName: "pipelines", Columns: []schema.ColumnDefinition{{Name: "id", Type: "VARCHAR(36)", PrimaryKey: true}}}
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `pipelines`")).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewSchemaRepository(db).CreatePhysicalTable(context.Background(), def))
	assert.NoError(t, mock.ExpectationsWereMet())
}
