package bootstrap

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/schema"
)

//go:embed tables.json
var tablesJSON []byte

// TableCreator creates one physical table
type TableCreator interface {
	CreatePhysicalTable(ctx context.Context, def schema.TableDefinition) error
}

// TableDefinitions returns the embedded table definitions in creation order
func TableDefinitions() ([]schema.TableDefinition, error) {
	var defs []schema.TableDefinition
	if err := json.Unmarshal(tablesJSON, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse tables.json: %w", err)
	}
	return defs, nil
}

// InitializeSchema creates every table that does not exist yet
func InitializeSchema(ctx context.Context, creator TableCreator) error {
	log.Info().Msg("🔧 Initializing schema...")

	defs, err := TableDefinitions()
	if err != nil {
		return err
	}

	for _, def := range defs {
		if err := creator.CreatePhysicalTable(ctx, def); err != nil {
			log.Error().Err(err).Str("table", def.TableName).Msg("⚠️  Table creation failed")
			return err
		}
	}

	log.Info().Int("tables", len(defs)).Msg("✅ Schema ready")
	return nil
}
