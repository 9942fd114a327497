// Command wipe drops every CRM table so the next server start recreates an empty schema.
// It refuses to run against production.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/bootstrap"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/database"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
)

func main() {
	confirm := flag.Bool("yes", false, "confirm dropping every table")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.Server.Env, cfg.Server.LogLevel)

	if cfg.Server.IsProduction() {
		log.Fatal().Msg("Refusing to wipe a production database")
	}
	if !*confirm {
		log.Fatal().Str("database", cfg.Database.Name).Msg("Pass -yes to drop every table")
	}

	defs, err := bootstrap.TableDefinitions()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load table definitions")
	}

	ctx := context.Background()
	conn, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer conn.Close()
	db := conn.DB()

	log.Info().Str("database", cfg.Database.Name).Msg("🧹 Wiping database")

	// Disable foreign key checks for dropping
	if _, err := db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		log.Fatal().Err(err).Msg("Failed to disable FK checks")
	}

	// Reverse creation order so dependents go first
	for i := len(defs) - 1; i >= 0; i-- {
		table := defs[i].TableName
		log.Info().Str("table", table).Msg("🔥 Dropping table")
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)); err != nil {
			log.Warn().Err(err).Str("table", table).Msg("⚠️ Failed to drop table")
		}
	}

	if _, err := db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
		log.Fatal().Err(err).Msg("Failed to enable FK checks")
	}

	log.Info().Msg("✅ Database wipe complete")
}
