package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
)

const tlsConfigName = "crm"

// Connection wraps the shared connection pool.
// sql.DB is already safe for concurrent use; do not add locking around it.
type Connection struct {
	db *sql.DB
}

var tlsOnce sync.Once

// Open connects to MySQL/TiDB. Remote hosts use TLS.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Connection, error) {
	tlsName := ""
	if !cfg.IsLocal() {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig(tlsConfigName, &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Host,
			}); err != nil {
				log.Error().Err(err).Msg("Failed to register TLS config")
			}
		})
		tlsName = tlsConfigName
	}

	db, err := sql.Open("mysql", cfg.DSN(tlsName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns must equal MaxOpenConns or connections churn under load
	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(100)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Bool("tls", tlsName != "").Msg("✅ Database connected")
	return &Connection{db: db}, nil
}

// DB returns the underlying pool
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Ping checks the connection, used by the health endpoint
func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.db.Close()
}
