// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger fields
const (
	PACKAGE     = "pkg"
	EVENT       = "event"
	USER_ID     = "user_id"
	CONTACT_ID  = "contact_id"
	OPP_ID      = "opportunity_id"
	JOB_ID      = "job_id"
	INVOICE_ID  = "invoice_id"
	CHANNEL     = "channel"
	REQUEST_ID  = "request_id"
	PROVIDER    = "provider"
	STATUS_CODE = "status"
)

// Setup configures the global logger. Development gets a console writer, everything else JSON lines.
func Setup(env, level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if env == "" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// For returns a logger tagged with pkg=name
func For(name string) zerolog.Logger {
	return log.With().Str(PACKAGE, name).Logger()
}
