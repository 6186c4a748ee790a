package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config describes the Postgres pool. It is filled by internal/config.
type Config struct {
	DSN            string
	MaxConns       int
	Timeout        time.Duration
	TimeZone       string
	ClientEncoding string
	SearchPath     string
}

// Connect opens a pooled *sqlx.DB and verifies connectivity with a ping.
// MaxConns bounds concurrent connections; callers block on acquisition
// when the pool is saturated instead of failing.
func Connect(cfg Config) (*sqlx.DB, error) {
	db, err := sql.Open("postgres", withSessionParams(cfg))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	max := cfg.MaxConns
	if max <= 0 {
		max = 10
	}
	db.SetMaxOpenConns(max)
	db.SetMaxIdleConns(max)
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return sqlx.NewDb(db, "postgres"), nil
}

// withSessionParams appends time zone, client encoding and search path as connection
// parameters so every pooled connection gets them, not only the first one.
func withSessionParams(cfg Config) string {
	dsn := cfg.DSN
	var opts []string
	if cfg.TimeZone != "" {
		opts = append(opts, "-c TimeZone="+cfg.TimeZone)
	}
	if cfg.ClientEncoding != "" {
		opts = append(opts, "-c client_encoding="+cfg.ClientEncoding)
	}
	if cfg.SearchPath != "" {
		opts = append(opts, "-c search_path="+cfg.SearchPath)
	}
	if len(opts) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "options=" + quoteOption(strings.Join(opts, " "))
}

// quoteOption percent-encodes the characters that are significant in a
// URL query value so the options parameter survives DSN parsing.
func quoteOption(s string) string {
	r := strings.NewReplacer(" ", "%20", "=", "%3D", "&", "%26", "+", "%2B")
	return r.Replace(s)
}
