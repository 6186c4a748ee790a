// Package pgtest is test support for repositories that need a real
// Postgres. Tests are skipped unless TEST_DATABASE_URL is set.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/database"
)

// Open recreates schema and returns a pool whose connections all use it,
// so packages tested in parallel never share tables.
func Open(t *testing.T, schema string) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	admin, err := database.Connect(database.Config{DSN: dsn, MaxConns: 1, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	ddl := fmt.Sprintf(`DROP SCHEMA IF EXISTS %[1]s CASCADE; CREATE SCHEMA %[1]s`, schema)
	_, err = admin.ExecContext(context.Background(), ddl)
	admin.Close()
	if err != nil {
		t.Fatalf("reset schema %s: %v", schema, err)
	}

	db, err := database.Connect(database.Config{DSN: dsn, MaxConns: 4, Timeout: 5 * time.Second, SearchPath: schema})
	if err != nil {
		t.Fatalf("connect %s: %v", schema, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Ensure runs table creators in order and fails the test on the first error.
func Ensure(t *testing.T, steps ...func(context.Context) error) {
	t.Helper()
	for _, step := range steps {
		if err := step(context.Background()); err != nil {
			t.Fatalf("ensure tables: %v", err)
		}
	}
}
