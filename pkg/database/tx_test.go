package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "gift_lists_public_url_key"}
	knexDup := &pq.Error{Code: "23505", Constraint: "gift_lists_public_url_unique"}
	cases := []struct {
		name        string
		err         error
		constraints []string
		want        bool
	}{
		{"nil", nil, nil, false},
		{"plain error", errors.New("boom"), nil, false},
		{"any constraint", dup, nil, true},
		{"matching constraint", dup, []string{"gift_lists_public_url_key"}, true},
		{"other constraint", dup, []string{"admin_users_email_key"}, false},
		{"one of several", knexDup, []string{"gift_lists_public_url_key", "gift_lists_public_url_unique"}, true},
		{"knex name not listed", knexDup, []string{"gift_lists_public_url_key"}, false},
		{"wrapped", fmt.Errorf("insert: %w", dup), []string{"gift_lists_public_url_key"}, true},
		{"fk violation", &pq.Error{Code: "23503"}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraints...); got != tc.want {
				t.Fatalf("IsUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWithSessionParams(t *testing.T) {
	cfg := Config{DSN: "postgres://u:p@localhost:5432/db?sslmode=disable", TimeZone: "UTC"}
	got := withSessionParams(cfg)
	want := "postgres://u:p@localhost:5432/db?sslmode=disable&options=-c%20TimeZone%3DUTC"
	if got != want {
		t.Fatalf("withSessionParams() = %q, want %q", got, want)
	}
	scoped := withSessionParams(Config{DSN: "postgres://x", SearchPath: "repo_test"})
	if scoped != "postgres://x?options=-c%20search_path%3Drepo_test" {
		t.Fatalf("search path = %q", scoped)
	}
	if plain := withSessionParams(Config{DSN: "postgres://x"}); plain != "postgres://x" {
		t.Fatalf("unexpected rewrite: %q", plain)
	}
}
