package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
)

// SessionRepo stores opaque bearer tokens in admin_sessions. Expiry is
// always computed and compared with the database clock.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// EnsureTable creates admin_sessions if not exists. Requires admin_users.
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS admin_sessions (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
  token TEXT NOT NULL UNIQUE,
  expires_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_expires ON admin_sessions (expires_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create persists token for userID and returns its expiry.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token string, ttl time.Duration) (time.Time, error) {
	query := `INSERT INTO admin_sessions (user_id, token, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3)) RETURNING expires_at`
	var expiresAt time.Time
	if err := r.db.QueryRowxContext(ctx, query, userID, token, ttl.Seconds()).Scan(&expiresAt); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// FindValid returns the owner of an unexpired session or sql.ErrNoRows.
func (r *SessionRepo) FindValid(ctx context.Context, token string) (*entity.Summary, error) {
	query := `SELECT u.id, u.email, u.name, u.role
		FROM admin_sessions s JOIN admin_users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > NOW()`
	var row struct {
		ID    int64  `db:"id"`
		Email string `db:"email"`
		Name  string `db:"name"`
		Role  string `db:"role"`
	}
	if err := r.db.GetContext(ctx, &row, query, token); err != nil {
		return nil, err
	}
	return &entity.Summary{ID: row.ID, Email: row.Email, Name: row.Name, Role: row.Role}, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE token = $1`, token)
	return err
}

// PurgeExpired deletes sessions past their expiry.
func (r *SessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsNotFound reports whether err means no matching row.
func IsNotFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
