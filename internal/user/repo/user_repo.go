package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/database"
)

var (
	ErrEmailTaken  = errors.New("email already registered")
	ErrAdminExists = errors.New("an admin already exists")
)

// bootstrapLockKey serializes first-admin creation across processes.
const bootstrapLockKey = 0x67696674 // "gift"

// UserRepo provides data access for the admin_users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates admin_users if not exists (idempotent). Columns added
// after the first deployments are applied with ADD COLUMN IF NOT EXISTS.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS admin_users (
  id BIGSERIAL PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  salt TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'collaborator',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE admin_users ADD COLUMN IF NOT EXISTS last_login TIMESTAMPTZ;
CREATE UNIQUE INDEX IF NOT EXISTS admin_users_email_key ON admin_users (lower(email));
CREATE INDEX IF NOT EXISTS idx_admin_users_role ON admin_users (role);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userColumns = `id, email, name, password_hash, salt, role, created_at, last_login`

// Create inserts a new user and fills ID and CreatedAt.
func (r *UserRepo) Create(ctx context.Context, u *entity.AdminUser) error {
	return insertUser(ctx, r.db, u)
}

// CreateFirstAdmin inserts u only when no admin exists yet. The check and
// the insert run under a transaction-scoped advisory lock.
func (r *UserRepo) CreateFirstAdmin(ctx context.Context, u *entity.AdminUser) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return fmt.Errorf("bootstrap lock: %w", err)
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM admin_users WHERE role = 'admin')`); err != nil {
			return err
		}
		if exists {
			return ErrAdminExists
		}
		return insertUser(ctx, tx, u)
	})
}

func insertUser(ctx context.Context, q sqlx.QueryerContext, u *entity.AdminUser) error {
	const ins = `INSERT INTO admin_users (email, name, password_hash, salt, role)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	row := q.QueryRowxContext(ctx, ins, strings.ToLower(u.Email), u.Name, u.PasswordHash, u.Salt, u.Role)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		if database.IsUniqueViolation(err, "admin_users_email_key") {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// GetByEmail returns the user matched case-insensitively or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.AdminUser, error) {
	var u entity.AdminUser
	q := `SELECT ` + userColumns + ` FROM admin_users WHERE lower(email) = lower($1)`
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.AdminUser, error) {
	var u entity.AdminUser
	q := `SELECT ` + userColumns + ` FROM admin_users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every user, most recently created first.
func (r *UserRepo) List(ctx context.Context) ([]entity.AdminUser, error) {
	users := []entity.AdminUser{}
	q := `SELECT ` + userColumns + ` FROM admin_users ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &users, q); err != nil {
		return nil, err
	}
	return users, nil
}

// Update applies the non-nil fields of p. Returns sql.ErrNoRows when the
// user does not exist.
func (r *UserRepo) Update(ctx context.Context, id int64, p entity.Patch) (*entity.AdminUser, error) {
	sets := []string{}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Role != nil {
		add("role", *p.Role)
	}
	if p.PasswordHash != nil {
		add("password_hash", *p.PasswordHash)
		salt := ""
		if p.Salt != nil {
			salt = *p.Salt
		}
		add("salt", salt)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	q := `UPDATE admin_users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns
	var u entity.AdminUser
	if err := r.db.GetContext(ctx, &u, q, args...); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes a user with its sessions and one-time codes in a single
// transaction. Reports whether the user row existed.
func (r *UserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM admin_sessions WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM admin_otp WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("delete otp: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM admin_users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// TouchLastLogin stamps last_login with the database clock.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE admin_users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
