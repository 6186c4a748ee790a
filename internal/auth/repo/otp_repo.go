package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/database"
)

type OtpRepo struct {
	db *sqlx.DB
}

func NewOtpRepo(db *sqlx.DB) *OtpRepo {
	return &OtpRepo{db: db}
}

// EnsureTable creates admin_otp if not exists. Requires admin_users.
func (r *OtpRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS admin_otp (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
  code TEXT NOT NULL,
  token TEXT NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  used BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_otp_user ON admin_otp (user_id, used, expires_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create supersedes any pending code for userID and stores the new one.
func (r *OtpRepo) Create(ctx context.Context, userID int64, code, token string, ttl time.Duration) (time.Time, error) {
	var expiresAt time.Time
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE admin_otp SET used = TRUE WHERE user_id = $1 AND used = FALSE`, userID); err != nil {
			return err
		}
		query := `INSERT INTO admin_otp (user_id, code, token, expires_at)
			VALUES ($1, $2, $3, NOW() + make_interval(secs => $4)) RETURNING expires_at`
		return tx.QueryRowxContext(ctx, query, userID, code, token, ttl.Seconds()).Scan(&expiresAt)
	})
	return expiresAt, err
}

// Consume marks the newest pending code used when it equals code. The
// update is a single statement, so two concurrent redemptions of the same
// code cannot both succeed.
func (r *OtpRepo) Consume(ctx context.Context, userID int64, code string) (bool, error) {
	query := `UPDATE admin_otp SET used = TRUE
		WHERE id = (
		  SELECT id FROM admin_otp
		  WHERE user_id = $1 AND used = FALSE AND expires_at > NOW()
		  ORDER BY created_at DESC, id DESC
		  LIMIT 1
		  FOR UPDATE
		) AND code = $2 AND used = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// PurgeExpired deletes used or expired codes.
func (r *OtpRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_otp WHERE used = TRUE OR expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
