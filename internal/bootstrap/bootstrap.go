// Package bootstrap holds the process wiring shared by the API server and
// the giftctl maintenance tool.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	authrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/config"
	listrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/user/repo"
	hookrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/webhook/repo"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/database"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/utilities"
)

// Repos groups the Postgres repositories.
type Repos struct {
	Users     *userrepo.UserRepo
	Sessions  *authrepo.SessionRepo
	Otps      *authrepo.OtpRepo
	Lists     *listrepo.GiftListRepo
	Purchases *hookrepo.PurchaseRepo
}

func NewRepos(db *sqlx.DB) *Repos {
	return &Repos{
		Users:     userrepo.NewUserRepo(db),
		Sessions:  authrepo.NewSessionRepo(db),
		Otps:      authrepo.NewOtpRepo(db),
		Lists:     listrepo.NewGiftListRepo(db),
		Purchases: hookrepo.NewPurchaseRepo(db),
	}
}

// Migrate creates missing tables, columns and indexes. Order matters:
// sessions and codes reference admin_users, items reference gift_lists.
func (r *Repos) Migrate(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"admin_users", r.Users.EnsureTable},
		{"admin_sessions", r.Sessions.EnsureTable},
		{"admin_otp", r.Otps.EnsureTable},
		{"gift_lists", r.Lists.EnsureTable},
		{"webhook_orders", r.Purchases.EnsureTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}

// Open loads the logger and the database pool from cfg. The caller owns
// both and must Sync/Close them.
func Open(cfg *config.Config) (*zap.Logger, *sqlx.DB, error) {
	lg, err := utilities.InitLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.Connect(cfg.DB)
	if err != nil {
		_ = lg.Sync()
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return lg, db, nil
}
