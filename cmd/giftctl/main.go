// Command giftctl runs maintenance tasks against the registry database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/bootstrap"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/config"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user"
)

type env struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	db     *sqlx.DB
	repos  *bootstrap.Repos
}

// withEnv opens the logger and database around fn.
func withEnv(fn func(ctx context.Context, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		lg, db, err := bootstrap.Open(cfg)
		if err != nil {
			return err
		}
		defer lg.Sync()
		defer db.Close()
		return fn(cmd.Context(), &env{cfg: cfg, logger: lg.Sugar(), db: db, repos: bootstrap.NewRepos(db)})
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables, columns and indexes",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			if err := e.repos.Migrate(ctx); err != nil {
				return err
			}
			e.logger.Info("schema up to date")
			return nil
		}),
	}
}

func addAdminCmd() *cobra.Command {
	var email, name, password, role string
	cmd := &cobra.Command{
		Use:   "add-admin",
		Short: "Create a back-office account",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			svc := user.NewUserService(e.repos.Users, user.HasherFor(e.cfg.PasswordHasher))
			u, err := svc.Create(ctx, user.CreateInput{Email: email, Name: name, Password: password, Role: role})
			if err != nil {
				return err
			}
			e.logger.Infow("account created", "id", u.ID, "email", u.Email, "role", u.Role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", "admin", "admin or collaborator")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func purgeCmd() *cobra.Command {
	var orderDays int
	cmd := &cobra.Command{
		Use:   "purge-expired",
		Short: "Delete expired sessions and codes, and old webhook order records",
		RunE: withEnv(func(ctx context.Context, e *env) error {
			sessions, err := e.repos.Sessions.PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("purge sessions: %w", err)
			}
			codes, err := e.repos.Otps.PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("purge codes: %w", err)
			}
			var orders int64
			if orderDays > 0 {
				if orders, err = e.repos.Purchases.PurgeOrders(ctx, orderDays); err != nil {
					return fmt.Errorf("purge orders: %w", err)
				}
			}
			e.logger.Infow("purged", "sessions", sessions, "otp", codes, "webhook_orders", orders)
			return nil
		}),
	}
	cmd.Flags().IntVar(&orderDays, "orders-older-than", 0, "also drop webhook order records older than this many days (0 keeps them)")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:           "giftctl",
		Short:         "Gift registry maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), addAdminCmd(), purgeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "giftctl:", err)
		os.Exit(1)
	}
}
