package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/auth"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/bootstrap"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/config"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/router"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/shopify"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/webhook"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, db, err := bootstrap.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	defer db.Close()

	sugar := lg.Sugar()
	sugar.Info("starting service-giftlist")

	ids, err := utilities.NewIDNode(cfg.SnowflakeNode)
	if err != nil {
		sugar.Fatalf("snowflake node: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos := bootstrap.NewRepos(db)
	if cfg.AutoMigrate {
		if err := repos.Migrate(ctx); err != nil {
			sugar.Fatalf("migrate: %v", err)
		}
	}

	users := user.NewUserService(repos.Users, user.HasherFor(cfg.PasswordHasher))
	authSvc := auth.NewAuthService(users, repos.Sessions, repos.Otps,
		auth.LogSender{Logger: sugar.Named("otp"), LogCodes: cfg.OtpLogCodes},
		auth.Options{SessionTTL: cfg.SessionTTL, OtpTTL: cfg.OtpTTL, SetupKey: cfg.AdminSetupKey},
		sugar)
	lists := giftlist.NewRegistryService(repos.Lists, sugar)

	catalog := shopify.NewClient(cfg.Shopify)
	var tagger webhook.Tagger
	if catalog.AdminConfigured() {
		tagger = catalog
	} else {
		sugar.Info("shopify admin token not set; order tagging disabled")
	}
	rec := webhook.NewReconciler(repos.Purchases, tagger, sugar.Named("webhook"))
	if cfg.Shopify.WebhookSecret == "" {
		sugar.Warn("SHOPIFY_WEBHOOK_SECRET not set; webhooks will be rejected")
	}

	handler := router.RegisterRoutes(router.Deps{
		Logger:          sugar,
		IDs:             ids,
		Auth:            authSvc,
		Login:           auth.NewHandler(authSvc, sugar),
		Users:           user.NewHandler(users, sugar),
		Lists:           giftlist.NewHandler(lists, sugar),
		Webhook:         webhook.NewHandler(rec, cfg.Shopify.WebhookSecret, sugar.Named("webhook")),
		Catalog:         shopify.NewHandler(catalog, sugar),
		Stats:           rec.Stats(),
		AuthRateLimit:   cfg.AuthRateLimit,
		GuardListWrites: cfg.GuardListWrites,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
