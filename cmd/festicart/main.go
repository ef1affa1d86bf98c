package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/s-rangarajan/festicart/internal/api"
	"github.com/s-rangarajan/festicart/internal/auth"
	"github.com/s-rangarajan/festicart/internal/cart"
	"github.com/s-rangarajan/festicart/internal/catalog"
	"github.com/s-rangarajan/festicart/internal/checkout"
	"github.com/s-rangarajan/festicart/internal/config"
	pkgerrors "github.com/s-rangarajan/festicart/internal/errors"
	"github.com/s-rangarajan/festicart/internal/logger"
	"github.com/s-rangarajan/festicart/internal/metrics"
	"github.com/s-rangarajan/festicart/internal/redis"
	"github.com/s-rangarajan/festicart/internal/scan"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	// a missing .env is fine, the environment may carry everything
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "festicart",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "startup failed", err)
		os.Exit(1)
	}

	err = multierr.Append(run(ctx, a, os.Args[1], os.Args[2:], os.Stdout), a.Close())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", pkgerrors.UserMessage(err, err.Error()))
		os.Exit(1)
	}
}

// app holds every service a command may need.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	closers  []io.Closer
	api      *api.Client
	session  *auth.Session
	carts    *cart.Store
	registry *prometheus.Registry
	catalog  *catalog.Service
	checkout *checkout.Service
	scanner  *scan.Validator
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.API, api.WithLogger(log))
	session := auth.NewSession(client, rc, cfg.Store.AuthTokenKey, log)
	client.SetTokenSource(session)

	carts := cart.NewStore(
		cart.NewRedisReader(rc),
		cart.NewRedisUpdater(rc),
		cart.WithKey(cfg.Store.CartKey),
		cart.WithUpdateTimeout(cfg.Store.LockTimeout),
		cart.WithLogger(log),
	)
	carts, err = ownedCarts(ctx, carts, session)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	return &app{
		cfg:      cfg,
		log:      log,
		closers:  []io.Closer{rc},
		api:      client,
		session:  session,
		carts:    carts,
		registry: registry,
		catalog:  catalog.NewService(client, session, carts, cart.NewAddedTracker(cart.DefaultAddedWindow, nil), log),
		checkout: checkout.NewService(client, carts,
			checkout.WithMetrics(metrics.NewCheckoutMetrics(registry)),
			checkout.WithLogger(log),
		),
		scanner: scan.NewValidator(client,
			scan.FromConfig(cfg.Scan),
			scan.WithHaptics(terminalBell(os.Stderr), 0),
			scan.WithMetrics(metrics.NewScanMetrics(registry)),
			scan.WithLogger(log),
		),
	}, nil
}

type userIdentity interface {
	UserID(context.Context) (cart.ID, error)
}

// ownedCarts gives each logged in user their own cart; anonymous browsing
// keeps the shared key.
func ownedCarts(ctx context.Context, carts *cart.Store, identity userIdentity) (*cart.Store, error) {
	userID, err := identity.UserID(ctx)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeUnauthorized {
			return carts, nil
		}
		return nil, err
	}
	return carts.ForOwner(userID.String()), nil
}

func (a *app) Close() error {
	var err error
	for _, c := range a.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
