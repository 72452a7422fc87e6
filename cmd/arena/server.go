package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-arena-auth"
	"github.com/goliatone/go-arena-auth/activitymap"
	"github.com/goliatone/go-arena-auth/realtime"
	"github.com/goliatone/go-arena-auth/repository"
)

const (
	namespaceLobby = "lobby"
	namespaceChat  = "chat"
	purgeInterval  = time.Hour
)

// server holds everything serve wires together
type server struct {
	srv      router.Server[*fiber.App]
	app      *fiber.App
	hub      *realtime.Hub
	db       *bun.DB
	tokens   *auth.TokenService
	closers  []func() error
	logger   auth.Logger
	registry *prometheus.Registry
}

func newServer(ctx context.Context, cfg Config, logger auth.Logger) (*server, error) {
	if err := auth.ValidateConfig(cfg.Auth); err != nil {
		return nil, err
	}

	db, err := repository.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	repos := repository.NewManager(db)
	repos.MustValidate()

	if err := repos.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &server{
		db:       db,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		closers:  []func() error{db.Close},
	}

	var credentials auth.CredentialStore = repos.Tokens()
	if cfg.Store == storeRedis {
		redisTokens, err := repository.NewRedisTokens(cfg.Redis.URL)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, redisTokens.Close)
		credentials = redisTokens
	} else {
		go purgeExpired(ctx, repos.Tokens(), logger)
	}

	metrics := auth.NewMetrics(s.registry)
	activity := activitymap.LogSink(logger)

	s.tokens = auth.NewTokenService(cfg.Auth, credentials, repos.Players(),
		auth.WithTokenLogger(logger),
		auth.WithTokenMetrics(metrics),
		auth.WithTokenActivitySink(activity),
	)

	players := auth.NewPlayerService(repos.Players(), s.tokens,
		auth.WithPlayerLogger(logger),
		auth.WithPlayerActivitySink(activity),
	)

	controller := auth.NewPlayerController(cfg.Auth, players, s.tokens,
		auth.WithControllerLogger(logger),
		auth.WithMessageStore(repos.Messages()),
		auth.WithPasswordReset(
			auth.NewInitializePasswordResetHandler(repos.Players(), s.tokens).
				WithLogger(logger).
				WithActivitySink(activity),
			auth.NewFinalizePasswordResetHandler(repos.Players(), s.tokens).
				WithLogger(logger).
				WithActivitySink(activity),
		),
	)

	s.srv = router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "arena",
			ErrorHandler:          auth.NewErrorHandler(logger),
			DisableStartupMessage: true,
		})
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.HTTP.Origins,
			AllowCredentials: true,
		}))
		s.app = app
		return app
	})

	auth.RegisterPlayerRoutes(s.srv.Router(), controller)

	s.hub = realtime.NewHub(realtime.WithLogger(logger), realtime.WithMetrics(metrics))
	admission := realtime.NewAdmission(s.tokens, logger)

	lobby := s.hub.Namespace(namespaceLobby)
	lobby.Use(admission)
	realtime.AttachPresence(lobby)
	realtime.AttachCoordinator(lobby, logger, metrics)
	realtime.AttachChat(lobby, repos.Messages(), logger)

	chat := s.hub.Namespace(namespaceChat)
	chat.Use(admission)
	realtime.AttachPresence(chat)
	realtime.AttachChat(chat, repos.Messages(), logger)

	realtime.Mount(s.app, "/ws", cfg.Auth.GetSessionCookieName(), logger, lobby, chat)

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	return s, nil
}

// Close releases the hub connections and the stores
func (s *server) Close() error {
	if s.hub != nil {
		s.hub.Close()
	}
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func purgeExpired(ctx context.Context, tokens *repository.Tokens, logger auth.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := tokens.PurgeExpired(ctx, now.UTC())
			if err != nil {
				logger.Error("purging expired tokens failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired tokens", "count", n)
			}
		}
	}
}
