package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wardenbot/warden/internal/audit"
	"github.com/wardenbot/warden/internal/bot"
	"github.com/wardenbot/warden/internal/config"
	redisdb "github.com/wardenbot/warden/internal/db/redis"
	"github.com/wardenbot/warden/internal/handlers/chat"
	"github.com/wardenbot/warden/internal/handlers/moderation"
	"github.com/wardenbot/warden/internal/infra"
	"github.com/wardenbot/warden/internal/infrastructure/telegram"
	"github.com/wardenbot/warden/internal/lifecycle"
	"github.com/wardenbot/warden/internal/observability"
	"github.com/wardenbot/warden/internal/policy/permissions"
	"github.com/wardenbot/warden/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant load config")
	}
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := redisdb.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant connect to redis")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithField("error", err.Error()).Warn("cant close store")
		}
	}()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	log.WithField("username", botAPI.Self.UserName).Info("authorized")

	patterns, err := moderation.LoadPatterns()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant load spam patterns")
	}

	ops := telegram.NewOperations(botAPI)
	masker := security.NewMasker(cfg.Security.DataHashSalt)
	auditLogger := audit.NewLogger(store, ops, masker)

	gatekeeper := chat.NewGatekeeper(store, ops, auditLogger)
	welcomer := chat.NewWelcomer(ops)

	ctrl := moderation.NewController(
		store,
		moderation.NewDetector(store, patterns),
		moderation.NewContentFilter(),
		moderation.NewLinkGate(store),
		moderation.NewTracker(store),
		auditLogger,
		gatekeeper,
		welcomer,
	)

	processor := bot.NewUpdateProcessor(
		ctrl,
		ops,
		permissions.NewChecker(ops),
		gatekeeper,
		welcomer,
		auditLogger,
		botAPI.Self.ID,
	)

	rt := lifecycle.NewRuntime()
	rt.Register("gatekeeper", gatekeeper)
	rt.Register("welcomer", welcomer)
	rt.Register("metrics", observability.NewMetricsServer(cfg.MetricsAddr))
	rt.Register("poller", bot.NewPoller(botAPI, processor))

	if err := rt.Start(ctx); err != nil {
		log.WithField("error", err.Error()).Fatal("cant start runtime")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return infra.MonitorStore(gctx, store)
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithField("error", err.Error()).Error("background worker stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Stop(shutdownCtx); err != nil {
		log.WithField("error", err.Error()).Error("shutdown finished with errors")
	}
	log.Info("bye")
}
