// Package main contains the entrypoint for the check-in bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/edgard/checkinbot/internal/ai"
	"github.com/edgard/checkinbot/internal/bot"
	"github.com/edgard/checkinbot/internal/bot/handlers"
	"github.com/edgard/checkinbot/internal/bot/tasks"
	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/content"
	"github.com/edgard/checkinbot/internal/content/food"
	"github.com/edgard/checkinbot/internal/conversation"
	"github.com/edgard/checkinbot/internal/database"
	"github.com/edgard/checkinbot/internal/journal"
	"github.com/edgard/checkinbot/internal/logger"
	"github.com/edgard/checkinbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	clock := clockwork.NewRealClock()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log, clock)

	records := journal.NewFSStore(afero.NewOsFs(), cfg.Journal.RootDir, log)

	aiClient, err := ai.NewClient(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "provider", cfg.AI.Provider, "error", err)
		return 1
	}

	registry := content.NewRegistry(log)
	registry.Register(food.NewHandler(records, aiClient, cfg.AI.Timeout, log))

	// The default handler needs the orchestrator, which needs the transport,
	// which needs the bot; route through a late-bound handler.
	var defaultHandler tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			defaultHandler(ctx, b, update)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	transport := telegram.NewTransport(tg, nil, log)

	orchestrator, err := conversation.New(conversation.Deps{
		States:    store,
		Records:   records,
		Transport: transport,
		AI:        aiClient,
		Registry:  registry,
		Clock:     clock,
		Settings:  conversation.SettingsFromConfig(cfg),
		Messages:  cfg.Messages,
		Logger:    log,
	})
	if err != nil {
		log.Error("Failed to create conversation orchestrator", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Conversation: orchestrator,
		Typist:       transport,
	}
	defaultHandler = handlers.NewMessageHandler(hDeps)
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Sender: transport,
		AI:     aiClient,
		Config: cfg,
		Clock:  clock,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), clock)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
