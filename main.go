package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.skobk.in/skobkin/telegram-report-relay-bot/bot"
	"git.skobk.in/skobkin/telegram-report-relay-bot/config"
	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbosity int
		envFile   string
	)

	cmd := &cobra.Command{
		Use:           "telegram-report-relay-bot",
		Short:         "Relays user reports from Telegram groups to review channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setLogLevel(verbosity)
			slog.Debug("main: Command-line flags parsed", "verbosity", verbosity, "env_file", envFile)

			return run(cmd.Context(), envFile)
		},
	}

	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase logging verbosity (-v info, -vv debug)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to the .env file, empty to skip")

	return cmd
}

func run(ctx context.Context, envFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(envFile)
	if err != nil {
		slog.Error("main: Failed to load configuration", "error", err)
		return err
	}

	// Initialize storage
	slog.Debug("main: Initializing storage", "db_path", cfg.DatabasePath)
	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("main: Failed to initialize storage", "error", err)
		return err
	}
	slog.Debug("main: Storage initialized successfully")

	// Initialize bot
	slog.Debug("main: Initializing bot")
	b, err := bot.New(cfg.TelegramBotToken, store, bot.Options{
		MaxConcurrentUpdates: cfg.MaxConcurrentUpdates,
		IdleTimeout:          cfg.ConversationIdleTimeout,
		LongPollingTimeout:   cfg.LongPollingTimeout,
	})
	if err != nil {
		slog.Error("main: Failed to initialize bot", "error", err)
		return err
	}

	slog.Info("main: Starting bot...")
	if err := b.Run(ctx); err != nil {
		slog.Error("main: Bot stopped with error", "error", err)
		return err
	}
	slog.Info("main: Bot stopped")

	return nil
}

// setLogLevel configures the logging level based on the -v count
func setLogLevel(verbosity int) {
	logLevel := slog.LevelWarn // Default level
	switch {
	case verbosity >= 2:
		logLevel = slog.LevelDebug
	case verbosity == 1:
		logLevel = slog.LevelInfo
	}

	// Configure structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Debug("main: Log level set to", "level", logLevel.String())
}
