package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/worker"

	"github.com/mymmrac/telego"
)

var (
	ErrCreateBot      = errors.New("cannot create bot api client")
	ErrGetMe          = errors.New("cannot retrieve api user")
	ErrUpdatesChannel = errors.New("cannot get updates channel")
)

type Options struct {
	// MaxConcurrentUpdates bounds the number of events handled at once
	MaxConcurrentUpdates int
	// IdleTimeout drops abandoned conversations, zero keeps them
	IdleTimeout time.Duration
	// LongPollingTimeout is the getUpdates timeout in seconds
	LongPollingTimeout int
}

type Bot struct {
	api   *telego.Bot
	store Store
	opts  Options
}

func New(token string, store Store, opts Options) (*Bot, error) {
	api, err := telego.NewBot(token, telego.WithLogger(apiLogger{}))
	if err != nil {
		slog.Error("bot: Failed to create api client", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCreateBot, err)
	}

	return &Bot{
		api:   api,
		store: store,
		opts:  opts,
	}, nil
}

// Run receives updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	botUser, err := b.api.GetMe(ctx)
	if err != nil {
		slog.Error("bot: Cannot retrieve api user", "error", err)
		return ErrGetMe
	}

	slog.Info("bot: Running api as",
		"id", botUser.ID,
		"username", botUser.Username,
		"name", botUser.FirstName,
		"is_bot", botUser.IsBot,
	)

	dispatcher := NewDispatcher(newTelegramPlatform(b.api), b.store, DispatcherOptions{
		BotUsername: botUser.Username,
		IdleTimeout: b.opts.IdleTimeout,
	})

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.opts.LongPollingTimeout,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		slog.Error("bot: Cannot get update channel", "error", err)
		return ErrUpdatesChannel
	}

	handle := chain(dispatcher.Dispatch, recoverMiddleware, logMiddleware)
	pool := worker.NewPool[string, *chat.Event](ctx, b.opts.MaxConcurrentUpdates, handle)
	defer pool.Stop()

	slog.Info("bot: Waiting for updates")

	for update := range updates {
		ev, ok := eventFromUpdate(update, botUser.Username)
		if !ok {
			slog.Debug("bot: Update skipped", "update_id", update.UpdateID)
			continue
		}

		if err := pool.Submit(QueueKey(ev), ev); err != nil {
			slog.Warn("bot: Update dropped", "error", err, "update_id", update.UpdateID)
		}
	}

	slog.Info("bot: Updates channel closed, waiting for running handlers",
		"pending_keys", pool.Pending(), "active_conversations", dispatcher.ActiveConversations())
	return nil
}

// apiLogger routes telego client logs to slog
type apiLogger struct{}

func (apiLogger) Debugf(format string, args ...any) {
	slog.Debug("telego: " + fmt.Sprintf(format, args...))
}

func (apiLogger) Errorf(format string, args ...any) {
	slog.Error("telego: " + fmt.Sprintf(format, args...))
}
