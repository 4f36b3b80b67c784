package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
)

// DispatchFunc processes one inbound event
type DispatchFunc func(ctx context.Context, ev *chat.Event)

// Middleware wraps event processing
type Middleware func(next DispatchFunc) DispatchFunc

// chain applies middlewares so that the first one runs outermost
func chain(h DispatchFunc, middlewares ...Middleware) DispatchFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// recoverMiddleware keeps a panicking handler from taking the process down
func recoverMiddleware(next DispatchFunc) DispatchFunc {
	return func(ctx context.Context, ev *chat.Event) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("bot: Panic while handling event", "error", fmt.Sprint(r),
					"chat_id", ev.ChatID, "user_id", ev.UserID, "stack", string(debug.Stack()))
			}
		}()
		next(ctx, ev)
	}
}

func logMiddleware(next DispatchFunc) DispatchFunc {
	return func(ctx context.Context, ev *chat.Event) {
		start := time.Now()
		slog.Debug("bot: Event received", "chat_id", ev.ChatID, "chat_type", ev.ChatType,
			"user_id", ev.UserID, "command", ev.Command, "control", ev.ControlData())

		next(ctx, ev)

		slog.Debug("bot: Event handled", "chat_id", ev.ChatID, "user_id", ev.UserID,
			"duration", time.Since(start))
	}
}
