package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/access"
	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/conversation"
	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"
)

// Store is the part of the storage the bot works with
type Store interface {
	access.ConfigReader
	PutConfig(ctx context.Context, cfg storage.OwnerConfig) error
	DeleteConfig(ctx context.Context, ownerID int64) error
	LinkGroup(ctx context.Context, link storage.GroupLink) error
	UnlinkGroup(ctx context.Context, groupID int64) error
	GetGroupLink(ctx context.Context, groupID int64) (*storage.GroupLink, error)
	DestinationFor(ctx context.Context, groupID int64) (string, error)
	GroupsFor(ctx context.Context, destinationID string) ([]storage.GroupLink, error)
}

type DispatcherOptions struct {
	// BotUsername is used for deep links to the private chat
	BotUsername string
	// IdleTimeout drops abandoned conversations and drafts, zero keeps them
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Dispatcher routes inbound events to group operations, flows or the default reply
type Dispatcher struct {
	platform chat.Platform
	store    Store
	access   *access.Checker
	engine   *conversation.Engine
	reports  *reportFlow
	reviews  *adjudicator
	opts     DispatcherOptions
}

func NewDispatcher(platform chat.Platform, store Store, opts DispatcherOptions) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Dispatcher{
		platform: platform,
		store:    store,
		access:   access.NewChecker(store),
		opts:     opts,
	}
	d.reports = newReportFlow(d)
	d.reviews = newAdjudicator(d)

	d.engine = conversation.NewEngine(conversation.Options{
		Cancel:      conversation.Command("cancel"),
		OnCancel:    d.onCancel,
		OnBusy:      d.onBusy,
		IdleTimeout: opts.IdleTimeout,
		Now:         opts.Now,
	},
		// Group commands and review controls go first
		d.groupCommandsFlow(),
		d.setupFlow(),
		d.deleteFlow(),
		d.reports.flow(),
		d.menuFlow(),
	)

	return d
}

// Dispatch handles one inbound event. Events sharing a QueueKey must be passed in arrival order.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *chat.Event) {
	// Review presses are one-shot and never touch the conversation register
	if isAdjudicationControl(ev) {
		if err := d.reviews.handle(ctx, ev); err != nil {
			slog.Error("bot: Failed to handle review control", "error", err,
				"chat_id", ev.ChatID, "user_id", ev.UserID)
		}
		d.answerControl(ctx, ev, "")
		return
	}

	handled, err := d.engine.Handle(ctx, ev)
	if err != nil {
		slog.Error("bot: Failed to handle event", "error", err,
			"chat_id", ev.ChatID, "user_id", ev.UserID)
		d.reply(ctx, ev, msgInternalError, nil)
	} else if !handled {
		d.defaultHandler(ctx, ev)
	}

	if ev.Control != nil && !ev.Control.Answered {
		d.answerControl(ctx, ev, "")
	}

	if s, ok := d.engine.Active(conversation.KeyOf(ev)); ok {
		slog.Debug("bot: Conversation in progress", "chat_id", ev.ChatID, "user_id", ev.UserID,
			"flow", s.Flow, "state", s.State)
	}
}

// ActiveConversations returns the number of unfinished conversations
func (d *Dispatcher) ActiveConversations() int {
	return d.engine.Len()
}

// QueueKey returns the serialization key of an event. Review presses are
// ordered per posted report, everything else per (chat, user).
func QueueKey(ev *chat.Event) string {
	if isAdjudicationControl(ev) {
		return fmt.Sprintf("msg:%s:%d", ev.Control.Message.ChatID, ev.Control.Message.MessageID)
	}
	return "conv:" + conversation.KeyOf(ev).String()
}

func (d *Dispatcher) defaultHandler(ctx context.Context, ev *chat.Event) {
	switch {
	case ev.Control != nil:
		d.answerControl(ctx, ev, msgStaleControl)
	case ev.IsPrivate():
		d.reply(ctx, ev, msgUnknownInput, nil)
	default:
		slog.Debug("bot: Event ignored", "chat_id", ev.ChatID, "user_id", ev.UserID)
	}
}

func (d *Dispatcher) onCancel(ctx context.Context, ev *chat.Event, active *conversation.Session) error {
	text := msgNothingToCancel
	switch {
	case active != nil:
		text = msgCancelled
	case d.reports.discardPending(ev.UserID):
		text = msgPendingReportDiscarded
	}

	if !ev.IsPrivate() {
		slog.Debug("bot: Cancel acknowledged silently in group", "chat_id", ev.ChatID, "user_id", ev.UserID, "reply", text)
		return nil
	}

	d.reply(ctx, ev, text, nil)
	return nil
}

func (d *Dispatcher) onBusy(ctx context.Context, ev *chat.Event, _ *conversation.Session) error {
	if ev.Control != nil {
		d.answerControl(ctx, ev, msgBusy)
		return nil
	}
	d.reply(ctx, ev, msgBusy, nil)
	return nil
}

// groupCommandsFlow holds the stateless commands. None of them opens a session.
func (d *Dispatcher) groupCommandsFlow() *conversation.Flow {
	return &conversation.Flow{
		ID: "commands",
		Entries: []conversation.Transition{
			{Match: conversation.Command("link"), Handle: d.oneShot(d.linkHandler)},
			{Match: conversation.Command("unlink"), Handle: d.oneShot(d.unlinkHandler)},
			{Match: conversation.Command("report"), Handle: d.oneShot(d.reports.triggerHandler)},
		},
	}
}

func (d *Dispatcher) menuFlow() *conversation.Flow {
	return &conversation.Flow{
		ID: "menu",
		Entries: []conversation.Transition{
			{Match: conversation.AnyOf(conversation.Command("start"), conversation.Command("help")), Handle: d.oneShot(d.helpHandler)},
			{Match: conversation.Command("status"), Handle: d.oneShot(d.statusHandler)},
		},
	}
}

// oneShot adapts a plain handler into an entry point that never occupies the register
func (d *Dispatcher) oneShot(h func(ctx context.Context, ev *chat.Event) error) conversation.Handler {
	return func(ctx context.Context, ev *chat.Event, _ *conversation.Session) (conversation.Result, error) {
		return conversation.End(), h(ctx, ev)
	}
}

func (d *Dispatcher) helpHandler(ctx context.Context, ev *chat.Event) error {
	if !ev.IsPrivate() {
		d.reply(ctx, ev, msgGroupHelp, nil)
		return nil
	}
	d.reply(ctx, ev, msgHelp, nil)
	return nil
}
