package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/conversation"
	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"
)

const (
	setupFlowID  conversation.FlowID = "setup"
	deleteFlowID conversation.FlowID = "delete"

	stateAwaitingOverwrite   conversation.State = "awaiting-overwrite-confirmation"
	stateAwaitingDestination conversation.State = "awaiting-destination"
	stateAwaitingReviewers   conversation.State = "awaiting-reviewers"
	stateAwaitingDelete      conversation.State = "awaiting-delete-confirmation"

	setupControlPrefix  = "setup:"
	deleteControlPrefix = "delcfg:"
)

// setupDraft is the scratch data of the setup flow
type setupDraft struct {
	DestinationID string
}

func affirmative(prefix string) conversation.Matcher {
	return conversation.AnyOf(
		conversation.ControlEqual(prefix+"yes"),
		conversation.ExactText("yes", "y"),
	)
}

func negative(prefix string) conversation.Matcher {
	return conversation.AnyOf(
		conversation.ControlEqual(prefix+"no"),
		conversation.ExactText("no", "n"),
	)
}

func (d *Dispatcher) setupFlow() *conversation.Flow {
	return &conversation.Flow{
		ID: setupFlowID,
		Entries: []conversation.Transition{
			{Match: conversation.Command("setup"), Handle: d.setupStart},
		},
		States: map[conversation.State][]conversation.Transition{
			stateAwaitingOverwrite: {
				{Match: affirmative(setupControlPrefix), Handle: d.setupOverwriteConfirmed},
				{Match: negative(setupControlPrefix), Handle: d.setupOverwriteDeclined},
			},
			stateAwaitingDestination: {
				{Match: conversation.AnyText(), Handle: d.setupDestination},
			},
			stateAwaitingReviewers: {
				{Match: conversation.AnyText(), Handle: d.setupReviewers},
			},
		},
		Otherwise: d.setupReprompt,
	}
}

func (d *Dispatcher) setupStart(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	if !ev.IsPrivate() {
		d.reply(ctx, ev, msgSetupPrivateOnly, nil)
		return conversation.End(), nil
	}

	s.Scratch = &setupDraft{}

	cfg, err := d.store.GetConfig(ctx, ev.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return conversation.End(), err
	}

	if err == nil && cfg.Configured {
		if !d.access.IsReviewerFor(ctx, ev.UserID, cfg.DestinationID) {
			d.reply(ctx, ev, msgSetupDenied, nil)
			return conversation.End(), nil
		}
		d.reply(ctx, ev, fmt.Sprintf(msgSetupOverwritePrompt, formatConfig(cfg)), yesNoControls(setupControlPrefix))
		return conversation.Next(stateAwaitingOverwrite), nil
	}

	d.reply(ctx, ev, msgSetupDestinationAsk, nil)
	return conversation.Next(stateAwaitingDestination), nil
}

func (d *Dispatcher) setupOverwriteConfirmed(ctx context.Context, ev *chat.Event, _ *conversation.Session) (conversation.Result, error) {
	// Deletion is one transaction, a failure leaves the old config and its links intact
	err := d.store.DeleteConfig(ctx, ev.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Error("bot: Failed to delete config before reconfiguration", "error", err, "user_id", ev.UserID)
		d.reply(ctx, ev, msgSetupFailed, nil)
		return conversation.End(), nil
	}

	slog.Info("bot: Config removed for reconfiguration", "user_id", ev.UserID)
	d.reply(ctx, ev, msgSetupDestinationAsk, nil)
	return conversation.Next(stateAwaitingDestination), nil
}

func (d *Dispatcher) setupOverwriteDeclined(ctx context.Context, ev *chat.Event, _ *conversation.Session) (conversation.Result, error) {
	d.reply(ctx, ev, msgSetupKept, nil)
	return conversation.End(), nil
}

func (d *Dispatcher) setupDestination(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	destination, ok := parseDestination(ev.PlainText())
	if !ok {
		d.reply(ctx, ev, msgSetupDestinationBad, nil)
		return conversation.Stay(), nil
	}

	owner, err := d.store.ConfigByDestination(ctx, destination)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return conversation.Stay(), err
	}
	if err == nil && owner.OwnerID != ev.UserID {
		d.reply(ctx, ev, msgSetupDestinationTaken, nil)
		return conversation.Stay(), nil
	}

	s.Scratch.(*setupDraft).DestinationID = destination
	d.reply(ctx, ev, msgSetupReviewersAsk, nil)
	return conversation.Next(stateAwaitingReviewers), nil
}

func (d *Dispatcher) setupReviewers(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	reviewers, bad := parseReviewers(ev.PlainText())
	if len(bad) > 0 {
		d.reply(ctx, ev, fmt.Sprintf(msgSetupReviewersBad, strings.Join(bad, ", ")), nil)
		return conversation.Stay(), nil
	}

	draft := s.Scratch.(*setupDraft)
	cfg := storage.NewOwnerConfig(ev.UserID, draft.DestinationID, reviewers)

	err := d.store.PutConfig(ctx, cfg)
	if errors.Is(err, storage.ErrDestinationTaken) {
		d.reply(ctx, ev, msgSetupDestinationTaken, nil)
		return conversation.Next(stateAwaitingDestination), nil
	}
	if err != nil {
		slog.Error("bot: Failed to save config", "error", err, "user_id", ev.UserID)
		d.reply(ctx, ev, msgSetupFailed, nil)
		return conversation.End(), nil
	}

	slog.Info("bot: Owner configured", "user_id", ev.UserID,
		"destination_id", cfg.DestinationID, "reviewers", len(cfg.ReviewerIDs))
	d.reply(ctx, ev, fmt.Sprintf(msgSetupDone, formatConfig(&cfg)), nil)
	return conversation.End(), nil
}

func (d *Dispatcher) setupReprompt(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	switch s.State {
	case stateAwaitingOverwrite:
		d.reply(ctx, ev, msgSetupAnswerYesNo, yesNoControls(setupControlPrefix))
	case stateAwaitingDestination:
		d.reply(ctx, ev, msgSetupDestinationAsk, nil)
	case stateAwaitingReviewers:
		d.reply(ctx, ev, msgSetupReviewersAsk, nil)
	}
	return conversation.Stay(), nil
}

func (d *Dispatcher) deleteFlow() *conversation.Flow {
	return &conversation.Flow{
		ID: deleteFlowID,
		Entries: []conversation.Transition{
			{Match: conversation.Command("deleteconfig"), Handle: d.deleteStart},
		},
		States: map[conversation.State][]conversation.Transition{
			stateAwaitingDelete: {
				{Match: affirmative(deleteControlPrefix), Handle: d.deleteConfirmed},
				{Match: negative(deleteControlPrefix), Handle: d.deleteDeclined},
			},
		},
		Otherwise: func(ctx context.Context, ev *chat.Event, _ *conversation.Session) (conversation.Result, error) {
			d.reply(ctx, ev, msgSetupAnswerYesNo, yesNoControls(deleteControlPrefix))
			return conversation.Stay(), nil
		},
	}
}

func (d *Dispatcher) deleteStart(ctx context.Context, ev *chat.Event, _ *conversation.Session) (conversation.Result, error) {
	if !ev.IsPrivate() {
		d.reply(ctx, ev, msgDeletePrivateOnly, nil)
		return conversation.End(), nil
	}

	cfg, err := d.store.GetConfig(ctx, ev.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		d.reply(ctx, ev, msgNotConfigured, nil)
		return conversation.End(), nil
	}
	if err != nil {
		return conversation.End(), err
	}

	groups, err := d.store.GroupsFor(ctx, cfg.DestinationID)
	if err != nil {
		return conversation.End(), err
	}

	d.reply(ctx, ev, fmt.Sprintf(msgDeletePrompt, len(groups)), yesNoControls(deleteControlPrefix))
	return conversation.Next(stateAwaitingDelete), nil
}

func (d *Dispatcher) deleteConfirmed(ctx context.Context, ev *chat.Event, _ *conversation.Session) (conversation.Result, error) {
	err := d.store.DeleteConfig(ctx, ev.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Error("bot: Failed to delete config", "error", err, "user_id", ev.UserID)
		d.reply(ctx, ev, msgDeleteFailed, nil)
		return conversation.End(), nil
	}

	slog.Info("bot: Config deleted by owner", "user_id", ev.UserID)
	d.reply(ctx, ev, msgDeleteDone, nil)
	return conversation.End(), nil
}

func (d *Dispatcher) deleteDeclined(ctx context.Context, ev *chat.Event, _ *conversation.Session) (conversation.Result, error) {
	d.reply(ctx, ev, msgDeleteKept, nil)
	return conversation.End(), nil
}

func (d *Dispatcher) statusHandler(ctx context.Context, ev *chat.Event) error {
	if !ev.IsPrivate() {
		d.reply(ctx, ev, msgGroupHelp, nil)
		return nil
	}

	cfg, err := d.store.GetConfig(ctx, ev.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		d.reply(ctx, ev, msgNotConfigured, nil)
		return nil
	}
	if err != nil {
		return err
	}

	groups, err := d.store.GroupsFor(ctx, cfg.DestinationID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(msgStatusHeader, formatConfig(cfg))
	if len(groups) == 0 {
		text += msgStatusNoGroup
	} else {
		text += fmt.Sprintf(msgStatusGroups, strings.Join(formatGroupList(groups), "\n"))
	}

	d.reply(ctx, ev, text, nil)
	return nil
}
