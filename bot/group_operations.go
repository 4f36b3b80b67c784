package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"
)

// linkHandler links the current group to the review channel the requester acts for
func (d *Dispatcher) linkHandler(ctx context.Context, ev *chat.Event) error {
	if !ev.IsGroup() {
		d.reply(ctx, ev, msgLinkGroupOnly, nil)
		return nil
	}

	cfg, ok := d.access.ReviewerConfig(ctx, ev.UserID)
	if !ok {
		slog.Info("bot: Link denied", "group_id", ev.ChatID, "user_id", ev.UserID)
		d.reply(ctx, ev, msgLinkDenied, nil)
		return nil
	}

	link := storage.GroupLink{
		GroupID:       ev.ChatID,
		DestinationID: cfg.DestinationID,
		GroupName:     ev.ChatTitle,
		LinkedBy:      ev.UserID,
	}

	err := d.store.LinkGroup(ctx, link)
	if err != nil {
		slog.Error("bot: Failed to link group", "error", err,
			"group_id", ev.ChatID, "user_id", ev.UserID, "destination_id", cfg.DestinationID)
		d.reply(ctx, ev, msgLinkFailed, nil)
		return nil
	}

	slog.Info("bot: Group linked", "group_id", ev.ChatID, "group_name", ev.ChatTitle,
		"user_id", ev.UserID, "destination_id", cfg.DestinationID)
	d.reply(ctx, ev, msgLinkDone, nil)
	d.sendMessage(ctx, chat.ID(ev.UserID), fmt.Sprintf(msgLinkDonePrivate, groupTitle(ev), cfg.DestinationID), nil)
	return nil
}

// unlinkHandler removes the link of the current group
func (d *Dispatcher) unlinkHandler(ctx context.Context, ev *chat.Event) error {
	if !ev.IsGroup() {
		d.reply(ctx, ev, msgUnlinkGroupOnly, nil)
		return nil
	}

	if !d.access.IsReviewer(ctx, ev.UserID) {
		slog.Info("bot: Unlink denied", "group_id", ev.ChatID, "user_id", ev.UserID)
		d.reply(ctx, ev, msgUnlinkDenied, nil)
		return nil
	}

	link, err := d.store.GetGroupLink(ctx, ev.ChatID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("bot: Unlink requested for a group without link", "group_id", ev.ChatID, "user_id", ev.UserID)
		d.reply(ctx, ev, msgUnlinkNotLinked, nil)
		return nil
	}
	if err != nil {
		return err
	}

	if !d.access.IsReviewerFor(ctx, ev.UserID, link.DestinationID) {
		slog.Info("bot: Unlink denied for foreign destination", "group_id", ev.ChatID,
			"user_id", ev.UserID, "destination_id", link.DestinationID)
		d.reply(ctx, ev, msgUnlinkDenied, nil)
		return nil
	}

	err = d.store.UnlinkGroup(ctx, ev.ChatID)
	if errors.Is(err, storage.ErrNotFound) {
		d.reply(ctx, ev, msgUnlinkNotLinked, nil)
		return nil
	}
	if err != nil {
		slog.Error("bot: Failed to unlink group", "error", err, "group_id", ev.ChatID, "user_id", ev.UserID)
		d.reply(ctx, ev, msgUnlinkFailed, nil)
		return nil
	}

	slog.Info("bot: Group unlinked", "group_id", ev.ChatID, "user_id", ev.UserID, "destination_id", link.DestinationID)
	d.reply(ctx, ev, msgUnlinkDone, nil)
	d.sendMessage(ctx, chat.ID(ev.UserID), fmt.Sprintf(msgUnlinkDonePrivate, groupTitle(ev), link.DestinationID), nil)
	return nil
}

func groupTitle(ev *chat.Event) string {
	if ev.ChatTitle != "" {
		return ev.ChatTitle
	}
	return chat.ID(ev.ChatID)
}
