package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"
)

// Telegram limit for media captions
const captionLimit = 1024

var (
	destinationIDRe      = regexp.MustCompile(`^-?\d{1,20}$`)
	destinationNameRe    = regexp.MustCompile(`^@([A-Za-z][A-Za-z0-9_]{3,31})$`)
	privateMessageLinkRe = regexp.MustCompile(`^(?:https?://)?t\.me/c/(\d{1,20})/\d+(?:\?.*)?$`)
	publicMessageLinkRe  = regexp.MustCompile(`^(?:https?://)?t\.me/([A-Za-z][A-Za-z0-9_]{3,31})/\d+(?:\?.*)?$`)
)

// parseDestination extracts a destination from a raw id, an @username or a message link
func parseDestination(input string) (string, bool) {
	input = strings.TrimSpace(input)

	if destinationIDRe.MatchString(input) {
		id, err := strconv.ParseInt(input, 10, 64)
		if err != nil || id == 0 {
			return "", false
		}
		return chat.ID(id), true
	}
	if m := destinationNameRe.FindStringSubmatch(input); m != nil {
		return "@" + m[1], true
	}
	if m := privateMessageLinkRe.FindStringSubmatch(input); m != nil {
		// Private links carry the channel id without the -100 prefix
		return "-100" + m[1], true
	}
	if m := publicMessageLinkRe.FindStringSubmatch(input); m != nil && m[1] != "c" {
		return "@" + m[1], true
	}

	return "", false
}

// parseReviewers parses a comma separated list of user ids. "none" means an empty list.
// The second return value lists the tokens that are not valid ids.
func parseReviewers(input string) ([]int64, []string) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "none") {
		return nil, nil
	}

	var ids []int64
	var bad []string
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil || id <= 0 {
			bad = append(bad, token)
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 && len(bad) == 0 {
		bad = append(bad, input)
	}

	return ids, bad
}

// formatConfig describes a config for its owner
func formatConfig(cfg *storage.OwnerConfig) string {
	reviewers := make([]string, 0, len(cfg.ReviewerIDs))
	for _, id := range cfg.ReviewerIDs {
		if id == cfg.OwnerID {
			reviewers = append(reviewers, fmt.Sprintf("%d (you)", id))
			continue
		}
		reviewers = append(reviewers, strconv.FormatInt(id, 10))
	}

	return fmt.Sprintf("Review channel: %s\nReviewers: %s", cfg.DestinationID, strings.Join(reviewers, ", "))
}

// formatGroupList formats linked groups for display
func formatGroupList(groups []storage.GroupLink) []string {
	var list []string
	for _, g := range groups {
		if g.GroupName != "" {
			list = append(list, fmt.Sprintf("- %s (%d)", g.GroupName, g.GroupID))
		} else {
			list = append(list, fmt.Sprintf("- %d", g.GroupID))
		}
	}
	return list
}

// truncate cuts text to at most limit runes, marking the cut with an ellipsis
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}

func yesNoControls(prefix string) chat.Controls {
	return chat.Row(
		chat.Button{Text: "Yes", Data: prefix + "yes"},
		chat.Button{Text: "No", Data: prefix + "no"},
	)
}

// reply sends text to the chat the event came from
func (d *Dispatcher) reply(ctx context.Context, ev *chat.Event, text string, controls chat.Controls) {
	d.sendMessage(ctx, chat.ID(ev.ChatID), text, controls)
}

// sendMessage sends a best-effort message, failures are only logged
func (d *Dispatcher) sendMessage(ctx context.Context, chatID string, text string, controls chat.Controls) {
	_, err := d.platform.SendText(ctx, chatID, text, controls)
	if err != nil {
		slog.Error("bot: Failed to send message", "error", err, "chat_id", chatID, "text_length", len(text))
		return
	}
	slog.Debug("bot: Message sent successfully", "chat_id", chatID)
}

// answerControl acknowledges a control press once
func (d *Dispatcher) answerControl(ctx context.Context, ev *chat.Event, text string) {
	if ev.Control == nil || ev.Control.Answered {
		return
	}
	ev.Control.Answered = true

	if err := d.platform.AnswerControl(ctx, ev.Control.ID, text); err != nil {
		slog.Warn("bot: Failed to answer control", "error", err, "chat_id", ev.ChatID, "user_id", ev.UserID)
	}
}
