package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
)

const (
	adjudicationPrefix = "adj|"
	// Telegram rejects callback data longer than this
	controlDataLimit = 64

	reviewAnnotation = "✅ Under review by "
	// Caption space kept free for the annotation
	reviewAnnotationRoom = 96

	// Telegram stops accepting caption edits long before this
	adjudicatedRetention = 48 * time.Hour
)

var ErrInvalidAdjudicationKey = errors.New("invalid adjudication key")

// adjudicationKey identifies a delivered report inside its review control
type adjudicationKey struct {
	SourceGroupID    int64
	ReporterID       int64
	TargetIdentifier string
}

// Encode packs the key into control data. The target is cut to fit the platform limit.
func (k adjudicationKey) Encode() string {
	head := fmt.Sprintf("%s%d|%d|", adjudicationPrefix, k.SourceGroupID, k.ReporterID)

	target := k.TargetIdentifier
	for len(head)+len(target) > controlDataLimit {
		_, size := utf8.DecodeLastRuneInString(target)
		target = target[:len(target)-size]
	}

	return head + target
}

func decodeAdjudicationKey(data string) (adjudicationKey, error) {
	rest, ok := strings.CutPrefix(data, adjudicationPrefix)
	if !ok {
		return adjudicationKey{}, ErrInvalidAdjudicationKey
	}

	parts := strings.SplitN(rest, "|", 3)
	if len(parts) != 3 {
		return adjudicationKey{}, ErrInvalidAdjudicationKey
	}

	groupID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return adjudicationKey{}, fmt.Errorf("%w: group id: %w", ErrInvalidAdjudicationKey, err)
	}
	reporterID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return adjudicationKey{}, fmt.Errorf("%w: reporter id: %w", ErrInvalidAdjudicationKey, err)
	}

	return adjudicationKey{
		SourceGroupID:    groupID,
		ReporterID:       reporterID,
		TargetIdentifier: parts[2],
	}, nil
}

func isAdjudicationControl(ev *chat.Event) bool {
	return strings.HasPrefix(ev.ControlData(), adjudicationPrefix)
}

// adjudicator marks delivered reports as taken for review
type adjudicator struct {
	d *Dispatcher

	mu   sync.Mutex
	done map[chat.MessageRef]time.Time
}

func newAdjudicator(d *Dispatcher) *adjudicator {
	return &adjudicator{
		d:    d,
		done: make(map[chat.MessageRef]time.Time),
	}
}

// handle processes a press on a review control. Presses for the same posted
// report arrive one at a time.
func (a *adjudicator) handle(ctx context.Context, ev *chat.Event) error {
	d := a.d
	ctl := ev.Control

	key, err := decodeAdjudicationKey(ctl.Data)
	if err != nil {
		slog.Warn("bot: Malformed review control", "error", err, "chat_id", ev.ChatID, "user_id", ev.UserID)
		d.answerControl(ctx, ev, msgReviewStale)
		return nil
	}

	if !a.authorized(ctx, ev) {
		slog.Info("bot: Review denied", "chat_id", ev.ChatID, "user_id", ev.UserID)
		d.answerControl(ctx, ev, msgReviewDenied)
		return nil
	}

	if a.alreadyAdjudicated(ctl) {
		d.answerControl(ctx, ev, msgReviewAlready)
		return nil
	}

	caption := annotateCaption(ctl.Caption, reviewerName(ev))
	if err := d.platform.EditMessage(ctx, ctl.Message, caption, nil); err != nil {
		slog.Error("bot: Failed to annotate report", "error", err,
			"chat_id", ctl.Message.ChatID, "message_id", ctl.Message.MessageID)
		d.answerControl(ctx, ev, msgReviewFailed)
		return nil
	}
	a.markAdjudicated(ctl.Message)

	slog.Info("bot: Report taken for review", "chat_id", ctl.Message.ChatID, "message_id", ctl.Message.MessageID,
		"user_id", ev.UserID, "reporter_id", key.ReporterID, "group_id", key.SourceGroupID)

	d.answerControl(ctx, ev, msgReviewDone)
	a.notifyReporter(ctx, key)

	return nil
}

// authorized checks the presser against the config owning the chat the control lives in
func (a *adjudicator) authorized(ctx context.Context, ev *chat.Event) bool {
	if a.d.access.IsReviewerFor(ctx, ev.UserID, chat.ID(ev.ChatID)) {
		return true
	}
	if ev.ChatUsername != "" {
		return a.d.access.IsReviewerFor(ctx, ev.UserID, "@"+ev.ChatUsername)
	}
	return false
}

func (a *adjudicator) alreadyAdjudicated(ctl *chat.Control) bool {
	if !ctl.HasControls || strings.Contains(ctl.Caption, reviewAnnotation) {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.done[ctl.Message]
	return ok
}

func (a *adjudicator) markAdjudicated(ref chat.MessageRef) {
	now := a.d.opts.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	for r, at := range a.done {
		if now.Sub(at) > adjudicatedRetention {
			delete(a.done, r)
		}
	}
	a.done[ref] = now
}

func (a *adjudicator) notifyReporter(ctx context.Context, key adjudicationKey) {
	d := a.d
	text := fmt.Sprintf(msgReviewNotify, key.TargetIdentifier)

	link, err := d.store.GetGroupLink(ctx, key.SourceGroupID)
	if err == nil && link.GroupName != "" {
		text = fmt.Sprintf(msgReviewNotifyGroup, key.TargetIdentifier, link.GroupName)
	}

	d.sendMessage(ctx, chat.ID(key.ReporterID), text, nil)
}

func reviewerName(ev *chat.Event) string {
	switch {
	case ev.UserDisplayName != "":
		return ev.UserDisplayName
	case ev.Username != "":
		return "@" + ev.Username
	default:
		return chat.ID(ev.UserID)
	}
}

func annotateCaption(caption, reviewer string) string {
	annotation := reviewAnnotation + truncate(reviewer, reviewAnnotationRoom-utf8.RuneCountInString(reviewAnnotation)-2)
	if caption == "" {
		return annotation
	}
	return truncate(caption, captionLimit-reviewAnnotationRoom) + "\n\n" + annotation
}
