package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/conversation"
	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"

	"github.com/google/uuid"
)

const (
	reportFlowID conversation.FlowID = "report"

	stateAwaitingTarget      conversation.State = "awaiting-target"
	stateAwaitingDescription conversation.State = "awaiting-description"
	stateAwaitingEvidence    conversation.State = "awaiting-evidence"

	reportControlPrefix   = "rpt:"
	reportDeepLinkPrefix  = "rpt_"
	reportDeepLinkCommand = "start"
)

// ReportDraft is a report being collected from one user. The destination is
// resolved when the draft is created and never changes afterwards.
type ReportDraft struct {
	ID              string
	ReporterID      int64
	ReporterName    string
	SourceGroupID   int64
	SourceGroupName string
	DestinationID   string

	TargetIdentifier string
	Description      string
	EvidenceRef      string

	CreatedAt time.Time
}

// Complete reports whether every content field is filled
func (r *ReportDraft) Complete() bool {
	return r.TargetIdentifier != "" && r.Description != "" && r.EvidenceRef != ""
}

// reportFlow keeps drafts created in groups until their reporter confirms
// them in the private chat. From then on the draft is session scratch.
type reportFlow struct {
	d *Dispatcher

	mu      sync.Mutex
	pending map[int64]*ReportDraft
}

func newReportFlow(d *Dispatcher) *reportFlow {
	return &reportFlow{
		d:       d,
		pending: make(map[int64]*ReportDraft),
	}
}

func (r *reportFlow) flow() *conversation.Flow {
	return &conversation.Flow{
		ID: reportFlowID,
		Entries: []conversation.Transition{
			{Match: conversation.All(conversation.Private(), isReportConfirmation), Handle: r.confirm},
		},
		States: map[conversation.State][]conversation.Transition{
			stateAwaitingTarget: {
				{Match: conversation.AnyText(), Handle: r.target},
			},
			stateAwaitingDescription: {
				{Match: conversation.AnyText(), Handle: r.description},
			},
			stateAwaitingEvidence: {
				{Match: conversation.MediaOf(chat.MediaImage), Handle: r.evidence},
			},
		},
		Otherwise: r.reprompt,
	}
}

func isReportConfirmation(ev *chat.Event) bool {
	_, ok := reportToken(ev)
	return ok
}

// reportToken extracts the draft id from a confirmation press or a /start deep link
func reportToken(ev *chat.Event) (string, bool) {
	if data := ev.ControlData(); strings.HasPrefix(data, reportControlPrefix) {
		return strings.TrimPrefix(data, reportControlPrefix), true
	}
	if ev.IsCommand(reportDeepLinkCommand) && strings.HasPrefix(ev.CommandArgs, reportDeepLinkPrefix) {
		return strings.TrimPrefix(ev.CommandArgs, reportDeepLinkPrefix), true
	}
	return "", false
}

// triggerHandler creates a draft from /report inside a linked group
func (r *reportFlow) triggerHandler(ctx context.Context, ev *chat.Event) error {
	d := r.d
	if !ev.IsGroup() {
		d.reply(ctx, ev, msgReportGroupOnly, nil)
		return nil
	}

	destination, err := d.store.DestinationFor(ctx, ev.ChatID)
	if errors.Is(err, storage.ErrNotFound) {
		d.reply(ctx, ev, msgReportNotLinked, nil)
		return nil
	}
	if err != nil {
		return err
	}

	draft := &ReportDraft{
		ID:              uuid.NewString(),
		ReporterID:      ev.UserID,
		ReporterName:    ev.UserDisplayName,
		SourceGroupID:   ev.ChatID,
		SourceGroupName: ev.ChatTitle,
		DestinationID:   destination,
		CreatedAt:       d.opts.Now(),
	}

	r.mu.Lock()
	r.pending[ev.UserID] = draft
	r.mu.Unlock()

	slog.Info("bot: Report draft created", "draft_id", draft.ID, "user_id", ev.UserID,
		"group_id", ev.ChatID, "destination_id", destination)

	_, err = d.platform.SendText(ctx, chat.ID(ev.UserID),
		fmt.Sprintf(msgReportConfirm, draft.SourceGroupName),
		chat.Row(chat.Button{Text: msgReportConfirmButton, Data: reportControlPrefix + draft.ID}),
	)
	if err != nil {
		// Bots cannot start private chats, so point the user to a deep link instead
		slog.Info("bot: Cannot message reporter privately, sending deep link", "error", err, "user_id", ev.UserID)
		d.reply(ctx, ev, msgReportOpenPrivate, r.deepLinkControls(draft))
	}

	if ev.MessageID != 0 {
		if err := d.platform.DeleteMessage(ctx, chat.ID(ev.ChatID), ev.MessageID); err != nil {
			slog.Warn("bot: Failed to delete report command", "error", err,
				"chat_id", ev.ChatID, "message_id", ev.MessageID)
		}
	}

	return nil
}

func (r *reportFlow) deepLinkControls(draft *ReportDraft) chat.Controls {
	if r.d.opts.BotUsername == "" {
		return nil
	}
	link := fmt.Sprintf("https://t.me/%s?%s=%s%s", r.d.opts.BotUsername, reportDeepLinkCommand, reportDeepLinkPrefix, draft.ID)
	return chat.Row(chat.Button{Text: msgReportOpenButton, URL: link})
}

// takePending removes and returns the pending draft with the given id
func (r *reportFlow) takePending(userID int64, id string) (*ReportDraft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draft, ok := r.pending[userID]
	if !ok || draft.ID != id {
		return nil, false
	}
	delete(r.pending, userID)

	if timeout := r.d.opts.IdleTimeout; timeout > 0 && r.d.opts.Now().Sub(draft.CreatedAt) > timeout {
		slog.Info("bot: Pending report draft expired", "draft_id", draft.ID, "user_id", userID)
		return nil, false
	}

	return draft, true
}

// discardPending drops the unconfirmed draft of a user
func (r *reportFlow) discardPending(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[userID]; !ok {
		return false
	}
	delete(r.pending, userID)
	return true
}

func (r *reportFlow) confirm(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	token, _ := reportToken(ev)

	draft, ok := r.takePending(ev.UserID, token)
	if !ok {
		r.d.answerControl(ctx, ev, "")
		r.d.reply(ctx, ev, msgReportStale, nil)
		return conversation.End(), nil
	}

	s.Scratch = draft
	r.d.answerControl(ctx, ev, "")
	r.d.reply(ctx, ev, msgReportTargetAsk, nil)
	return conversation.Next(stateAwaitingTarget), nil
}

func (r *reportFlow) target(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	s.Scratch.(*ReportDraft).TargetIdentifier = ev.PlainText()
	r.d.reply(ctx, ev, msgReportDescAsk, nil)
	return conversation.Next(stateAwaitingDescription), nil
}

func (r *reportFlow) description(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	s.Scratch.(*ReportDraft).Description = ev.PlainText()
	r.d.reply(ctx, ev, msgReportEvidenceAsk, nil)
	return conversation.Next(stateAwaitingEvidence), nil
}

func (r *reportFlow) evidence(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	draft := s.Scratch.(*ReportDraft)
	draft.EvidenceRef = ev.Media.Ref

	if err := r.deliver(ctx, draft); err != nil {
		slog.Error("bot: Failed to deliver report", "error", err, "draft_id", draft.ID,
			"user_id", draft.ReporterID, "destination_id", draft.DestinationID)
		r.d.reply(ctx, ev, msgReportFailed, nil)
		return conversation.End(), nil
	}

	r.d.reply(ctx, ev, msgReportDelivered, nil)
	return conversation.End(), nil
}

func (r *reportFlow) reprompt(ctx context.Context, ev *chat.Event, s *conversation.Session) (conversation.Result, error) {
	switch s.State {
	case stateAwaitingTarget:
		r.d.reply(ctx, ev, msgReportTargetBad, nil)
	case stateAwaitingDescription:
		r.d.reply(ctx, ev, msgReportDescBad, nil)
	case stateAwaitingEvidence:
		r.d.reply(ctx, ev, msgReportEvidenceBad, nil)
	}
	return conversation.Stay(), nil
}

// deliver posts a complete draft to its destination with a review control
func (r *reportFlow) deliver(ctx context.Context, draft *ReportDraft) error {
	if !draft.Complete() {
		return fmt.Errorf("draft %s is incomplete", draft.ID)
	}

	key := adjudicationKey{
		SourceGroupID:    draft.SourceGroupID,
		ReporterID:       draft.ReporterID,
		TargetIdentifier: draft.TargetIdentifier,
	}
	controls := chat.Row(chat.Button{Text: msgReviewButton, Data: key.Encode()})

	ref, err := r.d.platform.SendMedia(ctx, draft.DestinationID, draft.EvidenceRef, formatReportCaption(draft), controls)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	slog.Info("bot: Report delivered", "draft_id", draft.ID, "user_id", draft.ReporterID,
		"group_id", draft.SourceGroupID, "destination_id", draft.DestinationID, "message_id", ref.MessageID)
	return nil
}

func formatReportCaption(draft *ReportDraft) string {
	header := fmt.Sprintf("New report from %s (%d)\nGroup: %s (%d)\nReported user: %s\n\n",
		draft.ReporterName, draft.ReporterID,
		draft.SourceGroupName, draft.SourceGroupID,
		draft.TargetIdentifier,
	)

	// Leave room for the review annotation appended later
	room := captionLimit - reviewAnnotationRoom - len([]rune(header))
	if room < 1 {
		return truncate(header, captionLimit-reviewAnnotationRoom)
	}
	return header + truncate(draft.Description, room)
}
