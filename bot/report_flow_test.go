package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/conversation"
	"git.skobk.in/skobkin/telegram-report-relay-bot/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportInUnlinkedGroup(t *testing.T) {
	h := newHarness(t)

	h.send(h.group(-500, 200, "/report"))

	assert.Equal(t, []string{msgReportNotLinked}, h.platform.textsTo("-500"))
	assert.Empty(t, h.platform.textsTo("200"))
	assert.False(t, h.d.reports.discardPending(200))
}

func TestReportOnlyInGroups(t *testing.T) {
	h := newHarness(t)

	h.send(h.private(200, "/report"))

	assert.Equal(t, []string{msgReportGroupOnly}, h.platform.textsTo("200"))
	assert.Zero(t, h.d.engine.Len())
}

func TestReportFullFlow(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	trigger := h.group(-500, 200, "/report")
	h.send(trigger)

	assert.Contains(t, h.platform.deletes, chat.MessageRef{ChatID: "-500", MessageID: trigger.MessageID})
	dm := h.platform.lastTextTo(t, "200")
	assert.Equal(t, fmt.Sprintf(msgReportConfirm, "Test group"), dm.Text)
	require.Len(t, dm.Controls, 1)

	h.send(h.press(200, dm.Controls[0][0].Data))
	assert.Equal(t, msgReportTargetAsk, h.platform.lastTextTo(t, "200").Text)

	h.send(h.private(200, "@spammer"))
	assert.Equal(t, msgReportDescAsk, h.platform.lastTextTo(t, "200").Text)

	h.send(h.private(200, "spam"))
	assert.Equal(t, msgReportEvidenceAsk, h.platform.lastTextTo(t, "200").Text)

	h.send(h.private(200, "there is no screenshot"))
	assert.Equal(t, msgReportEvidenceBad, h.platform.lastTextTo(t, "200").Text)

	h.send(h.photo(200, "photo-file-id"))
	assert.Equal(t, msgReportDelivered, h.platform.lastTextTo(t, "200").Text)

	media := h.platform.mediaSent()
	require.Len(t, media, 1)
	report := media[0]
	assert.Equal(t, "-1001", report.Ref.ChatID)
	assert.Equal(t, "photo-file-id", report.Media)
	assert.Contains(t, report.Text, "@spammer")
	assert.Contains(t, report.Text, "spam")
	assert.Contains(t, report.Text, "Test group (-500)")
	assert.Contains(t, report.Text, "User 200 (200)")
	require.Len(t, report.Controls, 1)
	assert.True(t, isAdjudicationControl(&chat.Event{Control: &chat.Control{Data: report.Controls[0][0].Data}}))

	assert.Zero(t, h.d.engine.Len())
	assert.False(t, h.d.reports.discardPending(200))

	// The confirmation control is spent
	h.send(h.press(200, dm.Controls[0][0].Data))
	assert.Equal(t, msgReportStale, h.platform.lastTextTo(t, "200").Text)
	assert.Zero(t, h.d.engine.Len())
}

func TestReportRepromptsOnEmptyInput(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	h.send(h.press(200, h.startReport(-500, 200)))
	h.send(h.photo(200, "photo"))

	assert.Equal(t, msgReportTargetBad, h.platform.lastTextTo(t, "200").Text)
	s, ok := h.d.engine.Active(conversation.Key{ChatID: 200, UserID: 200})
	require.True(t, ok)
	assert.Equal(t, stateAwaitingTarget, s.State)

	h.send(h.private(200, "   "))
	assert.Equal(t, msgReportTargetBad, h.platform.lastTextTo(t, "200").Text)
}

func TestReportDeepLinkWhenPrivateChatClosed(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")
	h.platform.failNextText("200", 1)

	h.send(h.group(-500, 200, "/report"))

	fallback := h.platform.lastTextTo(t, "-500")
	assert.Equal(t, msgReportOpenPrivate, fallback.Text)
	require.Len(t, fallback.Controls, 1)
	url := fallback.Controls[0][0].URL
	require.True(t, strings.HasPrefix(url, "https://t.me/relaybot?start=rpt_"))

	draftID := strings.TrimPrefix(url, "https://t.me/relaybot?start=rpt_")
	h.send(h.private(200, "/start rpt_"+draftID))

	assert.Equal(t, msgReportTargetAsk, h.platform.lastTextTo(t, "200").Text)
	s, ok := h.d.engine.Active(conversation.Key{ChatID: 200, UserID: 200})
	require.True(t, ok)
	assert.Equal(t, reportFlowID, s.Flow)
}

func TestReportCommandDeleteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")
	h.platform.failDelete = errPlatform

	data := h.startReport(-500, 200)
	h.send(h.press(200, data))

	assert.Equal(t, msgReportTargetAsk, h.platform.lastTextTo(t, "200").Text)
}

func TestReportStaleConfirmation(t *testing.T) {
	h := newHarness(t)

	press := h.press(200, reportControlPrefix+"unknown")
	h.send(press)

	assert.Equal(t, msgReportStale, h.platform.lastTextTo(t, "200").Text)
	assert.Zero(t, h.d.engine.Len())
	_, answered := h.platform.answerFor(press.Control.ID)
	assert.True(t, answered)
}

func TestReportNewTriggerReplacesPendingDraft(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	first := h.startReport(-500, 200)
	second := h.startReport(-500, 200)
	require.NotEqual(t, first, second)

	h.send(h.press(200, first))
	assert.Equal(t, msgReportStale, h.platform.lastTextTo(t, "200").Text)

	h.send(h.press(200, second))
	assert.Equal(t, msgReportTargetAsk, h.platform.lastTextTo(t, "200").Text)
}

func TestReportPendingDraftExpires(t *testing.T) {
	h := newHarnessWithTimeout(t, time.Hour)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	data := h.startReport(-500, 200)
	h.now = h.now.Add(2 * time.Hour)
	h.send(h.press(200, data))

	assert.Equal(t, msgReportStale, h.platform.lastTextTo(t, "200").Text)
}

func TestReportDestinationFixedAtCreation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	h.send(h.press(200, h.startReport(-500, 200)))

	// Owner moves to another channel while the report is in progress
	require.NoError(t, h.store.DeleteConfig(ctx, 100))
	h.configure(100, "-1002")
	h.link(-500, "-1002")

	h.send(h.private(200, "@spammer"))
	h.send(h.private(200, "spam"))
	h.send(h.photo(200, "photo"))

	media := h.platform.mediaSent()
	require.Len(t, media, 1)
	assert.Equal(t, "-1001", media[0].Ref.ChatID)
}

func TestReportDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")
	h.platform.failMedia = errPlatform

	h.send(h.press(200, h.startReport(-500, 200)))
	h.send(h.private(200, "@spammer"))
	h.send(h.private(200, "spam"))
	h.send(h.photo(200, "photo"))

	assert.Equal(t, msgReportFailed, h.platform.lastTextTo(t, "200").Text)
	assert.Zero(t, h.d.engine.Len())
	assert.Empty(t, h.platform.mediaSent())
}

func TestConcurrentReportsInSameGroup(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	first := h.startReport(-500, 201)
	second := h.startReport(-500, 202)

	// Remaining steps of both reporters interleave on the pool
	pool := worker.NewPool[string, *chat.Event](context.Background(), 4, h.d.Dispatch)
	events := []*chat.Event{
		h.press(201, first),
		h.press(202, second),
		h.private(202, "@second-target"),
		h.private(201, "@first-target"),
		h.private(201, "first description"),
		h.private(202, "second description"),
		h.photo(202, "second-photo"),
		h.photo(201, "first-photo"),
	}
	for _, ev := range events {
		require.NoError(t, pool.Submit(QueueKey(ev), ev))
	}
	pool.Stop()

	media := h.platform.mediaSent()
	require.Len(t, media, 2)

	byRef := map[string]string{}
	for _, m := range media {
		byRef[m.Media] = m.Text
	}
	assert.Contains(t, byRef["first-photo"], "@first-target")
	assert.Contains(t, byRef["first-photo"], "first description")
	assert.NotContains(t, byRef["first-photo"], "second")
	assert.Contains(t, byRef["second-photo"], "@second-target")
	assert.Contains(t, byRef["second-photo"], "second description")
	assert.NotContains(t, byRef["second-photo"], "first")

	assert.Equal(t, msgReportDelivered, h.platform.lastTextTo(t, "201").Text)
	assert.Equal(t, msgReportDelivered, h.platform.lastTextTo(t, "202").Text)
	assert.Zero(t, h.d.engine.Len())
}

func TestFormatReportCaptionFitsLimit(t *testing.T) {
	draft := &ReportDraft{
		ReporterName:     "Reporter",
		ReporterID:       1,
		SourceGroupName:  "Group",
		SourceGroupID:    -2,
		TargetIdentifier: "@target",
		Description:      strings.Repeat("a", 5000),
	}

	caption := formatReportCaption(draft)

	assert.LessOrEqual(t, len([]rune(caption)), captionLimit-reviewAnnotationRoom)
	assert.True(t, strings.HasSuffix(caption, "…"))
	assert.Contains(t, caption, "@target")
}
