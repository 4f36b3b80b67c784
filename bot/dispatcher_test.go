package bot

import (
	"testing"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpAndStart(t *testing.T) {
	h := newHarness(t)

	h.send(h.private(200, "/start"))
	h.send(h.private(200, "/help@relaybot"))
	h.send(h.group(-500, 200, "/help"))

	assert.Equal(t, []string{msgHelp, msgHelp}, h.platform.textsTo("200"))
	assert.Equal(t, []string{msgGroupHelp}, h.platform.textsTo("-500"))
}

func TestUnknownInput(t *testing.T) {
	h := newHarness(t)

	h.send(h.private(200, "hello"))
	h.send(h.group(-500, 200, "hello everyone"))
	h.send(h.group(-500, 200, "/help@otherbot"))

	assert.Equal(t, []string{msgUnknownInput}, h.platform.textsTo("200"))
	assert.Empty(t, h.platform.textsTo("-500"))
}

func TestStaleControlIsAnswered(t *testing.T) {
	h := newHarness(t)

	press := h.press(200, setupControlPrefix+"yes")
	h.send(press)

	answer, ok := h.platform.answerFor(press.Control.ID)
	require.True(t, ok)
	assert.Equal(t, msgStaleControl, answer)
	assert.Empty(t, h.platform.textsTo("200"))
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	h.send(h.private(200, "/cancel"))
	assert.Equal(t, msgNothingToCancel, h.platform.lastTextTo(t, "200").Text)

	h.send(h.private(200, "/setup"))
	require.Equal(t, 1, h.d.engine.Len())
	h.send(h.private(200, "/cancel"))
	assert.Equal(t, msgCancelled, h.platform.lastTextTo(t, "200").Text)
	assert.Zero(t, h.d.engine.Len())

	data := h.startReport(-500, 200)
	h.send(h.private(200, "/cancel"))
	assert.Equal(t, msgPendingReportDiscarded, h.platform.lastTextTo(t, "200").Text)

	h.send(h.press(200, data))
	assert.Equal(t, msgReportStale, h.platform.lastTextTo(t, "200").Text)
	assert.Zero(t, h.d.engine.Len())
}

func TestCancelDropsReportInProgress(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	h.send(h.press(200, h.startReport(-500, 200)))
	h.send(h.private(200, "@spammer"))
	h.send(h.private(200, "/cancel"))
	h.send(h.photo(200, "photo"))

	assert.Empty(t, h.platform.mediaSent())
	assert.Equal(t, msgUnknownInput, h.platform.lastTextTo(t, "200").Text)
}

func TestNewEntryRejectedWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")

	h.send(h.private(200, "/setup"))
	h.send(h.private(200, "/deleteconfig"))

	assert.Equal(t, msgBusy, h.platform.lastTextTo(t, "200").Text)
	s, ok := h.d.engine.Active(conversation.Key{ChatID: 200, UserID: 200})
	require.True(t, ok)
	assert.Equal(t, setupFlowID, s.Flow)
	assert.Equal(t, stateAwaitingDestination, s.State)
}

func TestBusyDoesNotBlockOtherChats(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	h.send(h.private(200, "/setup"))
	data := h.startReport(-500, 200)
	assert.NotEmpty(t, data)
}

func TestIdleSessionExpires(t *testing.T) {
	h := newHarnessWithTimeout(t, time.Minute)

	h.send(h.private(200, "/setup"))
	h.now = h.now.Add(2 * time.Minute)
	h.send(h.private(200, "-1001"))

	assert.Equal(t, msgUnknownInput, h.platform.lastTextTo(t, "200").Text)
	assert.Zero(t, h.d.engine.Len())
}

func TestQueueKey(t *testing.T) {
	h := newHarness(t)

	msg := h.group(-500, 200, "/report")
	assert.Equal(t, "conv:-500:200", QueueKey(msg))

	press := h.press(200, reportControlPrefix+"x")
	assert.Equal(t, "conv:200:200", QueueKey(press))

	review := h.reviewPress(300, sentMessage{
		Ref:      chat.MessageRef{ChatID: "-1001", MessageID: 9},
		Controls: chat.Row(chat.Button{Data: adjudicationKey{SourceGroupID: -500, ReporterID: 200, TargetIdentifier: "@x"}.Encode()}),
	})
	assert.Equal(t, "msg:-1001:9", QueueKey(review))
}

func TestCancelInGroupIsSilent(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	h.send(h.group(-500, 300, "/cancel"))

	data := h.startReport(-500, 200)
	h.send(h.group(-500, 200, "/cancel"))

	assert.Empty(t, h.platform.textsTo("-500"))

	// The pending draft is still discarded
	h.send(h.press(200, data))
	assert.Equal(t, msgReportStale, h.platform.lastTextTo(t, "200").Text)
}

func TestCommandForAnotherBotIsNotReportContent(t *testing.T) {
	h := newHarness(t)
	h.configure(100, "-1001")
	h.link(-500, "-1001")

	h.send(h.press(200, h.startReport(-500, 200)))
	h.send(h.private(200, "/help@otherbot"))

	assert.Equal(t, msgReportTargetBad, h.platform.lastTextTo(t, "200").Text)
	s, ok := h.d.engine.Active(conversation.Key{ChatID: 200, UserID: 200})
	require.True(t, ok)
	assert.Equal(t, stateAwaitingTarget, s.State)
}
