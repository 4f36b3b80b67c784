package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"

	"github.com/stretchr/testify/require"
)

const testBotUsername = "relaybot"

var (
	errPlatform = errors.New("platform unavailable")
	errDatabase = errors.New("database is locked")
)

type sentMessage struct {
	Ref      chat.MessageRef
	Text     string
	Media    string
	Controls chat.Controls
}

type editedMessage struct {
	Ref      chat.MessageRef
	Caption  string
	Controls chat.Controls
}

type answeredControl struct {
	ID   string
	Text string
}

// fakePlatform records every outbound call
type fakePlatform struct {
	mu sync.Mutex

	lastID   int
	texts    []sentMessage
	media    []sentMessage
	edits    []editedMessage
	deletes  []chat.MessageRef
	answers  []answeredControl
	failText map[string]int

	failMedia  error
	failEdit   error
	failDelete error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{failText: make(map[string]int)}
}

// failNextText makes the next n text messages to chatID fail
func (p *fakePlatform) failNextText(chatID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failText[chatID] = n
}

func (p *fakePlatform) SendText(_ context.Context, chatID string, text string, controls chat.Controls) (chat.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failText[chatID] > 0 {
		p.failText[chatID]--
		return chat.MessageRef{}, errPlatform
	}

	p.lastID++
	ref := chat.MessageRef{ChatID: chatID, MessageID: p.lastID}
	p.texts = append(p.texts, sentMessage{Ref: ref, Text: text, Controls: controls})
	return ref, nil
}

func (p *fakePlatform) SendMedia(_ context.Context, chatID string, mediaRef string, caption string, controls chat.Controls) (chat.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failMedia != nil {
		return chat.MessageRef{}, p.failMedia
	}

	p.lastID++
	ref := chat.MessageRef{ChatID: chatID, MessageID: p.lastID}
	p.media = append(p.media, sentMessage{Ref: ref, Text: caption, Media: mediaRef, Controls: controls})
	return ref, nil
}

func (p *fakePlatform) EditMessage(_ context.Context, ref chat.MessageRef, caption string, controls chat.Controls) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failEdit != nil {
		return p.failEdit
	}
	p.edits = append(p.edits, editedMessage{Ref: ref, Caption: caption, Controls: controls})
	return nil
}

func (p *fakePlatform) DeleteMessage(_ context.Context, chatID string, messageID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failDelete != nil {
		return p.failDelete
	}
	p.deletes = append(p.deletes, chat.MessageRef{ChatID: chatID, MessageID: messageID})
	return nil
}

func (p *fakePlatform) AnswerControl(_ context.Context, controlID string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.answers = append(p.answers, answeredControl{ID: controlID, Text: text})
	return nil
}

// textsTo returns texts sent to chatID in order
func (p *fakePlatform) textsTo(chatID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, m := range p.texts {
		if m.Ref.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (p *fakePlatform) lastTextTo(t *testing.T, chatID string) sentMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.texts) - 1; i >= 0; i-- {
		if p.texts[i].Ref.ChatID == chatID {
			return p.texts[i]
		}
	}
	require.FailNow(t, "no message sent", "chat %s", chatID)
	return sentMessage{}
}

func (p *fakePlatform) answerFor(controlID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, a := range p.answers {
		if a.ID == controlID {
			return a.Text, true
		}
	}
	return "", false
}

func (p *fakePlatform) mediaSent() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.media...)
}

func (p *fakePlatform) editsMade() []editedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]editedMessage(nil), p.edits...)
}

type harness struct {
	t        *testing.T
	platform *fakePlatform
	store    *storage.Storage
	d        *Dispatcher
	now      time.Time
	seq      int
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithTimeout(t, 0)
}

func newHarnessWithTimeout(t *testing.T, idle time.Duration) *harness {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := storage.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)

	h := &harness{
		t:        t,
		platform: newFakePlatform(),
		store:    store,
		now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	h.d = NewDispatcher(h.platform, store, DispatcherOptions{
		BotUsername: testBotUsername,
		IdleTimeout: idle,
		Now:         func() time.Time { return h.now },
	})

	return h
}

// failingStore breaks selected writes of the wrapped storage
type failingStore struct {
	*storage.Storage
	deleteErr error
	linkErr   error
}

func (s *failingStore) DeleteConfig(ctx context.Context, ownerID int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Storage.DeleteConfig(ctx, ownerID)
}

func (s *failingStore) LinkGroup(ctx context.Context, link storage.GroupLink) error {
	if s.linkErr != nil {
		return s.linkErr
	}
	return s.Storage.LinkGroup(ctx, link)
}

// useStore rebuilds the dispatcher on top of store, keeping the harness storage for assertions
func (h *harness) useStore(store Store) {
	h.d = NewDispatcher(h.platform, store, DispatcherOptions{
		BotUsername: testBotUsername,
		Now:         func() time.Time { return h.now },
	})
}

func (h *harness) send(ev *chat.Event) {
	h.d.Dispatch(context.Background(), ev)
}

// configure stores a ready config for owner
func (h *harness) configure(owner int64, destination string, reviewers ...int64) {
	h.t.Helper()
	require.NoError(h.t, h.store.PutConfig(context.Background(), storage.NewOwnerConfig(owner, destination, reviewers)))
}

func (h *harness) link(groupID int64, destination string) {
	h.t.Helper()
	require.NoError(h.t, h.store.LinkGroup(context.Background(), storage.GroupLink{
		GroupID:       groupID,
		DestinationID: destination,
		GroupName:     "Test group",
	}))
}

func (h *harness) nextMessageID() int {
	h.seq++
	return h.seq
}

func (h *harness) private(user int64, text string) *chat.Event {
	command, args := chat.ParseCommand(text, testBotUsername)
	return &chat.Event{
		ChatID:          user,
		ChatType:        chat.ChatPrivate,
		UserID:          user,
		UserDisplayName: fmt.Sprintf("User %d", user),
		MessageID:       h.nextMessageID(),
		Text:            text,
		Command:         command,
		CommandArgs:     args,
	}
}

func (h *harness) group(groupID, user int64, text string) *chat.Event {
	ev := h.private(user, text)
	ev.ChatID = groupID
	ev.ChatType = chat.ChatGroup
	ev.ChatTitle = "Test group"
	return ev
}

func (h *harness) photo(user int64, ref string) *chat.Event {
	ev := h.private(user, "")
	ev.Media = &chat.Media{Ref: ref, Kind: chat.MediaImage}
	return ev
}

// press simulates a control press in the private chat of user
func (h *harness) press(user int64, data string) *chat.Event {
	ev := h.private(user, "")
	ev.Control = &chat.Control{
		ID:          fmt.Sprintf("cb-%d", ev.MessageID),
		Data:        data,
		Message:     chat.MessageRef{ChatID: chat.ID(user), MessageID: ev.MessageID},
		HasControls: true,
	}
	return ev
}

// reviewPress simulates a reviewer pressing the control of a posted report
func (h *harness) reviewPress(user int64, report sentMessage) *chat.Event {
	id := h.nextMessageID()
	var channelID int64
	_, err := fmt.Sscan(report.Ref.ChatID, &channelID)
	require.NoError(h.t, err)

	return &chat.Event{
		ChatID:          channelID,
		ChatType:        chat.ChatChannel,
		UserID:          user,
		UserDisplayName: fmt.Sprintf("Reviewer %d", user),
		Control: &chat.Control{
			ID:          fmt.Sprintf("cb-%d", id),
			Data:        report.Controls[0][0].Data,
			Message:     report.Ref,
			Caption:     report.Text,
			HasControls: len(report.Controls) > 0,
		},
	}
}

// startReport runs /report in groupID and returns the confirmation control data
func (h *harness) startReport(groupID, user int64) string {
	h.t.Helper()
	h.send(h.group(groupID, user, "/report"))

	dm := h.platform.lastTextTo(h.t, chat.ID(user))
	require.Len(h.t, dm.Controls, 1)
	require.True(h.t, strings.HasPrefix(dm.Controls[0][0].Data, reportControlPrefix))
	return dm.Controls[0][0].Data
}
