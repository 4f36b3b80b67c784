package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Images sent as files are marked so they are delivered the same way
const documentRefPrefix = "doc:"

// telegramPlatform implements chat.Platform on top of the Bot API
type telegramPlatform struct {
	api *telego.Bot
}

func newTelegramPlatform(api *telego.Bot) *telegramPlatform {
	return &telegramPlatform{api: api}
}

func (p *telegramPlatform) SendText(ctx context.Context, chatID string, text string, controls chat.Controls) (chat.MessageRef, error) {
	message := tu.Message(telegramChatID(chatID), text)
	if kb := inlineKeyboard(controls); kb != nil {
		message.ReplyMarkup = kb
	}

	sent, err := p.api.SendMessage(ctx, message)
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("send message: %w", err)
	}

	return chat.MessageRef{ChatID: chat.ID(sent.Chat.ID), MessageID: sent.MessageID}, nil
}

func (p *telegramPlatform) SendMedia(ctx context.Context, chatID string, mediaRef string, caption string, controls chat.Controls) (chat.MessageRef, error) {
	var (
		sent *telego.Message
		err  error
	)

	kb := inlineKeyboard(controls)
	caption = truncate(caption, captionLimit)

	if fileID, ok := strings.CutPrefix(mediaRef, documentRefPrefix); ok {
		params := tu.Document(telegramChatID(chatID), tu.FileFromID(fileID))
		params.Caption = caption
		if kb != nil {
			params.ReplyMarkup = kb
		}
		sent, err = p.api.SendDocument(ctx, params)
	} else {
		params := tu.Photo(telegramChatID(chatID), tu.FileFromID(mediaRef))
		params.Caption = caption
		if kb != nil {
			params.ReplyMarkup = kb
		}
		sent, err = p.api.SendPhoto(ctx, params)
	}
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("send media: %w", err)
	}

	return chat.MessageRef{ChatID: chat.ID(sent.Chat.ID), MessageID: sent.MessageID}, nil
}

func (p *telegramPlatform) EditMessage(ctx context.Context, ref chat.MessageRef, caption string, controls chat.Controls) error {
	// Omitting the markup removes the inline keyboard
	_, err := p.api.EditMessageCaption(ctx, &telego.EditMessageCaptionParams{
		ChatID:      telegramChatID(ref.ChatID),
		MessageID:   ref.MessageID,
		Caption:     truncate(caption, captionLimit),
		ReplyMarkup: inlineKeyboard(controls),
	})
	if err != nil {
		return fmt.Errorf("edit caption: %w", err)
	}
	return nil
}

func (p *telegramPlatform) DeleteMessage(ctx context.Context, chatID string, messageID int) error {
	err := p.api.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    telegramChatID(chatID),
		MessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (p *telegramPlatform) AnswerControl(ctx context.Context, controlID string, text string) error {
	params := tu.CallbackQuery(controlID)
	if text != "" {
		params.Text = text
	}

	if err := p.api.AnswerCallbackQuery(ctx, params); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

// telegramChatID converts an outbound chat id, numeric or @username
func telegramChatID(chatID string) telego.ChatID {
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return tu.ID(id)
	}
	return tu.Username(chatID)
}

func inlineKeyboard(controls chat.Controls) *telego.InlineKeyboardMarkup {
	if len(controls) == 0 {
		return nil
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(controls))
	for _, row := range controls {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			button := tu.InlineKeyboardButton(b.Text)
			if b.URL != "" {
				button = button.WithURL(b.URL)
			} else {
				button = button.WithCallbackData(b.Data)
			}
			buttons = append(buttons, button)
		}
		rows = append(rows, tu.InlineKeyboardRow(buttons...))
	}

	return tu.InlineKeyboard(rows...)
}

// eventFromUpdate strips an update down to what the dispatcher needs.
// Updates the bot does not act on are reported as not ok.
func eventFromUpdate(update telego.Update, botUsername string) (*chat.Event, bool) {
	switch {
	case update.Message != nil:
		return eventFromMessage(update.Message, botUsername)
	case update.CallbackQuery != nil:
		return eventFromCallback(update.CallbackQuery)
	default:
		return nil, false
	}
}

func eventFromMessage(msg *telego.Message, botUsername string) (*chat.Event, bool) {
	if msg.From == nil || msg.From.IsBot {
		return nil, false
	}

	ev := &chat.Event{
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Media:     mediaOf(msg),
	}
	fillChat(ev, msg.Chat)
	fillUser(ev, msg.From)
	ev.Command, ev.CommandArgs = chat.ParseCommand(msg.Text, botUsername)

	return ev, true
}

func eventFromCallback(q *telego.CallbackQuery) (*chat.Event, bool) {
	if q.Message == nil {
		slog.Debug("bot: Callback query without message ignored", "user_id", q.From.ID)
		return nil, false
	}

	ev := &chat.Event{}
	fillChat(ev, q.Message.GetChat())
	fillUser(ev, &q.From)

	ctl := &chat.Control{
		ID:   q.ID,
		Data: q.Data,
		Message: chat.MessageRef{
			ChatID:    chat.ID(ev.ChatID),
			MessageID: q.Message.GetMessageID(),
		},
	}
	if msg, ok := q.Message.(*telego.Message); ok {
		ctl.Caption = msg.Caption
		if ctl.Caption == "" {
			ctl.Caption = msg.Text
		}
		ctl.HasControls = msg.ReplyMarkup != nil && len(msg.ReplyMarkup.InlineKeyboard) > 0
	}
	ev.Control = ctl

	return ev, true
}

func fillChat(ev *chat.Event, c telego.Chat) {
	ev.ChatID = c.ID
	ev.ChatTitle = c.Title
	ev.ChatUsername = c.Username

	switch c.Type {
	case telego.ChatTypePrivate:
		ev.ChatType = chat.ChatPrivate
	case telego.ChatTypeGroup, telego.ChatTypeSupergroup:
		ev.ChatType = chat.ChatGroup
	default:
		ev.ChatType = chat.ChatChannel
	}
}

func fillUser(ev *chat.Event, u *telego.User) {
	ev.UserID = u.ID
	ev.Username = u.Username
	ev.UserDisplayName = strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// mediaOf picks the attachment of a message. Photos use their largest size.
func mediaOf(msg *telego.Message) *chat.Media {
	switch {
	case len(msg.Photo) > 0:
		return &chat.Media{Ref: msg.Photo[len(msg.Photo)-1].FileID, Kind: chat.MediaImage}
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		return &chat.Media{Ref: documentRefPrefix + msg.Document.FileID, Kind: chat.MediaImage}
	case msg.Document != nil:
		return &chat.Media{Ref: documentRefPrefix + msg.Document.FileID, Kind: chat.MediaOther}
	case msg.Video != nil:
		return &chat.Media{Ref: msg.Video.FileID, Kind: chat.MediaOther}
	case msg.Animation != nil:
		return &chat.Media{Ref: msg.Animation.FileID, Kind: chat.MediaOther}
	case msg.Sticker != nil:
		return &chat.Media{Ref: msg.Sticker.FileID, Kind: chat.MediaOther}
	case msg.Voice != nil:
		return &chat.Media{Ref: msg.Voice.FileID, Kind: chat.MediaOther}
	default:
		return nil
	}
}
