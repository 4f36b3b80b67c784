package chat

import "context"

// Button is a single inline control. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Controls is a keyboard of inline controls laid out in rows
type Controls [][]Button

// Row is a shortcut for a single-row keyboard
func Row(buttons ...Button) Controls {
	return Controls{buttons}
}

// Platform is the outbound side of the messaging platform
type Platform interface {
	SendText(ctx context.Context, chatID string, text string, controls Controls) (MessageRef, error)
	SendMedia(ctx context.Context, chatID string, mediaRef string, caption string, controls Controls) (MessageRef, error)
	// EditMessage replaces the caption of a media message. Nil controls remove the keyboard.
	EditMessage(ctx context.Context, ref MessageRef, caption string, controls Controls) error
	DeleteMessage(ctx context.Context, chatID string, messageID int) error
	// AnswerControl acknowledges a control press, text is shown as a toast when not empty
	AnswerControl(ctx context.Context, controlID string, text string) error
}
