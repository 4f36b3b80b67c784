// Package chat defines the inbound events and outbound operations the bot core
// exchanges with the messaging platform.
package chat

import (
	"strconv"
	"strings"
)

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
	ChatChannel ChatType = "channel"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaOther MediaKind = "other"
)

// Media is an attachment of an inbound message
type Media struct {
	Ref  string
	Kind MediaKind
}

// MessageRef identifies a message the bot has sent or received
type MessageRef struct {
	ChatID    string
	MessageID int
}

// Control is a press on an inline control attached to a message
type Control struct {
	ID      string
	Data    string
	Message MessageRef
	// Caption is the current caption or text of the message carrying the control
	Caption string
	// HasControls is false when the message no longer carries any controls
	HasControls bool
	// Answered is set once the press has been acknowledged
	Answered bool
}

// Event is one inbound update, already stripped of platform details
type Event struct {
	ChatID          int64
	ChatType        ChatType
	ChatTitle       string
	ChatUsername    string
	UserID          int64
	UserDisplayName string
	Username        string
	MessageID       int

	Text        string
	Command     string
	CommandArgs string

	Media   *Media
	Control *Control
}

func (e *Event) IsPrivate() bool {
	return e.ChatType == ChatPrivate
}

func (e *Event) IsGroup() bool {
	return e.ChatType == ChatGroup
}

// IsCommand reports whether the event is the given slash command
func (e *Event) IsCommand(name string) bool {
	return e.Command != "" && e.Command == name
}

// PlainText returns trimmed text of a non-command message. Commands
// addressed to other bots are not plain text either.
func (e *Event) PlainText() string {
	if e.Command != "" {
		return ""
	}
	text := strings.TrimSpace(e.Text)
	if strings.HasPrefix(text, "/") {
		return ""
	}
	return text
}

// ControlData returns the payload of a pressed control or an empty string
func (e *Event) ControlData() string {
	if e.Control == nil {
		return ""
	}
	return e.Control.Data
}

// ParseCommand splits "/cmd@bot args" into command name and arguments.
// botUsername may be empty, then any addressee is accepted.
func ParseCommand(text, botUsername string) (command string, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if name, addressee, found := strings.Cut(head, "@"); found {
		if botUsername != "" && !strings.EqualFold(addressee, botUsername) {
			return "", ""
		}
		head = name
	}
	if head == "" {
		return "", ""
	}

	return strings.ToLower(head), strings.TrimSpace(rest)
}

// ID converts a numeric chat or user id into the outbound chat id form
func ID(id int64) string {
	return strconv.FormatInt(id, 10)
}
