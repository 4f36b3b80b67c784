package conversation

import (
	"regexp"
	"strings"

	"git.skobk.in/skobkin/telegram-report-relay-bot/chat"
)

// Command matches the slash command name
func Command(name string) Matcher {
	return func(ev *chat.Event) bool {
		return ev.IsCommand(name)
	}
}

// AnyText matches any plain text message, commands excluded
func AnyText() Matcher {
	return func(ev *chat.Event) bool {
		return ev.Control == nil && ev.PlainText() != ""
	}
}

// ExactText matches plain text equal to one of the options, ignoring case
func ExactText(options ...string) Matcher {
	return func(ev *chat.Event) bool {
		text := ev.PlainText()
		for _, opt := range options {
			if strings.EqualFold(text, opt) {
				return true
			}
		}
		return false
	}
}

// Pattern matches plain text against re
func Pattern(re *regexp.Regexp) Matcher {
	return func(ev *chat.Event) bool {
		text := ev.PlainText()
		return text != "" && re.MatchString(text)
	}
}

// MediaOf matches messages carrying an attachment of the given kind
func MediaOf(kind chat.MediaKind) Matcher {
	return func(ev *chat.Event) bool {
		return ev.Media != nil && ev.Media.Kind == kind
	}
}

// ControlEqual matches presses on a control with exactly this payload
func ControlEqual(data string) Matcher {
	return func(ev *chat.Event) bool {
		return ev.Control != nil && ev.Control.Data == data
	}
}

// ControlPrefix matches presses on controls whose payload starts with prefix
func ControlPrefix(prefix string) Matcher {
	return func(ev *chat.Event) bool {
		return ev.Control != nil && strings.HasPrefix(ev.Control.Data, prefix)
	}
}

func Private() Matcher {
	return func(ev *chat.Event) bool {
		return ev.IsPrivate()
	}
}

func Group() Matcher {
	return func(ev *chat.Event) bool {
		return ev.IsGroup()
	}
}

// All matches when every matcher does
func All(matchers ...Matcher) Matcher {
	return func(ev *chat.Event) bool {
		for _, m := range matchers {
			if !m(ev) {
				return false
			}
		}
		return true
	}
}

// AnyOf matches when at least one matcher does
func AnyOf(matchers ...Matcher) Matcher {
	return func(ev *chat.Event) bool {
		for _, m := range matchers {
			if m(ev) {
				return true
			}
		}
		return false
	}
}
