package bot

import (
	"testing"

	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"

	"github.com/stretchr/testify/assert"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"-1001234567890", "-1001234567890", true},
		{"  -4012345  ", "-4012345", true},
		{"@review_room", "@review_room", true},
		{"https://t.me/c/1234567890/15", "-1001234567890", true},
		{"t.me/c/1234567890/15?thread=3", "-1001234567890", true},
		{"https://t.me/review_room/42", "@review_room", true},
		{"0", "", false},
		{"", "", false},
		{"@ab", "", false},
		{"review room", "", false},
		{"https://t.me/review_room", "", false},
		{"https://example.com/c/1/2", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseDestination(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReviewers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ids   []int64
		bad   []string
	}{
		{"none", "none", nil, nil},
		{"none any case", " None ", nil, nil},
		{"single", "42", []int64{42}, nil},
		{"list with spaces", "1, 2 ,3", []int64{1, 2, 3}, nil},
		{"trailing comma", "1,2,", []int64{1, 2}, nil},
		{"bad tokens", "1, @bob, -5", []int64{1}, []string{"@bob", "-5"}},
		{"empty", "", nil, []string{""}},
		{"only commas", ",,", nil, []string{",,"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, bad := parseReviewers(tt.input)
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, tt.bad, bad)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "trun…", truncate("truncated", 5))
	assert.Equal(t, "при…", truncate("привет", 4))
}

func TestFormatConfig(t *testing.T) {
	cfg := storage.NewOwnerConfig(100, "-1001", []int64{5})

	assert.Equal(t, "Review channel: -1001\nReviewers: 5, 100 (you)", formatConfig(&cfg))
}

func TestFormatGroupList(t *testing.T) {
	list := formatGroupList([]storage.GroupLink{
		{GroupID: -1, GroupName: "Chat"},
		{GroupID: -2},
	})

	assert.Equal(t, []string{"- Chat (-1)", "- -2"}, list)
}
