package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/gmail/v1"
)

func TestMessageHeaders(t *testing.T) {
	cases := []struct {
		name     string
		payload  *gmail.MessagePart
		lookup   string
		expected string
	}{
		{
			name:     "nil payload",
			lookup:   "Message-ID",
			expected: "",
		},
		{
			name: "case insensitive",
			payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "Message-Id", Value: "<a@example.com>"},
			}},
			lookup:   "MESSAGE-ID",
			expected: "<a@example.com>",
		},
		{
			name: "last occurrence wins",
			payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "first"},
				{Name: "From", Value: "a@example.com"},
				{Name: "subject", Value: "second"},
			}},
			lookup:   "Subject",
			expected: "second",
		},
		{
			name: "nil entries skipped",
			payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				nil,
				{Name: "From", Value: "a@example.com"},
			}},
			lookup:   "From",
			expected: "a@example.com",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, newMessageHeaders(tc.payload).Get(tc.lookup))
		})
	}
}

func TestParseEmailAddressList(t *testing.T) {
	cases := []struct {
		name     string
		value    string
		expected []EmailAddress
	}{
		{name: "empty", value: "  "},
		{
			name:     "single bare",
			value:    "a@example.com",
			expected: []EmailAddress{{Email: "a@example.com"}},
		},
		{
			name:  "named list",
			value: `"Doe, Jane" <jane@example.com>, Bob <bob@example.com>`,
			expected: []EmailAddress{
				{Name: "Doe, Jane", Email: "jane@example.com"},
				{Name: "Bob", Email: "bob@example.com"},
			},
		},
		{
			name:     "unparsable kept raw",
			value:    " undisclosed-recipients ",
			expected: []EmailAddress{{Email: "undisclosed-recipients"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseEmailAddressList(tc.value))
		})
	}
}
