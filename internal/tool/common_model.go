package tool

import (
	"net/textproto"
	"strings"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
)

// EmailAddress represents an email address with optional display name.
type EmailAddress struct {
	Name  string `json:"name,omitempty" jsonschema:"the display name"`
	Email string `json:"email" jsonschema:"the email address"`
}

// MessageSummary contains essential message metadata.
type MessageSummary struct {
	ID        string         `json:"id" jsonschema:"Gmail message ID"`
	ThreadID  string         `json:"thread_id" jsonschema:"thread ID"`
	MessageID string         `json:"message_id,omitempty" jsonschema:"RFC 822 Message-ID header"`
	Timestamp string         `json:"timestamp" jsonschema:"message timestamp"`
	From      EmailAddress   `json:"from" jsonschema:"sender information"`
	To        []EmailAddress `json:"to,omitempty" jsonschema:"recipients"`
	CC        []EmailAddress `json:"cc,omitempty" jsonschema:"CC recipients"`
	Subject   string         `json:"subject" jsonschema:"email subject"`
	Snippet   string         `json:"snippet" jsonschema:"message preview"`
}

// messageHeaders maps canonical header names to values. A repeated header
// keeps the value of its last occurrence.
type messageHeaders map[string]string

func newMessageHeaders(payload *gmail.MessagePart) messageHeaders {
	if payload == nil {
		return messageHeaders{}
	}

	h := make(messageHeaders, len(payload.Headers))
	for _, header := range payload.Headers {
		if header == nil {
			continue
		}
		h[textproto.CanonicalMIMEHeaderKey(header.Name)] = header.Value
	}

	return h
}

// Get is case-insensitive in name.
func (h messageHeaders) Get(name string) string {
	return h[textproto.CanonicalMIMEHeaderKey(name)]
}

func extractMessageSummary(msg *gmail.Message) MessageSummary {
	h := newMessageHeaders(msg.Payload)

	return MessageSummary{
		ID:        msg.Id,
		ThreadID:  msg.ThreadId,
		MessageID: h.Get("Message-ID"),
		Timestamp: h.Get("Date"),
		From:      parseEmailAddress(h.Get("From")),
		To:        parseEmailAddressList(h.Get("To")),
		CC:        parseEmailAddressList(h.Get("Cc")),
		Subject:   h.Get("Subject"),
		Snippet:   msg.Snippet,
	}
}

func parseEmailAddress(value string) EmailAddress {
	list := parseEmailAddressList(value)
	if len(list) == 0 {
		return EmailAddress{}
	}

	return list[0]
}

// parseEmailAddressList falls back to the trimmed raw value when it is not RFC 5322.
func parseEmailAddressList(value string) []EmailAddress {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		return []EmailAddress{{Email: value}}
	}

	result := make([]EmailAddress, 0, len(addrs))
	for _, a := range addrs {
		result = append(result, EmailAddress{Name: a.Name, Email: a.Address})
	}

	return result
}
