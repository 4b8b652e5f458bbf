package tool

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-reply-mcp/internal/format"
)

var (
	// ErrInvalidRequest is returned for tool input that cannot be served.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidResponse is returned when Gmail answers without a thread record.
	ErrInvalidResponse = errors.New("thread response is not a thread record")
	// ErrEmptyThread is returned when the thread has no message to reply to.
	ErrEmptyThread = errors.New("thread has no messages")
	// ErrNonCompliantThread is returned when the last message lacks a Message-ID header.
	ErrNonCompliantThread = errors.New("last message has no RFC Message-ID header")
	// ErrSendFailed wraps any error returned by the send call.
	ErrSendFailed = errors.New("send failed")
)

// ReplyToThreadRequest is the input of the reply tool.
type ReplyToThreadRequest struct {
	Message  string `json:"message" jsonschema:"the HTML message body to send"`
	ThreadID string `json:"thread_id" jsonschema:"the Gmail thread ID to reply to"`
}

// ReplyToThreadResponse confirms a sent reply.
type ReplyToThreadResponse struct {
	Message   string `json:"message" jsonschema:"confirmation text"`
	MessageID string `json:"message_id" jsonschema:"ID Gmail assigned to the sent reply"`
	ThreadID  string `json:"thread_id" jsonschema:"thread the reply was added to"`
}

type replyToThreadSvc interface {
	GetThread(ctx context.Context, threadID string) (*gmail.Thread, error)
	SendMessage(ctx context.Context, msg *gmail.Message) (*gmail.Message, error)
}

type replyComposer interface {
	ComposeReply(r format.Reply) (string, error)
}

// NewReplyToThread creates a new ReplyToThread tool.
func NewReplyToThread(svc replyToThreadSvc, cmp replyComposer) *ReplyToThread {
	return &ReplyToThread{
		svc: svc,
		cmp: cmp,
	}
}

// ReplyToThread answers the latest message of a Gmail thread.
type ReplyToThread struct {
	svc replyToThreadSvc
	cmp replyComposer
}

// ReplyToThread is the MCP handler for reply_to_gmail_thread.
func (t *ReplyToThread) ReplyToThread(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReplyToThreadRequest,
) (*mcp.CallToolResult, ReplyToThreadResponse, error) {
	sent, err := t.Reply(ctx, input.ThreadID, input.Message)
	if err != nil {
		return nil, ReplyToThreadResponse{}, err
	}

	return nil, ReplyToThreadResponse{
		Message:   fmt.Sprintf("Message sent. Message Id: %s", sent.Id),
		MessageID: sent.Id,
		ThreadID:  input.ThreadID,
	}, nil
}

// Reply sends htmlBody as a reply to the last message of the thread and
// returns the message Gmail created. Nothing is retried.
func (t *ReplyToThread) Reply(ctx context.Context, threadID, htmlBody string) (*gmail.Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread_id is required", ErrInvalidRequest)
	}

	thread, err := t.svc.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread %s failed: %w", threadID, err)
	}

	reply, err := replyFromThread(thread)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, err)
	}
	reply.HTMLBody = htmlBody

	raw, err := t.cmp.ComposeReply(reply)
	if err != nil {
		return nil, fmt.Errorf("cmp.ComposeReply failed: %w", err)
	}

	sent, err := t.svc.SendMessage(ctx, &gmail.Message{
		Raw:      raw,
		ThreadId: threadID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if sent == nil {
		return nil, fmt.Errorf("%w: empty response", ErrSendFailed)
	}

	log.Printf("Reply %s sent to thread %s", sent.Id, threadID)

	return sent, nil
}

// replyFromThread derives the reply headers from the last message, taking
// Gmail's message order as chronological.
func replyFromThread(thread *gmail.Thread) (format.Reply, error) {
	if thread == nil {
		return format.Reply{}, ErrInvalidResponse
	}
	if len(thread.Messages) == 0 {
		return format.Reply{}, ErrEmptyThread
	}

	last := thread.Messages[len(thread.Messages)-1]
	if last == nil {
		return format.Reply{}, ErrInvalidResponse
	}

	h := newMessageHeaders(last.Payload)

	msgID := h.Get("Message-ID")
	if msgID == "" {
		return format.Reply{}, ErrNonCompliantThread
	}

	return format.Reply{
		To:         h.Get("From"),
		Subject:    h.Get("Subject"),
		InReplyTo:  msgID,
		References: msgID,
	}, nil
}
