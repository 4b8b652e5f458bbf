package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/gmail/v1"
)

// GetThreadRequest identifies the thread to read.
type GetThreadRequest struct {
	ThreadID string `json:"thread_id" jsonschema:"the Gmail thread ID"`
}

// GetThreadResponse lists thread messages and the headers a reply would carry.
type GetThreadResponse struct {
	ThreadID string           `json:"thread_id" jsonschema:"thread ID"`
	Messages []MessageSummary `json:"messages" jsonschema:"messages in the order Gmail returns them"`
	Reply    *ReplyHeaders    `json:"reply,omitempty" jsonschema:"headers of a reply to this thread, absent when the thread cannot be replied to"`
}

// ReplyHeaders are the headers reply_to_gmail_thread would set.
type ReplyHeaders struct {
	To        string `json:"to" jsonschema:"recipient, taken from From of the last message"`
	Subject   string `json:"subject" jsonschema:"subject line"`
	InReplyTo string `json:"in_reply_to" jsonschema:"In-Reply-To and References value"`
}

type getThreadSvc interface {
	GetThread(ctx context.Context, threadID string) (*gmail.Thread, error)
}

// NewGetThread creates a new GetThread tool.
func NewGetThread(svc getThreadSvc) *GetThread {
	return &GetThread{svc: svc}
}

// GetThread reads thread metadata.
type GetThread struct {
	svc getThreadSvc
}

// GetThread is the MCP handler for get_thread.
func (t *GetThread) GetThread(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetThreadRequest,
) (*mcp.CallToolResult, GetThreadResponse, error) {
	if input.ThreadID == "" {
		return nil, GetThreadResponse{}, fmt.Errorf("%w: thread_id is required", ErrInvalidRequest)
	}

	thread, err := t.svc.GetThread(ctx, input.ThreadID)
	if err != nil {
		return nil, GetThreadResponse{}, fmt.Errorf("get thread %s failed: %w", input.ThreadID, err)
	}
	if thread == nil {
		return nil, GetThreadResponse{}, fmt.Errorf("thread %s: %w", input.ThreadID, ErrInvalidResponse)
	}

	messages := make([]MessageSummary, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		if msg == nil {
			continue
		}
		messages = append(messages, extractMessageSummary(msg))
	}

	resp := GetThreadResponse{
		ThreadID: input.ThreadID,
		Messages: messages,
	}

	// threads without a usable last message are still listed, just not replyable
	if reply, err := replyFromThread(thread); err == nil {
		resp.Reply = &ReplyHeaders{
			To:        reply.To,
			Subject:   reply.Subject,
			InReplyTo: reply.InReplyTo,
		}
	}

	return nil, resp, nil
}
