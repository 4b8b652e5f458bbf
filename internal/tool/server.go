package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type gmailSvc interface {
	replyToThreadSvc
	getThreadSvc
}

// NewServer creates an MCP server with the Gmail thread tools.
func NewServer(svc gmailSvc, cmp replyComposer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "gmail-reply", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reply_to_gmail_thread",
		Description: "Use this tool to reply to email messages on a thread. The input is the thread_id and message.",
	}, NewReplyToThread(svc, cmp).ReplyToThread)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_thread",
		Description: "Get message summaries of a Gmail thread and the headers a reply to it would use",
	}, NewGetThread(svc).GetThread)

	return server
}
