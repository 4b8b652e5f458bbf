package tool_test

import (
	"context"
	"sync"

	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-reply-mcp/internal/format"
)

type gmailSvcMock struct {
	GetThreadFunc   func(ctx context.Context, threadID string) (*gmail.Thread, error)
	SendMessageFunc func(ctx context.Context, msg *gmail.Message) (*gmail.Message, error)

	calls struct {
		GetThread []struct {
			ThreadID string
		}
		SendMessage []struct {
			Msg *gmail.Message
		}
	}
	lockGetThread   sync.RWMutex
	lockSendMessage sync.RWMutex
}

func (m *gmailSvcMock) GetThread(ctx context.Context, threadID string) (*gmail.Thread, error) {
	if m.GetThreadFunc == nil {
		panic("gmailSvcMock.GetThreadFunc: method is nil but gmailSvc.GetThread was just called")
	}
	m.lockGetThread.Lock()
	m.calls.GetThread = append(m.calls.GetThread, struct{ ThreadID string }{ThreadID: threadID})
	m.lockGetThread.Unlock()
	return m.GetThreadFunc(ctx, threadID)
}

func (m *gmailSvcMock) GetThreadCalls() []struct{ ThreadID string } {
	m.lockGetThread.RLock()
	defer m.lockGetThread.RUnlock()
	return m.calls.GetThread
}

func (m *gmailSvcMock) SendMessage(ctx context.Context, msg *gmail.Message) (*gmail.Message, error) {
	if m.SendMessageFunc == nil {
		panic("gmailSvcMock.SendMessageFunc: method is nil but gmailSvc.SendMessage was just called")
	}
	m.lockSendMessage.Lock()
	m.calls.SendMessage = append(m.calls.SendMessage, struct{ Msg *gmail.Message }{Msg: msg})
	m.lockSendMessage.Unlock()
	return m.SendMessageFunc(ctx, msg)
}

func (m *gmailSvcMock) SendMessageCalls() []struct{ Msg *gmail.Message } {
	m.lockSendMessage.RLock()
	defer m.lockSendMessage.RUnlock()
	return m.calls.SendMessage
}

type composerMock struct {
	ComposeReplyFunc func(r format.Reply) (string, error)
}

func (m *composerMock) ComposeReply(r format.Reply) (string, error) {
	if m.ComposeReplyFunc == nil {
		panic("composerMock.ComposeReplyFunc: method is nil but replyComposer.ComposeReply was just called")
	}
	return m.ComposeReplyFunc(r)
}
