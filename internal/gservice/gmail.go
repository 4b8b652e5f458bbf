// Package gservice wraps the Gmail API calls used by the tools.
package gservice

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hal9000y/gmail-reply-mcp/internal/auth"
)

const gmailUserID = "me"

// ThreadHeaders are the metadata headers fetched for every thread message.
var ThreadHeaders = []string{"From", "To", "Cc", "Subject", "Date", "Message-ID"}

type tokenSource interface {
	OAuthToken() (*oauth2.Token, error)
}

var _ tokenSource = (*auth.Token)(nil)

// NewGmail creates a Gmail client authorized by tok. Extra options are passed
// to gmail.NewService after the authorized HTTP client.
func NewGmail(cfg *oauth2.Config, tok tokenSource, opts ...option.ClientOption) *GMail {
	return &GMail{
		cfg:  cfg,
		tok:  tok,
		opts: opts,
	}
}

// GMail issues Gmail API requests on behalf of the authorized user.
type GMail struct {
	cfg  *oauth2.Config
	tok  tokenSource
	opts []option.ClientOption
}

// GetThread fetches thread metadata, messages ordered as returned by Gmail.
func (m *GMail) GetThread(ctx context.Context, threadID string) (*gmail.Thread, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	thread, err := svc.Users.Threads.Get(gmailUserID, threadID).
		Format("metadata").
		MetadataHeaders(ThreadHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("threads.Get failed: %w", err)
	}

	return thread, nil
}

// SendMessage submits a raw message.
func (m *GMail) SendMessage(ctx context.Context, msg *gmail.Message) (*gmail.Message, error) {
	svc, err := m.newSvc(ctx)
	if err != nil {
		return nil, fmt.Errorf("newSvc failed: %w", err)
	}

	sent, err := svc.Users.Messages.Send(gmailUserID, msg).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("messages.Send failed: %w", err)
	}

	return sent, nil
}

func (m *GMail) newSvc(ctx context.Context) (*gmail.Service, error) {
	t, err := m.tok.OAuthToken()
	if err != nil {
		return nil, fmt.Errorf("tok.OAuthToken failed: %w", err)
	}

	clt := m.cfg.Client(ctx, t)

	opts := append([]option.ClientOption{option.WithHTTPClient(clt)}, m.opts...)

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}
