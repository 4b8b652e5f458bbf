// Package auth handles OAuth2 token management and persistence.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrTokenNotSet indicates no OAuth token is available.
var ErrTokenNotSet = errors.New("no token defined")

// ErrInvalidState is returned when the callback state is unknown or expired.
var ErrInvalidState = errors.New("invalid or expired state parameter")

const stateTTL = 5 * time.Minute

// TokenStore loads and saves the OAuth token between runs.
// String names the backing storage for status output.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	String() string
}

// Token manages OAuth2 tokens with thread-safe operations.
type Token struct {
	mu         sync.RWMutex
	cfg        *oauth2.Config
	token      *oauth2.Token
	store      TokenStore
	stateStore map[string]time.Time
	now        func() time.Time
}

// NewToken creates a Token manager, loading a previously saved token from store.
// A nil store keeps the token in memory only.
func NewToken(cfg *oauth2.Config, store TokenStore) (*Token, error) {
	t := &Token{
		cfg:        cfg,
		store:      store,
		stateStore: make(map[string]time.Time),
		now:        time.Now,
	}
	if store == nil {
		return t, nil
	}

	token, err := store.Load()
	if errors.Is(err, ErrTokenNotSet) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store.Load failed: %w", err)
	}
	t.token = token

	return t, nil
}

// RedirectURL generates the OAuth2 consent URL with a fresh random state.
func (t *Token) RedirectURL() (string, error) {
	state, err := t.generateState()
	if err != nil {
		return "", fmt.Errorf("generateState failed: %w", err)
	}

	return t.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

func (t *Token) generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read failed: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.stateStore[state] = now.Add(stateTTL)

	for s, exp := range t.stateStore {
		if exp.Before(now) {
			delete(t.stateStore, s)
		}
	}

	return state, nil
}

// validateState consumes state; each state is accepted at most once.
func (t *Token) validateState(state string) bool {
	if state == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, exists := t.stateStore[state]
	if !exists {
		return false
	}

	delete(t.stateStore, state)

	return !t.now().After(expiry)
}

// AuthorizeCode exchanges an authorization code for a token after validating state.
func (t *Token) AuthorizeCode(ctx context.Context, code string, state string) error {
	if !t.validateState(state) {
		return ErrInvalidState
	}

	tok, err := t.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("cfg.Exchange failed: %w", err)
	}

	t.mu.Lock()
	t.token = tok
	t.mu.Unlock()

	if err := t.Persist(); err != nil {
		log.Println(fmt.Errorf("t.Persist failed: %w", err))
	}

	return nil
}

// OAuthToken returns the current OAuth2 token.
func (t *Token) OAuthToken() (*oauth2.Token, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.token == nil {
		return nil, ErrTokenNotSet
	}

	return t.token, nil
}

// StoreName names where the token is kept, "memory" without a store.
func (t *Token) StoreName() string {
	if t.store == nil {
		return "memory"
	}

	return t.store.String()
}

// Persist writes the current token to the store, if both exist.
func (t *Token) Persist() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.store == nil || t.token == nil {
		return nil
	}

	if err := t.store.Save(t.token); err != nil {
		return fmt.Errorf("store.Save failed: %w", err)
	}

	return nil
}
