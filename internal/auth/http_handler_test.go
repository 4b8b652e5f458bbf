package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hal9000y/gmail-reply-mcp/internal/auth"
)

type tokMock struct {
	token       *oauth2.Token
	redirectURL string
	authErr     error
	store       string
	gotCode     string
	gotState    string
}

func (m *tokMock) AuthorizeCode(_ context.Context, code, state string) error {
	m.gotCode, m.gotState = code, state
	return m.authErr
}

func (m *tokMock) OAuthToken() (*oauth2.Token, error) {
	if m.token == nil {
		return nil, auth.ErrTokenNotSet
	}
	return m.token, nil
}

func (m *tokMock) RedirectURL() (string, error) {
	return m.redirectURL, nil
}

func (m *tokMock) StoreName() string {
	return m.store
}

func TestHTTPHandler(t *testing.T) {
	cases := []struct {
		name         string
		tok          *tokMock
		target       string
		expectedCode int
		expectedLoc  string
		expectedBody string
	}{
		{
			name:         "redirect to consent",
			tok:          &tokMock{redirectURL: "https://accounts.example.com/auth?state=s"},
			target:       "/oauth?redirect=1",
			expectedCode: http.StatusFound,
			expectedLoc:  "https://accounts.example.com/auth?state=s",
		},
		{
			name:         "callback accepted",
			tok:          &tokMock{},
			target:       "/oauth?code=c1&state=s1",
			expectedCode: http.StatusFound,
			expectedLoc:  "/oauth",
		},
		{
			name:         "callback rejected",
			tok:          &tokMock{authErr: errors.New("boom")},
			target:       "/oauth?code=c1&state=s1",
			expectedCode: http.StatusBadRequest,
			expectedBody: "Unable to authorize provided code",
		},
		{
			name:         "no token",
			tok:          &tokMock{store: "keyring"},
			target:       "/oauth",
			expectedCode: http.StatusUnauthorized,
			expectedBody: "Token not found in keyring",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)

			auth.NewHTTPHandler(tc.tok).ServeHTTP(rec, req)

			require.Equal(t, tc.expectedCode, rec.Code)
			if tc.expectedLoc != "" {
				assert.Equal(t, tc.expectedLoc, rec.Header().Get("Location"))
			}
			if tc.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tc.expectedBody)
			}
		})
	}
}

func TestHTTPHandlerStatus(t *testing.T) {
	cases := []struct {
		name     string
		tok      *tokMock
		expected auth.TokenStatus
	}{
		{
			name: "valid token in file store",
			tok: &tokMock{store: "file ./data/token.json", token: &oauth2.Token{
				AccessToken:  "ya29-secret-abcd",
				RefreshToken: "1//refresh",
				Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
			}},
			expected: auth.TokenStatus{
				Store:       "file ./data/token.json",
				AccessToken: "XXXXXXXXXXXXabcd",
				Valid:       true,
				Refreshable: true,
			},
		},
		{
			name: "expired token in keyring",
			tok: &tokMock{store: "keyring", token: &oauth2.Token{
				AccessToken: "ya29-old-wxyz",
				Expiry:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			}},
			expected: auth.TokenStatus{
				Store:       "keyring",
				AccessToken: "XXXXXXXXXwxyz",
				Expiry:      "2020-01-01T00:00:00Z",
			},
		},
		{
			name: "token without expiry in memory",
			tok:  &tokMock{store: "memory", token: &oauth2.Token{AccessToken: "abcd"}},
			expected: auth.TokenStatus{
				Store:       "memory",
				AccessToken: "abcd",
				Valid:       true,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/oauth", nil)

			auth.NewHTTPHandler(tc.tok).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got auth.TokenStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			if tc.expected.Expiry == "" && !tc.tok.token.Expiry.IsZero() {
				tc.expected.Expiry = tc.tok.token.Expiry.Format(time.RFC3339)
			}
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestHTTPHandlerPassesCallbackParams(t *testing.T) {
	tok := &tokMock{}
	req := httptest.NewRequest(http.MethodGet, "/oauth?code=the-code&state=the-state", nil)

	auth.NewHTTPHandler(tok).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "the-code", tok.gotCode)
	assert.Equal(t, "the-state", tok.gotState)
}
