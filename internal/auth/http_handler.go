package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

type tok interface {
	AuthorizeCode(context.Context, string, string) error
	OAuthToken() (*oauth2.Token, error)
	RedirectURL() (string, error)
	StoreName() string
}

var _ tok = (*Token)(nil)

// TokenStatus is the /oauth status document.
type TokenStatus struct {
	Store       string `json:"store"`
	AccessToken string `json:"access_token"`
	Expiry      string `json:"expiry,omitempty"`
	Valid       bool   `json:"valid"`
	Refreshable bool   `json:"refreshable"`
}

// HTTPHandler serves the OAuth2 consent redirect, the callback and the token status.
type HTTPHandler struct {
	tok tok
}

// NewHTTPHandler creates an HTTP handler for OAuth2 flow.
func NewHTTPHandler(tok tok) *HTTPHandler {
	return &HTTPHandler{tok: tok}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("redirect") != "":
		h.consent(w, r)
	case q.Get("code") != "":
		h.callback(w, r, q.Get("code"), q.Get("state"))
	default:
		h.status(w)
	}
}

func (h *HTTPHandler) consent(w http.ResponseWriter, r *http.Request) {
	url, err := h.tok.RedirectURL()
	if err != nil {
		log.Println("h.tok.RedirectURL failed", err)
		http.Error(w, "Unable to start authorization", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *HTTPHandler) callback(w http.ResponseWriter, r *http.Request, code, state string) {
	if err := h.tok.AuthorizeCode(r.Context(), code, state); err != nil {
		log.Println("h.tok.AuthorizeCode failed", err)
		http.Error(w, "Unable to authorize provided code", http.StatusBadRequest)
		return
	}

	log.Println("OAuth token received, stored in", h.tok.StoreName())
	http.Redirect(w, r, r.URL.EscapedPath(), http.StatusFound)
}

func (h *HTTPHandler) status(w http.ResponseWriter) {
	t, err := h.tok.OAuthToken()
	if errors.Is(err, ErrTokenNotSet) {
		http.Error(w, "Token not found in "+h.tok.StoreName(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Println("h.tok.OAuthToken failed", err)
		http.Error(w, "Unable to read token", http.StatusInternalServerError)
		return
	}

	st := TokenStatus{
		Store:       h.tok.StoreName(),
		AccessToken: maskLeft(t.AccessToken),
		Valid:       t.Valid(),
		Refreshable: t.RefreshToken != "",
	}
	if !t.Expiry.IsZero() {
		st.Expiry = t.Expiry.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		log.Println("json.NewEncoder.Encode failed", err)
	}
}

func maskLeft(s string) string {
	rs := []rune(s)
	for i := 0; i < len(rs)-4; i++ {
		rs[i] = 'X'
	}
	return string(rs)
}
