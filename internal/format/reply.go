// Package format builds and parses the MIME documents sent through the Gmail API.
package format

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"
)

// Reply holds the headers and body of a threaded reply.
type Reply struct {
	To         string
	Subject    string
	InReplyTo  string
	References string
	HTMLBody   string
}

// Composer serializes replies into Gmail raw messages.
type Composer struct{}

// ComposeReply renders r as MIME and returns it base64url encoded, padding kept.
func (c Composer) ComposeReply(r Reply) (string, error) {
	raw, err := BuildReply(r)
	if err != nil {
		return "", fmt.Errorf("BuildReply failed: %w", err)
	}

	return base64.URLEncoding.EncodeToString(raw), nil
}

// BuildReply renders r as a multipart message with a single HTML part.
// References falls back to InReplyTo when unset.
func BuildReply(r Reply) ([]byte, error) {
	var h mail.Header
	h.Set("MIME-Version", "1.0")
	setRecipients(&h, r.To)
	h.SetSubject(r.Subject)

	refs := r.References
	if refs == "" {
		refs = r.InReplyTo
	}
	if r.InReplyTo != "" {
		h.Set("In-Reply-To", r.InReplyTo)
	}
	if refs != "" {
		h.Set("References", refs)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("mail.CreateWriter failed: %w", err)
	}

	var ih mail.InlineHeader
	ih.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	ih.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := mw.CreateSingleInline(ih)
	if err != nil {
		return nil, fmt.Errorf("mw.CreateSingleInline failed: %w", err)
	}
	if _, err := io.WriteString(pw, r.HTMLBody); err != nil {
		return nil, fmt.Errorf("pw.Write failed: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("pw.Close failed: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mw.Close failed: %w", err)
	}

	return buf.Bytes(), nil
}

// setRecipients keeps the raw value when it is not a valid address list.
func setRecipients(h *mail.Header, to string) {
	if strings.TrimSpace(to) == "" {
		return
	}

	addrs, err := mail.ParseAddressList(to)
	if err != nil || len(addrs) == 0 {
		h.Set("To", to)
		return
	}

	h.SetAddressList("To", addrs)
}

// DecodeReply reverses ComposeReply.
func DecodeReply(raw string) (Reply, error) {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(raw)
		if err != nil {
			return Reply{}, fmt.Errorf("base64 decode failed: %w", err)
		}
	}

	return ParseReply(data)
}

// ParseReply reads back a document produced by BuildReply.
func ParseReply(data []byte) (Reply, error) {
	mr, err := mail.CreateReader(bytes.NewReader(data))
	if err != nil {
		return Reply{}, fmt.Errorf("mail.CreateReader failed: %w", err)
	}
	defer func() { _ = mr.Close() }()

	subject, err := mr.Header.Subject()
	if err != nil {
		return Reply{}, fmt.Errorf("header.Subject failed: %w", err)
	}

	r := Reply{
		To:         recipients(mr.Header),
		Subject:    subject,
		InReplyTo:  mr.Header.Get("In-Reply-To"),
		References: mr.Header.Get("References"),
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Reply{}, fmt.Errorf("mr.NextPart failed: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "text/html" {
			continue
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return Reply{}, fmt.Errorf("read html part failed: %w", err)
		}
		r.HTMLBody = string(body)
	}

	return r, nil
}

// recipients renders the decoded To list without MIME encoding, so a
// non-ASCII display name reads as it did before BuildReply encoded it.
func recipients(h mail.Header) string {
	addrs, err := h.AddressList("To")
	if err != nil || len(addrs) == 0 {
		return h.Get("To")
	}

	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, displayAddress(a))
	}

	return strings.Join(parts, ", ")
}

func displayAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}

	name := a.Name
	if !isPhrase(name) {
		name = quoteName(name)
	}

	return name + " <" + a.Address + ">"
}

const atextSpecials = "!#$%&'*+-/=?^_`{|}~"

// isPhrase reports whether name can be written unquoted as a display name.
func isPhrase(name string) bool {
	if name == "" || strings.TrimSpace(name) != name || strings.Contains(name, "  ") || strings.Contains(name, "=?") {
		return false
	}

	for _, r := range name {
		switch {
		case r == ' ', unicode.IsLetter(r), unicode.IsDigit(r):
		case r >= utf8.RuneSelf && unicode.IsMark(r):
		case r < utf8.RuneSelf && strings.ContainsRune(atextSpecials, r):
		default:
			return false
		}
	}

	return true
}

func quoteName(name string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')

	return b.String()
}
