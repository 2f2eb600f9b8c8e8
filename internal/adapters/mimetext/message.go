package mimetext

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/deadline-triage/internal/core"
)

// maxPartSize bounds how much of a single text part is read
const maxPartSize = 1 << 20

// Message is a parsed RFC 5322 message reduced to what triage needs
type Message struct {
	MessageID string
	Subject   string
	From      string
	To        []string
	Date      time.Time
	Plain     string
	HTML      string
}

// Text returns the plain text body, falling back to the HTML part stripped of markup
func (m *Message) Text() string {
	return PreferText(m.Plain, m.HTML)
}

// Envelope converts the message for the triage pipeline. Messages without a
// Message-ID fall back to fallbackID. Either way the id is not a Gmail id.
func (m *Message) Envelope(fallbackID string) *core.Envelope {
	id := m.MessageID
	if id == "" {
		id = fallbackID
	}
	text := m.Text()
	return &core.Envelope{
		ID:         id,
		ThreadID:   id,
		Subject:    m.Subject,
		Sender:     m.From,
		Snippet:    Snippet(text, 200),
		Body:       text,
		ReceivedAt: m.Date,
		LocalID:    true,
	}
}

// PreferText picks the plain body when present, else the HTML converted to text
func PreferText(plain, html string) string {
	if strings.TrimSpace(plain) != "" {
		return strings.TrimSpace(plain)
	}
	if strings.TrimSpace(html) != "" {
		return HTMLToText(html)
	}
	return ""
}

// Snippet returns the first max runes of text with whitespace collapsed
func Snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max])
}

// Parse reads a message and collects its inline text parts. Nested multiparts
// are walked; attachments are skipped.
func Parse(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}
	defer mr.Close()

	msg := &Message{}
	h := mr.Header

	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}
	if id, err := h.MessageID(); err == nil {
		msg.MessageID = id
	}
	if date, err := h.Date(); err == nil {
		msg.Date = date
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].String()
	} else {
		msg.From = h.Get("From")
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, addr := range to {
			msg.To = append(msg.To, addr.Address)
		}
	}

	var plain, html strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// Keep whatever text was read before the broken part
			if plain.Len() > 0 || html.Len() > 0 {
				break
			}
			return nil, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()

		switch {
		case strings.HasPrefix(contentType, "text/plain"), contentType == "":
			if err := appendPart(&plain, part.Body); err != nil {
				continue
			}
		case strings.HasPrefix(contentType, "text/html"):
			if err := appendPart(&html, part.Body); err != nil {
				continue
			}
		}
	}

	msg.Plain = plain.String()
	msg.HTML = html.String()
	return msg, nil
}

func appendPart(b *strings.Builder, body io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(body, maxPartSize))
	if err != nil {
		return err
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.Write(data)
	return nil
}
