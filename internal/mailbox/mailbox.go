// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mailbox supplies raw alert message bodies to the harvest pipeline.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message is one alert message. Its HTML is either Body or, when Body is
// empty, the concatenation of Parts.
type Message struct {
	ID    string
	From  string
	Body  string
	Parts []string
}

// HTML returns the message HTML. Parts are joined in order with no separator.
func (m Message) HTML() string {
	if m.Body != "" || len(m.Parts) == 0 {
		return m.Body
	}
	return strings.Join(m.Parts, "")
}

// Reader lists alert messages.
type Reader interface {
	Messages(ctx context.Context) ([]Message, error)
}

// DirReader reads messages exported to a directory. Files ending in .eml are
// parsed as RFC 5322 messages; .html and .htm files are taken as bodies.
// Other files are ignored.
type DirReader struct {
	Dir string

	// From, when set, keeps only .eml messages whose From header contains it.
	From string
}

// Messages returns the directory's messages ordered by file name. A missing
// directory yields no messages. Files that cannot be read or parsed are
// skipped; their errors are joined into the returned error alongside the
// messages that were read.
func (r DirReader) Messages(ctx context.Context) ([]Message, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading mailbox directory %s: %w", r.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		msgs []Message
		errs []error
	)
	for _, name := range names {
		select {
		case <-ctx.Done():
			return msgs, ctx.Err()
		default:
		}

		path := filepath.Join(r.Dir, name)
		id := strings.TrimSuffix(name, filepath.Ext(name))
		switch strings.ToLower(filepath.Ext(name)) {
		case ".html", ".htm":
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("reading %s: %w", path, err))
				continue
			}
			msgs = append(msgs, Message{ID: id, Body: string(data)})
		case ".eml":
			f, err := os.Open(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("opening %s: %w", path, err))
				continue
			}
			m, err := ParseMessage(id, f)
			f.Close()
			if err != nil {
				errs = append(errs, fmt.Errorf("parsing %s: %w", path, err))
				continue
			}
			if r.From != "" && !strings.Contains(strings.ToLower(m.From), strings.ToLower(r.From)) {
				continue
			}
			msgs = append(msgs, m)
		}
	}
	return msgs, errors.Join(errs...)
}

// ParseMessage reads an RFC 5322 message. A single-part text/html message
// fills Body; a multipart message contributes every inline text/html part,
// in order, to Parts. Transfer encodings and charsets are decoded.
func ParseMessage(id string, r io.Reader) (Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	msg := Message{ID: id, From: mr.Header.Get("From")}
	if id == "" {
		if mid, err := mr.Header.MessageID(); err == nil && mid != "" {
			msg.ID = mid
		}
	}

	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return Message{}, fmt.Errorf("reading part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if ct, _, err := h.ContentType(); err != nil || ct != "text/html" {
			continue
		}
		data, err := io.ReadAll(p.Body)
		if err != nil {
			return Message{}, fmt.Errorf("reading html part: %w", err)
		}
		parts = append(parts, string(data))
	}

	if ct, _, err := mr.Header.ContentType(); err == nil && !strings.HasPrefix(ct, "multipart/") {
		msg.Body = strings.Join(parts, "")
		return msg, nil
	}
	msg.Parts = parts
	return msg, nil
}
