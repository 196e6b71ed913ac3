package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/InboxSlash/inbox-slash/internal/history"
)

// GetMessage fetches and parses one message in full format.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*history.ParsedMessage, error) {
	var msg *gmail.Message
	err := c.call(ctx, func() error {
		m, err := c.svc.Users.Messages.Get(gmailUser, messageID).Format("full").Context(ctx).Do()
		msg = m
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return parseMessage(msg), nil
}

// GetThread fetches the minimal thread context the pipeline needs.
func (c *Client) GetThread(ctx context.Context, threadID string) (*history.Thread, error) {
	var thread *gmail.Thread
	err := c.call(ctx, func() error {
		t, err := c.svc.Users.Threads.Get(gmailUser, threadID).Format("minimal").Context(ctx).Do()
		thread = t
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	return &history.Thread{ID: thread.Id, MessageCount: len(thread.Messages)}, nil
}

// HasPriorFromDomain reports whether the mailbox holds any email from the
// sender's domain, outside the excluded thread, older than before. Prior
// contact from the same domain is a strong signal against "cold".
func (c *Client) HasPriorFromDomain(ctx context.Context, from string, before time.Time, excludeThreadID string) (bool, error) {
	domain := addressDomain(from)
	if domain == "" {
		return false, nil
	}

	query := fmt.Sprintf("from:%s before:%d", domain, before.Unix())

	var resp *gmail.ListMessagesResponse
	err := c.call(ctx, func() error {
		r, err := c.svc.Users.Messages.List(gmailUser).Q(query).MaxResults(5).Context(ctx).Do()
		resp = r
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to search prior mail from %s: %w", domain, err)
	}

	for _, m := range resp.Messages {
		if m.ThreadId != excludeThreadID {
			return true, nil
		}
	}
	return false, nil
}

// parseMessage flattens a Gmail message into the pipeline's shape.
func parseMessage(msg *gmail.Message) *history.ParsedMessage {
	parsed := &history.ParsedMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
	}
	if msg.InternalDate > 0 {
		parsed.InternalDate = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload == nil {
		return parsed
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			parsed.Headers.From = header.Value
		case "To":
			parsed.Headers.To = header.Value
		case "Reply-To":
			parsed.Headers.ReplyTo = header.Value
		case "Subject":
			parsed.Headers.Subject = header.Value
		case "Message-ID", "Message-Id":
			parsed.Headers.MessageID = header.Value
		}
	}

	walkParts(msg.Payload, parsed)
	return parsed
}

// walkParts recursively collects the text bodies of a multipart payload.
func walkParts(part *gmail.MessagePart, parsed *history.ParsedMessage) {
	if part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			switch part.MimeType {
			case "text/plain":
				if parsed.TextPlain == "" {
					parsed.TextPlain = string(data)
				}
			case "text/html":
				if parsed.TextHTML == "" {
					parsed.TextHTML = string(data)
				}
			}
		}
	}
	for _, sub := range part.Parts {
		walkParts(sub, parsed)
	}
}

// addressDomain extracts the domain from a possibly display-named address.
func addressDomain(from string) string {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}
