package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/InboxSlash/inbox-slash/internal/history"
)

// Forward sends the message's content to another recipient as a new mail.
func (c *Client) Forward(ctx context.Context, msg *history.ParsedMessage, to string) error {
	self, err := c.profileEmail(ctx)
	if err != nil {
		return err
	}

	var body strings.Builder
	body.WriteString("---------- Forwarded message ----------\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", msg.Headers.From))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n\r\n", msg.Headers.Subject))
	body.WriteString(msg.Content())

	raw, err := buildMessage(self, to, "Fwd: "+msg.Headers.Subject, "", body.String())
	if err != nil {
		return err
	}

	err = c.call(ctx, func() error {
		_, err := c.svc.Users.Messages.Send(gmailUser, &gmail.Message{Raw: raw}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to forward message %s to %s: %w", msg.ID, to, err)
	}

	logrus.WithFields(logrus.Fields{"messageId": msg.ID, "to": to}).Info("Forwarded message")
	return nil
}

// Reply sends body as a reply on the message's thread.
func (c *Client) Reply(ctx context.Context, msg *history.ParsedMessage, body string) error {
	self, err := c.profileEmail(ctx)
	if err != nil {
		return err
	}

	raw, err := buildMessage(self, replyRecipient(msg), replySubject(msg.Headers.Subject), msg.Headers.MessageID, body)
	if err != nil {
		return err
	}

	err = c.call(ctx, func() error {
		_, err := c.svc.Users.Messages.Send(gmailUser, &gmail.Message{Raw: raw, ThreadId: msg.ThreadID}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reply on thread %s: %w", msg.ThreadID, err)
	}

	logrus.WithField("threadId", msg.ThreadID).Info("Sent reply")
	return nil
}

// CreateDraft stores body as a reply draft on the message's thread.
func (c *Client) CreateDraft(ctx context.Context, msg *history.ParsedMessage, body string) error {
	self, err := c.profileEmail(ctx)
	if err != nil {
		return err
	}

	raw, err := buildMessage(self, replyRecipient(msg), replySubject(msg.Headers.Subject), msg.Headers.MessageID, body)
	if err != nil {
		return err
	}

	err = c.call(ctx, func() error {
		_, err := c.svc.Users.Drafts.Create(gmailUser, &gmail.Draft{
			Message: &gmail.Message{Raw: raw, ThreadId: msg.ThreadID},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create draft on thread %s: %w", msg.ThreadID, err)
	}

	logrus.WithField("threadId", msg.ThreadID).Info("Created draft")
	return nil
}

// buildMessage assembles a single-part RFC 5322 message and returns it
// base64url-encoded the way the Gmail API expects raw payloads.
func buildMessage(from, to, subject, inReplyTo, body string) (string, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	if inReplyTo != "" {
		h.Set("In-Reply-To", inReplyTo)
		h.Set("References", inReplyTo)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize message: %w", err)
	}

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

func replyRecipient(msg *history.ParsedMessage) string {
	if msg.Headers.ReplyTo != "" {
		return msg.Headers.ReplyTo
	}
	return msg.Headers.From
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
