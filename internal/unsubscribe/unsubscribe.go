// Package unsubscribe keeps mail from senders the user unsubscribed from out
// of the inbox.
package unsubscribe

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// DefaultLabel is applied to blocked messages.
const DefaultLabel = "Unsubscribed"

// SenderStore looks up the user's block list.
type SenderStore interface {
	IsSenderBlocked(userID uint, email string) (bool, error)
}

// Service implements history.UnsubscribeChecker.
type Service struct {
	store     SenderStore
	labelName string
}

// NewService creates a new unsubscribe checker
func NewService(store SenderStore) *Service {
	return &Service{store: store, labelName: DefaultLabel}
}

// Check reports whether the sender is blocked and, if so, archives and labels
// the message itself. A blocked result terminates the candidate's pipeline.
func (s *Service) Check(ctx context.Context, user *model.User, mbox history.Mailbox, msg *history.ParsedMessage) (bool, error) {
	addr := normalizeAddress(msg.Headers.From)
	if addr == "" {
		return false, nil
	}

	blocked, err := s.store.IsSenderBlocked(user.ID, addr)
	if err != nil {
		return false, fmt.Errorf("block-list lookup failed: %w", err)
	}
	if !blocked {
		return false, nil
	}

	labelID, err := mbox.EnsureLabel(ctx, s.labelName)
	if err != nil {
		return false, err
	}
	if err := mbox.ModifyLabels(ctx, msg.ID, []string{labelID}, []string{history.LabelInbox}); err != nil {
		return false, fmt.Errorf("failed to archive blocked sender mail: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"email":     user.Email,
		"messageId": msg.ID,
		"from":      addr,
	}).Info("Archived mail from unsubscribed sender")

	return true, nil
}

func normalizeAddress(from string) string {
	if parsed, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}
