// Package coldemail implements the cold-email capability: classify a
// first-contact message and apply the user's configured blocking strategy.
package coldemail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// DefaultLabel is applied to blocked cold emails.
const DefaultLabel = "Cold Email"

// Classifier decides whether a message is cold outreach. Its reasoning is a
// black box to the blocker; only the verdict matters.
type Classifier interface {
	Classify(ctx context.Context, in *history.ColdEmailInput) (isCold bool, reason string, err error)
}

// Store persists classification records.
type Store interface {
	RecordColdEmail(rec *model.ColdEmail) error
}

// Blocker implements history.ColdEmailBlocker.
type Blocker struct {
	classifier Classifier
	store      Store
	labelName  string
}

// NewBlocker creates a new cold-email blocker
func NewBlocker(classifier Classifier, store Store) *Blocker {
	return &Blocker{
		classifier: classifier,
		store:      store,
		labelName:  DefaultLabel,
	}
}

// Run classifies the message and, when cold, applies the strategy from the
// user's cold-email setting and records the sender.
func (b *Blocker) Run(ctx context.Context, in *history.ColdEmailInput) (*history.ColdEmailOutcome, error) {
	isCold, reason, err := b.classifier.Classify(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	if !isCold {
		return &history.ColdEmailOutcome{}, nil
	}

	if err := b.block(ctx, in); err != nil {
		return nil, err
	}

	if err := b.store.RecordColdEmail(&model.ColdEmail{
		ID:        uuid.NewString(),
		UserID:    in.User.ID,
		FromEmail: normalizeAddress(in.Message.Headers.From),
		MessageID: in.Message.ID,
		ThreadID:  in.Message.ThreadID,
		Reason:    reason,
	}); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"email":     in.User.Email,
		"messageId": in.Message.ID,
		"from":      in.Message.Headers.From,
	}).Info("Blocked cold email")

	return &history.ColdEmailOutcome{IsColdEmail: true, Reason: reason}, nil
}

func (b *Blocker) block(ctx context.Context, in *history.ColdEmailInput) error {
	labelID, err := in.Mailbox.EnsureLabel(ctx, b.labelName)
	if err != nil {
		return err
	}

	add := []string{labelID}
	var remove []string
	switch in.User.ColdEmailBlocker {
	case model.ColdEmailLabel:
		// label only
	case model.ColdEmailArchiveAndLabel:
		remove = []string{history.LabelInbox}
	case model.ColdEmailArchiveReadAndLabel:
		remove = []string{history.LabelInbox, history.LabelUnread}
	default:
		return fmt.Errorf("unexpected cold-email setting %q", in.User.ColdEmailBlocker)
	}

	if err := in.Mailbox.ModifyLabels(ctx, in.Message.ID, add, remove); err != nil {
		return fmt.Errorf("failed to apply cold-email block: %w", err)
	}
	return nil
}

// DomainHistoryClassifier is the built-in classifier: a message is cold
// exactly when the mailbox holds no earlier mail from the sender's domain.
// An AI-backed classifier using the user's prompt plugs in behind the same
// interface.
type DomainHistoryClassifier struct{}

// Classify implements Classifier.
func (DomainHistoryClassifier) Classify(_ context.Context, in *history.ColdEmailInput) (bool, string, error) {
	if in.HasPriorFromDomain {
		return false, "prior email from sender domain", nil
	}
	return true, "no prior email from sender domain", nil
}

func normalizeAddress(from string) string {
	if parsed, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}
