package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/metrics"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// Pipeline runs the per-message decision sequence: unsubscribe-block check,
// rule matching/execution, cold-email classification, ledger commit.
type Pipeline struct {
	ledger  Ledger
	unsub   UnsubscribeChecker
	rules   RuleRunner
	cold    ColdEmailBlocker
	metrics *metrics.Metrics
}

// NewPipeline creates a new message pipeline
func NewPipeline(ledger Ledger, unsub UnsubscribeChecker, rules RuleRunner, cold ColdEmailBlocker, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		ledger:  ledger,
		unsub:   unsub,
		rules:   rules,
		cold:    cold,
		metrics: m,
	}
}

// ProcessBatch runs every candidate through the pipeline. Candidates are
// fault-isolated: a failure is logged and counted, never propagated, so one
// bad message cannot abort its siblings.
func (p *Pipeline) ProcessBatch(ctx context.Context, uc *UserContext, mbox Mailbox, candidates []Candidate) {
	for _, c := range candidates {
		p.metrics.CandidatesProcessed.Inc()
		if err := p.process(ctx, uc, mbox, c); err != nil {
			p.metrics.PipelineFailures.Inc()
			logrus.WithFields(logrus.Fields{
				"email":     uc.User.Email,
				"messageId": c.MessageID,
				"threadId":  c.ThreadID,
			}).Errorf("Failed to process history item: %v", err)
		}
	}
}

// process handles one candidate. The ledger row is written only after rule
// execution and classification; a crash in between can cause one duplicate
// run on redelivery, which is accepted.
func (p *Pipeline) process(ctx context.Context, uc *UserContext, mbox Mailbox, c Candidate) error {
	log := logrus.WithFields(logrus.Fields{
		"email":     uc.User.Email,
		"messageId": c.MessageID,
		"threadId":  c.ThreadID,
	})

	msg, thread, handled, err := p.fetch(ctx, uc.User.ID, mbox, c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Known race: the message was snoozed or removed between the
			// notification and the fetch.
			log.Info("Message not found, skipping")
			return nil
		}
		return err
	}

	blocked, err := p.unsub.Check(ctx, uc.User, mbox, msg)
	if err != nil {
		return fmt.Errorf("unsubscribe check failed: %w", err)
	}
	if blocked {
		p.metrics.SendersBlocked.Inc()
		log.Info("Skipping, blocked unsubscribed sender")
		return nil
	}

	if handled {
		log.Debug("Skipping, message already handled")
		return nil
	}

	isThread := thread.MessageCount > 1

	var matchedRuleID *uint
	if uc.HasAutomationRules && uc.HasAIAccess {
		out, err := p.rules.Run(ctx, &RuleInput{
			User:     uc.User,
			Rules:    uc.Rules,
			Message:  msg,
			IsThread: isThread,
			Mailbox:  mbox,
		})
		if err != nil {
			return fmt.Errorf("rule execution failed: %w", err)
		}
		matchedRuleID = out.MatchedRuleID
		if matchedRuleID != nil {
			p.metrics.RuleMatches.Inc()
		}
	}

	status := model.ExecutedStatusNoMatch
	if matchedRuleID != nil {
		status = model.ExecutedStatusApplied
	}

	// The classifier only makes sense on the first message of a new
	// conversation, never on a reply inside an existing thread.
	if uc.ShouldBlockColdEmails && uc.HasColdEmailAccess && !isThread {
		prior, err := mbox.HasPriorFromDomain(ctx, msg.Headers.From, msg.InternalDate, c.ThreadID)
		if err != nil {
			return fmt.Errorf("prior-domain lookup failed: %w", err)
		}

		out, err := p.cold.Run(ctx, &ColdEmailInput{
			User:               uc.User,
			Message:            msg,
			Content:            msg.Content(),
			HasPriorFromDomain: prior,
			Mailbox:            mbox,
		})
		if err != nil {
			return fmt.Errorf("cold-email blocker failed: %w", err)
		}
		if out.IsColdEmail {
			p.metrics.ColdEmailsBlocked.Inc()
			if matchedRuleID == nil {
				status = model.ExecutedStatusColdEmail
			}
		}
	}

	created, err := p.ledger.Create(&model.ExecutedRule{
		ID:        uuid.NewString(),
		UserID:    uc.User.ID,
		ThreadID:  c.ThreadID,
		MessageID: c.MessageID,
		RuleID:    matchedRuleID,
		Status:    status,
	})
	if err != nil {
		return fmt.Errorf("ledger commit failed: %w", err)
	}
	if !created {
		log.Debug("Ledger record already present, concurrent run won the race")
	}

	return nil
}

// fetch issues the message fetch, thread fetch and ledger lookup for one
// candidate concurrently and joins the results.
func (p *Pipeline) fetch(ctx context.Context, userID uint, mbox Mailbox, c Candidate) (*ParsedMessage, *Thread, bool, error) {
	var (
		msg     *ParsedMessage
		thread  *Thread
		handled bool

		msgErr    error
		threadErr error
		ledgerErr error
	)

	done := make(chan struct{}, 3)
	go func() {
		msg, msgErr = mbox.GetMessage(ctx, c.MessageID)
		done <- struct{}{}
	}()
	go func() {
		thread, threadErr = mbox.GetThread(ctx, c.ThreadID)
		done <- struct{}{}
	}()
	go func() {
		handled, ledgerErr = p.ledger.Exists(userID, c.ThreadID, c.MessageID)
		done <- struct{}{}
	}()
	for i := 0; i < 3; i++ {
		<-done
	}

	for _, err := range []error{msgErr, threadErr, ledgerErr} {
		if err != nil {
			return nil, nil, false, err
		}
	}
	return msg, thread, handled, nil
}
