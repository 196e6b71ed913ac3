package history

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/metrics"
)

// Orchestrator is the webhook entry point: it gates processing per user,
// fetches the bounded change window, and advances the cursor. Callers always
// acknowledge the notification regardless of the returned error; the error
// exists for observability only. Not advancing the cursor is the one signal
// that a window should be retried, and it is a signal to this system, never
// to the push sender.
type Orchestrator struct {
	store      Store
	newMailbox MailboxFactory
	pipeline   BatchProcessor
	metrics    *metrics.Metrics

	// lookback caps how far behind the notified id a fetch may start.
	lookback uint64

	now func() time.Time
}

// NewOrchestrator creates a new webhook orchestrator
func NewOrchestrator(store Store, factory MailboxFactory, pipeline BatchProcessor, m *metrics.Metrics, lookback uint64) *Orchestrator {
	return &Orchestrator{
		store:      store,
		newMailbox: factory,
		pipeline:   pipeline,
		metrics:    m,
		lookback:   lookback,
		now:        time.Now,
	}
}

// ProcessNotification handles one webhook notification end to end.
func (o *Orchestrator) ProcessNotification(ctx context.Context, n Notification) error {
	o.metrics.NotificationsReceived.Inc()
	start := o.now()
	defer func() {
		o.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
	}()

	log := logrus.WithFields(logrus.Fields{
		"email":     n.EmailAddress,
		"historyId": n.HistoryID,
	})

	acct, user, err := o.store.ResolveMailbox(n.EmailAddress)
	if err != nil {
		o.metrics.FetchFailures.Inc()
		return fmt.Errorf("failed to resolve mailbox: %w", err)
	}
	if acct == nil {
		log.Warn("Webhook: account not found")
		return nil
	}

	if !user.PremiumActive(o.now()) {
		log.Debug("Webhook: account not premium")
		o.metrics.NotificationsSkipped.Inc()
		return nil
	}

	hasAIAccess := user.HasAIAccess()
	hasColdEmailAccess := user.HasColdEmailAccess()
	if !hasAIAccess && !hasColdEmailAccess {
		log.Debug("Webhook: no AI or cold-email access")
		o.metrics.NotificationsSkipped.Inc()
		return nil
	}

	rules, err := o.store.EnabledRules(user.ID)
	if err != nil {
		o.metrics.FetchFailures.Inc()
		return fmt.Errorf("failed to load rules: %w", err)
	}

	hasAutomationRules := len(rules) > 0
	shouldBlockColdEmails := user.ShouldBlockColdEmails()
	if !hasAutomationRules && !shouldBlockColdEmails {
		log.Debug("Webhook: no rules and cold-email blocker disabled")
		o.metrics.NotificationsSkipped.Inc()
		return nil
	}

	// Configuration errors: retrying cannot fix missing credentials, so the
	// notification is swallowed after logging.
	if acct.AccessToken == "" || acct.RefreshToken == "" {
		log.Error("Webhook: missing access or refresh token, user needs to re-authenticate")
		return nil
	}
	if user.Email == "" {
		log.Error("Webhook: missing user email")
		return nil
	}

	mbox, err := o.newMailbox(ctx, acct)
	if err != nil {
		o.metrics.FetchFailures.Inc()
		return fmt.Errorf("failed to create mailbox client: %w", err)
	}

	startID := o.fetchWindowStart(user.LastSyncedHistoryID, n.HistoryID)
	log.WithField("startHistoryId", startID).Info("Webhook: listing history")

	batch, err := mbox.ListHistory(ctx, startID)
	if err != nil {
		// Cursor deliberately not advanced; the next notification or the
		// reconciliation sweep retries the same window.
		o.metrics.FetchFailures.Inc()
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(batch.Events) == 0 {
		// Save the notified id anyway, or the same empty window would be
		// re-fetched on every duplicate notification.
		log.Info("Webhook: no history")
		if err := o.store.AdvanceCursor(user.ID, n.HistoryID); err != nil {
			return fmt.Errorf("failed to advance cursor: %w", err)
		}
		return nil
	}

	o.metrics.HistoryEvents.Add(float64(len(batch.Events)))

	uc := &UserContext{
		User:                  user,
		Rules:                 rules,
		HasAutomationRules:    hasAutomationRules,
		HasAIAccess:           hasAIAccess,
		HasColdEmailAccess:    hasColdEmailAccess,
		ShouldBlockColdEmails: shouldBlockColdEmails,
	}

	candidates := Normalize(batch.Events)
	o.pipeline.ProcessBatch(ctx, uc, mbox, candidates)

	// Advance to the last event actually fetched, not the notified id.
	if err := o.store.AdvanceCursor(user.ID, batch.LastHistoryID); err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}

	log.Info("Webhook: completed")
	return nil
}

// fetchWindowStart computes max(lastSynced, notified - lookback), trading
// completeness for bounded latency after long gaps.
func (o *Orchestrator) fetchWindowStart(lastSynced, notified uint64) uint64 {
	start := lastSynced
	if notified > o.lookback {
		if floor := notified - o.lookback; floor > start {
			start = floor
		}
	}
	return start
}
