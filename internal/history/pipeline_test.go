package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InboxSlash/inbox-slash/internal/metrics"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// Shared across the package's tests; the default Prometheus registry rejects
// duplicate registration.
var testMetrics = metrics.NewMetrics()

type priorCall struct {
	from    string
	before  time.Time
	exclude string
}

type modifyCall struct {
	messageID string
	add       []string
	remove    []string
}

// fakeMailbox implements Mailbox with overridable reads and recorded writes.
type fakeMailbox struct {
	mu sync.Mutex

	listHistory func(startID uint64) (*Batch, error)
	getMessage  func(id string) (*ParsedMessage, error)
	getThread   func(id string) (*Thread, error)

	prior     bool
	priorErr  error
	currentID uint64

	listStarts []uint64
	priorCalls []priorCall
	labels     []string
	modifies   []modifyCall
	archived   []string
	spammed    []string
	forwarded  []string
	replied    []string
	drafted    []string
}

func testMessage(id, threadID string) *ParsedMessage {
	return &ParsedMessage{
		ID:       id,
		ThreadID: threadID,
		Headers: MessageHeaders{
			From:    "Sender <sender@example.com>",
			Subject: "Hello",
		},
		TextPlain:    "body text",
		LabelIDs:     []string{LabelInbox, LabelUnread},
		InternalDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeMailbox) ListHistory(_ context.Context, startID uint64) (*Batch, error) {
	f.mu.Lock()
	f.listStarts = append(f.listStarts, startID)
	f.mu.Unlock()
	if f.listHistory != nil {
		return f.listHistory(startID)
	}
	return &Batch{}, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*ParsedMessage, error) {
	if f.getMessage != nil {
		return f.getMessage(id)
	}
	return testMessage(id, "t-"+id), nil
}

func (f *fakeMailbox) GetThread(_ context.Context, id string) (*Thread, error) {
	if f.getThread != nil {
		return f.getThread(id)
	}
	return &Thread{ID: id, MessageCount: 1}, nil
}

func (f *fakeMailbox) HasPriorFromDomain(_ context.Context, from string, before time.Time, exclude string) (bool, error) {
	f.mu.Lock()
	f.priorCalls = append(f.priorCalls, priorCall{from: from, before: before, exclude: exclude})
	f.mu.Unlock()
	return f.prior, f.priorErr
}

func (f *fakeMailbox) CurrentHistoryID(context.Context) (uint64, error) {
	return f.currentID, nil
}

func (f *fakeMailbox) EnsureLabel(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, name)
	return "label-" + name, nil
}

func (f *fakeMailbox) ModifyLabels(_ context.Context, messageID string, add, remove []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifies = append(f.modifies, modifyCall{messageID: messageID, add: add, remove: remove})
	return nil
}

func (f *fakeMailbox) ArchiveThread(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, threadID)
	return nil
}

func (f *fakeMailbox) MarkSpam(_ context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spammed = append(f.spammed, threadID)
	return nil
}

func (f *fakeMailbox) Forward(_ context.Context, msg *ParsedMessage, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, msg.ID+"->"+to)
	return nil
}

func (f *fakeMailbox) Reply(_ context.Context, msg *ParsedMessage, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replied = append(f.replied, msg.ID)
	return nil
}

func (f *fakeMailbox) CreateDraft(_ context.Context, msg *ParsedMessage, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafted = append(f.drafted, msg.ID)
	return nil
}

type fakeLedger struct {
	mu       sync.Mutex
	existing map[string]bool
	created  []*model.ExecutedRule
	conflict bool
}

func ledgerKey(userID uint, threadID, messageID string) string {
	return fmt.Sprintf("%d/%s/%s", userID, threadID, messageID)
}

func (l *fakeLedger) Exists(userID uint, threadID, messageID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.existing[ledgerKey(userID, threadID, messageID)], nil
}

func (l *fakeLedger) Create(rec *model.ExecutedRule) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conflict {
		return false, nil
	}
	if l.existing == nil {
		l.existing = make(map[string]bool)
	}
	l.existing[ledgerKey(rec.UserID, rec.ThreadID, rec.MessageID)] = true
	l.created = append(l.created, rec)
	return true, nil
}

type fakeChecker struct {
	blocked bool
	err     error
	calls   int
}

func (c *fakeChecker) Check(context.Context, *model.User, Mailbox, *ParsedMessage) (bool, error) {
	c.calls++
	return c.blocked, c.err
}

type fakeRunner struct {
	outcome *RuleOutcome
	err     error
	inputs  []*RuleInput
}

func (r *fakeRunner) Run(_ context.Context, in *RuleInput) (*RuleOutcome, error) {
	r.inputs = append(r.inputs, in)
	if r.outcome != nil {
		return r.outcome, r.err
	}
	return &RuleOutcome{}, r.err
}

type fakeBlocker struct {
	outcome *ColdEmailOutcome
	err     error
	inputs  []*ColdEmailInput
}

func (b *fakeBlocker) Run(_ context.Context, in *ColdEmailInput) (*ColdEmailOutcome, error) {
	b.inputs = append(b.inputs, in)
	if b.outcome != nil {
		return b.outcome, b.err
	}
	return &ColdEmailOutcome{}, b.err
}

func fullAccessContext() *UserContext {
	renews := time.Now().Add(30 * 24 * time.Hour)
	return &UserContext{
		User: &model.User{
			ID:                     1,
			Email:                  "user@example.com",
			ColdEmailBlocker:       model.ColdEmailArchiveAndLabel,
			PremiumRenewsAt:        &renews,
			AIAutomationAccess:     true,
			ColdEmailBlockerAccess: true,
		},
		Rules:                 []model.Rule{{ID: 7, UserID: 1, Name: "r", Enabled: true}},
		HasAutomationRules:    true,
		HasAIAccess:           true,
		HasColdEmailAccess:    true,
		ShouldBlockColdEmails: true,
	}
}

func TestPipelineRecordsNoMatch(t *testing.T) {
	ledger := &fakeLedger{}
	runner := &fakeRunner{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, runner, &fakeBlocker{}, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), &fakeMailbox{prior: true},
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	require.Len(t, ledger.created, 1)
	rec := ledger.created[0]
	assert.Equal(t, uint(1), rec.UserID)
	assert.Equal(t, "t1", rec.ThreadID)
	assert.Equal(t, "m1", rec.MessageID)
	assert.Nil(t, rec.RuleID)
	assert.Equal(t, model.ExecutedStatusNoMatch, rec.Status)
	assert.NotEmpty(t, rec.ID)
}

func TestPipelineRecordsAppliedMatch(t *testing.T) {
	ledger := &fakeLedger{}
	ruleID := uint(7)
	runner := &fakeRunner{outcome: &RuleOutcome{MatchedRuleID: &ruleID}}
	pipeline := NewPipeline(ledger, &fakeChecker{}, runner, &fakeBlocker{}, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), &fakeMailbox{prior: true},
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	require.Len(t, ledger.created, 1)
	assert.Equal(t, model.ExecutedStatusApplied, ledger.created[0].Status)
	require.NotNil(t, ledger.created[0].RuleID)
	assert.Equal(t, ruleID, *ledger.created[0].RuleID)
}

func TestPipelineSkipsHandledMessage(t *testing.T) {
	ledger := &fakeLedger{existing: map[string]bool{ledgerKey(1, "t1", "m1"): true}}
	runner := &fakeRunner{}
	blocker := &fakeBlocker{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, runner, blocker, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), &fakeMailbox{},
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	assert.Empty(t, runner.inputs)
	assert.Empty(t, blocker.inputs)
	assert.Empty(t, ledger.created)
}

func TestPipelineBlockedSenderWinsOverLedger(t *testing.T) {
	// The blocked-sender check runs before the already-handled check, so a
	// blocked sender is archived even when a ledger row exists.
	ledger := &fakeLedger{existing: map[string]bool{ledgerKey(1, "t1", "m1"): true}}
	checker := &fakeChecker{blocked: true}
	runner := &fakeRunner{}
	pipeline := NewPipeline(ledger, checker, runner, &fakeBlocker{}, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), &fakeMailbox{},
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	assert.Equal(t, 1, checker.calls)
	assert.Empty(t, runner.inputs)
	assert.Empty(t, ledger.created)
}

func TestPipelineMessageNotFoundRace(t *testing.T) {
	// The message disappeared between the notification and the fetch.
	mbox := &fakeMailbox{
		getMessage: func(string) (*ParsedMessage, error) {
			return nil, fmt.Errorf("get message: %w", ErrNotFound)
		},
	}
	ledger := &fakeLedger{}
	runner := &fakeRunner{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, runner, &fakeBlocker{}, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), mbox,
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	assert.Empty(t, runner.inputs)
	assert.Empty(t, ledger.created)
}

func TestPipelineThreadGateSkipsColdEmail(t *testing.T) {
	mbox := &fakeMailbox{
		getThread: func(id string) (*Thread, error) {
			return &Thread{ID: id, MessageCount: 3}, nil
		},
	}
	runner := &fakeRunner{}
	blocker := &fakeBlocker{}
	ledger := &fakeLedger{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, runner, blocker, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), mbox,
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	require.Len(t, runner.inputs, 1)
	assert.True(t, runner.inputs[0].IsThread)
	assert.Empty(t, blocker.inputs, "replies inside a thread are never classified")
	assert.Empty(t, mbox.priorCalls)
	require.Len(t, ledger.created, 1)
}

func TestPipelineColdEmailStatus(t *testing.T) {
	mbox := &fakeMailbox{prior: false}
	blocker := &fakeBlocker{outcome: &ColdEmailOutcome{IsColdEmail: true, Reason: "first contact"}}
	ledger := &fakeLedger{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, &fakeRunner{}, blocker, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), mbox,
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	require.Len(t, mbox.priorCalls, 1)
	assert.Equal(t, "Sender <sender@example.com>", mbox.priorCalls[0].from)
	assert.Equal(t, "t1", mbox.priorCalls[0].exclude)

	require.Len(t, blocker.inputs, 1)
	assert.False(t, blocker.inputs[0].HasPriorFromDomain)
	assert.Equal(t, "body text", blocker.inputs[0].Content)

	require.Len(t, ledger.created, 1)
	assert.Equal(t, model.ExecutedStatusColdEmail, ledger.created[0].Status)
}

func TestPipelineMatchedRuleOutranksColdEmailStatus(t *testing.T) {
	ruleID := uint(7)
	runner := &fakeRunner{outcome: &RuleOutcome{MatchedRuleID: &ruleID}}
	blocker := &fakeBlocker{outcome: &ColdEmailOutcome{IsColdEmail: true}}
	ledger := &fakeLedger{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, runner, blocker, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), &fakeMailbox{},
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	require.Len(t, ledger.created, 1)
	assert.Equal(t, model.ExecutedStatusApplied, ledger.created[0].Status)
}

func TestPipelineFaultIsolation(t *testing.T) {
	mbox := &fakeMailbox{
		getMessage: func(id string) (*ParsedMessage, error) {
			if id == "m1" {
				return nil, errors.New("transient provider error")
			}
			return testMessage(id, "t2"), nil
		},
	}
	ledger := &fakeLedger{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, &fakeRunner{}, &fakeBlocker{}, testMetrics)

	pipeline.ProcessBatch(context.Background(), fullAccessContext(), mbox, []Candidate{
		{MessageID: "m1", ThreadID: "t1"},
		{MessageID: "m2", ThreadID: "t2"},
	})

	require.Len(t, ledger.created, 1)
	assert.Equal(t, "m2", ledger.created[0].MessageID)
}

func TestPipelineRulesGatedByAccess(t *testing.T) {
	uc := fullAccessContext()
	uc.HasAIAccess = false
	runner := &fakeRunner{}
	ledger := &fakeLedger{}
	pipeline := NewPipeline(ledger, &fakeChecker{}, runner, &fakeBlocker{}, testMetrics)

	pipeline.ProcessBatch(context.Background(), uc, &fakeMailbox{prior: true},
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	assert.Empty(t, runner.inputs)
	require.Len(t, ledger.created, 1)
	assert.Equal(t, model.ExecutedStatusNoMatch, ledger.created[0].Status)
}

func TestPipelineConcurrentDuplicateTreatedAsHandled(t *testing.T) {
	ledger := &fakeLedger{conflict: true}
	pipeline := NewPipeline(ledger, &fakeChecker{}, &fakeRunner{}, &fakeBlocker{}, testMetrics)

	// Losing the ledger race must not surface as a failure.
	pipeline.ProcessBatch(context.Background(), fullAccessContext(), &fakeMailbox{prior: true},
		[]Candidate{{MessageID: "m1", ThreadID: "t1"}})

	assert.Empty(t, ledger.created)
}
