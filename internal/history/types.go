package history

import (
	"context"
	"errors"
	"time"

	"github.com/InboxSlash/inbox-slash/internal/model"
)

// Well-known provider label ids.
const (
	LabelInbox  = "INBOX"
	LabelDraft  = "DRAFT"
	LabelSent   = "SENT"
	LabelUnread = "UNREAD"
	LabelSpam   = "SPAM"
)

// ErrNotFound is returned by mailbox reads when the entity no longer exists
// upstream. For messages this is an expected race: the message may have been
// snoozed or deleted between the notification and the fetch.
var ErrNotFound = errors.New("requested entity was not found")

// Notification is one webhook push: a mailbox address and the provider's
// current change-sequence position.
type Notification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// ChangeType tags the provider change-event shape an event came from.
type ChangeType string

const (
	MessageAdded ChangeType = "messageAdded"
	LabelAdded   ChangeType = "labelAdded"
)

// ChangeEvent is one flattened provider change event. Ephemeral; exists only
// within one pipeline invocation.
type ChangeEvent struct {
	HistoryID uint64
	Type      ChangeType
	MessageID string
	ThreadID  string
	LabelIDs  []string
}

// Batch is the ordered result of one history fetch. LastHistoryID is the
// sequence id of the last event actually retrieved; the cursor never advances
// past it.
type Batch struct {
	Events        []ChangeEvent
	LastHistoryID uint64
}

// Candidate is the normalized unit of work: one inbound message requiring a
// pipeline decision.
type Candidate struct {
	MessageID string
	ThreadID  string
}

// MessageHeaders are the parsed headers the pipeline cares about.
type MessageHeaders struct {
	From      string
	To        string
	ReplyTo   string
	Subject   string
	MessageID string
}

// ParsedMessage is a fully fetched message.
type ParsedMessage struct {
	ID           string
	ThreadID     string
	Headers      MessageHeaders
	TextPlain    string
	TextHTML     string
	Snippet      string
	LabelIDs     []string
	InternalDate time.Time
}

// Content returns the message body for classification, preferring plain text,
// then text converted from HTML, then the snippet.
func (m *ParsedMessage) Content() string {
	return EmailToContent(m.TextPlain, m.TextHTML, m.Snippet)
}

// Thread is the minimal thread context the pipeline needs.
type Thread struct {
	ID           string
	MessageCount int
}

// Mailbox is the provider capability for one connected account: reads used by
// the pipeline plus the mutations rule actions and blockers apply. All calls
// are network I/O and honor the context.
type Mailbox interface {
	ListHistory(ctx context.Context, startHistoryID uint64) (*Batch, error)
	GetMessage(ctx context.Context, messageID string) (*ParsedMessage, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	// HasPriorFromDomain reports whether any email from the sender's domain,
	// outside excludeThreadID, predates before.
	HasPriorFromDomain(ctx context.Context, from string, before time.Time, excludeThreadID string) (bool, error)
	CurrentHistoryID(ctx context.Context) (uint64, error)

	EnsureLabel(ctx context.Context, name string) (string, error)
	ModifyLabels(ctx context.Context, messageID string, add, remove []string) error
	ArchiveThread(ctx context.Context, threadID string) error
	MarkSpam(ctx context.Context, threadID string) error
	Forward(ctx context.Context, msg *ParsedMessage, to string) error
	Reply(ctx context.Context, msg *ParsedMessage, body string) error
	CreateDraft(ctx context.Context, msg *ParsedMessage, body string) error
}

// MailboxFactory builds a Mailbox from an account credential.
type MailboxFactory func(ctx context.Context, acct *model.Account) (Mailbox, error)

// Store is the persistence the orchestrator needs.
type Store interface {
	// ResolveMailbox returns the account and user for a mailbox address, or
	// (nil, nil, nil) when no account is connected.
	ResolveMailbox(email string) (*model.Account, *model.User, error)
	EnabledRules(userID uint) ([]model.Rule, error)
	// AdvanceCursor moves the user's cursor forward; it never rewinds.
	AdvanceCursor(userID uint, historyID uint64) error
}

// Ledger is the dedup ledger guarding at-most-once execution per
// (user, thread, message).
type Ledger interface {
	Exists(userID uint, threadID, messageID string) (bool, error)
	// Create returns created=false without error when the record already
	// exists (a concurrent run won the race).
	Create(rec *model.ExecutedRule) (created bool, err error)
}

// UnsubscribeChecker decides whether the sender is on the user's block list
// and, if so, applies the block side effects itself.
type UnsubscribeChecker interface {
	Check(ctx context.Context, user *model.User, mbox Mailbox, msg *ParsedMessage) (blocked bool, err error)
}

// RuleInput is the call contract for the rule-matching capability.
type RuleInput struct {
	User     *model.User
	Rules    []model.Rule
	Message  *ParsedMessage
	IsThread bool
	Mailbox  Mailbox
}

// RuleOutcome reports what the capability did. MatchedRuleID is nil when no
// rule matched.
type RuleOutcome struct {
	MatchedRuleID *uint
}

// RuleRunner selects at most one matching rule and executes its ordered
// action list. Opaque to the pipeline; only the reported outcome matters.
type RuleRunner interface {
	Run(ctx context.Context, in *RuleInput) (*RuleOutcome, error)
}

// ColdEmailInput is the call contract for the cold-email capability.
type ColdEmailInput struct {
	User               *model.User
	Message            *ParsedMessage
	Content            string
	HasPriorFromDomain bool
	Mailbox            Mailbox
}

// ColdEmailOutcome reports the classification; side effects were already
// applied by the capability.
type ColdEmailOutcome struct {
	IsColdEmail bool
	Reason      string
}

// ColdEmailBlocker classifies a first-contact message and blocks it per the
// user's configured strategy.
type ColdEmailBlocker interface {
	Run(ctx context.Context, in *ColdEmailInput) (*ColdEmailOutcome, error)
}

// UserContext is the immutable per-notification context, computed once by the
// orchestrator and threaded through the pipeline.
type UserContext struct {
	User                  *model.User
	Rules                 []model.Rule
	HasAutomationRules    bool
	HasAIAccess           bool
	HasColdEmailAccess    bool
	ShouldBlockColdEmails bool
}

// BatchProcessor runs the decision pipeline over a normalized batch.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, uc *UserContext, mbox Mailbox, candidates []Candidate)
}
