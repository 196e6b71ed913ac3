package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// recordingMailbox implements history.Mailbox and records mutations.
type recordingMailbox struct {
	ops []string
}

func (m *recordingMailbox) ListHistory(context.Context, uint64) (*history.Batch, error) {
	return &history.Batch{}, nil
}

func (m *recordingMailbox) GetMessage(_ context.Context, id string) (*history.ParsedMessage, error) {
	return &history.ParsedMessage{ID: id}, nil
}

func (m *recordingMailbox) GetThread(_ context.Context, id string) (*history.Thread, error) {
	return &history.Thread{ID: id, MessageCount: 1}, nil
}

func (m *recordingMailbox) HasPriorFromDomain(context.Context, string, time.Time, string) (bool, error) {
	return false, nil
}

func (m *recordingMailbox) CurrentHistoryID(context.Context) (uint64, error) { return 0, nil }

func (m *recordingMailbox) EnsureLabel(_ context.Context, name string) (string, error) {
	m.ops = append(m.ops, "ensure:"+name)
	return "label-" + name, nil
}

func (m *recordingMailbox) ModifyLabels(_ context.Context, messageID string, add, remove []string) error {
	op := "modify:" + messageID
	for _, id := range add {
		op += "+" + id
	}
	for _, id := range remove {
		op += "-" + id
	}
	m.ops = append(m.ops, op)
	return nil
}

func (m *recordingMailbox) ArchiveThread(_ context.Context, threadID string) error {
	m.ops = append(m.ops, "archive:"+threadID)
	return nil
}

func (m *recordingMailbox) MarkSpam(_ context.Context, threadID string) error {
	m.ops = append(m.ops, "spam:"+threadID)
	return nil
}

func (m *recordingMailbox) Forward(_ context.Context, msg *history.ParsedMessage, to string) error {
	m.ops = append(m.ops, "forward:"+msg.ID+":"+to)
	return nil
}

func (m *recordingMailbox) Reply(_ context.Context, msg *history.ParsedMessage, _ string) error {
	m.ops = append(m.ops, "reply:"+msg.ID)
	return nil
}

func (m *recordingMailbox) CreateDraft(_ context.Context, msg *history.ParsedMessage, _ string) error {
	m.ops = append(m.ops, "draft:"+msg.ID)
	return nil
}

type fixedSelector struct {
	rule *model.Rule
	err  error
}

func (s *fixedSelector) Select(context.Context, *history.RuleInput) (*model.Rule, error) {
	return s.rule, s.err
}

func ruleInput(mbox history.Mailbox) *history.RuleInput {
	return &history.RuleInput{
		User: &model.User{ID: 1, Email: "user@example.com"},
		Message: &history.ParsedMessage{
			ID:       "m1",
			ThreadID: "t1",
			Headers: history.MessageHeaders{
				From:    "Newsletter <news@example.com>",
				Subject: "Weekly invoice summary",
			},
			TextPlain: "your invoice is attached",
		},
		Mailbox: mbox,
	}
}

func TestEngineNoMatch(t *testing.T) {
	mbox := &recordingMailbox{}
	engine := NewEngine(&fixedSelector{})

	out, err := engine.Run(context.Background(), ruleInput(mbox))

	require.NoError(t, err)
	assert.Nil(t, out.MatchedRuleID)
	assert.Empty(t, mbox.ops)
}

func TestEngineExecutesActionsInPositionOrder(t *testing.T) {
	rule := &model.Rule{
		ID:   7,
		Name: "invoices",
		Actions: []model.Action{
			{Type: model.ActionArchive, Position: 1},
			{Type: model.ActionLabel, Position: 0, Label: "Invoices"},
		},
	}
	mbox := &recordingMailbox{}
	engine := NewEngine(&fixedSelector{rule: rule})

	out, err := engine.Run(context.Background(), ruleInput(mbox))

	require.NoError(t, err)
	require.NotNil(t, out.MatchedRuleID)
	assert.Equal(t, uint(7), *out.MatchedRuleID)
	assert.Equal(t, []string{
		"ensure:Invoices",
		"modify:m1+label-Invoices",
		"archive:t1",
	}, mbox.ops)
}

func TestEngineRoutesAllActionTypes(t *testing.T) {
	rule := &model.Rule{
		ID: 3,
		Actions: []model.Action{
			{Type: model.ActionForward, Position: 0, To: "boss@example.com"},
			{Type: model.ActionReply, Position: 1, Content: "got it"},
			{Type: model.ActionDraft, Position: 2, Content: "draft body"},
			{Type: model.ActionMarkSpam, Position: 3},
		},
	}
	mbox := &recordingMailbox{}
	engine := NewEngine(&fixedSelector{rule: rule})

	_, err := engine.Run(context.Background(), ruleInput(mbox))

	require.NoError(t, err)
	assert.Equal(t, []string{
		"forward:m1:boss@example.com",
		"reply:m1",
		"draft:m1",
		"spam:t1",
	}, mbox.ops)
}

func TestEngineUnknownActionFails(t *testing.T) {
	rule := &model.Rule{
		ID:      4,
		Actions: []model.Action{{Type: model.ActionType("EXPLODE")}},
	}
	engine := NewEngine(&fixedSelector{rule: rule})

	_, err := engine.Run(context.Background(), ruleInput(&recordingMailbox{}))
	assert.Error(t, err)
}

func TestEngineSelectorErrorPropagates(t *testing.T) {
	engine := NewEngine(&fixedSelector{err: errors.New("selector unavailable")})

	_, err := engine.Run(context.Background(), ruleInput(&recordingMailbox{}))
	assert.Error(t, err)
}

func TestInstructionSelectorPicksBestMatch(t *testing.T) {
	in := ruleInput(&recordingMailbox{})
	in.Rules = []model.Rule{
		{ID: 1, Instructions: "label github notification emails"},
		{ID: 2, Instructions: "archive invoice and billing emails"},
	}

	rule, err := NewInstructionSelector().Select(context.Background(), in)

	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, uint(2), rule.ID)
}

func TestInstructionSelectorNoMatchReturnsNil(t *testing.T) {
	in := ruleInput(&recordingMailbox{})
	in.Rules = []model.Rule{
		{ID: 1, Instructions: "forward recruiting outreach"},
	}

	rule, err := NewInstructionSelector().Select(context.Background(), in)

	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestInstructionSelectorTieKeepsFirstRule(t *testing.T) {
	in := ruleInput(&recordingMailbox{})
	in.Rules = []model.Rule{
		{ID: 1, Instructions: "handle invoice mail"},
		{ID: 2, Instructions: "file invoice mail"},
	}

	rule, err := NewInstructionSelector().Select(context.Background(), in)

	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, uint(1), rule.ID)
}

func TestSignificantTokensFiltersShortWords(t *testing.T) {
	tokens := significantTokens("tag ALL mail from billing@acme.com as paid")
	assert.Contains(t, tokens, "mail")
	assert.Contains(t, tokens, "billing@acme.com")
	assert.Contains(t, tokens, "paid")
	assert.NotContains(t, tokens, "tag")
	assert.NotContains(t, tokens, "all")
	assert.NotContains(t, tokens, "as")
}
