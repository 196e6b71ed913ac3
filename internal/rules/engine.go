// Package rules implements the rule-matching capability: select at most one
// rule for a message, then execute its ordered action list through the
// mailbox.
package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// Selector picks at most one rule for a message. The built-in selector
// matches on rule instructions; an AI-backed selector satisfies the same
// contract.
type Selector interface {
	Select(ctx context.Context, in *history.RuleInput) (*model.Rule, error)
}

// Engine implements history.RuleRunner.
type Engine struct {
	selector Selector
}

// NewEngine creates a new rule engine
func NewEngine(selector Selector) *Engine {
	return &Engine{selector: selector}
}

// Run selects a rule and executes its actions in order. At most one rule
// fires per message. Any action failure aborts the remaining actions and
// propagates; the caller isolates the failure to this candidate.
func (e *Engine) Run(ctx context.Context, in *history.RuleInput) (*history.RuleOutcome, error) {
	rule, err := e.selector.Select(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("rule selection failed: %w", err)
	}
	if rule == nil {
		logrus.WithFields(logrus.Fields{
			"email":     in.User.Email,
			"messageId": in.Message.ID,
		}).Debug("No matching rule")
		return &history.RuleOutcome{}, nil
	}

	actions := make([]model.Action, len(rule.Actions))
	copy(actions, rule.Actions)
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Position < actions[j].Position })

	for _, action := range actions {
		if err := e.apply(ctx, in, action); err != nil {
			return nil, fmt.Errorf("action %s of rule %d failed: %w", action.Type, rule.ID, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"email":     in.User.Email,
		"messageId": in.Message.ID,
		"ruleId":    rule.ID,
	}).Infof("Executed rule %q with %d actions", rule.Name, len(actions))

	id := rule.ID
	return &history.RuleOutcome{MatchedRuleID: &id}, nil
}

func (e *Engine) apply(ctx context.Context, in *history.RuleInput, action model.Action) error {
	mbox := in.Mailbox
	msg := in.Message

	switch action.Type {
	case model.ActionLabel:
		labelID, err := mbox.EnsureLabel(ctx, action.Label)
		if err != nil {
			return err
		}
		return mbox.ModifyLabels(ctx, msg.ID, []string{labelID}, nil)
	case model.ActionArchive:
		return mbox.ArchiveThread(ctx, msg.ThreadID)
	case model.ActionMarkSpam:
		return mbox.MarkSpam(ctx, msg.ThreadID)
	case model.ActionForward:
		return mbox.Forward(ctx, msg, action.To)
	case model.ActionReply:
		return mbox.Reply(ctx, msg, action.Content)
	case model.ActionDraft:
		return mbox.CreateDraft(ctx, msg, action.Content)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
