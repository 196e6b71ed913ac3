package rules

import (
	"context"
	"strings"
	"unicode"

	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

// InstructionSelector scores each rule by how many distinct significant words
// of its instructions appear in the message's subject, sender or body. The
// highest-scoring rule wins; ties keep the first rule, so at most one rule
// ever fires.
type InstructionSelector struct{}

// NewInstructionSelector creates the built-in selector
func NewInstructionSelector() *InstructionSelector {
	return &InstructionSelector{}
}

// Select implements Selector.
func (s *InstructionSelector) Select(_ context.Context, in *history.RuleInput) (*model.Rule, error) {
	haystack := strings.ToLower(strings.Join([]string{
		in.Message.Headers.Subject,
		in.Message.Headers.From,
		in.Message.Content(),
	}, "\n"))

	var best *model.Rule
	bestScore := 0

	for i := range in.Rules {
		rule := &in.Rules[i]
		score := 0
		for _, token := range significantTokens(rule.Instructions) {
			if strings.Contains(haystack, token) {
				score++
			}
		}
		if score > bestScore {
			best = rule
			bestScore = score
		}
	}

	return best, nil
}

// significantTokens lowercases the instruction text and keeps the distinct
// words long enough to carry meaning.
func significantTokens(instructions string) []string {
	fields := strings.FieldsFunc(strings.ToLower(instructions), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '@' && r != '.'
	})

	seen := make(map[string]struct{}, len(fields))
	var tokens []string
	for _, f := range fields {
		if len(f) < 4 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
