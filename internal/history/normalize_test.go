package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeepsInboundMail(t *testing.T) {
	events := []ChangeEvent{
		{MessageID: "m1", ThreadID: "t1", LabelIDs: []string{LabelInbox}},
		{MessageID: "m2", ThreadID: "t2", LabelIDs: []string{LabelInbox, LabelUnread}},
	}

	candidates := Normalize(events)

	assert.Equal(t, []Candidate{
		{MessageID: "m1", ThreadID: "t1"},
		{MessageID: "m2", ThreadID: "t2"},
	}, candidates)
}

func TestNormalizeDropsDraftsAndSent(t *testing.T) {
	events := []ChangeEvent{
		// Drafts and sent mail carry the inbox label in some change events
		// but are still outbound.
		{MessageID: "m1", ThreadID: "t1", LabelIDs: []string{LabelInbox, LabelDraft}},
		{MessageID: "m2", ThreadID: "t2", LabelIDs: []string{LabelInbox, LabelSent}},
		{MessageID: "m3", ThreadID: "t3", LabelIDs: []string{LabelSpam}},
	}

	assert.Empty(t, Normalize(events))
}

func TestNormalizeRequiresInboxLabel(t *testing.T) {
	events := []ChangeEvent{
		{MessageID: "m1", ThreadID: "t1", LabelIDs: []string{LabelUnread}},
		{MessageID: "m2", ThreadID: "t2", LabelIDs: nil},
	}

	assert.Empty(t, Normalize(events))
}

func TestNormalizeDedupsFirstOccurrence(t *testing.T) {
	// The same message can surface under both messageAdded and labelAdded
	// within one batch.
	events := []ChangeEvent{
		{Type: MessageAdded, MessageID: "m1", ThreadID: "t1", LabelIDs: []string{LabelInbox}},
		{Type: LabelAdded, MessageID: "m1", ThreadID: "t1", LabelIDs: []string{LabelInbox, LabelUnread}},
		{Type: MessageAdded, MessageID: "m2", ThreadID: "t2", LabelIDs: []string{LabelInbox}},
	}

	candidates := Normalize(events)

	assert.Equal(t, []Candidate{
		{MessageID: "m1", ThreadID: "t1"},
		{MessageID: "m2", ThreadID: "t2"},
	}, candidates)
}

func TestNormalizeSkipsEventsWithoutIDs(t *testing.T) {
	events := []ChangeEvent{
		{MessageID: "", ThreadID: "t1", LabelIDs: []string{LabelInbox}},
		{MessageID: "m1", ThreadID: "", LabelIDs: []string{LabelInbox}},
	}

	assert.Empty(t, Normalize(events))
}

func TestNormalizePreservesEventOrder(t *testing.T) {
	events := []ChangeEvent{
		{MessageID: "m3", ThreadID: "t3", LabelIDs: []string{LabelInbox}},
		{MessageID: "m1", ThreadID: "t1", LabelIDs: []string{LabelInbox}},
		{MessageID: "m2", ThreadID: "t2", LabelIDs: []string{LabelInbox}},
	}

	candidates := Normalize(events)

	assert.Len(t, candidates, 3)
	assert.Equal(t, "m3", candidates[0].MessageID)
	assert.Equal(t, "m1", candidates[1].MessageID)
	assert.Equal(t, "m2", candidates[2].MessageID)
}
