package unsubscribe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/model"
)

type fakeSenderStore struct {
	blocked map[string]bool
	lookups []string
}

func (s *fakeSenderStore) IsSenderBlocked(_ uint, email string) (bool, error) {
	s.lookups = append(s.lookups, email)
	return s.blocked[email], nil
}

// labelMailbox implements the label operations the checker uses.
type labelMailbox struct {
	history.Mailbox

	labels   []string
	modifies []struct {
		messageID string
		add       []string
		remove    []string
	}
}

func (m *labelMailbox) EnsureLabel(_ context.Context, name string) (string, error) {
	m.labels = append(m.labels, name)
	return "label-" + name, nil
}

func (m *labelMailbox) ModifyLabels(_ context.Context, messageID string, add, remove []string) error {
	m.modifies = append(m.modifies, struct {
		messageID string
		add       []string
		remove    []string
	}{messageID, add, remove})
	return nil
}

func message(from string) *history.ParsedMessage {
	return &history.ParsedMessage{
		ID:       "m1",
		ThreadID: "t1",
		Headers:  history.MessageHeaders{From: from},
	}
}

func TestCheckUnblockedSender(t *testing.T) {
	store := &fakeSenderStore{}
	mbox := &labelMailbox{}
	svc := NewService(store)

	blocked, err := svc.Check(context.Background(), &model.User{ID: 1}, mbox, message("Friend <friend@example.com>"))

	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, []string{"friend@example.com"}, store.lookups)
	assert.Empty(t, mbox.modifies)
}

func TestCheckBlockedSenderArchivesAndLabels(t *testing.T) {
	store := &fakeSenderStore{blocked: map[string]bool{"news@spammy.com": true}}
	mbox := &labelMailbox{}
	svc := NewService(store)

	blocked, err := svc.Check(context.Background(), &model.User{ID: 1}, mbox, message("Spammy News <NEWS@Spammy.com>"))

	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, []string{DefaultLabel}, mbox.labels)
	require.Len(t, mbox.modifies, 1)
	assert.Equal(t, "m1", mbox.modifies[0].messageID)
	assert.Equal(t, []string{"label-" + DefaultLabel}, mbox.modifies[0].add)
	assert.Equal(t, []string{history.LabelInbox}, mbox.modifies[0].remove)
}

func TestCheckUnparseableFromFallsBackToRawValue(t *testing.T) {
	store := &fakeSenderStore{blocked: map[string]bool{"bare-address": true}}
	mbox := &labelMailbox{}
	svc := NewService(store)

	blocked, err := svc.Check(context.Background(), &model.User{ID: 1}, mbox, message("BARE-ADDRESS"))

	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestCheckEmptyFromSkipsLookup(t *testing.T) {
	store := &fakeSenderStore{}
	svc := NewService(store)

	blocked, err := svc.Check(context.Background(), &model.User{ID: 1}, &labelMailbox{}, message(""))

	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Empty(t, store.lookups)
}
