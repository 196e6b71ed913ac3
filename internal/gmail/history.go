package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/InboxSlash/inbox-slash/internal/history"
)

// ListHistory fetches the ordered change events since startHistoryID,
// restricted to inbox-relevant history types. The start id itself is not
// included in the results. A 404 here means the cursor expired upstream and
// surfaces as history.ErrNotFound.
func (c *Client) ListHistory(ctx context.Context, startHistoryID uint64) (*history.Batch, error) {
	var resp *gmail.ListHistoryResponse
	err := c.call(ctx, func() error {
		r, err := c.svc.Users.History.List(gmailUser).
			StartHistoryId(startHistoryID).
			LabelId(history.LabelInbox).
			HistoryTypes("messageAdded", "labelAdded").
			MaxResults(c.maxResults).
			Context(ctx).
			Do()
		resp = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	batch := &history.Batch{}
	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			appendEvent(batch, h.Id, history.MessageAdded, added.Message)
		}
		for _, labeled := range h.LabelsAdded {
			appendEvent(batch, h.Id, history.LabelAdded, labeled.Message)
		}
		batch.LastHistoryID = h.Id
	}

	return batch, nil
}

func appendEvent(batch *history.Batch, historyID uint64, typ history.ChangeType, msg *gmail.Message) {
	if msg == nil {
		return
	}
	batch.Events = append(batch.Events, history.ChangeEvent{
		HistoryID: historyID,
		Type:      typ,
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
		LabelIDs:  msg.LabelIds,
	})
}
