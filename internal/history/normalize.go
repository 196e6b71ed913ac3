package history

// Normalize turns an ordered change-event sequence into the ordered candidate
// list. Deterministic, no side effects.
//
// An event survives only if its label set marks it as mail the user actually
// received: the inbox label present, the draft and sent labels absent. A
// message can appear under both messageAdded and labelAdded within one batch;
// the first occurrence wins.
func Normalize(events []ChangeEvent) []Candidate {
	seen := make(map[string]struct{}, len(events))
	var out []Candidate

	for _, ev := range events {
		if ev.MessageID == "" || ev.ThreadID == "" {
			continue
		}
		if !isInbound(ev.LabelIDs) {
			continue
		}
		if _, dup := seen[ev.MessageID]; dup {
			continue
		}
		seen[ev.MessageID] = struct{}{}
		out = append(out, Candidate{MessageID: ev.MessageID, ThreadID: ev.ThreadID})
	}

	return out
}

func isInbound(labelIDs []string) bool {
	inbox := false
	for _, id := range labelIDs {
		switch id {
		case LabelInbox:
			inbox = true
		case LabelDraft, LabelSent:
			return false
		}
	}
	return inbox
}
