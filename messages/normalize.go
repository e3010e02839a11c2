package messages

import (
	"fmt"
	"sort"
	"time"
)

// Normalize maps a raw upstream record onto a Message, filling every field.
// seq identifies the record's position in the conversation history and is
// only used to synthesize an id when upstream did not send one.
func Normalize(raw RawRecord, fallbackKey, fallbackClinicID string, seq int, now time.Time) Message {
	stamp := now.UTC().Format(time.RFC3339)

	id := string(raw.ID)
	if id == "" {
		id = fmt.Sprintf("msg_%d", seq)
	}

	chatID := firstNonEmpty(raw.ChatID, fallbackKey)
	_, customerID := SplitConversationKey(chatID)

	createdAt := firstNonEmpty(raw.CreatedAt, stamp)

	return Message{
		ID:         id,
		ChatID:     chatID,
		ClinicID:   fallbackClinicID,
		CustomerID: customerID,
		Content:    firstNonEmpty(raw.Content, raw.Message),
		Sender:     firstNonEmpty(raw.Sender, DefaultSender),
		Timestamp:  firstNonEmpty(raw.Timestamp, createdAt),
		CreatedAt:  createdAt,
		UpdatedAt:  firstNonEmpty(raw.UpdatedAt, stamp),
	}
}

// NormalizeBatch normalizes a fetched page. seqOffset is the history position
// of the first record. The batch is put in chronological order when every
// timestamp parses; otherwise the upstream order is kept as is.
func NormalizeBatch(records []RawRecord, key, clinicID string, seqOffset int, now time.Time) []Message {
	out := make([]Message, 0, len(records))
	for i, raw := range records {
		out = append(out, Normalize(raw, key, clinicID, seqOffset+i, now))
	}

	times := make([]time.Time, len(out))
	for i, m := range out {
		t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
		if err != nil {
			return out
		}
		times[i] = t
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return times[idx[a]].Before(times[idx[b]])
	})

	sorted := make([]Message, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
