package messages

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultLimit is the page size used when a conversation does not ask for one.
const DefaultLimit = 50

// DefaultSender is assigned to records that arrive without a sender.
const DefaultSender = "user"

// Message is the canonical chat message held in a conversation buffer.
// Messages are never mutated after normalization.
type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chatId"`
	ClinicID   string `json:"clinicId"`
	CustomerID string `json:"customerId"`
	Content    string `json:"content"`
	Sender     string `json:"sender"`
	Timestamp  string `json:"timestamp"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// RawRecord is a message as returned by an upstream source. Every field is
// optional; an empty string is treated as absent.
type RawRecord struct {
	ID        RecordID `json:"id,omitempty"`
	ChatID    string   `json:"chat_id,omitempty"`
	Content   string   `json:"content,omitempty"`
	Message   string   `json:"message,omitempty"`
	Sender    string   `json:"sender,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// RecordID accepts both string and numeric identifiers from upstream.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = RecordID(n.String())
	return nil
}

// Pagination is the upstream page metadata.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is one fetched page of raw records.
type Page struct {
	Records    []RawRecord
	Pagination Pagination
	Shape      Shape
}

// ConversationKey builds the composite clinicID:userID identifier.
func ConversationKey(clinicID, userID string) string {
	return clinicID + ":" + userID
}

// SplitConversationKey is the inverse of ConversationKey. A key without a
// separator is returned whole as the user part.
func SplitConversationKey(key string) (clinicID, userID string) {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}
